// Package mock is a no-op haptic emitter: it accepts and logs batches
// without driving any hardware, for the --use-mock-streaming CLI path
// and for tests.
package mock

import (
	"github.com/sirupsen/logrus"

	"github.com/cbegin/adaptics-engine-go/internal/pattern"
)

// Driver logs the batches it receives at trace level and otherwise does
// nothing; it satisfies device.Driver.
type Driver struct{}

// New builds a mock Driver.
func New() *Driver { return &Driver{} }

func (d *Driver) ApplyBatch(evals []pattern.BrushAtAnimLocalTime) error {
	logrus.WithField("evals", len(evals)).Trace("mock: applying batch")
	return nil
}

func (d *Driver) StopAll() error {
	logrus.Debug("mock: stop all")
	return nil
}
