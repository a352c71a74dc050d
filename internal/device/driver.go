// Package device defines the haptic emitter abstraction shared by the
// ultrasound, vibrotactile, and mock backends, and the amplitude-falloff
// math the vibrotactile backend uses to turn a batch of brush evaluations
// into per-transducer drive levels.
package device

import "github.com/cbegin/adaptics-engine-go/internal/pattern"

// Driver renders a batch of brush evaluations to a physical (or
// simulated) haptic emitter, and can be silenced on shutdown.
type Driver interface {
	ApplyBatch(evals []pattern.BrushAtAnimLocalTime) error
	StopAll() error
}
