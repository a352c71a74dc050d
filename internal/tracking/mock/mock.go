// Package mock synthesizes hand-tracking frames without any tracking
// hardware, for designer-telemetry testing and for engines configured
// with adaptics.TrackingMock.
package mock

import (
	"math"
	"time"

	"github.com/cbegin/adaptics-engine-go/internal/pattern"
	"github.com/cbegin/adaptics-engine-go/internal/tracking"
)

const (
	tickRate   = 30 * time.Millisecond
	orbitRadiusMM = 40.0
	orbitPeriod   = 4 * time.Second
)

// Run emits a hand position slowly orbiting above the haptic origin
// every 30ms (about 33Hz), until done is closed.
func Run(done <-chan struct{}, out chan<- tracking.Frame) {
	ticker := time.NewTicker(tickRate)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			phase := 2 * math.Pi * float64(now.Sub(start)) / float64(orbitPeriod)
			position := pattern.MAHCoordsConst{
				X: orbitRadiusMM * math.Cos(phase),
				Y: orbitRadiusMM * math.Sin(phase),
				Z: 150.0,
			}
			frame := tracking.Frame{Hand: &tracking.Hand{
				Chirality: tracking.ChiralityRight,
				Palm: tracking.Palm{
					Position:  position,
					Width:     80.0,
					Normal:    pattern.MAHCoordsConst{X: 0, Y: 0, Z: -1},
					Direction: pattern.MAHCoordsConst{X: 0, Y: 1, Z: 0},
				},
			}}
			select {
			case out <- frame:
			default:
			}
		}
	}
}
