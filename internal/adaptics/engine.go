// Package adaptics wires the pattern-evaluation worker, a device
// scheduler, the network dispatcher, and an optional hand-tracking
// source into a running engine, and exposes the library surface that the
// command-line front end (and, historically, a native FFI boundary) call
// into.
package adaptics

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cbegin/adaptics-engine-go/internal/device"
	"github.com/cbegin/adaptics-engine-go/internal/device/mock"
	"github.com/cbegin/adaptics-engine-go/internal/device/ultrasound"
	"github.com/cbegin/adaptics-engine-go/internal/device/vibrotactile"
	"github.com/cbegin/adaptics-engine-go/internal/fabric"
	"github.com/cbegin/adaptics-engine-go/internal/pattern"
	"github.com/cbegin/adaptics-engine-go/internal/proto"
	"github.com/cbegin/adaptics-engine-go/internal/scheduler"
	"github.com/cbegin/adaptics-engine-go/internal/tracking/leapmotion"
	trackingmock "github.com/cbegin/adaptics-engine-go/internal/tracking/mock"
	"github.com/cbegin/adaptics-engine-go/internal/worker"
	"github.com/cbegin/adaptics-engine-go/internal/wsnet"
)

// DeviceKind selects which haptic backend an Engine drives.
type DeviceKind int

const (
	DeviceUltrasound DeviceKind = iota
	DeviceVibrotactile
	DeviceMock
)

// Tuning constants mirroring the original engine's fixed device rates.
const (
	ultrasoundCallbackRate = 500.0
	mockDeviceUpdateRate   = 20_000
	mockCallbackRate       = 500.0
	vibrotactileSampleRate = 10_000
	vibrotactileCallbackRate = 100.0

	secondsPerPlaybackUpdate     = 1.0 / 30.0
	sendUntrackedPlaybackUpdates = false
)

// TrackingKind selects the hand-tracking source, if any.
type TrackingKind int

const (
	TrackingNone TrackingKind = iota
	TrackingLeapMotion
	TrackingMock
)

// Config describes one engine run's fixed wiring, chosen once at
// startup (by the CLI or a direct library caller) and not changed
// afterward; everything that changes during a run flows through
// Update/UpdatePlaystart/etc instead.
type Config struct {
	Device DeviceKind
	// SerialPort names the vibrotactile glove's serial device; ignored
	// for other Device kinds.
	SerialPort string
	// VibrotactileLayout overrides the glove's default LRA wiring.
	VibrotactileLayout vibrotactile.Layout

	EnablePlaybackUpdates bool
	WebsocketBindAddr     string // empty disables the network dispatcher

	Tracking TrackingKind
}

// Engine owns one running pattern-playback pipeline: the evaluation
// worker, its driving device scheduler, and the optional network and
// tracking goroutines feeding it.
type Engine struct {
	fab *fabric.Fabric
	grp *errgroup.Group

	updateTx chan<- proto.Update
}

// Run builds and starts an Engine per cfg. It returns once every
// goroutine has started; call Wait to block until the engine stops
// (normally only via ctx cancellation or an unrecoverable device error).
func Run(ctx context.Context, cfg Config) (*Engine, error) {
	fab := fabric.New(cfg.EnablePlaybackUpdates, cfg.Tracking != TrackingNone)
	grp, ctx := errgroup.WithContext(ctx)

	w := worker.New(worker.Config{
		SecondsPerPlaybackUpdate:     secondsPerPlaybackUpdate,
		SendUntrackedPlaybackUpdates: sendUntrackedPlaybackUpdates,
	})
	grp.Go(func() error {
		logrus.Info("pattern-eval: starting")
		w.Run(fab.EvalCall, fab.Update, fab.EvalReturn, fab.PlaybackUpdates, fab.TrackingData)
		logrus.Info("pattern-eval: exiting")
		return nil
	})

	if cfg.Device == DeviceUltrasound {
		grp.Go(func() error {
			return ultrasound.StartStreamingEmitter(ctx.Done(), ultrasoundCallbackRate, fab.EvalCall, fab.EvalReturn)
		})
	} else {
		driver, err := buildDriver(cfg)
		if err != nil {
			return nil, err
		}
		grp.Go(func() error {
			defer driver.StopAll()
			return runDeviceLoop(ctx.Done(), fab, cfg.Device, driver)
		})
	}

	if cfg.WebsocketBindAddr != "" {
		if !cfg.EnablePlaybackUpdates {
			return nil, NewError("websocket bind address given but playback updates are disabled")
		}
		server := wsnet.NewServer(cfg.WebsocketBindAddr)
		grp.Go(func() error {
			logrus.Infof("net: listening on %s", cfg.WebsocketBindAddr)
			err := server.Run(ctx.Done(), fab.Update, fab.PlaybackUpdates, nil)
			logrus.Info("net: exiting")
			return err
		})
	}

	switch cfg.Tracking {
	case TrackingLeapMotion:
		grp.Go(func() error {
			logrus.Info("tracking: starting (leapmotion)")
			err := leapmotion.Run(ctx.Done(), fab.TrackingData)
			logrus.Info("tracking: exiting")
			return err
		})
	case TrackingMock:
		grp.Go(func() error {
			logrus.Info("tracking: starting (mock)")
			trackingmock.Run(ctx.Done(), fab.TrackingData)
			logrus.Info("tracking: exiting")
			return nil
		})
	}

	return &Engine{fab: fab, grp: grp, updateTx: fab.Update}, nil
}

func buildDriver(cfg Config) (device.Driver, error) {
	switch cfg.Device {
	case DeviceMock:
		return mock.New(), nil
	case DeviceVibrotactile:
		layout := cfg.VibrotactileLayout
		if layout == (vibrotactile.Layout{}) {
			layout = vibrotactile.DefaultLayout
		}
		if cfg.SerialPort == "" {
			return vibrotactile.NewMock(layout), nil
		}
		return vibrotactile.NewForSerialPort(cfg.SerialPort, layout)
	default:
		return nil, fmt.Errorf("adaptics: unknown device kind %d", cfg.Device)
	}
}

// runDeviceLoop drives the configured device at its fixed cadence until
// done fires. Ultrasound is handled separately by its own SDK callback
// thread rather than this shared scheduler loop, since the vendor SDK —
// not this process — decides when to call back; see Run.
func runDeviceLoop(done <-chan struct{}, fab *fabric.Fabric, kind DeviceKind, driver device.Driver) error {
	switch kind {
	case DeviceMock:
		return runSchedulerLoop(done, fab, driver, mockDeviceUpdateRate, mockCallbackRate, 0)
	case DeviceVibrotactile:
		return runSchedulerLoop(done, fab, driver, vibrotactileSampleRate, vibrotactileCallbackRate, time.Microsecond*1000)
	default:
		return fmt.Errorf("adaptics: unknown device kind %d", kind)
	}
}

// runSchedulerLoop wraps scheduler.Run with the tick-duration math
// shared by the mock and vibrotactile backends.
func runSchedulerLoop(done <-chan struct{}, fab *fabric.Fabric, driver device.Driver, deviceUpdateRateHz, callbackRateHz float64, sleepBuffer time.Duration) error {
	cfg := scheduler.Config{
		DeviceTickDur:         time.Duration(float64(time.Second) / deviceUpdateRateHz),
		CallbackTickDur:       time.Duration(float64(time.Second) / callbackRateHz),
		SleepBuffer:           sleepBuffer,
		DeadlineWarnThreshold: 500 * time.Microsecond,
	}
	if sleepBuffer == 0 {
		cfg.DeadlineWarnThreshold = 0
	}
	return scheduler.Run(done, cfg, fab.EvalCall, fab.EvalReturn, driver)
}

// UpdatePattern replaces the active pattern from its JSON representation.
func (e *Engine) UpdatePattern(patternJSON []byte) {
	e.updateTx <- proto.Update{Kind: proto.UpdatePattern, PatternJSON: string(patternJSON)}
}

// UpdatePlaystart starts playback at now()+playstartOffset milliseconds,
// or stops it if playstart is 0.
func (e *Engine) UpdatePlaystart(playstart, playstartOffset float64) {
	e.updateTx <- proto.Update{Kind: proto.UpdatePlaystart, Playstart: playstart, PlaystartOffset: playstartOffset}
}

// UpdateParameters replaces the evaluator's parameters wholesale.
func (e *Engine) UpdateParameters(params pattern.PatternEvaluatorParameters) {
	e.updateTx <- proto.Update{Kind: proto.UpdateParameters, EvaluatorParams: params}
}

// ResetParameters replaces the evaluator's parameters with their
// zero-value defaults.
func (e *Engine) ResetParameters() {
	e.UpdateParameters(pattern.PatternEvaluatorParameters{})
}

// UpdateTime sets the evaluator's current pattern-local time directly.
// While playback is stopped every evaluation uses it; a subsequent
// UpdatePlaystart re-anchors the time-warp state to it, after which the
// playing time is measured from the new playstart.
func (e *Engine) UpdateTime(t float64) {
	e.updateTx <- proto.Update{Kind: proto.UpdateParameterTime, ParamTime: t}
}

// UpdateUserParameters replaces the evaluator's user parameter values.
func (e *Engine) UpdateUserParameters(params pattern.UserParameters) {
	e.updateTx <- proto.Update{Kind: proto.UpdateUserParameters, UserParameters: params}
}

// UpdateUserParameter sets a single named user parameter, leaving the
// rest of the evaluator's user parameter map untouched.
func (e *Engine) UpdateUserParameter(name string, value float64) {
	e.updateTx <- proto.Update{Kind: proto.UpdateUserParameter, UserParamName: name, UserParamValue: value}
}

// UpdateGeoTransformMatrix replaces the evaluator's final geometric
// transform, e.g. to re-anchor a pattern to a tracked hand position.
func (e *Engine) UpdateGeoTransformMatrix(m pattern.GeometricTransformMatrix) {
	e.updateTx <- proto.Update{Kind: proto.UpdateGeoTransformMatrix, GeoTransform: m}
}

// SetTracking enables or disables tracking-position offsetting.
func (e *Engine) SetTracking(enabled bool) {
	e.updateTx <- proto.Update{Kind: proto.UpdateTracking, TrackingEnabled: enabled}
}

// Wait blocks until every goroutine started by Run has exited, returning
// the first non-nil error any of them returned.
func (e *Engine) Wait() error {
	return e.grp.Wait()
}
