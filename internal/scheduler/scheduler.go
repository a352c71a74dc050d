// Package scheduler drives the soft-real-time tick loop shared by the
// vibrotactile and mock device backends: a hybrid OS-sleep-then-busy-wait
// cadence that emits one evaluation request per callback period and
// renders the result to a Driver, dropping a partial frame rather than
// trying to catch up whenever a tick's deadline is missed.
package scheduler

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/adaptics-engine-go/internal/device"
	"github.com/cbegin/adaptics-engine-go/internal/pattern"
	"github.com/cbegin/adaptics-engine-go/internal/worker"
)

// Config parameterizes the tick loop for a particular device: its
// sample rate (DeviceTickDur) and the rate at which it is driven with a
// fresh batch of evaluations (CallbackTickDur).
type Config struct {
	// DeviceTickDur is the spacing between consecutive device-sample
	// instants within one callback's batch (1/SAMPLE_RATE).
	DeviceTickDur time.Duration
	// CallbackTickDur is the spacing between ticks of this loop
	// (1/CALLBACK_RATE).
	CallbackTickDur time.Duration
	// SleepBuffer, if nonzero, is subtracted from the OS sleep so the
	// subsequent busy-wait always has a little slack to absorb sleep
	// jitter. Zero disables the OS-sleep phase entirely (busy-wait only).
	SleepBuffer time.Duration
	// DeadlineWarnThreshold is the overshoot past a tick's deadline that
	// triggers a logged warning. The original engine uses 500µs for the
	// vibrotactile glove and has no warning at all for the mock backend;
	// callers that want the mock behavior should leave this at zero,
	// which disables the warning.
	DeadlineWarnThreshold time.Duration
}

// Run drives driver at cfg's cadence, requesting one EvalCall per tick
// over evalCallTx and reading its result from evalReturnRx, until done
// is closed. It locks the calling goroutine to its OS thread for the
// duration of the run, matching the precision the original engine gets
// from a dedicated streaming thread.
func Run(done <-chan struct{}, cfg Config, evalCallTx chan<- worker.EvalCall, evalReturnRx <-chan []pattern.BrushAtAnimLocalTime, driver device.Driver) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if cfg.DeviceTickDur <= 0 {
		panic("scheduler: DeviceTickDur must be > 0")
	}

	lastTick := time.Now()

	for {
		select {
		case <-done:
			return nil
		default:
		}

		nextTickAt := lastTick.Add(cfg.CallbackTickDur)
		sleepTime := time.Until(nextTickAt)

		var currTime time.Time
		if sleepTime <= 0 {
			// We are already past the deadline: drop this (partial)
			// frame and resume normal cadence from now, rather than
			// trying to catch up.
			currTime = time.Now()
		} else {
			if cfg.SleepBuffer > 0 && sleepTime > cfg.SleepBuffer {
				time.Sleep(sleepTime - cfg.SleepBuffer)
			}
			for time.Now().Before(nextTickAt) {
				// busy-wait out the remaining slack the OS sleep left
			}
			currTime = time.Now()
		}
		lastTick = currTime

		deadlineTime := currTime.Add(cfg.CallbackTickDur)

		capacity := int(cfg.CallbackTickDur/cfg.DeviceTickDur) + 2
		instants := make([]time.Time, 0, capacity)
		for t := deadlineTime; t.Before(deadlineTime.Add(cfg.CallbackTickDur)); t = t.Add(cfg.DeviceTickDur) {
			instants = append(instants, t)
		}

		select {
		case evalCallTx <- worker.EvalCall{TimeArrInstants: instants}:
		case <-done:
			return nil
		}

		var evals []pattern.BrushAtAnimLocalTime
		select {
		case evals = <-evalReturnRx:
		case <-done:
			return nil
		}

		if err := driver.ApplyBatch(evals); err != nil {
			return err
		}

		if cfg.DeadlineWarnThreshold > 0 {
			if missedBy := time.Since(deadlineTime); missedBy > cfg.DeadlineWarnThreshold {
				logrus.Warnf("scheduler: missed deadline by %v", missedBy)
			}
		}
	}
}
