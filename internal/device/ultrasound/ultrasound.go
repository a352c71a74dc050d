// Package ultrasound drives a phased-array ultrasound haptic emitter
// through its vendor SDK, loaded dynamically at runtime. The SDK owns
// its own high-rate streaming thread and calls back into this package
// with a batch of upcoming device-sample timestamps (in milliseconds
// since its own epoch); this package maps those timestamps onto the
// pattern-evaluation worker's time.Time instants, requests an
// evaluation, and writes the results back into the SDK's output buffer.
package ultrasound

import (
	"fmt"
	"runtime"
	"sync"
	"time"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/cbegin/adaptics-engine-go/internal/pattern"
	"github.com/cbegin/adaptics-engine-go/internal/worker"
)

const (
	libraryNameLinux   = "libUltrasoundSDK.so"
	libraryNameDarwin  = "libUltrasoundSDK.dylib"
	libraryNameWindows = "UltrasoundSDK.dll"
)

// callbackSlot enforces the vendor SDK's expectation that at most one
// streaming controller is active at a time: the SDK invokes a single
// process-wide C callback, so only one Go callback can be installed
// behind it at once.
var callbackSlot struct {
	mu sync.Mutex
	fn func(timeArrMS []float64, out []evalResult)
}

// evalResult is what the SDK expects written back into its output
// buffer for each requested timestamp.
type evalResult struct {
	X, Y, Z   float64
	Intensity float64
}

type sdk struct {
	newStreamingController func(callbackRate float32, cb uintptr) int32
	resumeEmitter           func() int32
	destroyStreamingController func()
}

func load() (*sdk, error) {
	lib, err := purego.Dlopen(libraryName(), purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("ultrasound: load SDK: %w", err)
	}
	s := &sdk{}
	purego.RegisterLibFunc(&s.newStreamingController, lib, "Ulh_NewStreamingController")
	purego.RegisterLibFunc(&s.resumeEmitter, lib, "Ulh_ResumeEmitter")
	purego.RegisterLibFunc(&s.destroyStreamingController, lib, "Ulh_DestroyStreamingController")
	return s, nil
}

func libraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return libraryNameDarwin
	case "windows":
		return libraryNameWindows
	default:
		return libraryNameLinux
	}
}

// StartStreamingEmitter installs this package's evaluation pipeline as
// the vendor SDK's streaming callback and blocks until done fires.
//
// The SDK hands its callback wall-clock milliseconds against its own
// clock epoch. syncEpochInstant and syncEpochChronoMS are captured
// back-to-back at startup so later timestamps can be converted to
// time.Time values comparable with the rest of the engine, under the
// assumption (shared with the original implementation) that the SDK's
// clock and the Go runtime's monotonic clock share a source and merely
// need this one-time epoch alignment.
func StartStreamingEmitter(done <-chan struct{}, callbackRate float32, evalCallTx chan<- worker.EvalCall, evalReturnRx <-chan []pattern.BrushAtAnimLocalTime) error {
	s, err := load()
	if err != nil {
		return err
	}

	syncEpochInstant := time.Now()
	syncEpochChronoMS := float64(syncEpochInstant.UnixMilli())

	callback := func(timeArrMS []float64, out []evalResult) {
		instants := make([]time.Time, len(timeArrMS))
		for i, ms := range timeArrMS {
			instants[i] = syncEpochInstant.Add(time.Duration((ms - syncEpochChronoMS) * float64(time.Millisecond)))
		}

		select {
		case evalCallTx <- worker.EvalCall{TimeArrInstants: instants}:
		case <-done:
			return
		}

		var evals []pattern.BrushAtAnimLocalTime
		select {
		case evals = <-evalReturnRx:
		case <-done:
			return
		}

		for i, e := range evals {
			if i >= len(out) {
				break
			}
			out[i] = evalResult{
				X:         pattern.UnitConvertDistToHapeV2(e.ULControlPoint.Coords.X),
				Y:         pattern.UnitConvertDistToHapeV2(e.ULControlPoint.Coords.Y),
				Z:         pattern.UnitConvertDistToHapeV2(e.ULControlPoint.Coords.Z),
				Intensity: e.ULControlPoint.Intensity,
			}
		}
	}

	if err := installCallback(callback); err != nil {
		return err
	}
	defer clearCallback()

	cbPtr := purego.NewCallback(staticStreamingEmissionCallback)

	if rs := s.newStreamingController(callbackRate, cbPtr); rs != 0 {
		return fmt.Errorf("ultrasound: error creating streaming controller (code %d)", rs)
	}
	defer s.destroyStreamingController()

	if rs := s.resumeEmitter(); rs != 0 {
		return fmt.Errorf("ultrasound: error resuming emitter (code %d)", rs)
	}

	<-done
	return nil
}

// installCallback sets the single process-wide callback slot, panicking
// if one is already active — mirroring the vendor SDK's own invariant
// that only one streaming controller may run at a time.
func installCallback(fn func(timeArrMS []float64, out []evalResult)) error {
	callbackSlot.mu.Lock()
	defer callbackSlot.mu.Unlock()
	if callbackSlot.fn != nil {
		panic("ultrasound: cannot have multiple streaming emitters running at once")
	}
	callbackSlot.fn = fn
	return nil
}

func clearCallback() {
	callbackSlot.mu.Lock()
	defer callbackSlot.mu.Unlock()
	callbackSlot.fn = nil
}

// staticStreamingEmissionCallback is the single C-callable trampoline
// registered with the SDK; it forwards into whatever Go callback is
// currently installed in callbackSlot, or does nothing if none is (the
// SDK may still invoke it briefly during shutdown).
//
// argument marshalling (timeArrPtr/n, outPtr) is a stand-in for the
// vendor SDK's actual CxxVector-based signature, reduced to raw
// pointers since this package avoids cgo.
func staticStreamingEmissionCallback(timeArrPtr uintptr, n int32, outPtr uintptr) {
	callbackSlot.mu.Lock()
	fn := callbackSlot.fn
	callbackSlot.mu.Unlock()
	if fn == nil {
		return
	}

	timeArrMS := unsafe.Slice((*float64)(unsafe.Pointer(timeArrPtr)), n)
	out := unsafe.Slice((*evalResult)(unsafe.Pointer(outPtr)), n)
	fn(timeArrMS, out)
}
