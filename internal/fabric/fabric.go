// Package fabric builds the channel wiring shared between the
// pattern-evaluation worker, the device scheduler, the network
// dispatcher, and the hand-tracking source. Each constructor documents
// the capacity it chooses and why.
package fabric

import (
	"github.com/cbegin/adaptics-engine-go/internal/pattern"
	"github.com/cbegin/adaptics-engine-go/internal/proto"
	"github.com/cbegin/adaptics-engine-go/internal/tracking"
	"github.com/cbegin/adaptics-engine-go/internal/worker"
)

// evalCallBuffer is 1: the scheduler only ever has one call in flight at
// a time, since it waits on EvalReturn before sending the next one.
const evalCallBuffer = 1

// updateBuffer is generous: pattern/parameter/playstart updates arrive
// far less often than eval calls and must never be lost, so senders
// block only once 64 updates are queued.
const updateBuffer = 64

// Fabric holds every channel threaded between the engine's goroutines.
type Fabric struct {
	// EvalCall carries one EvalBatch request per scheduler tick.
	EvalCall chan worker.EvalCall
	// EvalReturn is an unbuffered rendezvous: the scheduler blocks until
	// the worker has finished evaluating the batch it just requested.
	EvalReturn chan []pattern.BrushAtAnimLocalTime
	// Update carries pattern/parameter/playstart/tracking-toggle commands
	// into the worker, from the network dispatcher or direct library calls.
	Update chan proto.Update
	// PlaybackUpdates is capacity 1: a websocket-disconnected or
	// lagging dispatcher should drop stale playback telemetry rather than
	// block the worker, so a full channel causes the newest update to be
	// dropped (TrySend semantics at the send site) rather than grow
	// unboundedly.
	PlaybackUpdates chan proto.ServerMessage
	// TrackingData is capacity 1, drop-newest on a full channel (a
	// try_send at the send site): like PlaybackUpdates, it is a
	// best-effort telemetry stream, so a frame that arrives while the
	// worker has not yet taken the previous one is dropped rather than
	// blocking the tracking source.
	TrackingData chan tracking.Frame
	// EndStreaming is a capacity-1 one-shot shutdown channel. Nothing in
	// this module sends on it: the device scheduler's tick loop stops on
	// the done channel passed to scheduler.Run.
	EndStreaming chan struct{}
}

// New builds a Fabric. enablePlaybackUpdates and enableTracking control
// whether the corresponding channels are constructed at all — an engine
// run with network disabled, or tracking disabled, never allocates the
// channel pattern_evaluation doesn't need.
func New(enablePlaybackUpdates, enableTracking bool) *Fabric {
	f := &Fabric{
		EvalCall:     make(chan worker.EvalCall, evalCallBuffer),
		EvalReturn:   make(chan []pattern.BrushAtAnimLocalTime),
		Update:       make(chan proto.Update, updateBuffer),
		EndStreaming: make(chan struct{}, 1),
	}
	if enablePlaybackUpdates {
		f.PlaybackUpdates = make(chan proto.ServerMessage, 1)
	}
	if enableTracking {
		f.TrackingData = make(chan tracking.Frame, 1)
	}
	return f
}
