// Package worker runs the pattern-evaluation loop: it owns the active
// pattern and playback state, answers per-tick evaluation requests from
// the device scheduler, and applies pattern/parameter/tracking updates
// from the network dispatcher or direct library calls.
package worker

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/adaptics-engine-go/internal/pattern"
	"github.com/cbegin/adaptics-engine-go/internal/proto"
	"github.com/cbegin/adaptics-engine-go/internal/tracking"
)

// EvalCall asks the worker to evaluate one batch of future device-sample
// instants, as built by the scheduler for a single tick.
type EvalCall struct {
	TimeArrInstants []time.Time
}

// playbackUpdateBufferCapacity mirrors a vibrotactile device running at
// 10kHz sampled into ~30Hz network updates: roughly 333 evals per flush,
// rounded up generously so append never has to reallocate mid-flush.
const playbackUpdateBufferCapacity = 1024

// Config tunes the worker's playback-telemetry cadence.
type Config struct {
	// SecondsPerPlaybackUpdate gates how often buffered evals are
	// flushed to PlaybackUpdates.
	SecondsPerPlaybackUpdate float64
	// SendUntrackedPlaybackUpdates, if true, reports evals with the
	// coordinates a client would see with no tracking offset applied,
	// even when tracking is active.
	SendUntrackedPlaybackUpdates bool
}

// Worker is the single owner of pattern-evaluation state; it must only
// be driven from the goroutine running Run.
type Worker struct {
	cfg Config

	eval       *pattern.Evaluator
	playstart  *time.Time
	parameters pattern.PatternEvaluatorParameters

	trackingData   tracking.Frame
	enableTracking bool

	lastPlaybackUpdate time.Time
	playbackBuffer     []pattern.BrushAtAnimLocalTime
	nextEvalParams     pattern.NextEvalParams

	// sendStoppingUpdates is set the instant a running pattern evaluates
	// to a Stop sample: the worker owes the network one more flush
	// containing everything buffered up to and including that Stop
	// sample. That flush is sent at the end of the same batch, and the
	// flag is cleared with it.
	sendStoppingUpdates bool
}

// New builds a Worker with an empty default pattern; send an
// UpdatePattern command on Run's update channel to load a real one.
func New(cfg Config) *Worker {
	return &Worker{
		cfg:                cfg,
		eval:               pattern.New(pattern.DefaultPattern()),
		lastPlaybackUpdate: time.Now(),
		playbackBuffer:     make([]pattern.BrushAtAnimLocalTime, 0, playbackUpdateBufferCapacity),
	}
}

// Run services EvalCall, Update, and tracking-frame channels until
// evalCall, update, or trackingData is closed. Each batch's reply is a
// blocking send on evalReturn. playbackUpdates and trackingData may be nil,
// disabling the corresponding select case entirely — matching the
// original's Option<Receiver>/Option<Sender> plumbing for a
// network/tracking-disabled run.
func (w *Worker) Run(
	evalCall <-chan EvalCall,
	update <-chan proto.Update,
	evalReturn chan<- []pattern.BrushAtAnimLocalTime,
	playbackUpdates chan<- proto.ServerMessage,
	trackingData <-chan tracking.Frame,
) {
	for {
		select {
		case call, ok := <-evalCall:
			if !ok {
				return
			}
			w.handleEvalBatch(call, evalReturn, playbackUpdates)

		case u, ok := <-update:
			if !ok {
				return
			}
			w.handleUpdate(u)

		case frame, ok := <-trackingData:
			if !ok {
				return
			}
			w.trackingData = frame
		}
	}
}

func (w *Worker) handleEvalBatch(call EvalCall, evalReturn chan<- []pattern.BrushAtAnimLocalTime, playbackUpdates chan<- proto.ServerMessage) {
	rawEvals := make([]pattern.BrushAtAnimLocalTime, len(call.TimeArrInstants))
	stopIdx := -1
	for i, instant := range call.TimeArrInstants {
		if w.playstart != nil {
			w.parameters.Time = float64(instant.Sub(*w.playstart).Nanoseconds()) / 1e6
		} // else reuse the last parameters.Time

		e := w.eval.EvalBrushAtAnimLocalTime(w.parameters, w.nextEvalParams)
		w.nextEvalParams = e.NextEvalParams
		if e.Stop && w.playstart != nil {
			w.playstart = nil
			w.sendStoppingUpdates = true
			stopIdx = i
		}
		rawEvals[i] = e
	}

	trackedEvals := rawEvals
	if w.enableTracking && w.trackingData.Hand != nil {
		trackedEvals = make([]pattern.BrushAtAnimLocalTime, len(rawEvals))
		copy(trackedEvals, rawEvals)
		palm := w.trackingData.Hand.Palm.Position
		for i := range trackedEvals {
			trackedEvals[i].ULControlPoint.Coords.X += palm.X
			trackedEvals[i].ULControlPoint.Coords.Y += palm.Y
			trackedEvals[i].ULControlPoint.Coords.Z = palm.Z
		}
	}

	evalReturn <- trackedEvals

	sendUpdates := w.playstart != nil || w.sendStoppingUpdates
	if !sendUpdates || playbackUpdates == nil {
		return
	}

	telemetryEvals := trackedEvals
	if w.cfg.SendUntrackedPlaybackUpdates {
		telemetryEvals = rawEvals
	}
	if stopIdx >= 0 {
		telemetryEvals = telemetryEvals[:stopIdx+1]
	}
	w.playbackBuffer = append(w.playbackBuffer, telemetryEvals...)

	if w.sendStoppingUpdates || time.Since(w.lastPlaybackUpdate).Seconds() > w.cfg.SecondsPerPlaybackUpdate {
		w.sendStoppingUpdates = false
		w.flushPlaybackUpdates(playbackUpdates)
	}
}

func (w *Worker) flushPlaybackUpdates(playbackUpdates chan<- proto.ServerMessage) {
	w.lastPlaybackUpdate = time.Now()
	if len(w.playbackBuffer) == 0 {
		logrus.Debug("worker: skipping network update, no evals buffered")
		return
	}
	msg := proto.ServerMessage{Kind: proto.ServerMessagePlaybackUpdate, Evals: w.playbackBuffer}
	select {
	case playbackUpdates <- msg:
	default:
		logrus.Warn("worker: network thread lagged, dropping a playback update")
	}
	w.playbackBuffer = make([]pattern.BrushAtAnimLocalTime, 0, playbackUpdateBufferCapacity)
}

func (w *Worker) handleUpdate(u proto.Update) {
	switch u.Kind {
	case proto.UpdatePattern:
		ev, err := pattern.NewFromJSON([]byte(u.PatternJSON))
		if err != nil {
			logrus.WithError(err).Error("worker: failed to parse updated pattern, keeping previous pattern")
			return
		}
		w.eval = ev

	case proto.UpdateParameters:
		w.parameters = u.EvaluatorParams

	case proto.UpdatePlaystart:
		if u.Playstart == 0.0 {
			w.playstart = nil
			return
		}
		w.lastPlaybackUpdate = time.Now()
		w.playbackBuffer = w.playbackBuffer[:0]
		start := time.Now().Add(jsMillisecondsToDuration(u.PlaystartOffset))
		w.playstart = &start
		w.nextEvalParams = pattern.NextEvalParams{LastEvalPatternTime: w.parameters.Time}

	case proto.UpdateTracking:
		w.enableTracking = u.TrackingEnabled

	case proto.UpdateUserParameter:
		if w.parameters.UserParameters == nil {
			w.parameters.UserParameters = pattern.UserParameters{}
		}
		w.parameters.UserParameters[u.UserParamName] = u.UserParamValue

	case proto.UpdateParameterTime:
		w.parameters.Time = u.ParamTime

	case proto.UpdateUserParameters:
		w.parameters.UserParameters = u.UserParameters

	case proto.UpdateGeoTransformMatrix:
		w.parameters.GeometricTransform = u.GeoTransform

	default:
		logrus.Errorf("worker: %v", fmt.Errorf("unhandled update kind %d", u.Kind))
	}
}

// jsMillisecondsToDuration converts a (possibly negative) millisecond
// offset, as sent by JavaScript clients, into a time.Duration.
func jsMillisecondsToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
