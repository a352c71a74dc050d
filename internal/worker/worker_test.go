package worker

import (
	"testing"
	"time"

	"github.com/cbegin/adaptics-engine-go/internal/pattern"
	"github.com/cbegin/adaptics-engine-go/internal/proto"
	"github.com/cbegin/adaptics-engine-go/internal/tracking"
)

func newTestWorker() *Worker {
	return New(Config{SecondsPerPlaybackUpdate: 1.0 / 30.0})
}

func TestHandleUpdatePlaystartSetsAndClears(t *testing.T) {
	w := newTestWorker()

	w.handleUpdate(proto.Update{Kind: proto.UpdatePlaystart, Playstart: 1.0, PlaystartOffset: 0})
	if w.playstart == nil {
		t.Fatal("expected playstart to be set")
	}

	w.handleUpdate(proto.Update{Kind: proto.UpdatePlaystart, Playstart: 0.0})
	if w.playstart != nil {
		t.Fatal("expected playstart to be cleared when Playstart == 0")
	}
}

func TestHandleUpdateParameters(t *testing.T) {
	w := newTestWorker()
	params := pattern.PatternEvaluatorParameters{UserParameters: pattern.UserParameters{"x": 5}}
	w.handleUpdate(proto.Update{Kind: proto.UpdateParameters, EvaluatorParams: params})
	if w.parameters.UserParameters["x"] != 5 {
		t.Fatalf("expected user parameter to be applied, got %+v", w.parameters)
	}
}

func TestHandleUpdateUserParameterSetsSingleEntry(t *testing.T) {
	w := newTestWorker()
	w.parameters.UserParameters = pattern.UserParameters{"existing": 1.0}

	w.handleUpdate(proto.Update{Kind: proto.UpdateUserParameter, UserParamName: "intensity", UserParamValue: 0.5})

	if w.parameters.UserParameters["intensity"] != 0.5 {
		t.Errorf("expected intensity=0.5, got %+v", w.parameters.UserParameters)
	}
	if w.parameters.UserParameters["existing"] != 1.0 {
		t.Errorf("expected existing entries to be untouched, got %+v", w.parameters.UserParameters)
	}
}

func TestHandleUpdateUserParameterInitializesNilMap(t *testing.T) {
	w := newTestWorker()
	w.handleUpdate(proto.Update{Kind: proto.UpdateUserParameter, UserParamName: "x", UserParamValue: 2.0})
	if w.parameters.UserParameters["x"] != 2.0 {
		t.Errorf("expected x=2.0, got %+v", w.parameters.UserParameters)
	}
}

func TestHandleUpdateTracking(t *testing.T) {
	w := newTestWorker()
	if w.enableTracking {
		t.Fatal("tracking should start disabled")
	}
	w.handleUpdate(proto.Update{Kind: proto.UpdateTracking, TrackingEnabled: true})
	if !w.enableTracking {
		t.Fatal("expected tracking to be enabled")
	}
}

func TestHandleUpdateUnknownPatternJSONKeepsPrevious(t *testing.T) {
	w := newTestWorker()
	prev := w.eval
	w.handleUpdate(proto.Update{Kind: proto.UpdatePattern, PatternJSON: "not json"})
	if w.eval != prev {
		t.Fatal("expected evaluator to be unchanged on parse failure")
	}
}

func TestHandleEvalBatchAppliesTrackingOffset(t *testing.T) {
	w := newTestWorker()
	w.enableTracking = true
	w.trackingData = tracking.Frame{Hand: &tracking.Hand{Palm: tracking.Palm{Position: pattern.MAHCoordsConst{X: 10, Y: 20, Z: 30}}}}

	now := time.Now()
	w.playstart = &now

	evalReturn := make(chan []pattern.BrushAtAnimLocalTime, 1)
	w.handleEvalBatch(EvalCall{TimeArrInstants: []time.Time{now}}, evalReturn, nil)

	select {
	case evals := <-evalReturn:
		if len(evals) != 1 {
			t.Fatalf("expected 1 eval, got %d", len(evals))
		}
		if evals[0].ULControlPoint.Coords.Z != 30 {
			t.Errorf("expected tracking Z offset applied, got %+v", evals[0].ULControlPoint.Coords)
		}
	default:
		t.Fatal("expected a value on evalReturn")
	}
}

func TestRunExitsWhenEvalCallClosed(t *testing.T) {
	w := newTestWorker()
	evalCall := make(chan EvalCall)
	update := make(chan proto.Update)
	evalReturn := make(chan []pattern.BrushAtAnimLocalTime)

	done := make(chan struct{})
	go func() {
		w.Run(evalCall, update, evalReturn, nil, nil)
		close(done)
	}()

	close(evalCall)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after evalCall closed")
	}
}
