package proto

import (
	"encoding/json"
	"testing"

	"github.com/cbegin/adaptics-engine-go/internal/pattern"
)

func TestUpdateJSONRoundTrip(t *testing.T) {
	cases := []Update{
		{Kind: UpdatePattern, PatternJSON: `{"foo":1}`},
		{Kind: UpdatePlaystart, Playstart: 1234.5, PlaystartOffset: 16.0},
		{Kind: UpdateParameters, EvaluatorParams: pattern.PatternEvaluatorParameters{}},
		{Kind: UpdateTracking, TrackingEnabled: true},
		{Kind: UpdateUserParameter, UserParamName: "intensity", UserParamValue: 0.5},
		{Kind: UpdateParameterTime, ParamTime: 42.0},
		{Kind: UpdateUserParameters, UserParameters: pattern.UserParameters{}},
		{Kind: UpdateGeoTransformMatrix},
	}

	for _, want := range cases {
		b, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("marshal %v: %v", want.Kind, err)
		}
		var got Update
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("unmarshal %v: %v", want.Kind, err)
		}
		if got.Kind != want.Kind {
			t.Errorf("kind: got %v want %v", got.Kind, want.Kind)
		}
		if got.Playstart != want.Playstart || got.PlaystartOffset != want.PlaystartOffset {
			t.Errorf("playstart fields mismatch: got %+v want %+v", got, want)
		}
	}
}

func TestUpdateUserParameterRoundTripsNameAndValue(t *testing.T) {
	want := Update{Kind: UpdateUserParameter, UserParamName: "intensity", UserParamValue: 0.5}
	b, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Update
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.UserParamName != "intensity" || got.UserParamValue != 0.5 {
		t.Errorf("got %+v, want name=intensity value=0.5", got)
	}
}

func TestUpdateWireNames(t *testing.T) {
	cases := []struct {
		u    Update
		want string
	}{
		{Update{Kind: UpdatePattern}, "update_pattern"},
		{Update{Kind: UpdatePlaystart}, "update_playstart"},
		{Update{Kind: UpdateParameters}, "update_parameters"},
		{Update{Kind: UpdateTracking}, "update_tracking"},
		{Update{Kind: UpdateUserParameter}, "user_parameter"},
	}
	for _, c := range cases {
		b, err := json.Marshal(c.u)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var wire struct {
			Cmd string `json:"cmd"`
		}
		if err := json.Unmarshal(b, &wire); err != nil {
			t.Fatalf("unmarshal envelope: %v", err)
		}
		if wire.Cmd != c.want {
			t.Errorf("cmd: got %q want %q", wire.Cmd, c.want)
		}
	}
}

func TestUpdateUnmarshalUnknownCmd(t *testing.T) {
	var u Update
	err := json.Unmarshal([]byte(`{"cmd":"bogus","data":{}}`), &u)
	if err == nil {
		t.Fatal("expected error for unknown cmd")
	}
}

func TestServerMessagePlaybackUpdateMarshal(t *testing.T) {
	msg := ServerMessage{
		Kind: ServerMessagePlaybackUpdate,
		Evals: []pattern.BrushAtAnimLocalTime{
			{PatternTime: 1.0},
		},
	}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["cmd"] != "playback_update" {
		t.Errorf("cmd: got %v want playback_update", decoded["cmd"])
	}
}

func TestServerMessageTrackingDataMarshal(t *testing.T) {
	msg := ServerMessage{Kind: ServerMessageTrackingData}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["cmd"] != "tracking_data" {
		t.Errorf("cmd: got %v want tracking_data", decoded["cmd"])
	}
}
