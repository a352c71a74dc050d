// Package proto defines the JSON-over-WebSocket command and update
// messages exchanged between network clients and the pattern-evaluation
// worker. Keeping these wire types in their own leaf package lets both
// the worker (which consumes Update and produces ServerMessage) and the
// network dispatcher (which produces Update and consumes ServerMessage)
// depend on the wire format without depending on each other.
package proto

import (
	"encoding/json"
	"fmt"

	"github.com/cbegin/adaptics-engine-go/internal/pattern"
	"github.com/cbegin/adaptics-engine-go/internal/tracking"
)

// UpdateKind discriminates the PatternEvalUpdate wire variants.
type UpdateKind int

const (
	UpdatePattern UpdateKind = iota
	UpdatePlaystart
	UpdateParameters
	UpdateTracking
	// UpdateUserParameter sets a single named user parameter, leaving the
	// rest of the map untouched — distinct from UpdateUserParameters,
	// which replaces the whole map at once.
	UpdateUserParameter
	// ParameterTime, UserParameters, and GeoTransformMatrix are what the
	// engine's direct library methods send; network clients may send
	// them too, since every command decodes through the same codec.
	UpdateParameterTime
	UpdateUserParameters
	UpdateGeoTransformMatrix
)

func (k UpdateKind) wireName() string {
	switch k {
	case UpdatePattern:
		return "update_pattern"
	case UpdatePlaystart:
		return "update_playstart"
	case UpdateParameters:
		return "update_parameters"
	case UpdateTracking:
		return "update_tracking"
	case UpdateUserParameter:
		return "user_parameter"
	case UpdateParameterTime:
		return "parameter_time"
	case UpdateUserParameters:
		return "user_parameters"
	case UpdateGeoTransformMatrix:
		return "geo_transform_matrix"
	default:
		return ""
	}
}

// Update is a command sent to the pattern-evaluation worker: reload the
// active pattern, start/stop playback, replace evaluation parameters, or
// toggle tracking-position offsetting.
//
// If Playstart is 0.0, playback stops; otherwise playback starts at
// now() + PlaystartOffset milliseconds, matching the designer
// interface's playback model.
type Update struct {
	Kind            UpdateKind
	PatternJSON     string
	Playstart       float64
	PlaystartOffset float64
	EvaluatorParams pattern.PatternEvaluatorParameters
	TrackingEnabled bool
	UserParamName   string
	UserParamValue  float64
	ParamTime       float64
	UserParameters  pattern.UserParameters
	GeoTransform    pattern.GeometricTransformMatrix
}

func (u Update) MarshalJSON() ([]byte, error) {
	type wire struct {
		Cmd  string `json:"cmd"`
		Data any    `json:"data"`
	}
	var data any
	switch u.Kind {
	case UpdatePattern:
		data = struct {
			PatternJSON string `json:"pattern_json"`
		}{u.PatternJSON}
	case UpdatePlaystart:
		data = struct {
			Playstart       float64 `json:"playstart"`
			PlaystartOffset float64 `json:"playstart_offset"`
		}{u.Playstart, u.PlaystartOffset}
	case UpdateParameters:
		data = struct {
			EvaluatorParams pattern.PatternEvaluatorParameters `json:"evaluator_params"`
		}{u.EvaluatorParams}
	case UpdateTracking:
		data = struct {
			Enabled bool `json:"enabled"`
		}{u.TrackingEnabled}
	case UpdateUserParameter:
		data = struct {
			Name  string  `json:"name"`
			Value float64 `json:"value"`
		}{u.UserParamName, u.UserParamValue}
	case UpdateParameterTime:
		data = struct {
			Time float64 `json:"time"`
		}{u.ParamTime}
	case UpdateUserParameters:
		data = struct {
			UserParameters pattern.UserParameters `json:"user_parameters"`
		}{u.UserParameters}
	case UpdateGeoTransformMatrix:
		data = struct {
			Transform pattern.GeometricTransformMatrix `json:"transform"`
		}{u.GeoTransform}
	default:
		return nil, fmt.Errorf("proto: unknown update kind %d", u.Kind)
	}
	return json.Marshal(wire{Cmd: u.Kind.wireName(), Data: data})
}

func (u *Update) UnmarshalJSON(b []byte) error {
	var wire struct {
		Cmd  string          `json:"cmd"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	switch wire.Cmd {
	case "update_pattern":
		var d struct {
			PatternJSON string `json:"pattern_json"`
		}
		if err := json.Unmarshal(wire.Data, &d); err != nil {
			return err
		}
		*u = Update{Kind: UpdatePattern, PatternJSON: d.PatternJSON}
	case "update_playstart":
		var d struct {
			Playstart       float64 `json:"playstart"`
			PlaystartOffset float64 `json:"playstart_offset"`
		}
		if err := json.Unmarshal(wire.Data, &d); err != nil {
			return err
		}
		*u = Update{Kind: UpdatePlaystart, Playstart: d.Playstart, PlaystartOffset: d.PlaystartOffset}
	case "update_parameters":
		var d struct {
			EvaluatorParams pattern.PatternEvaluatorParameters `json:"evaluator_params"`
		}
		if err := json.Unmarshal(wire.Data, &d); err != nil {
			return err
		}
		*u = Update{Kind: UpdateParameters, EvaluatorParams: d.EvaluatorParams}
	case "update_tracking":
		var d struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.Unmarshal(wire.Data, &d); err != nil {
			return err
		}
		*u = Update{Kind: UpdateTracking, TrackingEnabled: d.Enabled}
	case "user_parameter":
		var d struct {
			Name  string  `json:"name"`
			Value float64 `json:"value"`
		}
		if err := json.Unmarshal(wire.Data, &d); err != nil {
			return err
		}
		*u = Update{Kind: UpdateUserParameter, UserParamName: d.Name, UserParamValue: d.Value}
	case "parameter_time":
		var d struct {
			Time float64 `json:"time"`
		}
		if err := json.Unmarshal(wire.Data, &d); err != nil {
			return err
		}
		*u = Update{Kind: UpdateParameterTime, ParamTime: d.Time}
	case "user_parameters":
		var d struct {
			UserParameters pattern.UserParameters `json:"user_parameters"`
		}
		if err := json.Unmarshal(wire.Data, &d); err != nil {
			return err
		}
		*u = Update{Kind: UpdateUserParameters, UserParameters: d.UserParameters}
	case "geo_transform_matrix":
		var d struct {
			Transform pattern.GeometricTransformMatrix `json:"transform"`
		}
		if err := json.Unmarshal(wire.Data, &d); err != nil {
			return err
		}
		*u = Update{Kind: UpdateGeoTransformMatrix, GeoTransform: d.Transform}
	default:
		return fmt.Errorf("proto: unknown update cmd %q", wire.Cmd)
	}
	return nil
}

// ServerMessageKind discriminates the AdapticsWSServerMessage wire
// variants sent from the engine out to network/designer clients.
type ServerMessageKind int

const (
	ServerMessagePlaybackUpdate ServerMessageKind = iota
	ServerMessageTrackingData
)

func (k ServerMessageKind) wireName() string {
	switch k {
	case ServerMessagePlaybackUpdate:
		return "playback_update"
	case ServerMessageTrackingData:
		return "tracking_data"
	default:
		return ""
	}
}

// ServerMessage is a message pushed to network clients: a batch of
// brush evaluations, or a hand-tracking update.
type ServerMessage struct {
	Kind          ServerMessageKind
	Evals         []pattern.BrushAtAnimLocalTime
	TrackingFrame tracking.Frame
}

func (m ServerMessage) MarshalJSON() ([]byte, error) {
	type wire struct {
		Cmd  string `json:"cmd"`
		Data any    `json:"data"`
	}
	var data any
	switch m.Kind {
	case ServerMessagePlaybackUpdate:
		data = struct {
			Evals []pattern.BrushAtAnimLocalTime `json:"evals"`
		}{m.Evals}
	case ServerMessageTrackingData:
		data = struct {
			TrackingFrame tracking.Frame `json:"tracking_frame"`
		}{m.TrackingFrame}
	default:
		return nil, fmt.Errorf("proto: unknown server message kind %d", m.Kind)
	}
	return json.Marshal(wire{Cmd: m.Kind.wireName(), Data: data})
}
