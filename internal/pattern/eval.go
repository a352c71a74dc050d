package pattern

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"sort"
)

// UserParameters is the caller-supplied (unconstrained) parameter map.
type UserParameters = map[string]float64

// ConstrainedParams is the user parameter map after each declared
// parameter has been clamped to its [min, max] (defaulting to
// [-Inf, +Inf]) and defaulted where absent from the caller's map. Caller
// parameters that have no declaration pass through unconstrained, so a
// formula can still reference an undeclared parameter.
type ConstrainedParams = map[string]float64

func constrainUserParameters(userParams UserParameters, defs UserParameterDefinitions) ConstrainedParams {
	constrained := make(ConstrainedParams, len(userParams)+len(defs))
	for k, v := range userParams {
		constrained[k] = v
	}
	for name, def := range defs {
		v, ok := userParams[name]
		if !ok {
			v = def.Default
		}
		lo := math.Inf(-1)
		hi := math.Inf(1)
		if def.Min != nil {
			lo = *def.Min
		}
		if def.Max != nil {
			hi = *def.Max
		}
		constrained[name] = clamp(v, lo, hi)
	}
	return constrained
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PatternEvaluatorParameters is the caller's per-evaluation input: the
// device-local time, the current user parameter values, and the final
// geometric transform (used for e.g. hand-tracking-relative playback).
type PatternEvaluatorParameters struct {
	Time              MAHTime                  `json:"time"`
	UserParameters    UserParameters           `json:"user_parameters"`
	GeometricTransform GeometricTransformMatrix `json:"geometric_transform"`
}

// NextEvalParams threads time-warping state (cjump relocation and
// playback-speed integration) from one evaluation to the next.
type NextEvalParams struct {
	LastEvalPatternTime MAHTime `json:"last_eval_pattern_time"`
	TimeOffset          MAHTime `json:"time_offset"`
}

// UltraleapControlPoint is a resolved control point: position plus
// normalized intensity.
type UltraleapControlPoint struct {
	Coords    MAHCoordsConst `json:"coords"`
	Intensity float64        `json:"intensity"`
}

// PathAtAnimLocalTime is the result of evaluating the pattern's path (the
// brush's anchor point) at a point in time, including the brush
// parameters needed to later trace the brush primitive around that
// anchor.
type PathAtAnimLocalTime struct {
	ULControlPoint UltraleapControlPoint
	PatternTime    MAHTime
	Stop           bool
	NextEvalParams NextEvalParams
	brush          brushEvalParams
}

// BrushAtAnimLocalTime is the final device-facing evaluation result: the
// path anchor offset by the brush primitive's current position, with
// brush-AM-modulated intensity folded in.
type BrushAtAnimLocalTime struct {
	ULControlPoint UltraleapControlPoint `json:"ul_control_point"`
	PatternTime    MAHTime               `json:"pattern_time"`
	Stop           bool                  `json:"stop"`
	NextEvalParams NextEvalParams        `json:"next_eval_params"`
}

// hapeV2PrimitiveParams are the Lissajous-curve coefficients behind a
// brush primitive (A/B amplitude, a/b frequency ratio, phase d, curve
// repeat window max_t, and the logical draw frequency used to map
// wall-clock time onto the curve).
type hapeV2PrimitiveParams struct {
	A, B, a, b, d, k, maxT, drawFrequency float64
}

type painter struct {
	zRot, xScale, yScale float64
}

type brushEvalParams struct {
	primitiveKind   BrushKind
	primitiveParams hapeV2PrimitiveParams
	painter         painter
	amFreq          float64 // Hz
}

// Evaluator evaluates one loaded pattern's path/brush/intensity at any
// point in pattern-local time.
type Evaluator struct {
	anim MidAirHapticsAnimationFileFormat
}

// New builds an Evaluator over an already-parsed pattern, sorting its
// keyframes by time (pattern files are not required to list keyframes in
// order).
func New(anim MidAirHapticsAnimationFileFormat) *Evaluator {
	sort.SliceStable(anim.Keyframes, func(i, j int) bool {
		return anim.Keyframes[i].Time < anim.Keyframes[j].Time
	})
	return &Evaluator{anim: anim}
}

// NewFromJSON parses a pattern file and builds an Evaluator over it.
func NewFromJSON(data []byte) (*Evaluator, error) {
	var anim MidAirHapticsAnimationFileFormat
	if err := json.Unmarshal(data, &anim); err != nil {
		return nil, err
	}
	return New(anim), nil
}

// primitiveWithTransitionAtTime pairs a keyframe-local primitive config
// with the time of the keyframe that set it.
type primitiveWithTransitionAtTime[T any] struct {
	time MAHTime
	pwt  *T
}

// keyframeConfig accumulates the most recent coords/brush/intensity
// configuration walking toward (or away from) a point in time, along with
// the keyframe that contributed the last update — used to distinguish a
// Stop/Pause boundary from ordinary interpolation.
type keyframeConfig struct {
	coords    *primitiveWithTransitionAtTime[CoordsWithTransition]
	brush     *primitiveWithTransitionAtTime[BrushWithTransition]
	intensity *primitiveWithTransitionAtTime[IntensityWithTransition]
	keyframe  *Keyframe
}

func (e *Evaluator) getKFConfigType(t MAHTime, prev bool) keyframeConfig {
	var kfc keyframeConfig
	n := len(e.anim.Keyframes)
	for i := 0; i < n; i++ {
		var kf *Keyframe
		if prev {
			kf = &e.anim.Keyframes[i]
			if kf.Time > t {
				break
			}
		} else {
			kf = &e.anim.Keyframes[n-1-i]
			if kf.Time <= t {
				break
			}
		}

		switch kf.Kind {
		case KeyframeStandard:
			kfc.coords = &primitiveWithTransitionAtTime[CoordsWithTransition]{time: kf.Time, pwt: &kf.Coords}
			if kf.Brush != nil {
				kfc.brush = &primitiveWithTransitionAtTime[BrushWithTransition]{time: kf.Time, pwt: kf.Brush}
			}
			if kf.Intensity != nil {
				kfc.intensity = &primitiveWithTransitionAtTime[IntensityWithTransition]{time: kf.Time, pwt: kf.Intensity}
			}
		case KeyframePause:
			if kfc.coords != nil {
				kfc.coords.time = kf.Time
			}
			if kf.Brush != nil {
				kfc.brush = &primitiveWithTransitionAtTime[BrushWithTransition]{time: kf.Time, pwt: kf.Brush}
			}
			if kf.Intensity != nil {
				kfc.intensity = &primitiveWithTransitionAtTime[IntensityWithTransition]{time: kf.Time, pwt: kf.Intensity}
			}
		case KeyframeStop:
			if kfc.coords != nil {
				kfc.coords.time = kf.Time
			}
		}
		kfc.keyframe = kf
	}
	return kfc
}

func (e *Evaluator) getPrevKFConfig(t MAHTime) keyframeConfig { return e.getKFConfigType(t, true) }
func (e *Evaluator) getNextKFConfig(t MAHTime) keyframeConfig { return e.getKFConfigType(t, false) }

func (e *Evaluator) getCJumpsFromLastEvalToCurrent(lastEvalPatternTime, patternTime MAHTime) []ConditionalJump {
	var out []ConditionalJump
	for i := range e.anim.Keyframes {
		kf := &e.anim.Keyframes[i]
		if lastEvalPatternTime < kf.Time && kf.Time <= patternTime {
			out = append(out, kf.CJumpList()...)
		}
	}
	return out
}

// performTransitionInterp returns (pf, nf): the weights for the previous
// and next keyframe's values respectively.
func performTransitionInterp(patternTime, prevTime, nextTime MAHTime, transition Transition) (pf, nf float64) {
	dt := (patternTime - prevTime) / (nextTime - prevTime)
	switch transition.Kind {
	case TransitionStep:
		if dt < 1.0 {
			return 1.0, 0.0
		}
		return 0.0, 1.0
	default: // Linear
		return 1.0 - dt, dt
	}
}

func getIntensityValue(intensity Intensity, params ConstrainedParams) float64 {
	switch intensity.Kind {
	case IntensityRandom:
		minF := intensity.Min.ToF64(params)
		maxF := intensity.Max.ToF64(params)
		return rand.Float64()*(maxF-minF) + minF
	default: // Constant
		return intensity.Value.ToF64(params)
	}
}

func evalIntensity(patternTime MAHTime, prevKFC, nextKFC keyframeConfig, params ConstrainedParams) float64 {
	prev := prevKFC.intensity
	next := nextKFC.intensity
	switch {
	case prev != nil && next != nil:
		piv := getIntensityValue(prev.pwt.Intensity, params)
		niv := getIntensityValue(next.pwt.Intensity, params)
		pf, nf := performTransitionInterp(patternTime, prev.time, next.time, prev.pwt.Transition)
		return pf*piv + nf*niv
	case prev != nil:
		return getIntensityValue(prev.pwt.Intensity, params)
	default:
		return 1.0
	}
}

func evalCoords(patternTime MAHTime, prevKFC, nextKFC keyframeConfig) MAHCoordsConst {
	prev := prevKFC.coords
	next := nextKFC.coords
	nextKF := nextKFC.keyframe
	if prev != nil && next != nil && nextKF != nil {
		switch nextKF.Kind {
		case KeyframeStop, KeyframePause:
			return prev.pwt.Coords
		default: // Standard
			pf, nf := performTransitionInterp(patternTime, prev.time, next.time, prev.pwt.Transition)
			return prev.pwt.Coords.scaled(pf).add(next.pwt.Coords.scaled(nf))
		}
	}
	if prev != nil {
		return prev.pwt.Coords
	}
	return MAHCoordsConst{}
}

// UnitConvertDistToHapeV2 converts millimeters to meters.
func UnitConvertDistToHapeV2(mm float64) float64 { return mm / 1000.0 }

func unitConvertDistFromHapeV2(m float64) float64 { return m * 1000.0 }

func unitConvertRotToHapeV2(deg float64) float64 { return deg * (math.Pi / 180.0) }

func hapeV2PrimitiveParamsForBrush(kind BrushKind) hapeV2PrimitiveParams {
	switch kind {
	case BrushLine:
		return hapeV2PrimitiveParams{A: 1.0, B: 0.0, a: 1.0, b: 1.0, d: math.Pi / 2.0, k: 0.0, maxT: 2.0 * math.Pi, drawFrequency: 100.0}
	default: // Circle
		return hapeV2PrimitiveParams{A: 1.0, B: 1.0, a: 1.0, b: 1.0, d: math.Pi / 2.0, k: 0.0, maxT: 2.0 * math.Pi, drawFrequency: 100.0}
	}
}

func evalMAHBrush(brush Brush, params ConstrainedParams) brushEvalParams {
	primitiveParams := hapeV2PrimitiveParamsForBrush(brush.Kind)
	switch brush.Kind {
	case BrushLine:
		length := UnitConvertDistToHapeV2(brush.Length.ToF64(params))
		thickness := UnitConvertDistToHapeV2(brush.Thickness.ToF64(params))
		rotation := unitConvertRotToHapeV2(brush.Rotation.ToF64(params))
		return brushEvalParams{
			primitiveKind:   BrushLine,
			primitiveParams: primitiveParams,
			painter:         painter{zRot: rotation, xScale: length, yScale: thickness},
			amFreq:          brush.AmFreq.ToF64(params),
		}
	default: // Circle
		amplitude := UnitConvertDistToHapeV2(brush.Radius.ToF64(params))
		return brushEvalParams{
			primitiveKind:   BrushCircle,
			primitiveParams: primitiveParams,
			painter:         painter{zRot: 0, xScale: amplitude, yScale: amplitude},
			amFreq:          brush.AmFreq.ToF64(params),
		}
	}
}

func evalBrushHapeV2(patternTime MAHTime, prevKFC, nextKFC keyframeConfig, params ConstrainedParams) brushEvalParams {
	prev := prevKFC.brush
	next := nextKFC.brush
	switch {
	case prev != nil && next != nil:
		prevEval := evalMAHBrush(prev.pwt.Brush, params)
		nextEval := evalMAHBrush(next.pwt.Brush, params)
		if prevEval.primitiveKind == nextEval.primitiveKind {
			pf, nf := performTransitionInterp(patternTime, prev.time, next.time, prev.pwt.Transition)
			return brushEvalParams{
				primitiveKind:   prevEval.primitiveKind,
				primitiveParams: prevEval.primitiveParams,
				painter: painter{
					zRot:   prevEval.painter.zRot*pf + nf*nextEval.painter.zRot,
					xScale: prevEval.painter.xScale*pf + nf*nextEval.painter.xScale,
					yScale: prevEval.painter.yScale*pf + nf*nextEval.painter.yScale,
				},
				amFreq: prevEval.amFreq*pf + nf*nextEval.amFreq,
			}
		}
		return prevEval
	case prev != nil:
		return evalMAHBrush(prev.pwt.Brush, params)
	default:
		return evalMAHBrush(Brush{Kind: BrushCircle, Radius: ConstDynamicF64(0), AmFreq: ConstDynamicF64(0)}, params)
	}
}

func timeToHapeV2BrushRads(bp hapeV2PrimitiveParams, timeMs float64) float64 {
	brushTime := (timeMs / 1000.0) * bp.drawFrequency
	return math.Mod(brushTime*2.0*math.Pi, bp.maxT)
}

type hapeV2Coords struct{ x, y, z float64 }

func evalHapeV2PrimitiveEquation(bp hapeV2PrimitiveParams, timeMs float64) hapeV2Coords {
	if bp.k != 0 {
		panic("pattern: curved (k != 0) brush primitives are not yet implemented")
	}
	t := timeToHapeV2BrushRads(bp, timeMs)
	return hapeV2Coords{
		x: bp.A * math.Sin(bp.a*t+bp.d),
		y: bp.B * math.Sin(bp.b * t),
		z: 0,
	}
}

func evalHapeV2PrimitiveIntoMAHUnits(patternTime MAHTime, brush brushEvalParams) UltraleapControlPoint {
	c := evalHapeV2PrimitiveEquation(brush.primitiveParams, patternTime)
	sx := c.x * brush.painter.xScale
	sy := c.y * brush.painter.yScale
	rx := sx*math.Cos(brush.painter.zRot) - sy*math.Sin(brush.painter.zRot)
	ry := sx*math.Sin(brush.painter.zRot) + sy*math.Cos(brush.painter.zRot)
	intensity := math.Cos(brush.amFreq*(patternTime/1000.0)*2.0*math.Pi)*0.5 + 0.5

	return UltraleapControlPoint{
		Coords: MAHCoordsConst{
			X: unitConvertDistFromHapeV2(rx),
			Y: unitConvertDistFromHapeV2(ry),
			Z: 0,
		},
		Intensity: intensity,
	}
}

// EvalPathAtAnimLocalTime evaluates the pattern's path anchor (position,
// intensity, and brush parameters) at p.Time, applying playback-speed
// time-warping, at most one conditional jump, the pattern's intensity
// factor and geometric transform, and the caller's final geometric
// transform.
func (e *Evaluator) EvalPathAtAnimLocalTime(p PatternEvaluatorParameters, nep NextEvalParams) PathAtAnimLocalTime {
	params := constrainUserParameters(p.UserParameters, e.anim.UserParameterDefinitions)

	// apply playback_speed
	lastEvalPatternTime := nep.LastEvalPatternTime
	deltaTime := p.Time + nep.TimeOffset - lastEvalPatternTime
	deltaForSpeed := e.anim.PatternTransform.PlaybackSpeed.ToF64(params) * deltaTime
	timeOffset := nep.TimeOffset + deltaForSpeed - deltaTime
	patternTime := p.Time + timeOffset
	nep = NextEvalParams{TimeOffset: timeOffset, LastEvalPatternTime: lastEvalPatternTime}

	// apply (at most one) cjump
	cjumps := e.getCJumpsFromLastEvalToCurrent(nep.LastEvalPatternTime, patternTime)
	fired := false
	for _, cj := range cjumps {
		if cj.Condition.Eval(params) {
			nep = NextEvalParams{LastEvalPatternTime: cj.JumpTo, TimeOffset: cj.JumpTo - p.Time}
			fired = true
			break
		}
	}
	if !fired {
		nep = NextEvalParams{LastEvalPatternTime: patternTime, TimeOffset: nep.TimeOffset}
	}
	patternTime = p.Time + nep.TimeOffset

	prevKFC := e.getPrevKFConfig(patternTime)
	nextKFC := e.getNextKFConfig(patternTime)

	coords := evalCoords(patternTime, prevKFC, nextKFC)
	intensity := evalIntensity(patternTime, prevKFC, nextKFC, params)
	brush := evalBrushHapeV2(patternTime, prevKFC, nextKFC, params)

	intensity = e.anim.PatternTransform.IntensityFactor.ToF64(params) * intensity
	coords = e.anim.PatternTransform.GeometricTransforms.Apply(coords, params)
	coords = p.GeometricTransform.ProjectionTransform(coords)

	stop := prevKFC.keyframe != nil && prevKFC.keyframe.Kind == KeyframeStop

	return PathAtAnimLocalTime{
		ULControlPoint: UltraleapControlPoint{Coords: coords, Intensity: intensity},
		PatternTime:    patternTime,
		Stop:           stop,
		NextEvalParams: nep,
		brush:          brush,
	}
}

// EvalBrushAtAnimLocalTime evaluates the path anchor and then offsets it
// by the brush primitive's position at p.Time, folding the brush's AM
// modulation into the anchor's intensity.
func (e *Evaluator) EvalBrushAtAnimLocalTime(p PatternEvaluatorParameters, nep NextEvalParams) BrushAtAnimLocalTime {
	pathEval := e.EvalPathAtAnimLocalTime(p, nep)
	offset := evalHapeV2PrimitiveIntoMAHUnits(p.Time, pathEval.brush)
	return BrushAtAnimLocalTime{
		ULControlPoint: UltraleapControlPoint{
			Coords: MAHCoordsConst{
				X: pathEval.ULControlPoint.Coords.X + offset.Coords.X,
				Y: pathEval.ULControlPoint.Coords.Y + offset.Coords.Y,
				Z: pathEval.ULControlPoint.Coords.Z,
			},
			Intensity: pathEval.ULControlPoint.Intensity * offset.Intensity,
		},
		PatternTime:    pathEval.PatternTime,
		Stop:           pathEval.Stop,
		NextEvalParams: pathEval.NextEvalParams,
	}
}

// EvalBrushAtAnimLocalTimeForMaxT traces one full repeat of the brush
// primitive starting at p.Time, stepping by whichever is coarser of the
// device's native sample interval and a max-200-point cap, and chaining
// NextEvalParams across steps so any time-warping stays consistent.
func (e *Evaluator) EvalBrushAtAnimLocalTimeForMaxT(p PatternEvaluatorParameters, nep NextEvalParams) []BrushAtAnimLocalTime {
	const maxNumberOfPoints = 200
	const deviceFrequency = 20000.0 // 20kHz

	base := e.EvalPathAtAnimLocalTime(p, nep)
	bp := base.brush.primitiveParams
	// solve `time / 1000 * draw_frequency * 2Pi = max_t` for time
	maxTInMs := 1000.0 * bp.maxT / (bp.drawFrequency * 2.0 * math.Pi)

	deviceStep := 1000.0 / deviceFrequency
	minStep := maxTInMs / maxNumberOfPoints
	step := math.Max(deviceStep, minStep)

	var evals []BrushAtAnimLocalTime
	lastNep := nep
	for i := 0.0; i < maxTInMs; i += step {
		stepP := p
		stepP.Time = p.Time + i
		result := e.EvalBrushAtAnimLocalTime(stepP, lastNep)
		evals = append(evals, result)
		lastNep = result.NextEvalParams
	}
	return evals
}
