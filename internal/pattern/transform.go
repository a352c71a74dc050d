package pattern

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Apply applies scale, then z-axis rotation (degrees), then translation —
// in that order — to produce the pattern's world-space coordinate from a
// keyframe-local one.
func (g GeometricTransformsSimple) Apply(coords MAHCoordsConst, params ConstrainedParams) MAHCoordsConst {
	coords.X *= g.Scale.X.ToF64(params)
	coords.Y *= g.Scale.Y.ToF64(params)
	coords.Z *= g.Scale.Z.ToF64(params)

	radians := g.Rotation.ToF64(params) / 180.0 * math.Pi
	coords = MAHCoordsConst{
		X: coords.X*math.Cos(radians) - coords.Y*math.Sin(radians),
		Y: coords.X*math.Sin(radians) + coords.Y*math.Cos(radians),
		Z: coords.Z,
	}

	coords.X += g.Translate.X.ToF64(params)
	coords.Y += g.Translate.Y.ToF64(params)
	coords.Z += g.Translate.Z.ToF64(params)

	return coords
}

// toMgl converts the row-major GeometricTransformMatrix to go-gl/mathgl's
// column-major Mat4 layout.
func (m GeometricTransformMatrix) toMgl() mgl64.Mat4 {
	var out mgl64.Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[c*4+r] = m[r][c]
		}
	}
	return out
}

// ProjectionTransform applies the 4x4 homogeneous transform to coords
// (treated as a point, w=1) and performs the perspective w-divide — the
// engine's final geometric transform, used e.g. to re-anchor a pattern to
// a tracked hand position.
func (m GeometricTransformMatrix) ProjectionTransform(coords MAHCoordsConst) MAHCoordsConst {
	mat := m.toMgl()
	v := mgl64.Vec4{coords.X, coords.Y, coords.Z, 1.0}
	r := mat.Mul4x1(v)
	return MAHCoordsConst{X: r[0] / r[3], Y: r[1] / r[3], Z: r[2] / r[3]}
}
