// Package gleval holds the evaluation plumbing shared by every consumer of a
// distance field: batch and scalar field interfaces, central difference
// normals, buffer pooling and parallel batch evaluation.
package gleval

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// SDF3 implements a 3D signed distance field in vectorized form.
type SDF3 interface {
	// Evaluate evaluates the signed distance field over pos positions.
	// dist and pos must be of same length.  Resulting distances are stored
	// in dist.
	//
	// userData facilitates getting data to the evaluators for use in processing, such as [VecPool].
	Evaluate(pos []ms3.Vec, dist []float32, userData any) error
	// Bounds returns the SDF's bounding box such that all of the shape is contained within.
	Bounds() ms3.Box
}

// Field is a scalar signed distance field evaluated one point at a time,
// as required by incremental algorithms such as sphere tracing.
type Field interface {
	Distance(p ms3.Vec) float32
}

// FieldFunc adapts a plain function to the [Field] interface.
type FieldFunc func(p ms3.Vec) float32

// Distance calls f(p).
func (f FieldFunc) Distance(p ms3.Vec) float32 { return f(p) }

var (
	errEmptyBuffers         = errors.New("empty buffers")
	errMismatchBufferLength = errors.New("position and distance buffer length mismatch")
)

// NormalsCentralDiff uses central differences algorithm for normal calculation, which are stored in normals for each position.
// The returned normals are not normalized (converted to unit length). Results are identical to [Gradient]
// called with the same step when s evaluates the same field as the scalar one.
func NormalsCentralDiff(s SDF3, pos []ms3.Vec, normals []ms3.Vec, step float32, userData any) error {
	step *= 0.5
	if step <= 0 {
		return errors.New("invalid step")
	} else if len(pos) != len(normals) {
		return errors.New("length of position must match length of normals")
	} else if s == nil {
		return errors.New("nil SDF3")
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	vp, err := GetVecPool(userData)
	if err != nil {
		return fmt.Errorf("VecPool required for Normal calculation: %s", err)
	}
	d1 := vp.Float.Acquire(len(pos))
	d2 := vp.Float.Acquire(len(pos))
	auxPos := vp.V3.Acquire(len(pos))
	defer vp.Float.Release(d1)
	defer vp.Float.Release(d2)
	defer vp.V3.Release(auxPos)
	var vecs = [3]ms3.Vec{{X: step}, {Y: step}, {Z: step}}
	for dim := 0; dim < 3; dim++ {
		h := vecs[dim]
		for i, p := range pos {
			auxPos[i] = ms3.Add(p, h)
		}
		err = s.Evaluate(auxPos, d1, userData)
		if err != nil {
			return err
		}
		for i, p := range pos {
			auxPos[i] = ms3.Sub(p, h)
		}
		err = s.Evaluate(auxPos, d2, userData)
		if err != nil {
			return err
		}

		switch dim {
		case 0:
			for i, d := range d1 {
				normals[i].X = d - d2[i]
			}
		case 1:
			for i, d := range d1 {
				normals[i].Y = d - d2[i]
			}
		case 2:
			for i, d := range d1 {
				normals[i].Z = d - d2[i]
			}
		}
	}
	return nil
}

// Gradient returns the unnormalized central difference gradient of f at p
// sampled step apart along each axis, as [NormalsCentralDiff] does for batches.
func Gradient(f Field, p ms3.Vec, step float32) ms3.Vec {
	h := 0.5 * step
	return ms3.Vec{
		X: f.Distance(ms3.Add(p, ms3.Vec{X: h})) - f.Distance(ms3.Sub(p, ms3.Vec{X: h})),
		Y: f.Distance(ms3.Add(p, ms3.Vec{Y: h})) - f.Distance(ms3.Sub(p, ms3.Vec{Y: h})),
		Z: f.Distance(ms3.Add(p, ms3.Vec{Z: h})) - f.Distance(ms3.Sub(p, ms3.Vec{Z: h})),
	}
}

// Normal returns the unit surface normal of f at p using [Gradient].
// A vanishing gradient results in the +Y unit vector.
func Normal(f Field, p ms3.Vec, step float32) ms3.Vec {
	return UnitOrUp(Gradient(f, p, step))
}

// UnitOrUp normalizes v. Vectors too short to normalize reliably result in the +Y unit vector.
func UnitOrUp(v ms3.Vec) ms3.Vec {
	n := ms3.Norm(v)
	if n < 1e-12 || math32.IsNaN(n) || math32.IsInf(n, 0) {
		return ms3.Vec{Y: 1}
	}
	return ms3.Scale(1/n, v)
}
