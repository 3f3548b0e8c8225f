// Package sdftrace implements an immutable signed distance field scene graph
// and its evaluator. Scene graphs are built with a [Builder] and consumed by
// the sphere tracer in package gltrace and the mesh extractor in package glrender,
// both of which call the same [Node.Distance] evaluator.
package sdftrace

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

const (
	// For an equilateral triangle of side length L the length of bisector is L multiplied this number which is sqrt(1-0.25).
	tribisect = 0.8660254037844386467637231707529361834714026269051903140279034897
	sqrt3     = 1.7320508075688772935274463415058723669428052538103806280558069794
	largenum  = 1e20
	// epstol is used to check for badly conditioned denominators
	// such as lengths used for normalization or blend radii.
	epstol = 6e-7
	// farExtent is the half size of the bounding cube given to unbounded shapes such as planes and infinite repetitions.
	farExtent = 100
	// minStepScale bounds how conservative sphere tracing may become on heavily distorted subtrees.
	minStepScale = 0.2
)

// Builder wraps all SDF primitive and operation construction.
// Provides error handling strategies with panics or error accumulation during shape generation.
//
// With NoDimensionPanic unset invalid parameters cause a panic. When set, a
// node is still returned and the error is stored and returned by [Builder.Err];
// callers must check Err before evaluating the resulting tree.
type Builder struct {
	NoDimensionPanic bool
	accumErrs        []error
}

// Err returns all errors accumulated during construction joined together, or nil.
func (bld *Builder) Err() error {
	if len(bld.accumErrs) == 0 {
		return nil
	}
	return errors.Join(bld.accumErrs...)
}

// ClearErrors discards all accumulated errors.
func (bld *Builder) ClearErrors() {
	bld.accumErrs = bld.accumErrs[:0]
}

func (bld *Builder) shapeErrorf(msg string, args ...any) {
	if !bld.NoDimensionPanic {
		panic(fmt.Sprintf(msg, args...))
	}
	bld.accumErrs = append(bld.accumErrs, fmt.Errorf(msg, args...))
}

func (*Builder) nilsdf(msg string) {
	panic("nil SDF argument: " + msg)
}

// checkFinite reports an error for NaN or infinite parameters.
func (bld *Builder) checkFinite(kind Kind, params ...float32) bool {
	for _, v := range params {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			bld.shapeErrorf("%s parameter not finite: %g", kind, v)
			return false
		}
	}
	return true
}

func (bld *Builder) checkPositive(kind Kind, what string, params ...float32) {
	for _, v := range params {
		if !(v > 0) {
			bld.shapeErrorf("zero or negative %s %s", kind, what)
			return
		}
	}
}

// newPrimitive creates a childless node. Primitives take a step scale of 1, bounds included.
func newPrimitive(kind Kind, bb ms3.Box, exact bool, params ...float32) *Node {
	n := &Node{kind: kind, bb: bb, exact: exact, step: 1}
	copy(n.p[:], params)
	return n
}

// newUnary creates a node with a single child inheriting its step scale multiplied by stepMul.
func newUnary(kind Kind, child *Node, bb ms3.Box, exact bool, stepMul float32, params ...float32) *Node {
	n := &Node{kind: kind, a: child, bb: bb, exact: exact && child.exact}
	n.step = clampf(child.step*stepMul, minStepScale, 1)
	copy(n.p[:], params)
	return n
}

func newBinary(kind Kind, a, b *Node, bb ms3.Box, exact bool, params ...float32) *Node {
	n := &Node{kind: kind, a: a, b: b, bb: bb, exact: exact && a.exact && b.exact}
	n.step = minf(a.step, b.step)
	copy(n.p[:], params)
	return n
}

// Deg2Rad converts degrees to radians. All angles taken by [Builder] are in radians.
func Deg2Rad(deg float32) float32 {
	return deg * (math32.Pi / 180)
}

func minf(a, b float32) float32 {
	return math32.Min(a, b)
}

func maxf(a, b float32) float32 {
	return math32.Max(a, b)
}

func absf(a float32) float32 {
	return math32.Abs(a)
}

func hypotf(a, b float32) float32 {
	return math32.Hypot(a, b)
}

func signf(a float32) float32 {
	if a == 0 {
		return 0
	}
	return math32.Copysign(1, a)
}

func clampf(v, Min, Max float32) float32 {
	if v < Min {
		return Min
	} else if v > Max {
		return Max
	}
	return v
}

func mixf(x, y, a float32) float32 {
	return x*(1-a) + y*a
}

func maxcomp(v ms3.Vec) float32 {
	return maxf(v.X, maxf(v.Y, v.Z))
}

func mincomp(v ms3.Vec) float32 {
	return minf(v.X, minf(v.Y, v.Z))
}

func vec(x, y, z float32) ms3.Vec { return ms3.Vec{X: x, Y: y, Z: z} }

func splat(v float32) ms3.Vec { return ms3.Vec{X: v, Y: v, Z: v} }

func cubeBox(halfSize float32) ms3.Box {
	return ms3.Box{Min: splat(-halfSize), Max: splat(halfSize)}
}

func expandBox(bb ms3.Box, d float32) ms3.Box {
	return ms3.Box{Min: ms3.AddScalar(-d, bb.Min), Max: ms3.AddScalar(d, bb.Max)}
}

// intersectBoxes returns the overlap of a and b. Disjoint boxes result in a zero size box at the center of the gap.
func intersectBoxes(a, b ms3.Box) ms3.Box {
	bb := ms3.Box{
		Min: ms3.MaxElem(a.Min, b.Min),
		Max: ms3.Vec{X: minf(a.Max.X, b.Max.X), Y: minf(a.Max.Y, b.Max.Y), Z: minf(a.Max.Z, b.Max.Z)},
	}
	if bb.Min.X > bb.Max.X || bb.Min.Y > bb.Max.Y || bb.Min.Z > bb.Max.Z {
		c := ms3.Scale(0.5, ms3.Add(bb.Min, bb.Max))
		return ms3.Box{Min: c, Max: c}
	}
	return bb
}

// boxVertices returns the 8 corners of the box.
func boxVertices(bb ms3.Box) [8]ms3.Vec {
	return [8]ms3.Vec{
		bb.Min,
		{X: bb.Max.X, Y: bb.Min.Y, Z: bb.Min.Z},
		{X: bb.Max.X, Y: bb.Max.Y, Z: bb.Min.Z},
		{X: bb.Min.X, Y: bb.Max.Y, Z: bb.Min.Z},
		{X: bb.Min.X, Y: bb.Min.Y, Z: bb.Max.Z},
		{X: bb.Max.X, Y: bb.Min.Y, Z: bb.Max.Z},
		bb.Max,
		{X: bb.Min.X, Y: bb.Max.Y, Z: bb.Max.Z},
	}
}

// boundingRadius returns the radius of the origin centered sphere enclosing bb.
func boundingRadius(bb ms3.Box) float32 {
	var r float32
	for _, v := range boxVertices(bb) {
		r = maxf(r, ms3.Norm(v))
	}
	return r
}

// boundingRadiusXZ returns the radius of the Y axis aligned cylinder enclosing bb.
func boundingRadiusXZ(bb ms3.Box) float32 {
	var r float32
	for _, v := range boxVertices(bb) {
		r = maxf(r, hypotf(v.X, v.Z))
	}
	return r
}

// boxFromPoints returns the smallest box containing all points.
func boxFromPoints(pts []ms3.Vec) ms3.Box {
	bb := ms3.Box{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		bb.Min = ms3.Vec{X: minf(bb.Min.X, p.X), Y: minf(bb.Min.Y, p.Y), Z: minf(bb.Min.Z, p.Z)}
		bb.Max = ms3.MaxElem(bb.Max, p)
	}
	return bb
}
