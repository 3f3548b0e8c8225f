package sdftrace

import (
	"github.com/chewxy/math32"
)

// Union joins the shapes of two SDFs into one. Is exact.
func (bld *Builder) Union(a, b *Node) *Node {
	if a == nil || b == nil {
		bld.nilsdf("Union")
	}
	return newBinary(KindUnion, a, b, a.bb.Union(b.bb), true)
}

// UnionN joins several shapes into a left leaning tree of binary unions. At least one node is required.
func (bld *Builder) UnionN(nodes ...*Node) *Node {
	if len(nodes) == 0 {
		bld.nilsdf("UnionN with no arguments")
	}
	s := nodes[0]
	for _, n := range nodes[1:] {
		s = bld.Union(s, n)
	}
	return s
}

// Subtract is the SDF difference of a-b. Does not produce a true SDF.
func (bld *Builder) Subtract(a, b *Node) *Node {
	if a == nil || b == nil {
		bld.nilsdf("Subtract")
	}
	return newBinary(KindSubtract, a, b, a.bb, false)
}

// Intersect is the SDF intersection of a ^ b. Does not produce an exact SDF.
func (bld *Builder) Intersect(a, b *Node) *Node {
	if a == nil || b == nil {
		bld.nilsdf("Intersect")
	}
	return newBinary(KindIntersect, a, b, intersectBoxes(a.bb, b.bb), false)
}

// Xor is the mutually exclusive boolean operation and results in an exact SDF.
func (bld *Builder) Xor(a, b *Node) *Node {
	if a == nil || b == nil {
		bld.nilsdf("Xor")
	}
	return newBinary(KindXor, a, b, a.bb.Union(b.bb), true)
}

// SmoothUnion joins the shapes of two SDFs blending the seam with a
// transition of radius k. Is a bound. k must be greater than zero.
func (bld *Builder) SmoothUnion(k float32, a, b *Node) *Node {
	if a == nil || b == nil {
		bld.nilsdf("SmoothUnion")
	}
	bld.checkBlend(KindSmoothUnion, k)
	return newBinary(KindSmoothUnion, a, b, expandBox(a.bb.Union(b.bb), absf(k)), false, k)
}

// SmoothSubtract carves b out of a smoothing the cut's edge with a transition of radius k. Is a bound.
func (bld *Builder) SmoothSubtract(k float32, a, b *Node) *Node {
	if a == nil || b == nil {
		bld.nilsdf("SmoothSubtract")
	}
	bld.checkBlend(KindSmoothSubtract, k)
	return newBinary(KindSmoothSubtract, a, b, expandBox(a.bb, absf(k)), false, k)
}

// SmoothIntersect keeps the overlap of a and b rounding the seam with a transition of radius k. Is a bound.
func (bld *Builder) SmoothIntersect(k float32, a, b *Node) *Node {
	if a == nil || b == nil {
		bld.nilsdf("SmoothIntersect")
	}
	bld.checkBlend(KindSmoothIntersect, k)
	return newBinary(KindSmoothIntersect, a, b, intersectBoxes(a.bb, b.bb), false, k)
}

func (bld *Builder) checkBlend(kind Kind, k float32) {
	if bld.checkFinite(kind, k) && k <= 0 {
		bld.shapeErrorf("%s blend radius must be greater than zero, got %g", kind, k)
	}
}

// Round expands the shape's surface outward by radius r, rounding its edges.
// Preserves exactness outside the rounded shape.
func (bld *Builder) Round(s *Node, r float32) *Node {
	if s == nil {
		bld.nilsdf("Round")
	}
	bld.checkFinite(KindRound, r)
	if r <= 0 {
		bld.shapeErrorf("zero or negative round radius")
	}
	return newUnary(KindRound, s, expandBox(s.bb, r), true, 1, r)
}

// Shell hollows out the shape leaving a wall of thickness 2*thickness centered on the original surface. Is exact.
func (bld *Builder) Shell(s *Node, thickness float32) *Node {
	if s == nil {
		bld.nilsdf("Shell")
	}
	bld.checkFinite(KindShell, thickness)
	if thickness <= 0 {
		bld.shapeErrorf("zero or negative shell thickness")
	}
	return newUnary(KindShell, s, expandBox(s.bb, thickness), true, 1, thickness)
}

// Onion turns the shape into concentric periodic shells spaced 2*thickness apart. Is a bound.
func (bld *Builder) Onion(s *Node, thickness float32) *Node {
	if s == nil {
		bld.nilsdf("Onion")
	}
	bld.checkFinite(KindOnion, thickness)
	if thickness <= 0 {
		bld.shapeErrorf("zero or negative onion thickness")
	}
	return newUnary(KindOnion, s, expandBox(s.bb, thickness), false, 1, thickness)
}

// Displace perturbs the surface by amplitude*sin(f*x)*sin(f*y)*sin(f*z).
// The result is an approximation of the distance: sphere tracing steps
// are scaled down according to the perturbation's gradient.
func (bld *Builder) Displace(s *Node, amplitude, frequency float32) *Node {
	if s == nil {
		bld.nilsdf("Displace")
	}
	bld.checkFinite(KindDisplace, amplitude, frequency)
	if frequency <= 0 {
		bld.shapeErrorf("zero or negative displacement frequency")
	}
	stepMul := 1 / (1 + absf(amplitude)*absf(frequency)*sqrt3)
	return newUnary(KindDisplace, s, expandBox(s.bb, absf(amplitude)), false, stepMul, amplitude, frequency)
}

func smoothUnion(k, d1, d2 float32) float32 {
	if k < epstol {
		return minf(d1, d2)
	}
	h := clampf(0.5+0.5*(d2-d1)/k, 0, 1)
	return mixf(d2, d1, h) - k*h*(1-h)
}

func smoothSubtract(k, d1, d2 float32) float32 {
	if k < epstol {
		return maxf(d1, -d2)
	}
	h := clampf(0.5-0.5*(d2+d1)/k, 0, 1)
	return mixf(d1, -d2, h) + k*h*(1-h)
}

func smoothIntersect(k, d1, d2 float32) float32 {
	if k < epstol {
		return maxf(d1, d2)
	}
	h := clampf(0.5-0.5*(d2-d1)/k, 0, 1)
	return mixf(d2, d1, h) + k*h*(1-h)
}

func onion(d, t float32) float32 {
	return absf(math32.Mod(d, 2*t)) - t
}
