package sdftrace

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Translate moves the SDF s in the given direction (dirX, dirY, dirZ) and returns the result.
func (bld *Builder) Translate(s *Node, dirX, dirY, dirZ float32) *Node {
	if s == nil {
		bld.nilsdf("Translate")
	}
	bld.checkFinite(KindTranslate, dirX, dirY, dirZ)
	return newUnary(KindTranslate, s, s.bb.Add(vec(dirX, dirY, dirZ)), true, 1, dirX, dirY, dirZ)
}

// RotateX rotates s by angle radians about the X axis. Rotation follows the right hand rule.
func (bld *Builder) RotateX(s *Node, angle float32) *Node {
	return bld.rotate(KindRotateX, s, angle)
}

// RotateY rotates s by angle radians about the Y axis.
func (bld *Builder) RotateY(s *Node, angle float32) *Node {
	return bld.rotate(KindRotateY, s, angle)
}

// RotateZ rotates s by angle radians about the Z axis.
func (bld *Builder) RotateZ(s *Node, angle float32) *Node {
	return bld.rotate(KindRotateZ, s, angle)
}

func (bld *Builder) rotate(kind Kind, s *Node, angle float32) *Node {
	if s == nil {
		bld.nilsdf(kind.String())
	}
	bld.checkFinite(kind, angle)
	sin, cos := math32.Sincos(angle)
	// Rotate the child's bounding box corners forward to find the new extents.
	var corners [8]ms3.Vec
	for i, v := range boxVertices(s.bb) {
		corners[i] = rotateForward(kind, v, cos, sin)
	}
	n := newUnary(kind, s, boxFromPoints(corners[:]), true, 1, angle)
	n.c = [3]float32{cos, sin}
	return n
}

// rotateInverse maps a world point into the rotated child's space.
func rotateInverse(kind Kind, p ms3.Vec, c, s float32) ms3.Vec {
	switch kind {
	case KindRotateX:
		return vec(p.X, c*p.Y+s*p.Z, -s*p.Y+c*p.Z)
	case KindRotateY:
		return vec(c*p.X-s*p.Z, p.Y, s*p.X+c*p.Z)
	default: // KindRotateZ
		return vec(c*p.X+s*p.Y, -s*p.X+c*p.Y, p.Z)
	}
}

// rotateForward is the inverse of rotateInverse and moves child points into world space.
func rotateForward(kind Kind, p ms3.Vec, c, s float32) ms3.Vec {
	return rotateInverse(kind, p, c, -s)
}

// Scale scales s by factor uniformly. The distance is rescaled accordingly so exactness is preserved.
func (bld *Builder) Scale(s *Node, factor float32) *Node {
	if s == nil {
		bld.nilsdf("Scale")
	}
	bld.checkFinite(KindScale, factor)
	if factor <= epstol {
		bld.shapeErrorf("scale factor must be positive, got %g", factor)
	}
	bb := ms3.Box{Min: ms3.Scale(factor, s.bb.Min), Max: ms3.Scale(factor, s.bb.Max)}
	return newUnary(KindScale, s, bb, true, 1, factor)
}

// MirrorX reflects s across the YZ plane and joins the reflection with the original.
func (bld *Builder) MirrorX(s *Node) *Node { return bld.mirror(KindMirrorX, s) }

// MirrorY reflects s across the XZ plane and joins the reflection with the original.
func (bld *Builder) MirrorY(s *Node) *Node { return bld.mirror(KindMirrorY, s) }

// MirrorZ reflects s across the XY plane and joins the reflection with the original.
func (bld *Builder) MirrorZ(s *Node) *Node { return bld.mirror(KindMirrorZ, s) }

func (bld *Builder) mirror(kind Kind, s *Node) *Node {
	if s == nil {
		bld.nilsdf(kind.String())
	}
	ref := s.bb
	switch kind {
	case KindMirrorX:
		ref.Min.X, ref.Max.X = -s.bb.Max.X, -s.bb.Min.X
	case KindMirrorY:
		ref.Min.Y, ref.Max.Y = -s.bb.Max.Y, -s.bb.Min.Y
	case KindMirrorZ:
		ref.Min.Z, ref.Max.Z = -s.bb.Max.Z, -s.bb.Min.Z
	}
	return newUnary(kind, s, s.bb.Union(ref), true, 1)
}

// Symmetry folds space about the planes of the selected axes so that the
// positive half of s is reproduced on the negative side. Selecting all
// three axes results in a single [KindSymmetryXYZ] node; other combinations nest single axis folds.
// Is exact where the child is exact.
func (bld *Builder) Symmetry(s *Node, x, y, z bool) *Node {
	if s == nil {
		bld.nilsdf("Symmetry")
	}
	if !x && !y && !z {
		bld.shapeErrorf("ineffective symmetry, no axis selected")
		return s
	}
	if x && y && z {
		return bld.fold(KindSymmetryXYZ, s)
	}
	if x {
		s = bld.fold(KindSymmetryX, s)
	}
	if y {
		s = bld.fold(KindSymmetryY, s)
	}
	if z {
		s = bld.fold(KindSymmetryZ, s)
	}
	return s
}

// SymmetryX folds s about the YZ plane. See [Builder.Symmetry].
func (bld *Builder) SymmetryX(s *Node) *Node { return bld.Symmetry(s, true, false, false) }

// SymmetryY folds s about the XZ plane. See [Builder.Symmetry].
func (bld *Builder) SymmetryY(s *Node) *Node { return bld.Symmetry(s, false, true, false) }

// SymmetryZ folds s about the XY plane. See [Builder.Symmetry].
func (bld *Builder) SymmetryZ(s *Node) *Node { return bld.Symmetry(s, false, false, true) }

// SymmetryXYZ folds s about all three coordinate planes. See [Builder.Symmetry].
func (bld *Builder) SymmetryXYZ(s *Node) *Node { return bld.Symmetry(s, true, true, true) }

func (bld *Builder) fold(kind Kind, s *Node) *Node {
	bb := s.bb
	foldAxis := func(lo, hi *float32) {
		m := maxf(absf(*lo), absf(*hi))
		*lo, *hi = -m, m
	}
	if kind == KindSymmetryX || kind == KindSymmetryXYZ {
		foldAxis(&bb.Min.X, &bb.Max.X)
	}
	if kind == KindSymmetryY || kind == KindSymmetryXYZ {
		foldAxis(&bb.Min.Y, &bb.Max.Y)
	}
	if kind == KindSymmetryZ || kind == KindSymmetryXYZ {
		foldAxis(&bb.Min.Z, &bb.Max.Z)
	}
	return newUnary(kind, s, bb, true, 1)
}

// Twist rotates the XZ cross section of s about the Y axis by amount radians per unit of height. Is an approximation.
func (bld *Builder) Twist(s *Node, amount float32) *Node {
	if s == nil {
		bld.nilsdf("Twist")
	}
	bld.checkFinite(KindTwist, amount)
	r := boundingRadiusXZ(s.bb)
	bb := ms3.Box{Min: vec(-r, s.bb.Min.Y, -r), Max: vec(r, s.bb.Max.Y, r)}
	stepMul := 1 / math32.Sqrt(1+amount*amount*r*r)
	return newUnary(KindTwist, s, bb, false, stepMul, amount)
}

// Bend curves s on the XY plane with curvature amount, rotating each point by amount*x radians. Is an approximation.
func (bld *Builder) Bend(s *Node, amount float32) *Node {
	if s == nil {
		bld.nilsdf("Bend")
	}
	bld.checkFinite(KindBend, amount)
	r := boundingRadius(s.bb)
	bb := ms3.Box{Min: vec(-r, -r, s.bb.Min.Z), Max: vec(r, r, s.bb.Max.Z)}
	stepMul := 1 / math32.Sqrt(1+amount*amount*r*r)
	return newUnary(KindBend, s, bb, false, stepMul, amount)
}

// Elongate stretches s by inserting a rectangular core of half extents hx, hy, hz at the origin. Is a bound.
func (bld *Builder) Elongate(s *Node, hx, hy, hz float32) *Node {
	if s == nil {
		bld.nilsdf("Elongate")
	}
	bld.checkFinite(KindElongate, hx, hy, hz)
	if hx < 0 || hy < 0 || hz < 0 {
		bld.shapeErrorf("negative elongation")
	}
	bb := ms3.Box{Min: ms3.Sub(s.bb.Min, vec(hx, hy, hz)), Max: ms3.Add(s.bb.Max, vec(hx, hy, hz))}
	return newUnary(KindElongate, s, bb, false, 1, hx, hy, hz)
}

// Taper scales the XZ cross section of s by 1+amount*y, narrowing or widening it along the Y axis. Is an approximation.
func (bld *Builder) Taper(s *Node, amount float32) *Node {
	if s == nil {
		bld.nilsdf("Taper")
	}
	bld.checkFinite(KindTaper, amount)
	bb := s.bb
	scl := maxf(maxf(1+amount*bb.Min.Y, 1+amount*bb.Max.Y), 1)
	bb.Min.X, bb.Max.X = bb.Min.X*scl, bb.Max.X*scl
	bb.Min.Z, bb.Max.Z = bb.Min.Z*scl, bb.Max.Z*scl
	r := boundingRadius(s.bb)
	return newUnary(KindTaper, s, bb, false, 1/(1+absf(amount)*r), amount)
}

// RepeatInfinite repeats s endlessly on a grid of the given spacing. Axes with
// zero spacing are not repeated. The child should fit within one cell. Is a bound.
func (bld *Builder) RepeatInfinite(s *Node, spacingX, spacingY, spacingZ float32) *Node {
	if s == nil {
		bld.nilsdf("RepeatInfinite")
	}
	bld.checkFinite(KindRepeatInfinite, spacingX, spacingY, spacingZ)
	if spacingX < 0 || spacingY < 0 || spacingZ < 0 {
		bld.shapeErrorf("negative repeat spacing")
	} else if spacingX == 0 && spacingY == 0 && spacingZ == 0 {
		bld.shapeErrorf("ineffective infinite repeat, all spacing zero")
	}
	bb := s.bb
	if spacingX > 0 {
		bb.Min.X, bb.Max.X = -farExtent, farExtent
	}
	if spacingY > 0 {
		bb.Min.Y, bb.Max.Y = -farExtent, farExtent
	}
	if spacingZ > 0 {
		bb.Min.Z, bb.Max.Z = -farExtent, farExtent
	}
	return newUnary(KindRepeatInfinite, s, bb, false, 1, spacingX, spacingY, spacingZ)
}

// RepeatBounded repeats s on a grid of the given spacing with countX, countY,
// countZ copies on either side of the original along each axis, that is 2*count+1 instances per axis.
// The child should fit within one cell. Is a bound.
func (bld *Builder) RepeatBounded(s *Node, spacingX, spacingY, spacingZ float32, countX, countY, countZ int) *Node {
	if s == nil {
		bld.nilsdf("RepeatBounded")
	}
	bld.checkFinite(KindRepeatBounded, spacingX, spacingY, spacingZ)
	bld.checkPositive(KindRepeatBounded, "spacing", spacingX, spacingY, spacingZ)
	if countX < 0 || countY < 0 || countZ < 0 {
		bld.shapeErrorf("negative repeat count")
	}
	cx, cy, cz := float32(countX), float32(countY), float32(countZ)
	extent := vec(spacingX*cx, spacingY*cy, spacingZ*cz)
	bb := ms3.Box{Min: ms3.Sub(s.bb.Min, extent), Max: ms3.Add(s.bb.Max, extent)}
	return newUnary(KindRepeatBounded, s, bb, false, 1, spacingX, spacingY, spacingZ, cx, cy, cz)
}

// RepeatPolar repeats s count times around the Y axis. The instance
// centered on the +X axis is the original shape. Is a bound.
func (bld *Builder) RepeatPolar(s *Node, count int) *Node {
	if s == nil {
		bld.nilsdf("RepeatPolar")
	}
	if count < 1 {
		bld.shapeErrorf("polar repeat count must be at least 1, got %d", count)
		count = 1
	}
	r := boundingRadiusXZ(s.bb)
	bb := ms3.Box{Min: vec(-r, s.bb.Min.Y, -r), Max: vec(r, s.bb.Max.Y, r)}
	n := newUnary(KindRepeatPolar, s, bb, false, 1, float32(count))
	n.c[0] = 2 * math32.Pi / float32(count)
	return n
}

// polarFold maps p into the sector centered on +X of a polar repetition of n sectors of angle sector.
func polarFold(p ms3.Vec, n int, sector float32) ms3.Vec {
	x, z := p.X, p.Z
	if n%4 == 0 {
		// Quarter turns are exact so points related by 90 degree rotations fold identically.
		if absf(z) > absf(x) {
			x, z = z, -x
		}
		if x < 0 {
			x, z = -x, -z
		}
	}
	a := math32.Atan2(z, x)
	r := hypotf(x, z)
	a -= sector * math32.Round(a/sector)
	sin, cos := math32.Sincos(a)
	return vec(r*cos, p.Y, r*sin)
}

func repeatInfinite(v, spacing float32) float32 {
	if spacing <= 0 {
		return v
	}
	return v - spacing*math32.Floor(v/spacing+0.5)
}

func repeatBounded(v, spacing, count float32) float32 {
	return v - spacing*clampf(math32.Round(v/spacing), -count, count)
}
