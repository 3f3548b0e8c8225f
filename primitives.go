package sdftrace

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// NewSphere creates a sphere centered at the origin of radius r. Is exact.
func (bld *Builder) NewSphere(r float32) *Node {
	bld.checkFinite(KindSphere, r)
	if r <= 0 {
		bld.shapeErrorf("zero or negative sphere radius")
	}
	return newPrimitive(KindSphere, cubeBox(r), true, r)
}

// NewBox creates a box centered at the origin with half extents hx, hy, hz. Is exact.
func (bld *Builder) NewBox(hx, hy, hz float32) *Node {
	bld.checkFinite(KindBox, hx, hy, hz)
	bld.checkPositive(KindBox, "half extent", hx, hy, hz)
	return newPrimitive(KindBox, ms3.Box{Min: vec(-hx, -hy, -hz), Max: vec(hx, hy, hz)}, true, hx, hy, hz)
}

// NewRoundedBox creates a box of half extents hx, hy, hz whose edges are rounded by radius r.
// The result fits inside the equivalent [Builder.NewBox]. Is exact.
func (bld *Builder) NewRoundedBox(hx, hy, hz, r float32) *Node {
	bld.checkFinite(KindRoundedBox, hx, hy, hz, r)
	bld.checkPositive(KindRoundedBox, "half extent", hx, hy, hz)
	if r < 0 {
		bld.shapeErrorf("negative rounded box radius")
	} else if r > minf(hx, minf(hy, hz)) {
		bld.shapeErrorf("rounded box radius %g exceeds smallest half extent", r)
	}
	return newPrimitive(KindRoundedBox, ms3.Box{Min: vec(-hx, -hy, -hz), Max: vec(hx, hy, hz)}, true, hx, hy, hz, r)
}

// NewCylinder creates a cylinder of radius r centered at the origin with its axis along Y
// spanning halfHeight above and below the origin. Is exact.
func (bld *Builder) NewCylinder(r, halfHeight float32) *Node {
	bld.checkFinite(KindCylinder, r, halfHeight)
	bld.checkPositive(KindCylinder, "dimension", r, halfHeight)
	return newPrimitive(KindCylinder, ms3.Box{Min: vec(-r, -halfHeight, -r), Max: vec(r, halfHeight, r)}, true, r, halfHeight)
}

// NewCapsule creates a capsule of radius r around the Y axis segment [-halfHeight, halfHeight]. Is exact.
func (bld *Builder) NewCapsule(r, halfHeight float32) *Node {
	bld.checkFinite(KindCapsule, r, halfHeight)
	if r <= 0 {
		bld.shapeErrorf("zero or negative capsule radius")
	} else if halfHeight < 0 {
		bld.shapeErrorf("negative capsule half height")
	}
	h := halfHeight + r
	return newPrimitive(KindCapsule, ms3.Box{Min: vec(-r, -h, -r), Max: vec(r, h, r)}, true, r, halfHeight)
}

// NewTorus creates a torus lying on the XZ plane with greater radius majorR and tube radius minorR. Is exact.
func (bld *Builder) NewTorus(majorR, minorR float32) *Node {
	bld.checkFinite(KindTorus, majorR, minorR)
	bld.checkPositive(KindTorus, "radius", majorR, minorR)
	if minorR > majorR {
		bld.shapeErrorf("torus minor radius %g exceeds major radius %g", minorR, majorR)
	}
	r := majorR + minorR
	return newPrimitive(KindTorus, ms3.Box{Min: vec(-r, -minorR, -r), Max: vec(r, minorR, r)}, true, majorR, minorR)
}

// NewCone creates a solid cone with its base disk of radius r on the XZ plane
// and its apex at height h on the Y axis. Is exact.
func (bld *Builder) NewCone(r, h float32) *Node {
	bld.checkFinite(KindCone, r, h)
	bld.checkPositive(KindCone, "dimension", r, h)
	return newPrimitive(KindCone, ms3.Box{Min: vec(-r, 0, -r), Max: vec(r, h, r)}, true, r, h)
}

// NewPlane creates the half space dot(p, n)+offset <= 0 where n is the normalized (nx,ny,nz) vector.
// Its bounds cover a large cube around the origin. Is exact.
func (bld *Builder) NewPlane(nx, ny, nz, offset float32) *Node {
	bld.checkFinite(KindPlane, nx, ny, nz, offset)
	n := vec(nx, ny, nz)
	norm := ms3.Norm(n)
	if norm < epstol {
		bld.shapeErrorf("zero length plane normal")
		n, norm = vec(0, 1, 0), 1
	}
	nd := newPrimitive(KindPlane, cubeBox(farExtent), true, nx, ny, nz, offset)
	nd.c = [3]float32{n.X / norm, n.Y / norm, n.Z / norm}
	return nd
}

// NewGroundPlane creates the half space below the horizontal plane y=height. Is exact.
func (bld *Builder) NewGroundPlane(height float32) *Node {
	bld.checkFinite(KindGroundPlane, height)
	bb := ms3.Box{Min: vec(-farExtent, height-farExtent, -farExtent), Max: vec(farExtent, height, farExtent)}
	return newPrimitive(KindGroundPlane, bb, true, height)
}

// NewEllipsoid creates an ellipsoid centered at the origin with semi-axes rx, ry, rz.
// Is a bound: the returned distance is not exact away from the surface.
func (bld *Builder) NewEllipsoid(rx, ry, rz float32) *Node {
	bld.checkFinite(KindEllipsoid, rx, ry, rz)
	bld.checkPositive(KindEllipsoid, "radius", rx, ry, rz)
	return newPrimitive(KindEllipsoid, ms3.Box{Min: vec(-rx, -ry, -rz), Max: vec(rx, ry, rz)}, false, rx, ry, rz)
}

// NewOctahedron creates a regular octahedron with its vertices at distance s from the origin on each axis. Is exact.
func (bld *Builder) NewOctahedron(s float32) *Node {
	bld.checkFinite(KindOctahedron, s)
	if s <= 0 {
		bld.shapeErrorf("zero or negative octahedron size")
	}
	return newPrimitive(KindOctahedron, cubeBox(s), true, s)
}

// NewHexPrism creates a hexagonal prism extruded along Y spanning halfHeight above and below the origin.
// r is the apothem (inscribed circle radius) of the hexagon on the XZ plane. Is exact.
func (bld *Builder) NewHexPrism(halfHeight, r float32) *Node {
	bld.checkFinite(KindHexPrism, halfHeight, r)
	bld.checkPositive(KindHexPrism, "dimension", halfHeight, r)
	circum := r / tribisect
	bb := ms3.Box{Min: vec(-circum, -halfHeight, -circum), Max: vec(circum, halfHeight, circum)}
	return newPrimitive(KindHexPrism, bb, true, halfHeight, r)
}

// NewTriPrism creates an equilateral triangular prism. The triangle of side
// width lies on the XY plane with one vertex pointing towards +Y and is extruded
// along Z spanning halfLength in each direction. Is a bound.
func (bld *Builder) NewTriPrism(width, halfLength float32) *Node {
	bld.checkFinite(KindTriPrism, width, halfLength)
	bld.checkPositive(KindTriPrism, "dimension", width, halfLength)
	// Inradius is width/2 along the bisector from the centroid. Bound generously.
	r := width
	bb := ms3.Box{Min: vec(-r, -r, -halfLength), Max: vec(r, r, halfLength)}
	return newPrimitive(KindTriPrism, bb, false, width, halfLength)
}

// NewPyramid creates a square based pyramid with base half width halfBase on the XZ plane and apex at height h on Y. Is exact.
func (bld *Builder) NewPyramid(halfBase, h float32) *Node {
	bld.checkFinite(KindPyramid, halfBase, h)
	bld.checkPositive(KindPyramid, "dimension", halfBase, h)
	return newPrimitive(KindPyramid, ms3.Box{Min: vec(-halfBase, 0, -halfBase), Max: vec(halfBase, h, halfBase)}, true, halfBase, h)
}

// NewLink creates a chain link: a torus of radii r1, r2 on the XY plane stretched by halfLength along Y. Is exact.
func (bld *Builder) NewLink(halfLength, r1, r2 float32) *Node {
	bld.checkFinite(KindLink, halfLength, r1, r2)
	if halfLength < 0 {
		bld.shapeErrorf("negative link half length")
	}
	bld.checkPositive(KindLink, "radius", r1, r2)
	x := r1 + r2
	y := halfLength + r1 + r2
	return newPrimitive(KindLink, ms3.Box{Min: vec(-x, -y, -r2), Max: vec(x, y, r2)}, true, halfLength, r1, r2)
}

func distSphere(p ms3.Vec, r float32) float32 {
	return ms3.Norm(p) - r
}

func distBox(p, h ms3.Vec) float32 {
	q := ms3.Sub(ms3.AbsElem(p), h)
	return ms3.Norm(ms3.MaxElem(q, ms3.Vec{})) + minf(maxcomp(q), 0)
}

func distRoundedBox(p, h ms3.Vec, r float32) float32 {
	q := ms3.AddScalar(r, ms3.Sub(ms3.AbsElem(p), h))
	return ms3.Norm(ms3.MaxElem(q, ms3.Vec{})) + minf(maxcomp(q), 0) - r
}

func distCylinder(p ms3.Vec, r, h float32) float32 {
	dx := hypotf(p.X, p.Z) - r
	dy := absf(p.Y) - h
	return minf(maxf(dx, dy), 0) + hypotf(maxf(dx, 0), maxf(dy, 0))
}

func distCapsule(p ms3.Vec, r, h float32) float32 {
	p.Y -= clampf(p.Y, -h, h)
	return ms3.Norm(p) - r
}

func distTorus(p ms3.Vec, R, r float32) float32 {
	return hypotf(hypotf(p.X, p.Z)-R, p.Y) - r
}

// distCone is the exact cone distance with the apex moved to the origin and the base at -h.
func distCone(p ms3.Vec, r, h float32) float32 {
	qx, qy := r, -h
	wx, wy := hypotf(p.X, p.Z), p.Y-h
	ta := clampf((wx*qx+wy*qy)/(qx*qx+qy*qy), 0, 1)
	ax, ay := wx-qx*ta, wy-qy*ta
	bx, by := wx-qx*clampf(wx/qx, 0, 1), wy-qy
	const k = -1 // sign(qy)
	d := minf(ax*ax+ay*ay, bx*bx+by*by)
	s := maxf(k*(wx*qy-wy*qx), k*(wy-qy))
	return math32.Sqrt(d) * signf(s)
}

func distEllipsoid(p, r ms3.Vec) float32 {
	k0 := ms3.Norm(ms3.DivElem(p, r))
	k1 := ms3.Norm(ms3.DivElem(p, ms3.MulElem(r, r)))
	if k1 < epstol {
		// At the center the gradient estimate breaks down.
		return -mincomp(r)
	}
	return k0 * (k0 - 1) / k1
}

func distOctahedron(p ms3.Vec, s float32) float32 {
	p = ms3.AbsElem(p)
	m := p.X + p.Y + p.Z - s
	var q ms3.Vec
	switch {
	case 3*p.X < m:
		q = p
	case 3*p.Y < m:
		q = vec(p.Y, p.Z, p.X)
	case 3*p.Z < m:
		q = vec(p.Z, p.X, p.Y)
	default:
		return m * 0.57735027
	}
	k := clampf(0.5*(q.Z-q.Y+s), 0, s)
	return ms3.Norm(vec(q.X, q.Y-s+k, q.Z-k))
}

func distHexPrism(p ms3.Vec, hh, r float32) float32 {
	const kx, ky, kz = -0.8660254, 0.5, 0.57735
	p = ms3.AbsElem(p)
	// Hexagon lies on XZ, extrusion along Y.
	qx, qz := p.X, p.Z
	dot := minf(kx*qx+ky*qz, 0)
	qx -= 2 * dot * kx
	qz -= 2 * dot * ky
	lim := kz * r
	dx := hypotf(qx-clampf(qx, -lim, lim), qz-r) * signf(qz-r)
	dy := p.Y - hh
	return minf(maxf(dx, dy), 0) + hypotf(maxf(dx, 0), maxf(dy, 0))
}

func distTriPrism(p ms3.Vec, w, hl float32) float32 {
	q := ms3.AbsElem(p)
	return maxf(q.Z-hl, maxf(q.X*tribisect+p.Y*0.5, -p.Y)-w*0.5)
}

// distPyramid evaluates the exact unit base pyramid scaled so its half base is b.
func distPyramid(p ms3.Vec, b, h float32) float32 {
	scl := 2 * b
	p = ms3.Scale(1/scl, p)
	h /= scl
	m2 := h*h + 0.25
	px, pz := absf(p.X), absf(p.Z)
	if pz > px {
		px, pz = pz, px
	}
	px -= 0.5
	pz -= 0.5
	qx := pz
	qy := h*p.Y - 0.5*px
	qz := h*px + 0.5*p.Y
	s := maxf(-qx, 0)
	t := clampf((qy-0.5*pz)/(m2+0.25), 0, 1)
	a := m2*(qx+s)*(qx+s) + qy*qy
	bb := m2*(qx+0.5*t)*(qx+0.5*t) + (qy-m2*t)*(qy-m2*t)
	var d2 float32
	if minf(qy, -qx*m2-qy*0.5) <= 0 {
		d2 = minf(a, bb)
	}
	return scl * math32.Sqrt((d2+qz*qz)/m2) * signf(maxf(qz, -p.Y))
}

func distLink(p ms3.Vec, le, r1, r2 float32) float32 {
	qy := maxf(absf(p.Y)-le, 0)
	return hypotf(hypotf(p.X, qy)-r1, p.Z) - r2
}
