package sdftrace

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

var (
	errEmptyBuffers         = errors.New("empty buffers")
	errMismatchBufferLength = errors.New("position and distance buffer length mismatch")
)

// Distance evaluates the signed distance field of the tree rooted at n at point p.
// It is negative inside the shape, positive outside and zero on the surface.
// Distance is total for finite p: it never panics or fails on a well formed tree.
func (n *Node) Distance(p ms3.Vec) float32 {
	switch n.kind {
	case KindSphere:
		return distSphere(p, n.p[0])
	case KindBox:
		return distBox(p, vec(n.p[0], n.p[1], n.p[2]))
	case KindRoundedBox:
		return distRoundedBox(p, vec(n.p[0], n.p[1], n.p[2]), n.p[3])
	case KindCylinder:
		return distCylinder(p, n.p[0], n.p[1])
	case KindCapsule:
		return distCapsule(p, n.p[0], n.p[1])
	case KindTorus:
		return distTorus(p, n.p[0], n.p[1])
	case KindCone:
		return distCone(p, n.p[0], n.p[1])
	case KindPlane:
		return p.X*n.c[0] + p.Y*n.c[1] + p.Z*n.c[2] + n.p[3]
	case KindEllipsoid:
		return distEllipsoid(p, vec(n.p[0], n.p[1], n.p[2]))
	case KindOctahedron:
		return distOctahedron(p, n.p[0])
	case KindHexPrism:
		return distHexPrism(p, n.p[0], n.p[1])
	case KindTriPrism:
		return distTriPrism(p, n.p[0], n.p[1])
	case KindPyramid:
		return distPyramid(p, n.p[0], n.p[1])
	case KindLink:
		return distLink(p, n.p[0], n.p[1], n.p[2])
	case KindGroundPlane:
		return p.Y - n.p[0]

	case KindUnion:
		return minf(n.a.Distance(p), n.b.Distance(p))
	case KindSubtract:
		return maxf(n.a.Distance(p), -n.b.Distance(p))
	case KindIntersect:
		return maxf(n.a.Distance(p), n.b.Distance(p))
	case KindXor:
		d1, d2 := n.a.Distance(p), n.b.Distance(p)
		return maxf(minf(d1, d2), -maxf(d1, d2))
	case KindSmoothUnion:
		return smoothUnion(n.p[0], n.a.Distance(p), n.b.Distance(p))
	case KindSmoothSubtract:
		return smoothSubtract(n.p[0], n.a.Distance(p), n.b.Distance(p))
	case KindSmoothIntersect:
		return smoothIntersect(n.p[0], n.a.Distance(p), n.b.Distance(p))

	case KindRound:
		return n.a.Distance(p) - n.p[0]
	case KindShell:
		return absf(n.a.Distance(p)) - n.p[0]
	case KindOnion:
		return onion(n.a.Distance(p), n.p[0])
	case KindDisplace:
		f := n.p[1]
		return n.a.Distance(p) + n.p[0]*math32.Sin(f*p.X)*math32.Sin(f*p.Y)*math32.Sin(f*p.Z)

	case KindTranslate:
		return n.a.Distance(ms3.Sub(p, vec(n.p[0], n.p[1], n.p[2])))
	case KindRotateX, KindRotateY, KindRotateZ:
		return n.a.Distance(rotateInverse(n.kind, p, n.c[0], n.c[1]))
	case KindScale:
		f := n.p[0]
		return n.a.Distance(ms3.Scale(1/f, p)) * f
	case KindMirrorX:
		return minf(n.a.Distance(p), n.a.Distance(vec(-p.X, p.Y, p.Z)))
	case KindMirrorY:
		return minf(n.a.Distance(p), n.a.Distance(vec(p.X, -p.Y, p.Z)))
	case KindMirrorZ:
		return minf(n.a.Distance(p), n.a.Distance(vec(p.X, p.Y, -p.Z)))
	case KindSymmetryX:
		p.X = absf(p.X)
		return n.a.Distance(p)
	case KindSymmetryY:
		p.Y = absf(p.Y)
		return n.a.Distance(p)
	case KindSymmetryZ:
		p.Z = absf(p.Z)
		return n.a.Distance(p)
	case KindSymmetryXYZ:
		return n.a.Distance(ms3.AbsElem(p))
	case KindTwist:
		s, c := math32.Sincos(n.p[0] * p.Y)
		return n.a.Distance(vec(c*p.X-s*p.Z, p.Y, s*p.X+c*p.Z))
	case KindBend:
		k := n.p[0]
		if absf(k) < 1e-4 {
			return n.a.Distance(p)
		}
		s, c := math32.Sincos(k * p.X)
		return n.a.Distance(vec(c*p.X-s*p.Y, s*p.X+c*p.Y, p.Z))
	case KindElongate:
		h := vec(n.p[0], n.p[1], n.p[2])
		return n.a.Distance(ms3.Sub(p, ms3.ClampElem(p, ms3.Scale(-1, h), h)))
	case KindTaper:
		s := 1 + n.p[0]*p.Y
		if s <= epstol {
			return largenum
		}
		return n.a.Distance(vec(p.X/s, p.Y, p.Z/s)) * s

	case KindRepeatInfinite:
		q := vec(repeatInfinite(p.X, n.p[0]), repeatInfinite(p.Y, n.p[1]), repeatInfinite(p.Z, n.p[2]))
		return n.a.Distance(q)
	case KindRepeatBounded:
		q := vec(
			repeatBounded(p.X, n.p[0], n.p[3]),
			repeatBounded(p.Y, n.p[1], n.p[4]),
			repeatBounded(p.Z, n.p[2], n.p[5]),
		)
		return n.a.Distance(q)
	case KindRepeatPolar:
		return n.a.Distance(polarFold(p, int(n.p[0]), n.c[0]))
	}
	panic(fmt.Sprintf("sdftrace: unhandled node kind %s", n.kind))
}

// Evaluate evaluates the signed distance field over pos positions storing the results in dist.
// It implements the gleval.SDF3 interface so a tree can be consumed by batch evaluators.
// userData is unused.
func (n *Node) Evaluate(pos []ms3.Vec, dist []float32, userData any) error {
	if len(pos) != len(dist) {
		return errMismatchBufferLength
	} else if len(pos) == 0 {
		return errEmptyBuffers
	}
	for i, p := range pos {
		dist[i] = n.Distance(p)
	}
	return nil
}
