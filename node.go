package sdftrace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// maxParams is the largest parameter arity of any node kind (bounded repetition).
const maxParams = 6

// Kind enumerates every node kind of the scene graph. The set is closed:
// evaluation and bounds computation are exhaustive switches over Kind.
type Kind uint8

// Class groups node kinds by their structure.
type Class uint8

const (
	classUndefined Class = iota
	// ClassPrimitive nodes are closed-form shapes with no children.
	ClassPrimitive
	// ClassOperator nodes combine exactly two children.
	ClassOperator
	// ClassModifier nodes post-process the distance of one child.
	ClassModifier
	// ClassSpatial nodes remap the query point before evaluating one child.
	ClassSpatial
	// ClassRepeat nodes fold the query point into one cell or sector of one child.
	ClassRepeat
)

const (
	kindUndefined Kind = iota
	// Primitives.
	KindSphere
	KindBox
	KindRoundedBox
	KindCylinder
	KindCapsule
	KindTorus
	KindCone
	KindPlane
	KindEllipsoid
	KindOctahedron
	KindHexPrism
	KindTriPrism
	KindPyramid
	KindLink
	KindGroundPlane
	// Operators.
	KindUnion
	KindSubtract
	KindIntersect
	KindXor
	KindSmoothUnion
	KindSmoothSubtract
	KindSmoothIntersect
	// Modifiers.
	KindRound
	KindShell
	KindOnion
	KindDisplace
	// Spatial.
	KindTranslate
	KindRotateX
	KindRotateY
	KindRotateZ
	KindScale
	KindMirrorX
	KindMirrorY
	KindMirrorZ
	KindSymmetryX
	KindSymmetryY
	KindSymmetryZ
	KindSymmetryXYZ
	KindTwist
	KindBend
	KindElongate
	KindTaper
	// Repetitions.
	KindRepeatInfinite
	KindRepeatBounded
	KindRepeatPolar
	kindCount
)

type kindInfo struct {
	name  string
	class Class
	arity int
}

var kindTable = [kindCount]kindInfo{
	KindSphere:      {"sphere", ClassPrimitive, 1},
	KindBox:         {"box", ClassPrimitive, 3},
	KindRoundedBox:  {"rounded-box", ClassPrimitive, 4},
	KindCylinder:    {"cylinder", ClassPrimitive, 2},
	KindCapsule:     {"capsule", ClassPrimitive, 2},
	KindTorus:       {"torus", ClassPrimitive, 2},
	KindCone:        {"cone", ClassPrimitive, 2},
	KindPlane:       {"plane", ClassPrimitive, 4},
	KindEllipsoid:   {"ellipsoid", ClassPrimitive, 3},
	KindOctahedron:  {"octahedron", ClassPrimitive, 1},
	KindHexPrism:    {"hex-prism", ClassPrimitive, 2},
	KindTriPrism:    {"tri-prism", ClassPrimitive, 2},
	KindPyramid:     {"pyramid", ClassPrimitive, 2},
	KindLink:        {"link", ClassPrimitive, 3},
	KindGroundPlane: {"ground-plane", ClassPrimitive, 1},

	KindUnion:           {"union", ClassOperator, 0},
	KindSubtract:        {"subtract", ClassOperator, 0},
	KindIntersect:       {"intersect", ClassOperator, 0},
	KindXor:             {"xor", ClassOperator, 0},
	KindSmoothUnion:     {"smooth-union", ClassOperator, 1},
	KindSmoothSubtract:  {"smooth-subtract", ClassOperator, 1},
	KindSmoothIntersect: {"smooth-intersect", ClassOperator, 1},

	KindRound:    {"round", ClassModifier, 1},
	KindShell:    {"shell", ClassModifier, 1},
	KindOnion:    {"onion", ClassModifier, 1},
	KindDisplace: {"displace", ClassModifier, 2},

	KindTranslate:   {"translate", ClassSpatial, 3},
	KindRotateX:     {"rotate-x", ClassSpatial, 1},
	KindRotateY:     {"rotate-y", ClassSpatial, 1},
	KindRotateZ:     {"rotate-z", ClassSpatial, 1},
	KindScale:       {"scale", ClassSpatial, 1},
	KindMirrorX:     {"mirror-x", ClassSpatial, 0},
	KindMirrorY:     {"mirror-y", ClassSpatial, 0},
	KindMirrorZ:     {"mirror-z", ClassSpatial, 0},
	KindSymmetryX:   {"symmetry-x", ClassSpatial, 0},
	KindSymmetryY:   {"symmetry-y", ClassSpatial, 0},
	KindSymmetryZ:   {"symmetry-z", ClassSpatial, 0},
	KindSymmetryXYZ: {"symmetry-xyz", ClassSpatial, 0},
	KindTwist:       {"twist", ClassSpatial, 1},
	KindBend:        {"bend", ClassSpatial, 1},
	KindElongate:    {"elongate", ClassSpatial, 3},
	KindTaper:       {"taper", ClassSpatial, 1},

	KindRepeatInfinite: {"repeat-infinite", ClassRepeat, 3},
	KindRepeatBounded:  {"repeat-bounded", ClassRepeat, 6},
	KindRepeatPolar:    {"repeat-polar", ClassRepeat, 1},
}

// IsValid reports whether k is a known node kind.
func (k Kind) IsValid() bool { return k > kindUndefined && k < kindCount }

// String returns the lowercase name of the kind, i.e: "smooth-union".
func (k Kind) String() string {
	if !k.IsValid() {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindTable[k].name
}

// Class returns the structural group the kind belongs to.
func (k Kind) Class() Class {
	if !k.IsValid() {
		return classUndefined
	}
	return kindTable[k].class
}

// Arity returns the number of numeric parameters the kind takes. Returns -1 for invalid kinds.
func (k Kind) Arity() int {
	if !k.IsValid() {
		return -1
	}
	return kindTable[k].arity
}

// Children returns the number of child nodes a node of the class references.
func (c Class) Children() int {
	switch c {
	case ClassPrimitive:
		return 0
	case ClassOperator:
		return 2
	case ClassModifier, ClassSpatial, ClassRepeat:
		return 1
	}
	return -1
}

func (c Class) String() string {
	switch c {
	case ClassPrimitive:
		return "primitive"
	case ClassOperator:
		return "operator"
	case ClassModifier:
		return "modifier"
	case ClassSpatial:
		return "spatial"
	case ClassRepeat:
		return "repeat"
	}
	return "Class(" + strconv.Itoa(int(c)) + ")"
}

// KindByName returns the kind with the given [Kind.String] name.
func KindByName(name string) (Kind, bool) {
	for k := kindUndefined + 1; k < kindCount; k++ {
		if kindTable[k].name == name {
			return k, true
		}
	}
	return kindUndefined, false
}

// Node is an immutable signed distance field scene graph node. Nodes are
// created through [Builder] and may be shared by several parents; a node
// can only reference nodes that already exist so a tree can never contain cycles.
// Evaluation is side-effect free so a tree may be evaluated from any number of goroutines.
type Node struct {
	kind Kind
	// p holds the user facing parameters in constructor order.
	p [maxParams]float32
	// c holds constants derived from p at construction, such as rotation sine/cosine.
	c    [3]float32
	a, b *Node
	bb   ms3.Box
	// exact is set when the subtree returns the true euclidean distance.
	exact bool
	// step is the conservative sphere-tracing step factor of the subtree in (0,1].
	step float32
}

// Kind returns the kind of the node.
func (n *Node) Kind() Kind { return n.kind }

// Bounds returns the node's bounding box such that all of the shape's surface is contained within.
func (n *Node) Bounds() ms3.Box { return n.bb }

// IsExact reports whether the node returns the exact euclidean distance to its surface.
// Inexact nodes return a bound or an approximation suitable for sphere tracing with [Node.StepScale].
func (n *Node) IsExact() bool { return n.exact }

// StepScale returns the factor in (0,1] by which sphere tracing steps
// must be scaled to march the node's field without overshooting. It is
// smaller than 1 only for subtrees containing distorting deformations.
func (n *Node) StepScale() float32 { return n.step }

// NumParams returns the amount of numeric parameters of the node.
func (n *Node) NumParams() int { return n.kind.Arity() }

// Param returns the i'th numeric parameter of the node in constructor order. It panics when out of range.
func (n *Node) Param(i int) float32 {
	if i < 0 || i >= n.kind.Arity() {
		panic("sdftrace: parameter index out of range")
	}
	return n.p[i]
}

// Params returns a copy of the node's numeric parameters.
func (n *Node) Params() []float32 {
	return append([]float32(nil), n.p[:n.kind.Arity()]...)
}

// Children returns the node's children. Primitives have no children and operators have two.
func (n *Node) Children() []*Node {
	switch {
	case n.a == nil:
		return nil
	case n.b == nil:
		return []*Node{n.a}
	}
	return []*Node{n.a, n.b}
}

// Walk calls fn on every distinct node of the tree in depth-first order, parents first.
// Nodes shared by several parents are visited once. If fn returns false the children of that node are not visited.
func (n *Node) Walk(fn func(*Node) bool) {
	visited := make(map[*Node]struct{})
	var walk func(*Node)
	walk = func(nd *Node) {
		if _, ok := visited[nd]; ok {
			return
		}
		visited[nd] = struct{}{}
		if !fn(nd) {
			return
		}
		for _, child := range nd.Children() {
			walk(child)
		}
	}
	walk(n)
}

// String returns the tree as a s-expression, i.e: "union(sphere(0.5) translate(1 0 0 box(1 1 1)))".
func (n *Node) String() string {
	var sb strings.Builder
	n.appendString(&sb)
	return sb.String()
}

func (n *Node) appendString(sb *strings.Builder) {
	sb.WriteString(n.kind.String())
	sb.WriteByte('(')
	for i, v := range n.p[:n.kind.Arity()] {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	for i, child := range n.Children() {
		if i > 0 || n.kind.Arity() > 0 {
			sb.WriteByte(' ')
		}
		child.appendString(sb)
	}
	sb.WriteByte(')')
}

var (
	// ErrUnknownKind is returned by [Builder.NewNode] for kinds outside of the closed kind set.
	ErrUnknownKind = errors.New("unknown node kind")
	// ErrParamCount is returned by [Builder.NewNode] when the amount of parameters does not match the kind's arity.
	ErrParamCount = errors.New("bad parameter count")
	// ErrChildCount is returned by [Builder.NewNode] when the amount of children does not match the kind's class.
	ErrChildCount = errors.New("bad child count")
	// ErrBadParam wraps parameter validation errors returned by [Builder.NewNode].
	ErrBadParam = errors.New("bad parameter")
)

// NewNode is the generic construction entry point intended for scene description
// front-ends such as a script runtime. It validates the kind, the parameter
// count, the child count and the parameter values. Unlike the typed constructors it
// never panics and never accumulates errors in the Builder.
func (bld *Builder) NewNode(kind Kind, params []float32, children ...*Node) (*Node, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
	if len(params) != kind.Arity() {
		return nil, fmt.Errorf("%w: %s takes %d parameters, got %d", ErrParamCount, kind, kind.Arity(), len(params))
	}
	if want := kind.Class().Children(); len(children) != want {
		return nil, fmt.Errorf("%w: %s takes %d children, got %d", ErrChildCount, kind, want, len(children))
	}
	for i, child := range children {
		if child == nil {
			return nil, fmt.Errorf("%w: %s child %d is nil", ErrChildCount, kind, i)
		}
	}
	b := Builder{NoDimensionPanic: true}
	n := b.dispatch(kind, params, children)
	if err := b.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBadParam, kind, err)
	}
	return n, nil
}

func (bld *Builder) dispatch(kind Kind, p []float32, c []*Node) *Node {
	switch kind {
	case KindSphere:
		return bld.NewSphere(p[0])
	case KindBox:
		return bld.NewBox(p[0], p[1], p[2])
	case KindRoundedBox:
		return bld.NewRoundedBox(p[0], p[1], p[2], p[3])
	case KindCylinder:
		return bld.NewCylinder(p[0], p[1])
	case KindCapsule:
		return bld.NewCapsule(p[0], p[1])
	case KindTorus:
		return bld.NewTorus(p[0], p[1])
	case KindCone:
		return bld.NewCone(p[0], p[1])
	case KindPlane:
		return bld.NewPlane(p[0], p[1], p[2], p[3])
	case KindEllipsoid:
		return bld.NewEllipsoid(p[0], p[1], p[2])
	case KindOctahedron:
		return bld.NewOctahedron(p[0])
	case KindHexPrism:
		return bld.NewHexPrism(p[0], p[1])
	case KindTriPrism:
		return bld.NewTriPrism(p[0], p[1])
	case KindPyramid:
		return bld.NewPyramid(p[0], p[1])
	case KindLink:
		return bld.NewLink(p[0], p[1], p[2])
	case KindGroundPlane:
		return bld.NewGroundPlane(p[0])

	case KindUnion:
		return bld.Union(c[0], c[1])
	case KindSubtract:
		return bld.Subtract(c[0], c[1])
	case KindIntersect:
		return bld.Intersect(c[0], c[1])
	case KindXor:
		return bld.Xor(c[0], c[1])
	case KindSmoothUnion:
		return bld.SmoothUnion(p[0], c[0], c[1])
	case KindSmoothSubtract:
		return bld.SmoothSubtract(p[0], c[0], c[1])
	case KindSmoothIntersect:
		return bld.SmoothIntersect(p[0], c[0], c[1])

	case KindRound:
		return bld.Round(c[0], p[0])
	case KindShell:
		return bld.Shell(c[0], p[0])
	case KindOnion:
		return bld.Onion(c[0], p[0])
	case KindDisplace:
		return bld.Displace(c[0], p[0], p[1])

	case KindTranslate:
		return bld.Translate(c[0], p[0], p[1], p[2])
	case KindRotateX:
		return bld.RotateX(c[0], p[0])
	case KindRotateY:
		return bld.RotateY(c[0], p[0])
	case KindRotateZ:
		return bld.RotateZ(c[0], p[0])
	case KindScale:
		return bld.Scale(c[0], p[0])
	case KindMirrorX:
		return bld.MirrorX(c[0])
	case KindMirrorY:
		return bld.MirrorY(c[0])
	case KindMirrorZ:
		return bld.MirrorZ(c[0])
	case KindSymmetryX:
		return bld.Symmetry(c[0], true, false, false)
	case KindSymmetryY:
		return bld.Symmetry(c[0], false, true, false)
	case KindSymmetryZ:
		return bld.Symmetry(c[0], false, false, true)
	case KindSymmetryXYZ:
		return bld.Symmetry(c[0], true, true, true)
	case KindTwist:
		return bld.Twist(c[0], p[0])
	case KindBend:
		return bld.Bend(c[0], p[0])
	case KindElongate:
		return bld.Elongate(c[0], p[0], p[1], p[2])
	case KindTaper:
		return bld.Taper(c[0], p[0])

	case KindRepeatInfinite:
		return bld.RepeatInfinite(c[0], p[0], p[1], p[2])
	case KindRepeatBounded:
		bld.checkIntegral(kind, p[3:6]...)
		return bld.RepeatBounded(c[0], p[0], p[1], p[2], int(p[3]), int(p[4]), int(p[5]))
	case KindRepeatPolar:
		bld.checkIntegral(kind, p[0])
		return bld.RepeatPolar(c[0], int(p[0]))
	}
	panic("unreachable")
}

func (bld *Builder) checkIntegral(kind Kind, counts ...float32) {
	for _, v := range counts {
		if v != math32.Trunc(v) {
			bld.shapeErrorf("%s count must be an integer, got %g", kind, v)
		}
	}
}
