package sdftrace_test

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace"
)

func randVec(rng *rand.Rand, scale float32) ms3.Vec {
	return ms3.Vec{
		X: scale * (2*rng.Float32() - 1),
		Y: scale * (2*rng.Float32() - 1),
		Z: scale * (2*rng.Float32() - 1),
	}
}

func TestSphereExact(t *testing.T) {
	var bld sdftrace.Builder
	rng := rand.New(rand.NewSource(1))
	for _, r := range []float32{0.01, 0.5, 1, 13.3} {
		s := bld.NewSphere(r)
		for i := 0; i < 1000; i++ {
			p := randVec(rng, 4*r)
			got := s.Distance(p)
			want := ms3.Norm(p) - r
			if got != want {
				t.Fatalf("sphere(%g) at %v: got %g, want %g", r, p, got, want)
			}
		}
	}
}

func TestBooleanIdentities(t *testing.T) {
	var bld sdftrace.Builder
	rng := rand.New(rand.NewSource(1))
	a := bld.NewSphere(0.7)
	b := bld.Translate(bld.NewBox(0.5, 0.3, 0.4), 0.4, 0.1, -0.2)
	union := bld.Union(a, b)
	inter := bld.Intersect(a, b)
	diff := bld.Subtract(a, b)
	xor := bld.Xor(a, b)
	for i := 0; i < 2000; i++ {
		p := randVec(rng, 2)
		d1, d2 := a.Distance(p), b.Distance(p)
		if got := union.Distance(p); got != math32.Min(d1, d2) {
			t.Fatalf("union at %v: got %g, want min(%g,%g)", p, got, d1, d2)
		}
		if got := inter.Distance(p); got != math32.Max(d1, d2) {
			t.Fatalf("intersect at %v: got %g, want max(%g,%g)", p, got, d1, d2)
		}
		if got := diff.Distance(p); got != math32.Max(d1, -d2) {
			t.Fatalf("subtract at %v: got %g, want max(%g,%g)", p, got, d1, -d2)
		}
		want := math32.Max(math32.Min(d1, d2), -math32.Max(d1, d2))
		if got := xor.Distance(p); got != want {
			t.Fatalf("xor at %v: got %g, want %g", p, got, want)
		}
	}
}

func TestSmoothUnionConvergence(t *testing.T) {
	var bld sdftrace.Builder
	rng := rand.New(rand.NewSource(1))
	a := bld.NewSphere(0.5)
	b := bld.Translate(bld.NewSphere(0.4), 0.6, 0, 0)
	hard := bld.Union(a, b)
	const k = 1e-5
	smooth := bld.SmoothUnion(k, a, b)
	for i := 0; i < 1000; i++ {
		p := randVec(rng, 1.5)
		got, want := smooth.Distance(p), hard.Distance(p)
		if math32.Abs(got-want) > k {
			t.Fatalf("smooth union with k=%g at %v deviates from union: got %g, want %g", k, p, got, want)
		}
	}
	// Continuity in k: small changes of k must result in small changes of distance.
	p := ms3.Vec{X: 0.3, Y: 0.2}
	prev := bld.SmoothUnion(0.1, a, b).Distance(p)
	for k := float32(0.1); k < 0.5; k += 0.001 {
		d := bld.SmoothUnion(k+0.001, a, b).Distance(p)
		if math32.Abs(d-prev) > 0.01 {
			t.Fatalf("smooth union discontinuous near k=%g: %g -> %g", k, prev, d)
		}
		prev = d
	}
}

func TestSmoothOperatorsBlend(t *testing.T) {
	var bld sdftrace.Builder
	a := bld.NewBox(1, 1, 1)
	b := bld.Translate(bld.NewSphere(0.6), 1, 0, 0)
	const k = 0.2
	p := ms3.Vec{X: 1, Y: 0.65}
	// Blending adds material on union and removes it on intersection and subtraction.
	if su, u := bld.SmoothUnion(k, a, b).Distance(p), bld.Union(a, b).Distance(p); su > u {
		t.Errorf("smooth union %g should not exceed union %g", su, u)
	}
	if si, i := bld.SmoothIntersect(k, a, b).Distance(p), bld.Intersect(a, b).Distance(p); si < i {
		t.Errorf("smooth intersect %g should not be lesser than intersect %g", si, i)
	}
	if ss, s := bld.SmoothSubtract(k, a, b).Distance(p), bld.Subtract(a, b).Distance(p); ss < s {
		t.Errorf("smooth subtract %g should not be lesser than subtract %g", ss, s)
	}
}

func TestSymmetryFold(t *testing.T) {
	var bld sdftrace.Builder
	rng := rand.New(rand.NewSource(1))
	s := bld.Translate(bld.NewBox(0.3, 0.2, 0.1), 0.5, 0.3, 0.1)
	symx := bld.SymmetryX(s)
	symxyz := bld.SymmetryXYZ(s)
	mirx := bld.MirrorX(s)
	for i := 0; i < 1000; i++ {
		p := randVec(rng, 1)
		if got, want := symx.Distance(p), s.Distance(ms3.Vec{X: math32.Abs(p.X), Y: p.Y, Z: p.Z}); got != want {
			t.Fatalf("symmetry-x at %v: got %g, want %g", p, got, want)
		}
		if got, want := symxyz.Distance(p), s.Distance(ms3.AbsElem(p)); got != want {
			t.Fatalf("symmetry-xyz at %v: got %g, want %g", p, got, want)
		}
		reflected := ms3.Vec{X: -p.X, Y: p.Y, Z: p.Z}
		if got, want := mirx.Distance(p), math32.Min(s.Distance(p), s.Distance(reflected)); got != want {
			t.Fatalf("mirror-x at %v: got %g, want %g", p, got, want)
		}
	}
	if symx.Kind() != sdftrace.KindSymmetryX || symxyz.Kind() != sdftrace.KindSymmetryXYZ {
		t.Error("unexpected symmetry kinds", symx.Kind(), symxyz.Kind())
	}
	xy := bld.Symmetry(s, true, true, false)
	if xy.Kind() != sdftrace.KindSymmetryY || xy.Children()[0].Kind() != sdftrace.KindSymmetryX {
		t.Error("expected nested single axis folds, got", xy)
	}
}

func TestRepeatPolarSymmetry(t *testing.T) {
	var bld sdftrace.Builder
	box := bld.Translate(bld.NewBox(0.3, 0.2, 0.1), 1.2, 0, 0.1)
	rep := bld.RepeatPolar(box, 4)
	points := []ms3.Vec{
		{X: 1.3, Y: 0.1, Z: 0.25},
		{X: 0.2, Y: -0.15, Z: 0.9},
		{X: -1.7, Y: 0.05, Z: 0.6},
	}
	for _, p := range points {
		want := rep.Distance(p)
		q := p
		for i := 0; i < 3; i++ {
			q = ms3.Vec{X: -q.Z, Y: q.Y, Z: q.X} // 90 degree rotation about Y.
			if got := rep.Distance(q); got != want {
				t.Errorf("polar repeat not symmetric for %v rotated to %v: got %g, want %g", p, q, got, want)
			}
		}
	}
	// Sectors other than multiples of four are symmetric up to rounding.
	rep6 := bld.RepeatPolar(box, 6)
	sin, cos := math32.Sincos(math32.Pi / 3)
	p := points[0]
	want := rep6.Distance(p)
	for i := 0; i < 5; i++ {
		p = ms3.Vec{X: cos*p.X - sin*p.Z, Y: p.Y, Z: sin*p.X + cos*p.Z}
		if got := rep6.Distance(p); math32.Abs(got-want) > 1e-5 {
			t.Errorf("6-fold polar repeat not symmetric at %v: got %g, want %g", p, got, want)
		}
	}
	// The original instance is found on the +X axis.
	if d := rep.Distance(ms3.Vec{X: 1.2, Z: 0.1}); d >= 0 {
		t.Error("expected point inside original instance, got distance", d)
	}
}

func TestRepetition(t *testing.T) {
	var bld sdftrace.Builder
	s := bld.NewSphere(0.25)
	inf := bld.RepeatInfinite(s, 1, 0, 1)
	bounded := bld.RepeatBounded(s, 1, 1, 1, 2, 0, 1)
	for _, tc := range []struct {
		node *sdftrace.Node
		p    ms3.Vec
		want float32
	}{
		{inf, ms3.Vec{X: 3, Z: -7}, -0.25},
		{inf, ms3.Vec{X: 3.5, Z: 0}, 0.25},
		{inf, ms3.Vec{X: 2, Y: 1}, 0.75}, // Y is not repeated.
		{bounded, ms3.Vec{X: 2}, -0.25},
		{bounded, ms3.Vec{X: -2, Z: 1}, -0.25},
		{bounded, ms3.Vec{X: 3.5}, 1.25}, // Past the last instance at x=2.
		{bounded, ms3.Vec{Y: 1}, 0.75},   // Zero count along Y.
	} {
		got := tc.node.Distance(tc.p)
		if math32.Abs(got-tc.want) > 1e-5 {
			t.Errorf("%s at %v: got %g, want %g", tc.node.Kind(), tc.p, got, tc.want)
		}
	}
}

func TestSpatialTransforms(t *testing.T) {
	var bld sdftrace.Builder
	box := bld.NewBox(1, 0.5, 0.5)
	for _, tc := range []struct {
		name string
		node *sdftrace.Node
		p    ms3.Vec
		want float32
	}{
		{"translate", bld.Translate(box, 1, 2, 3), ms3.Vec{X: 1, Y: 2, Z: 3.6}, 0.1},
		{"rotatez", bld.RotateZ(box, math32.Pi/2), ms3.Vec{Y: 0.9}, -0.1},
		{"rotatex", bld.RotateX(box, math32.Pi/2), ms3.Vec{Z: 0.4}, -0.1},
		{"rotatey", bld.RotateY(box, math32.Pi/2), ms3.Vec{Z: 1.5}, 0.5},
		{"scale", bld.Scale(bld.NewSphere(1), 2), ms3.Vec{X: 3}, 1},
		{"elongate", bld.Elongate(bld.NewSphere(0.5), 1, 0, 0), ms3.Vec{X: 1.2}, -0.3},
		{"round", bld.Round(box, 0.1), ms3.Vec{X: 1.2}, 0.1},
		{"shell", bld.Shell(bld.NewSphere(1), 0.1), ms3.Vec{}, 0.9},
		{"onion", bld.Onion(bld.NewSphere(1), 0.25), ms3.Vec{X: 1.25}, 0},
		{"taper", bld.Taper(bld.NewSphere(1), 0), ms3.Vec{X: 2}, 1},
		{"bend zero", bld.Bend(box, 0), ms3.Vec{X: 2}, 1},
		{"twist zero height", bld.Twist(box, 3), ms3.Vec{X: 2}, 1},
		{"displace at node", bld.Displace(bld.NewSphere(1), 0.2, 3), ms3.Vec{X: 2}, 1},
	} {
		got := tc.node.Distance(tc.p)
		if math32.Abs(got-tc.want) > 2e-6 {
			t.Errorf("%s at %v: got %g, want %g", tc.name, tc.p, got, tc.want)
		}
	}
}

func TestPrimitivesSignAndBounds(t *testing.T) {
	var bld sdftrace.Builder
	rng := rand.New(rand.NewSource(1))
	prims := []struct {
		node   *sdftrace.Node
		inside ms3.Vec
	}{
		{bld.NewSphere(1), ms3.Vec{}},
		{bld.NewBox(1, 0.5, 0.25), ms3.Vec{}},
		{bld.NewRoundedBox(1, 0.5, 0.25, 0.1), ms3.Vec{}},
		{bld.NewCylinder(0.5, 1), ms3.Vec{}},
		{bld.NewCapsule(0.3, 1), ms3.Vec{}},
		{bld.NewTorus(1, 0.25), ms3.Vec{X: 1}},
		{bld.NewCone(0.5, 1), ms3.Vec{Y: 0.3}},
		{bld.NewEllipsoid(1, 0.5, 0.75), ms3.Vec{}},
		{bld.NewOctahedron(1), ms3.Vec{}},
		{bld.NewHexPrism(0.5, 1), ms3.Vec{}},
		{bld.NewTriPrism(1, 0.5), ms3.Vec{}},
		{bld.NewPyramid(0.5, 1), ms3.Vec{Y: 0.2}},
		{bld.NewLink(0.5, 0.5, 0.1), ms3.Vec{X: 0.5}},
	}
	for _, prim := range prims {
		s := prim.node
		if d := s.Distance(prim.inside); d >= 0 {
			t.Errorf("%s: expected %v inside, got distance %g", s, prim.inside, d)
		}
		bb := s.Bounds()
		size := bb.Size()
		for i := 0; i < 500; i++ {
			// Points outside of the bounding box must be outside of the shape.
			p := randVec(rng, 1)
			p = ms3.Add(bb.Center(), ms3.MulElem(p, ms3.Scale(1.5, size)))
			if contains(bb, p) {
				continue
			}
			if d := s.Distance(p); d <= 0 {
				t.Fatalf("%s: point %v outside bounds %v has non-positive distance %g", s, p, bb, d)
			}
		}
		if s.IsExact() {
			testGradientNorm(t, s, rng)
		}
	}
}

// testGradientNorm checks exact fields have unit gradient almost everywhere.
func testGradientNorm(t *testing.T, s *sdftrace.Node, rng *rand.Rand) {
	t.Helper()
	const h = 1e-3
	const samples = 400
	good := 0
	bb := s.Bounds()
	for i := 0; i < samples; i++ {
		p := ms3.Add(bb.Center(), ms3.MulElem(randVec(rng, 1), bb.Size()))
		g := ms3.Vec{
			X: s.Distance(ms3.Add(p, ms3.Vec{X: h})) - s.Distance(ms3.Sub(p, ms3.Vec{X: h})),
			Y: s.Distance(ms3.Add(p, ms3.Vec{Y: h})) - s.Distance(ms3.Sub(p, ms3.Vec{Y: h})),
			Z: s.Distance(ms3.Add(p, ms3.Vec{Z: h})) - s.Distance(ms3.Sub(p, ms3.Vec{Z: h})),
		}
		if math32.Abs(ms3.Norm(g)/(2*h)-1) < 0.02 {
			good++
		}
	}
	if good < samples*85/100 {
		t.Errorf("%s: exact field has unit gradient at only %d/%d points", s, good, samples)
	}
}

func contains(bb ms3.Box, p ms3.Vec) bool {
	return p.X >= bb.Min.X && p.Y >= bb.Min.Y && p.Z >= bb.Min.Z &&
		p.X <= bb.Max.X && p.Y <= bb.Max.Y && p.Z <= bb.Max.Z
}

func TestConeAndPlanes(t *testing.T) {
	var bld sdftrace.Builder
	cone := bld.NewCone(0.5, 1)
	if d := cone.Distance(ms3.Vec{Y: 1}); math32.Abs(d) > 1e-6 {
		t.Error("cone apex should be on surface, got", d)
	}
	if d := cone.Distance(ms3.Vec{Y: -0.5}); math32.Abs(d-0.5) > 1e-6 {
		t.Error("expected 0.5 distance below base, got", d)
	}
	plane := bld.NewPlane(0, 2, 0, -1) // y = 1 plane.
	if d := plane.Distance(ms3.Vec{X: 5, Y: 3}); d != 2 {
		t.Error("plane distance want 2, got", d)
	}
	ground := bld.NewGroundPlane(0)
	if d := ground.Distance(ms3.Vec{Y: -0.5}); d != -0.5 {
		t.Error("ground plane distance want -0.5, got", d)
	}
}

func TestBuilderErrors(t *testing.T) {
	bld := sdftrace.Builder{NoDimensionPanic: true}
	bld.NewSphere(-1)
	bld.SmoothUnion(0, bld.NewSphere(1), bld.NewSphere(1))
	bld.NewBox(1, 0, 1)
	bld.Scale(bld.NewSphere(1), math32.NaN())
	err := bld.Err()
	if err == nil {
		t.Fatal("expected accumulated errors")
	}
	for _, want := range []string{"sphere radius", "blend radius", "half extent", "not finite"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got %q", want, err)
		}
	}
	bld.ClearErrors()
	if bld.Err() != nil {
		t.Error("expected no errors after clear")
	}

	var panicky sdftrace.Builder
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic on bad dimension")
			}
		}()
		panicky.NewTorus(1, 2)
	}()
	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic on nil argument")
			}
		}()
		panicky.Union(nil, panicky.NewSphere(1))
	}()
}

func TestNewNode(t *testing.T) {
	var bld sdftrace.Builder
	s := bld.NewSphere(0.5)
	b := bld.NewBox(0.5, 0.5, 0.5)
	_, err := bld.NewNode(sdftrace.Kind(200), nil)
	if !errors.Is(err, sdftrace.ErrUnknownKind) {
		t.Error("expected unknown kind error, got", err)
	}
	_, err = bld.NewNode(sdftrace.KindBox, []float32{1, 1})
	if !errors.Is(err, sdftrace.ErrParamCount) {
		t.Error("expected param count error, got", err)
	}
	_, err = bld.NewNode(sdftrace.KindUnion, nil, s)
	if !errors.Is(err, sdftrace.ErrChildCount) {
		t.Error("expected child count error, got", err)
	}
	_, err = bld.NewNode(sdftrace.KindSmoothUnion, []float32{-1}, s, b)
	if !errors.Is(err, sdftrace.ErrBadParam) {
		t.Error("expected bad param error, got", err)
	}
	_, err = bld.NewNode(sdftrace.KindRepeatPolar, []float32{2.5}, s)
	if !errors.Is(err, sdftrace.ErrBadParam) {
		t.Error("expected fractional count to be rejected, got", err)
	}

	// Every kind must be constructible through the generic entry point.
	params := map[sdftrace.Kind][]float32{
		sdftrace.KindSphere:      {1},
		sdftrace.KindBox:         {1, 1, 1},
		sdftrace.KindRoundedBox:  {1, 1, 1, 0.1},
		sdftrace.KindCylinder:    {1, 1},
		sdftrace.KindCapsule:     {1, 1},
		sdftrace.KindTorus:       {1, 0.1},
		sdftrace.KindCone:        {1, 1},
		sdftrace.KindPlane:       {0, 1, 0, 0},
		sdftrace.KindEllipsoid:   {1, 2, 3},
		sdftrace.KindOctahedron:  {1},
		sdftrace.KindHexPrism:    {1, 1},
		sdftrace.KindTriPrism:    {1, 1},
		sdftrace.KindPyramid:     {1, 1},
		sdftrace.KindLink:        {1, 1, 0.1},
		sdftrace.KindGroundPlane: {0},

		sdftrace.KindSmoothUnion:     {0.1},
		sdftrace.KindSmoothSubtract:  {0.1},
		sdftrace.KindSmoothIntersect: {0.1},
		sdftrace.KindRound:           {0.1},
		sdftrace.KindShell:           {0.1},
		sdftrace.KindOnion:           {0.1},
		sdftrace.KindDisplace:        {0.1, 4},
		sdftrace.KindTranslate:       {1, 2, 3},
		sdftrace.KindRotateX:         {1},
		sdftrace.KindRotateY:         {1},
		sdftrace.KindRotateZ:         {1},
		sdftrace.KindScale:           {2},
		sdftrace.KindTwist:           {1},
		sdftrace.KindBend:            {1},
		sdftrace.KindElongate:        {1, 0, 0},
		sdftrace.KindTaper:           {0.1},
		sdftrace.KindRepeatInfinite:  {3, 0, 3},
		sdftrace.KindRepeatBounded:   {3, 3, 3, 1, 2, 0},
		sdftrace.KindRepeatPolar:     {5},
	}
	for k := sdftrace.KindSphere; k.IsValid(); k++ {
		name := k.String()
		if got, ok := sdftrace.KindByName(name); !ok || got != k {
			t.Errorf("KindByName(%q) = %v, %v", name, got, ok)
		}
		var children []*sdftrace.Node
		switch k.Class().Children() {
		case 1:
			children = []*sdftrace.Node{s}
		case 2:
			children = []*sdftrace.Node{s, b}
		}
		n, err := bld.NewNode(k, params[k], children...)
		if err != nil {
			t.Errorf("%s: %s", k, err)
			continue
		}
		if n.Kind() != k {
			t.Errorf("NewNode(%s) returned %s", k, n.Kind())
		}
		if len(n.Params()) != k.Arity() || len(n.Children()) != len(children) {
			t.Errorf("%s: unexpected params %v or children %d", k, n.Params(), len(n.Children()))
		}
		// Evaluation is total and yields finite values for well formed trees.
		if d := n.Distance(ms3.Vec{X: 0.3, Y: 0.2, Z: 0.1}); math32.IsNaN(d) || math32.IsInf(d, 0) {
			t.Errorf("%s: non finite distance %g", k, d)
		}
	}
}

func TestSharedSubtree(t *testing.T) {
	var bld sdftrace.Builder
	handle := bld.NewTorus(0.3, 0.05)
	left := bld.Translate(handle, -1, 0, 0)
	right := bld.Translate(handle, 1, 0, 0)
	root := bld.Union(left, right)
	visits := map[*sdftrace.Node]int{}
	root.Walk(func(n *sdftrace.Node) bool {
		visits[n]++
		return true
	})
	if len(visits) != 4 || visits[handle] != 1 {
		t.Errorf("expected 4 distinct nodes visited once each, got %d nodes and handle visited %d times", len(visits), visits[handle])
	}
	want := "union(translate(-1 0 0 torus(0.3 0.05)) translate(1 0 0 torus(0.3 0.05)))"
	if got := root.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestExactnessAndStepScale(t *testing.T) {
	var bld sdftrace.Builder
	s := bld.NewSphere(1)
	exact := bld.Union(bld.Translate(s, 1, 0, 0), bld.RotateY(bld.SymmetryX(s), 0.3))
	if !exact.IsExact() || exact.StepScale() != 1 {
		t.Errorf("rigid motions and union of exact fields should be exact with unit step, got %v %g", exact.IsExact(), exact.StepScale())
	}
	twisted := bld.Twist(bld.NewBox(1, 1, 1), 2)
	if twisted.IsExact() || twisted.StepScale() >= 1 {
		t.Errorf("twist should be inexact and scale steps, got %v %g", twisted.IsExact(), twisted.StepScale())
	}
	mixed := bld.Union(exact, twisted)
	if mixed.IsExact() || mixed.StepScale() != twisted.StepScale() {
		t.Errorf("union should inherit most conservative step %g, got %g", twisted.StepScale(), mixed.StepScale())
	}
	if d := bld.Displace(s, 10, 10); d.StepScale() < 0.2 {
		t.Error("step scale should be clamped, got", d.StepScale())
	}
}

func TestEvaluateBatch(t *testing.T) {
	var bld sdftrace.Builder
	s := bld.NewSphere(1)
	pos := []ms3.Vec{{}, {X: 2}, {Y: -3}}
	dist := make([]float32, len(pos))
	if err := s.Evaluate(pos, dist, nil); err != nil {
		t.Fatal(err)
	}
	for i, want := range []float32{-1, 1, 2} {
		if dist[i] != want {
			t.Errorf("dist[%d] = %g, want %g", i, dist[i], want)
		}
	}
	if err := s.Evaluate(pos, dist[:1], nil); err == nil {
		t.Error("expected mismatched buffer error")
	}
	if err := s.Evaluate(nil, nil, nil); err == nil {
		t.Error("expected empty buffer error")
	}
}
