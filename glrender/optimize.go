package glrender

import (
	"container/heap"
	"errors"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Weld merges vertices closer than threshold to one another and removes the
// triangles that become degenerate as a result. The first vertex of every
// merged group is kept. Non-positive thresholds do nothing.
func (m *Mesh) Weld(threshold float32) {
	if threshold <= 0 || len(m.Vertices) == 0 {
		return
	}
	thresh2 := threshold * threshold
	cell := 2 * threshold
	type key [3]int32
	keyOf := func(p ms3.Vec) key {
		return key{
			int32(math32.Floor(p.X / cell)),
			int32(math32.Floor(p.Y / cell)),
			int32(math32.Floor(p.Z / cell)),
		}
	}
	// hash stores indices into welded.
	hash := make(map[key][]uint32, len(m.Vertices))
	remap := make([]uint32, len(m.Vertices))
	welded := make([]Vertex, 0, len(m.Vertices))
	for i, v := range m.Vertices {
		k := keyOf(v.Pos)
		found := int64(-1)
	SEARCH:
		for dx := int32(-1); dx <= 1; dx++ {
			for dy := int32(-1); dy <= 1; dy++ {
				for dz := int32(-1); dz <= 1; dz++ {
					for _, j := range hash[key{k[0] + dx, k[1] + dy, k[2] + dz}] {
						d := ms3.Sub(welded[j].Pos, v.Pos)
						if ms3.Dot(d, d) < thresh2 || d == (ms3.Vec{}) {
							found = int64(j)
							break SEARCH
						}
					}
				}
			}
		}
		if found >= 0 {
			remap[i] = uint32(found)
			continue
		}
		idx := uint32(len(welded))
		welded = append(welded, v)
		hash[k] = append(hash[k], idx)
		remap[i] = idx
	}
	for i, idx := range m.Indices {
		m.Indices[i] = remap[idx]
	}
	m.Vertices = welded
	m.removeDegenerate()
}

// SimplifyConfig configures [Mesh.Simplify].
type SimplifyConfig struct {
	// TargetTriangles is the triangle count at which simplification stops.
	TargetTriangles int
	// MaxError bounds the distance any collapsed vertex may move away from the
	// planes of the original triangles around it.
	MaxError float32
	// PreserveBoundaries forbids collapsing edges touching open boundaries.
	PreserveBoundaries bool
}

// DefaultSimplifyConfig returns a configuration halving the triangle count of m.
func DefaultSimplifyConfig(m *Mesh) SimplifyConfig {
	return SimplifyConfig{
		TargetTriangles:    m.TriangleCount() / 2,
		MaxError:           0.01,
		PreserveBoundaries: true,
	}
}

// Simplify reduces the triangle count of a welded mesh by repeatedly collapsing
// the edge with the least quadric error until the target count is reached or
// no collapse stays within MaxError. Collapses that would flip a triangle or
// make the surface non-manifold are skipped. Vertex normals are kept from the surviving vertex.
func (m *Mesh) Simplify(cfg SimplifyConfig) error {
	if cfg.TargetTriangles < 0 {
		return errors.New("negative target triangle count")
	} else if !(cfg.MaxError >= 0) {
		return errors.New("max error must be non-negative")
	}
	if m.TriangleCount() <= cfg.TargetTriangles {
		return nil
	}
	s := newSimplifier(m, cfg)
	s.run()
	s.apply()
	return nil
}

// quadric is the symmetric 4x4 error quadric of Garland and Heckbert stored as its upper triangle.
type quadric [10]float64

func planeQuadric(n ms3.Vec, p ms3.Vec) quadric {
	a, b, c := float64(n.X), float64(n.Y), float64(n.Z)
	d := -(a*float64(p.X) + b*float64(p.Y) + c*float64(p.Z))
	return quadric{
		a * a, a * b, a * c, a * d,
		b * b, b * c, b * d,
		c * c, c * d,
		d * d,
	}
}

func (q *quadric) add(o quadric) {
	for i := range q {
		q[i] += o[i]
	}
}

// eval returns the sum of squared distances from p to the planes summed in q.
func (q *quadric) eval(p ms3.Vec) float64 {
	x, y, z := float64(p.X), float64(p.Y), float64(p.Z)
	return q[0]*x*x + 2*q[1]*x*y + 2*q[2]*x*z + 2*q[3]*x +
		q[4]*y*y + 2*q[5]*y*z + 2*q[6]*y +
		q[7]*z*z + 2*q[8]*z +
		q[9]
}

type collapse struct {
	cost   float64
	v0, v1 uint32
	pos    ms3.Vec
	// stamps detect candidates invalidated by later collapses.
	stamp0, stamp1 uint32
}

type collapseHeap []collapse

func (h collapseHeap) Len() int           { return len(h) }
func (h collapseHeap) Less(i, j int) bool { return h[i].cost < h[j].cost }
func (h collapseHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *collapseHeap) Push(x any)        { *h = append(*h, x.(collapse)) }
func (h *collapseHeap) Pop() any {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

type simplifier struct {
	m        *Mesh
	cfg      SimplifyConfig
	maxCost  float64
	tris     [][3]uint32
	alive    []bool
	nalive   int
	vtris    [][]int // Triangles incident to each vertex, possibly dead.
	q        []quadric
	stamp    []uint32
	removed  []bool
	boundary []bool
	heap     collapseHeap
}

func newSimplifier(m *Mesh, cfg SimplifyConfig) *simplifier {
	nv := len(m.Vertices)
	s := &simplifier{
		m:        m,
		cfg:      cfg,
		maxCost:  float64(cfg.MaxError) * float64(cfg.MaxError),
		tris:     make([][3]uint32, m.TriangleCount()),
		alive:    make([]bool, m.TriangleCount()),
		vtris:    make([][]int, nv),
		q:        make([]quadric, nv),
		stamp:    make([]uint32, nv),
		removed:  make([]bool, nv),
		boundary: make([]bool, nv),
	}
	for i := range s.tris {
		t := [3]uint32{m.Indices[3*i], m.Indices[3*i+1], m.Indices[3*i+2]}
		s.tris[i] = t
		s.alive[i] = true
		n := faceNormal(m.Vertices[t[0]].Pos, m.Vertices[t[1]].Pos, m.Vertices[t[2]].Pos)
		if ms3.Norm(n) > 0 {
			kp := planeQuadric(ms3.Unit(n), m.Vertices[t[0]].Pos)
			for _, v := range t {
				s.q[v].add(kp)
			}
		}
		for _, v := range t {
			s.vtris[v] = append(s.vtris[v], i)
		}
	}
	s.nalive = len(s.tris)
	for e, n := range m.edgeUse() {
		if n == 1 {
			s.boundary[e.a] = true
			s.boundary[e.b] = true
		}
	}
	seen := make(map[edgeKey]bool, 3*len(s.tris)/2)
	for _, t := range s.tris {
		for k := 0; k < 3; k++ {
			e := makeEdge(t[k], t[(k+1)%3])
			if !seen[e] {
				seen[e] = true
				s.push(e.a, e.b)
			}
		}
	}
	return s
}

func (s *simplifier) push(v0, v1 uint32) {
	if s.cfg.PreserveBoundaries && (s.boundary[v0] || s.boundary[v1]) {
		return
	}
	p0, p1 := s.m.Vertices[v0].Pos, s.m.Vertices[v1].Pos
	q := s.q[v0]
	q.add(s.q[v1])
	best := collapse{v0: v0, v1: v1, stamp0: s.stamp[v0], stamp1: s.stamp[v1]}
	best.cost = -1
	for _, p := range [3]ms3.Vec{ms3.Scale(0.5, ms3.Add(p0, p1)), p0, p1} {
		c := q.eval(p)
		if c < 0 {
			c = 0 // Rounding.
		}
		if best.cost < 0 || c < best.cost {
			best.cost, best.pos = c, p
		}
	}
	heap.Push(&s.heap, best)
}

func (s *simplifier) run() {
	heap.Init(&s.heap)
	for s.nalive > s.cfg.TargetTriangles && s.heap.Len() > 0 {
		c := heap.Pop(&s.heap).(collapse)
		if s.removed[c.v0] || s.removed[c.v1] || c.stamp0 != s.stamp[c.v0] || c.stamp1 != s.stamp[c.v1] {
			continue // Stale.
		}
		if c.cost > s.maxCost {
			break
		}
		if !s.linkCondition(c.v0, c.v1) || s.flips(c.v0, c.v1, c.pos) || s.flips(c.v1, c.v0, c.pos) {
			continue
		}
		s.collapse(c)
	}
}

// neighbours returns the set of vertices sharing a live triangle with v.
func (s *simplifier) neighbours(v uint32) map[uint32]struct{} {
	set := make(map[uint32]struct{})
	for _, ti := range s.vtris[v] {
		if !s.alive[ti] {
			continue
		}
		for _, u := range s.tris[ti] {
			if u != v {
				set[u] = struct{}{}
			}
		}
	}
	return set
}

// linkCondition reports whether collapsing edge v0-v1 preserves manifoldness:
// the vertices the endpoints share must be exactly the apexes of the triangles on the edge.
func (s *simplifier) linkCondition(v0, v1 uint32) bool {
	n0, n1 := s.neighbours(v0), s.neighbours(v1)
	if _, ok := n0[v1]; !ok {
		return false
	}
	common := 0
	for u := range n0 {
		if _, ok := n1[u]; ok {
			common++
		}
	}
	edgeTris := 0
	for _, ti := range s.vtris[v0] {
		if s.alive[ti] && triHas(s.tris[ti], v1) {
			edgeTris++
		}
	}
	return common == edgeTris
}

// flips reports whether moving v to pos, with other collapsing into it,
// inverts or degenerates any live triangle of v not on the collapsed edge.
func (s *simplifier) flips(v, other uint32, pos ms3.Vec) bool {
	for _, ti := range s.vtris[v] {
		t := s.tris[ti]
		if !s.alive[ti] || triHas(t, other) {
			continue
		}
		var before, after [3]ms3.Vec
		for k, u := range t {
			before[k] = s.m.Vertices[u].Pos
			after[k] = before[k]
			if u == v {
				after[k] = pos
			}
		}
		n0 := faceNormal(before[0], before[1], before[2])
		n1 := faceNormal(after[0], after[1], after[2])
		if ms3.Norm(n1) < 1e-12 || ms3.Dot(n0, n1) <= 0 {
			return true
		}
	}
	return false
}

func (s *simplifier) collapse(c collapse) {
	v0, v1 := c.v0, c.v1
	s.m.Vertices[v0].Pos = c.pos
	s.q[v0].add(s.q[v1])
	s.removed[v1] = true
	s.stamp[v0]++
	for _, ti := range s.vtris[v1] {
		if !s.alive[ti] {
			continue
		}
		if triHas(s.tris[ti], v0) {
			s.alive[ti] = false
			s.nalive--
			continue
		}
		for k := range s.tris[ti] {
			if s.tris[ti][k] == v1 {
				s.tris[ti][k] = v0
			}
		}
		s.vtris[v0] = append(s.vtris[v0], ti)
	}
	s.vtris[v1] = nil
	// Candidates on v0 were invalidated by its stamp increment.
	for u := range s.neighbours(v0) {
		s.push(v0, u)
	}
}

func (s *simplifier) apply() {
	indices := s.m.Indices[:0]
	for i, t := range s.tris {
		if s.alive[i] {
			indices = append(indices, t[0], t[1], t[2])
		}
	}
	s.m.Indices = indices
	s.m.removeDegenerate()
	s.m.RemoveUnusedVertices()
}

func triHas(t [3]uint32, v uint32) bool {
	return t[0] == v || t[1] == v || t[2] == v
}
