package glrender

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace/gleval"
)

// Vertex is a mesh vertex with its unit surface normal.
type Vertex struct {
	Pos    ms3.Vec
	Normal ms3.Vec
}

// Mesh is an indexed triangle mesh. Every three consecutive Indices
// reference the vertices of one triangle, wound counter-clockwise when seen from outside.
type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

// Empty reports whether the mesh has no triangles.
func (m *Mesh) Empty() bool { return len(m.Indices) == 0 }

// TriangleCount returns the number of triangles in the mesh.
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// VertexCount returns the number of vertices in the mesh.
func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// Triangle returns the i'th triangle's vertex positions.
func (m *Mesh) Triangle(i int) ms3.Triangle {
	idx := m.Indices[3*i : 3*i+3]
	return ms3.Triangle{m.Vertices[idx[0]].Pos, m.Vertices[idx[1]].Pos, m.Vertices[idx[2]].Pos}
}

// AppendTriangles appends the mesh's triangles to dst and returns the result.
func (m *Mesh) AppendTriangles(dst []ms3.Triangle) []ms3.Triangle {
	for i := 0; i < m.TriangleCount(); i++ {
		dst = append(dst, m.Triangle(i))
	}
	return dst
}

// Triangles returns the mesh's triangles as position triplets.
func (m *Mesh) Triangles() []ms3.Triangle {
	return m.AppendTriangles(make([]ms3.Triangle, 0, m.TriangleCount()))
}

// Bounds returns the bounding box of the mesh's vertices. Empty meshes return the zero box.
func (m *Mesh) Bounds() ms3.Box {
	if len(m.Vertices) == 0 {
		return ms3.Box{}
	}
	bb := ms3.Box{Min: m.Vertices[0].Pos, Max: m.Vertices[0].Pos}
	for _, v := range m.Vertices[1:] {
		p := v.Pos
		bb.Min = ms3.Vec{X: math32.Min(bb.Min.X, p.X), Y: math32.Min(bb.Min.Y, p.Y), Z: math32.Min(bb.Min.Z, p.Z)}
		bb.Max = ms3.MaxElem(bb.Max, p)
	}
	return bb
}

type edgeKey struct{ a, b uint32 }

func makeEdge(a, b uint32) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a: a, b: b}
}

// edgeUse counts how many triangles use every undirected edge.
func (m *Mesh) edgeUse() map[edgeKey]int {
	use := make(map[edgeKey]int, len(m.Indices))
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		use[makeEdge(a, b)]++
		use[makeEdge(b, c)]++
		use[makeEdge(c, a)]++
	}
	return use
}

// IsClosed reports whether every undirected edge of a non-empty mesh is shared
// by exactly two triangles. Meshes fresh out of [Extract] must be welded first
// since neighbouring cells do not share vertex indices.
func (m *Mesh) IsClosed() bool {
	if m.Empty() {
		return false
	}
	for _, n := range m.edgeUse() {
		if n != 2 {
			return false
		}
	}
	return true
}

// RemoveUnusedVertices drops vertices not referenced by any triangle.
func (m *Mesh) RemoveUnusedVertices() {
	remap := make([]uint32, len(m.Vertices))
	used := make([]bool, len(m.Vertices))
	for _, idx := range m.Indices {
		used[idx] = true
	}
	vertices := m.Vertices[:0]
	for i, v := range m.Vertices {
		if used[i] {
			remap[i] = uint32(len(vertices))
			vertices = append(vertices, v)
		}
	}
	for i, idx := range m.Indices {
		m.Indices[i] = remap[idx]
	}
	m.Vertices = vertices
}

// removeDegenerate drops triangles referencing the same vertex more than once.
func (m *Mesh) removeDegenerate() {
	indices := m.Indices[:0]
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		if a != b && b != c && c != a {
			indices = append(indices, a, b, c)
		}
	}
	m.Indices = indices
}

// RecalculateNormals sets vertex normals to the normalized sum of the area weighted normals of adjacent faces.
func (m *Mesh) RecalculateNormals() {
	for i := range m.Vertices {
		m.Vertices[i].Normal = ms3.Vec{}
	}
	for i := 0; i+2 < len(m.Indices); i += 3 {
		ia, ib, ic := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		n := faceNormal(m.Vertices[ia].Pos, m.Vertices[ib].Pos, m.Vertices[ic].Pos)
		for _, idx := range [3]uint32{ia, ib, ic} {
			m.Vertices[idx].Normal = ms3.Add(m.Vertices[idx].Normal, n)
		}
	}
	for i := range m.Vertices {
		m.Vertices[i].Normal = gleval.UnitOrUp(m.Vertices[i].Normal)
	}
}

// faceNormal returns the non-normalized normal of triangle abc whose length is twice its area.
func faceNormal(a, b, c ms3.Vec) ms3.Vec {
	return ms3.Cross(ms3.Sub(b, a), ms3.Sub(c, a))
}
