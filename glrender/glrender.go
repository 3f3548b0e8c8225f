// Package glrender extracts triangle meshes from signed distance fields using
// marching cubes, and post-processes them by welding and simplification.
package glrender

import (
	"io"

	"github.com/soypat/geometry/ms3"
)

const sqrt3 = 1.73205080757

// Renderer streams triangles into dst. It returns io.EOF once no more triangles remain.
type Renderer interface {
	ReadTriangles(dst []ms3.Triangle, userData any) (n int, err error)
}

// RenderAll reads the full contents of a Renderer and returns the slice read.
// It does not return error on io.EOF, like the io.RenderAll implementation.
func RenderAll(r Renderer, userData any) ([]ms3.Triangle, error) {
	const startSize = 4096
	var err error
	var nt int
	result := make([]ms3.Triangle, 0, startSize)
	buf := make([]ms3.Triangle, startSize)
	for {
		nt, err = r.ReadTriangles(buf, userData)
		if err == nil || err == io.EOF {
			result = append(result, buf[:nt]...)
		}
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

// MeshRenderer implements [Renderer] over the triangles of a [Mesh].
type MeshRenderer struct {
	mesh *Mesh
	next int
}

// NewMeshRenderer returns a renderer streaming m's triangles.
func NewMeshRenderer(m *Mesh) *MeshRenderer {
	return &MeshRenderer{mesh: m}
}

// ReadTriangles implements [Renderer]. userData is unused.
func (mr *MeshRenderer) ReadTriangles(dst []ms3.Triangle, userData any) (n int, err error) {
	if len(dst) == 0 {
		return 0, io.ErrShortBuffer
	}
	total := mr.mesh.TriangleCount()
	for n < len(dst) && mr.next < total {
		dst[n] = mr.mesh.Triangle(mr.next)
		n++
		mr.next++
	}
	if mr.next >= total {
		return n, io.EOF
	}
	return n, nil
}

// Reset restarts streaming from the first triangle.
func (mr *MeshRenderer) Reset() { mr.next = 0 }
