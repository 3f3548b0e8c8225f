package glrender

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace/gleval"
	"golang.org/x/sync/errgroup"
)

const (
	// normalStep is the central difference span used for mesh normals: samples lie 1e-3 to each side.
	// Shading normals use the same span for hits at ray distance 1 and a smaller one closer to the camera.
	normalStep = 2e-3
	// MaxResolution caps ExtractConfig.Resolution. The sampled grid holds
	// (Resolution+1)³ positions and distances, about 2GB at the cap.
	MaxResolution = 512
	// flatEdge is the corner value difference below which an edge crossing is placed at its midpoint.
	flatEdge = 1e-5
)

// ExtractConfig configures marching cubes mesh extraction.
type ExtractConfig struct {
	// Resolution is the number of cells along each axis of Bounds.
	Resolution int
	// Bounds is the sampled volume. The zero box uses the field's bounds slightly enlarged.
	Bounds ms3.Box
	// IsoLevel is the field value of the extracted surface.
	IsoLevel float32
	// ComputeNormals sets vertex normals from the field gradient. Otherwise normals point up.
	ComputeNormals bool
	// WeldThreshold, when positive, welds vertices closer than it after extraction. See [Mesh.Weld].
	WeldThreshold float32
	// Workers limits concurrent goroutines. Zero uses GOMAXPROCS.
	Workers int
}

// DefaultExtractConfig returns a configuration sampling [-1,1]³ with 64 cells per axis,
// computing normals and welding coincident vertices.
func DefaultExtractConfig() ExtractConfig {
	return ExtractConfig{
		Resolution:     64,
		Bounds:         ms3.Box{Min: ms3.Vec{X: -1, Y: -1, Z: -1}, Max: ms3.Vec{X: 1, Y: 1, Z: 1}},
		ComputeNormals: true,
		WeldThreshold:  1e-6,
	}
}

func (cfg *ExtractConfig) validate() error {
	if cfg.Resolution < 1 {
		return fmt.Errorf("resolution must be at least 1, got %d", cfg.Resolution)
	} else if cfg.Resolution > MaxResolution {
		return fmt.Errorf("resolution %d exceeds maximum of %d", cfg.Resolution, MaxResolution)
	}
	sz := cfg.Bounds.Size()
	if !(sz.X > 0 && sz.Y > 0 && sz.Z > 0) || math32.IsInf(sz.X+sz.Y+sz.Z, 0) {
		return fmt.Errorf("invalid extraction bounds %v", cfg.Bounds)
	}
	if math32.IsNaN(cfg.IsoLevel) || math32.IsInf(cfg.IsoLevel, 0) {
		return errors.New("iso level must be finite")
	}
	return nil
}

// grid is the (res+1)³ lattice of samples.
type grid struct {
	min  ms3.Vec
	step ms3.Vec
	n    int // Points per axis.
}

func (g *grid) index(x, y, z int) int { return (z*g.n+y)*g.n + x }

func (g *grid) pos(x, y, z int) ms3.Vec {
	return ms3.Vec{
		X: g.min.X + float32(x)*g.step.X,
		Y: g.min.Y + float32(y)*g.step.Y,
		Z: g.min.Z + float32(z)*g.step.Z,
	}
}

// Extract samples s over a regular grid and returns the marching cubes mesh of
// its iso surface. A volume with no sign change returns an empty mesh and nil error.
// s must be safe for concurrent use.
func Extract(ctx context.Context, s gleval.SDF3, cfg ExtractConfig) (*Mesh, error) {
	if s == nil {
		return nil, errors.New("nil SDF3")
	}
	if cfg.Bounds == (ms3.Box{}) {
		cfg.Bounds = s.Bounds().ScaleCentered(ms3.Vec{X: 1.01, Y: 1.01, Z: 1.01})
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	res := cfg.Resolution
	g := grid{
		min:  cfg.Bounds.Min,
		step: ms3.Scale(1/float32(res), cfg.Bounds.Size()),
		n:    res + 1,
	}
	pos := make([]ms3.Vec, g.n*g.n*g.n)
	for z := 0; z < g.n; z++ {
		for y := 0; y < g.n; y++ {
			for x := 0; x < g.n; x++ {
				pos[g.index(x, y, z)] = g.pos(x, y, z)
			}
		}
	}
	var vp gleval.VecPool
	values := make([]float32, len(pos))
	err := gleval.EvaluateParallel(ctx, s, pos, values, workers, &vp)
	if err != nil {
		return nil, fmt.Errorf("sampling field: %w", err)
	}

	slabs := make([]Mesh, res)
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for z := 0; z < res; z++ {
		z := z
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			g.marchSlab(&slabs[z], values, z, cfg.IsoLevel)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	mesh := mergeSlabs(slabs)
	if mesh.Empty() {
		return &Mesh{}, nil
	}
	if cfg.ComputeNormals {
		err = computeNormals(ctx, s, mesh, workers, &vp)
		if err != nil {
			return nil, err
		}
	} else {
		for i := range mesh.Vertices {
			mesh.Vertices[i].Normal = ms3.Vec{Y: 1}
		}
	}
	if cfg.WeldThreshold > 0 {
		mesh.Weld(cfg.WeldThreshold)
	}
	return mesh, nil
}

// marchSlab triangulates the cells of layer z into dst. Vertices are shared
// between triangles of the same cell only.
func (g *grid) marchSlab(dst *Mesh, values []float32, z int, iso float32) {
	res := g.n - 1
	var cornerVal [8]float32
	var edgeVert [12]uint32
	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			cube := 0
			for i, off := range mcCornerOffsets {
				v := values[g.index(x+off[0], y+off[1], z+off[2])]
				cornerVal[i] = v
				if v < iso {
					cube |= 1 << i
				}
			}
			mask := mcEdgeMask[cube]
			if mask == 0 {
				continue
			}
			for e := 0; e < 12; e++ {
				if mask&(1<<e) == 0 {
					continue
				}
				ca, cb := mcEdgeCorners[e][0], mcEdgeCorners[e][1]
				oa, ob := mcCornerOffsets[ca], mcCornerOffsets[cb]
				if oa[0]+oa[1]+oa[2] > ob[0]+ob[1]+ob[2] {
					// Interpolate from the lower lattice point so neighbouring cells produce identical vertices.
					ca, cb = cb, ca
					oa, ob = ob, oa
				}
				pa := g.pos(x+oa[0], y+oa[1], z+oa[2])
				pb := g.pos(x+ob[0], y+ob[1], z+ob[2])
				edgeVert[e] = uint32(len(dst.Vertices))
				dst.Vertices = append(dst.Vertices, Vertex{Pos: interpEdge(pa, pb, cornerVal[ca], cornerVal[cb], iso)})
			}
			for _, e := range mcTriangles[cube] {
				dst.Indices = append(dst.Indices, edgeVert[e])
			}
		}
	}
}

// interpEdge returns the iso crossing on the lattice edge pa-pb with corner values va and vb.
func interpEdge(pa, pb ms3.Vec, va, vb, iso float32) ms3.Vec {
	t := float32(0.5)
	if d := vb - va; math32.Abs(d) > flatEdge {
		t = (iso - va) / d
	}
	return ms3.Vec{
		X: pa.X + t*(pb.X-pa.X),
		Y: pa.Y + t*(pb.Y-pa.Y),
		Z: pa.Z + t*(pb.Z-pa.Z),
	}
}

func mergeSlabs(slabs []Mesh) *Mesh {
	var nv, ni int
	for i := range slabs {
		nv += len(slabs[i].Vertices)
		ni += len(slabs[i].Indices)
	}
	mesh := &Mesh{
		Vertices: make([]Vertex, 0, nv),
		Indices:  make([]uint32, 0, ni),
	}
	for i := range slabs {
		base := uint32(len(mesh.Vertices))
		mesh.Vertices = append(mesh.Vertices, slabs[i].Vertices...)
		for _, idx := range slabs[i].Indices {
			mesh.Indices = append(mesh.Indices, idx+base)
		}
	}
	return mesh
}

// computeNormals sets the normals of mesh from the central difference gradient of s.
func computeNormals(ctx context.Context, s gleval.SDF3, mesh *Mesh, workers int, vp *gleval.VecPool) error {
	pos := make([]ms3.Vec, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		pos[i] = v.Pos
	}
	normals := make([]ms3.Vec, len(pos))
	const minChunk = 1024
	chunk := max(minChunk, (len(pos)+workers-1)/workers)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for start := 0; start < len(pos); start += chunk {
		start := start
		end := min(start+chunk, len(pos))
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return gleval.NormalsCentralDiff(s, pos[start:end], normals[start:end], normalStep, vp)
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("computing normals: %w", err)
	}
	if err := vp.Assert(); err != nil {
		return err
	}
	for i, n := range normals {
		mesh.Vertices[i].Normal = gleval.UnitOrUp(n)
	}
	return nil
}
