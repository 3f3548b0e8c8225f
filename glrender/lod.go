package glrender

import (
	"errors"
	"fmt"
	"slices"
)

// LODLevel is a single level of detail: from Distance onwards the mesh
// keeps Detail (in (0,1]) of the full resolution triangles.
type LODLevel struct {
	Distance float32
	Detail   float32
}

// LODConfig configures level of detail generation with [BuildLOD].
type LODConfig struct {
	Levels             []LODLevel
	MaxError           float32
	PreserveBoundaries bool
}

// DefaultLODConfig returns four levels: full detail, half at 10 units,
// a quarter at 25 units and a tenth from 50 units onwards.
func DefaultLODConfig() LODConfig {
	return LODConfig{
		Levels: []LODLevel{
			{Distance: 0, Detail: 1},
			{Distance: 10, Detail: 0.5},
			{Distance: 25, Detail: 0.25},
			{Distance: 50, Detail: 0.1},
		},
		MaxError:           0.05,
		PreserveBoundaries: true,
	}
}

// LODMesh is the mesh generated for one [LODLevel].
type LODMesh struct {
	LODLevel
	Mesh *Mesh
}

// LOD is a set of meshes sorted by increasing distance.
type LOD []LODMesh

// ForDistance returns the mesh to use when viewing from distance d.
func (l LOD) ForDistance(d float32) *Mesh {
	if len(l) == 0 {
		return nil
	}
	for i := len(l) - 1; i > 0; i-- {
		if d >= l[i].Distance {
			return l[i].Mesh
		}
	}
	return l[0].Mesh
}

// BuildLOD simplifies copies of the welded mesh m for every level of cfg. Levels with
// full detail share m itself. m is not modified.
func BuildLOD(m *Mesh, cfg LODConfig) (LOD, error) {
	if len(cfg.Levels) == 0 {
		return nil, errors.New("no LOD levels")
	}
	levels := slices.Clone(cfg.Levels)
	slices.SortFunc(levels, func(a, b LODLevel) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	lod := make(LOD, 0, len(levels))
	for _, lvl := range levels {
		if !(lvl.Detail > 0 && lvl.Detail <= 1) {
			return nil, fmt.Errorf("LOD detail must be in (0,1], got %g", lvl.Detail)
		}
		if lvl.Detail == 1 {
			lod = append(lod, LODMesh{LODLevel: lvl, Mesh: m})
			continue
		}
		cp := &Mesh{
			Vertices: slices.Clone(m.Vertices),
			Indices:  slices.Clone(m.Indices),
		}
		err := cp.Simplify(SimplifyConfig{
			TargetTriangles:    int(lvl.Detail * float32(m.TriangleCount())),
			MaxError:           cfg.MaxError,
			PreserveBoundaries: cfg.PreserveBoundaries,
		})
		if err != nil {
			return nil, err
		}
		lod = append(lod, LODMesh{LODLevel: lvl, Mesh: cp})
	}
	return lod, nil
}
