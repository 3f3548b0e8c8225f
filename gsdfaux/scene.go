package gsdfaux

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace"
)

// Scene holds the current scene graph. Readers take a snapshot with Load and
// keep using it for a whole frame while a rebuild stores its replacement.
// The zero value holds no scene and is ready to use.
type Scene struct {
	root atomic.Pointer[sdftrace.Node]
	gen  atomic.Uint64
}

// Load returns the current scene graph, or nil if none was stored.
func (sc *Scene) Load() *sdftrace.Node { return sc.root.Load() }

// Store replaces the scene graph and bumps the generation.
func (sc *Scene) Store(root *sdftrace.Node) {
	sc.root.Store(root)
	sc.gen.Add(1)
}

// Swap stores root and returns the previous scene graph.
func (sc *Scene) Swap(root *sdftrace.Node) *sdftrace.Node {
	old := sc.root.Swap(root)
	sc.gen.Add(1)
	return old
}

// Rebuild builds def with [BuildScene] and stores the result. On error the
// current scene graph is kept and the error returned.
func (sc *Scene) Rebuild(def SceneDef) (*sdftrace.Node, error) {
	root, err := BuildScene(def)
	if err != nil {
		return nil, err
	}
	sc.Store(root)
	return root, nil
}

// Generation counts the stores made to sc. Renderers compare it between
// frames to detect a rebuilt scene.
func (sc *Scene) Generation() uint64 { return sc.gen.Load() }

// SceneDef is a scene constructor registered under a name.
type SceneDef struct {
	Name        string
	Description string
	// Bounds is the volume meshed by default. Scenes with a ground plane
	// need it since their field bounds are effectively unbounded.
	Bounds ms3.Box
	Build  func(bld *sdftrace.Builder) *sdftrace.Node
}

var builtinScenes = []SceneDef{
	{
		Name:        "barrel",
		Description: "hollow cylinder with two smooth torus bands",
		Bounds:      cube(1.5),
		Build: func(bld *sdftrace.Builder) *sdftrace.Node {
			body := bld.NewCylinder(0.5, 0.6)
			top := bld.Translate(bld.NewTorus(0.5, 0.08), 0, 0.5, 0)
			bottom := bld.Translate(bld.NewTorus(0.5, 0.08), 0, -0.5, 0)
			banded := bld.SmoothUnion(0.05, bld.SmoothUnion(0.05, body, top), bottom)
			return bld.Shell(banded, 0.05)
		},
	},
	{
		Name:        "spheres",
		Description: "three spheres resting on a ground plane",
		Bounds:      cube(2),
		Build: func(bld *sdftrace.Builder) *sdftrace.Node {
			a := bld.Translate(bld.NewSphere(0.5), 0, 0.5, 0)
			b := bld.Translate(bld.NewSphere(0.3), 0.9, 0.3, 0.2)
			c := bld.Translate(bld.NewSphere(0.2), -0.7, 0.2, 0.5)
			return bld.UnionN(bld.NewGroundPlane(0), a, b, c)
		},
	},
	{
		Name:        "twisted",
		Description: "twisted rounded box, a non-exact field",
		Bounds:      cube(1.5),
		Build: func(bld *sdftrace.Builder) *sdftrace.Node {
			box := bld.NewRoundedBox(0.35, 0.9, 0.35, 0.05)
			return bld.Twist(box, 1.5)
		},
	},
	{
		Name:        "lattice",
		Description: "bounded grid of rounded cubes carved by a sphere",
		Bounds:      cube(1.7),
		Build: func(bld *sdftrace.Builder) *sdftrace.Node {
			cell := bld.NewRoundedBox(0.15, 0.15, 0.15, 0.04)
			grid := bld.RepeatBounded(cell, 0.5, 0.5, 0.5, 2, 2, 2)
			return bld.SmoothSubtract(0.1, grid, bld.NewSphere(0.9))
		},
	},
	{
		Name:        "gear",
		Description: "polar repetition of teeth around a hub",
		Bounds:      cube(1.5),
		Build: func(bld *sdftrace.Builder) *sdftrace.Node {
			hub := bld.NewCylinder(0.6, 0.15)
			tooth := bld.Translate(bld.NewBox(0.12, 0.15, 0.08), 0.7, 0, 0)
			teeth := bld.RepeatPolar(tooth, 16)
			bore := bld.NewCylinder(0.2, 0.3)
			return bld.Subtract(bld.SmoothUnion(0.03, hub, teeth), bore)
		},
	},
	{
		Name:        "blob",
		Description: "displaced torus",
		Bounds:      cube(1.5),
		Build: func(bld *sdftrace.Builder) *sdftrace.Node {
			return bld.Displace(bld.NewTorus(0.8, 0.3), 0.05, 10)
		},
	},
}

func cube(half float32) ms3.Box {
	return ms3.Box{Min: ms3.Vec{X: -half, Y: -half, Z: -half}, Max: ms3.Vec{X: half, Y: half, Z: half}}
}

// Scenes returns the built-in scenes sorted by name.
func Scenes() []SceneDef {
	scenes := slices.Clone(builtinScenes)
	slices.SortFunc(scenes, func(a, b SceneDef) int { return strings.Compare(a.Name, b.Name) })
	return scenes
}

// LookupScene returns the built-in scene named name.
func LookupScene(name string) (SceneDef, error) {
	for _, def := range builtinScenes {
		if def.Name == name {
			return def, nil
		}
	}
	return SceneDef{}, fmt.Errorf("unknown scene %q", name)
}

// BuildScene constructs the scene graph of def, returning construction errors
// instead of panicking.
func BuildScene(def SceneDef) (*sdftrace.Node, error) {
	bld := sdftrace.Builder{NoDimensionPanic: true}
	root := def.Build(&bld)
	if err := bld.Err(); err != nil {
		return nil, fmt.Errorf("building scene %q: %w", def.Name, err)
	}
	return root, nil
}
