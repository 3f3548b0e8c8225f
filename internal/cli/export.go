package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/glrender"
	"github.com/soypat/sdftrace/gsdfaux"
	"github.com/spf13/cobra"
)

const (
	formatSTL = "stl"
	formatOBJ = "obj"
)

// exportOpts holds the command-line flags for the export command.
type exportOpts struct {
	output     string
	resolution int
	weld       float32
	simplify   float32 // fraction of triangles kept, 0 disables simplification
	maxError   float32
	lod        bool // write one file per default level of detail
}

func newExportCmd(g *globalOpts) *cobra.Command {
	opts := exportOpts{
		output:     "scene.stl",
		resolution: 64,
		weld:       1e-6,
	}
	cmd := &cobra.Command{
		Use:   "export [scene]",
		Short: "Extract a scene's surface to an STL or OBJ mesh",
		Long:  "Extract a scene's surface with marching cubes. The format is chosen by the output file extension: .stl (binary) or .obj.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, root, err := sceneArg(args)
			if err != nil {
				return err
			}
			format, err := meshFormat(opts.output)
			if err != nil {
				return err
			}
			if opts.resolution < 1 || opts.resolution > glrender.MaxResolution {
				return fmt.Errorf("resolution must be in 1..%d, got %d", glrender.MaxResolution, opts.resolution)
			}
			if opts.lod {
				return exportLOD(cmd.Context(), def, root, format, opts)
			}
			return exportMesh(cmd.Context(), def, root, format, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "out", "o", opts.output, "output mesh file (.stl or .obj)")
	cmd.Flags().IntVarP(&opts.resolution, "resolution", "r", opts.resolution, "marching cubes cells per axis")
	cmd.Flags().Float32Var(&opts.weld, "weld", opts.weld, "vertex weld distance, 0 disables welding")
	cmd.Flags().Float32Var(&opts.simplify, "simplify", 0, "fraction of triangles to keep in (0,1), 0 disables simplification")
	cmd.Flags().Float32Var(&opts.maxError, "max-error", 0, "simplification error bound, 0 uses the cell size")
	cmd.Flags().BoolVar(&opts.lod, "lod", false, "write one mesh per level of detail with a _lodN suffix")
	return cmd
}

func meshFormat(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".stl":
		return formatSTL, nil
	case ".obj":
		return formatOBJ, nil
	default:
		return "", fmt.Errorf("unsupported mesh format %q, want .stl or .obj", ext)
	}
}

func (opts *exportOpts) extractConfig(def gsdfaux.SceneDef) glrender.ExtractConfig {
	return glrender.ExtractConfig{
		Resolution:     opts.resolution,
		Bounds:         def.Bounds,
		ComputeNormals: true,
		WeldThreshold:  opts.weld,
	}
}

func exportMesh(ctx context.Context, def gsdfaux.SceneDef, root *sdftrace.Node, format string, opts exportOpts) error {
	fp, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	defer fp.Close()
	cfg := gsdfaux.RenderConfig{
		Extract:       opts.extractConfig(def),
		Simplify:      opts.simplify,
		SimplifyError: opts.maxError,
	}
	if format == formatOBJ {
		cfg.OBJOutput = fp
	} else {
		cfg.STLOutput = fp
	}
	err = gsdfaux.Render(ctx, root, cfg)
	if err != nil {
		return err
	}
	return fp.Close()
}

func exportLOD(ctx context.Context, def gsdfaux.SceneDef, root *sdftrace.Node, format string, opts exportOpts) error {
	logger := gsdfaux.LoggerFrom(ctx)
	mesh, err := glrender.Extract(ctx, root, opts.extractConfig(def))
	if err != nil {
		return err
	}
	lodcfg := glrender.DefaultLODConfig()
	if opts.maxError > 0 {
		lodcfg.MaxError = opts.maxError
	}
	lod, err := glrender.BuildLOD(mesh, lodcfg)
	if err != nil {
		return err
	}
	ext := filepath.Ext(opts.output)
	base := strings.TrimSuffix(opts.output, ext)
	for i, level := range lod {
		name := fmt.Sprintf("%s_lod%d%s", base, i, ext)
		err = writeMeshFile(name, format, level.Mesh)
		if err != nil {
			return err
		}
		logger.Info("wrote", "file", name, "distance", level.Distance, "triangles", level.Mesh.TriangleCount())
	}
	return nil
}

func writeMeshFile(name, format string, m *glrender.Mesh) error {
	fp, err := os.Create(name)
	if err != nil {
		return err
	}
	defer fp.Close()
	if format == formatOBJ {
		err = glrender.WriteOBJ(fp, m)
	} else {
		_, err = glrender.WriteBinarySTL(fp, m.Triangles())
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return fp.Close()
}
