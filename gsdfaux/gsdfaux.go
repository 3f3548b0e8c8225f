// Package gsdfaux bundles the helpers needed to get a scene on screen or on
// disk quickly: one-call rendering and mesh export, built-in scenes, TOML
// environment files and watching them, distance slice images and text overlays.
// Applications with specific needs should use gltrace and glrender directly.
package gsdfaux

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/glrender"
	"github.com/soypat/sdftrace/gltrace"
)

// RenderConfig configures [Render]. At least one output must be set.
type RenderConfig struct {
	// ImageOutput receives the PNG preview.
	ImageOutput io.Writer
	Width       int
	Height      int
	Camera      gltrace.Camera
	Environment gltrace.Environment
	Trace       gltrace.TraceConfig
	Supersample int
	// Overlay stamps render statistics on the preview.
	Overlay bool

	// STLOutput and OBJOutput receive the extracted mesh.
	STLOutput io.Writer
	OBJOutput io.Writer
	// Extract configures mesh extraction. Zero bounds use the scene bounds.
	Extract glrender.ExtractConfig
	// Simplify, when in (0,1), is the fraction of triangles kept by simplification.
	Simplify float32
	// SimplifyError bounds simplification error. Zero uses the ExtractConfig cell size.
	SimplifyError float32
}

// DefaultRenderConfig returns a 640x480 preview configuration with the default
// camera, environment and tracing parameters. Outputs are left unset.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		Width:       640,
		Height:      480,
		Camera:      gltrace.DefaultCamera(),
		Environment: gltrace.DefaultEnvironment(),
		Trace:       gltrace.DefaultTraceConfig(),
		Supersample: 1,
		Extract:     glrender.ExtractConfig{Resolution: 64, ComputeNormals: true, WeldThreshold: 1e-6},
	}
}

// Render is an auxiliary function to aid users in getting setup quickly.
// It renders a PNG preview of root and/or extracts and writes its mesh,
// logging progress to the logger attached to ctx.
func Render(ctx context.Context, root *sdftrace.Node, cfg RenderConfig) (err error) {
	if cfg.STLOutput == nil && cfg.ImageOutput == nil && cfg.OBJOutput == nil {
		return errors.New("Render requires output parameter in config")
	} else if root == nil {
		return errors.New("nil scene")
	}
	logger := LoggerFrom(ctx)
	if cfg.ImageOutput != nil {
		err = renderImage(ctx, logger, root, cfg)
		if err != nil {
			return err
		}
	}
	if cfg.STLOutput != nil || cfg.OBJOutput != nil {
		err = renderMesh(ctx, logger, root, cfg)
		if err != nil {
			return err
		}
	}
	return nil
}

func renderImage(ctx context.Context, logger *log.Logger, root *sdftrace.Node, cfg RenderConfig) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", cfg.Width, cfg.Height)
	}
	shader, err := gltrace.NewShader(cfg.Environment, cfg.Trace)
	if err != nil {
		return fmt.Errorf("invalid environment: %w", err)
	}
	var stats gltrace.RenderStats
	ir := gltrace.ImageRenderer{Shader: shader, Supersample: cfg.Supersample, Stats: &stats}
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	watch := stopwatch()
	err = ir.Render(ctx, root, cfg.Camera, img)
	if err != nil {
		return fmt.Errorf("rendering image: %w", err)
	}
	elapsed := watch()
	rays := stats.Hits + stats.MissSteps + stats.MissDistance
	logger.Info("rendered image", "size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height), "ssaa", max(cfg.Supersample, 1), "elapsed", elapsed.Round(time.Millisecond))
	logger.Debug("ray stats", "rays", rays, "hit%", percent(stats.Hits, rays), "maxsteps%", percent(stats.MissSteps, rays), "steps/ray", float32(stats.Steps)/float32(max(rays, 1)))
	if cfg.Overlay {
		err = DrawOverlay(img, StatsLines(stats, elapsed), 12)
		if err != nil {
			return fmt.Errorf("drawing overlay: %w", err)
		}
	}
	watch = stopwatch()
	err = png.Encode(cfg.ImageOutput, img)
	if err != nil {
		return fmt.Errorf("writing PNG: %w", err)
	}
	logger.Info("wrote", "file", outputName(cfg.ImageOutput, "PNG"), "elapsed", watch())
	return nil
}

// StatsLines formats render statistics as overlay text.
func StatsLines(stats gltrace.RenderStats, elapsed time.Duration) []string {
	rays := stats.Hits + stats.MissSteps + stats.MissDistance
	return []string{
		fmt.Sprintf("frame %s", elapsed.Round(time.Millisecond)),
		fmt.Sprintf("rays %d  hit %.1f%%", rays, percent(stats.Hits, rays)),
		fmt.Sprintf("steps/ray %.1f  exhausted %.2f%%", float32(stats.Steps)/float32(max(rays, 1)), percent(stats.MissSteps, rays)),
	}
}

func renderMesh(ctx context.Context, logger *log.Logger, root *sdftrace.Node, cfg RenderConfig) error {
	ecfg := cfg.Extract
	if ecfg.Resolution <= 0 {
		ecfg.Resolution = 64
	}
	if ecfg.Bounds == (ms3.Box{}) {
		ecfg.Bounds = root.Bounds().ScaleCentered(ms3.Vec{X: 1.01, Y: 1.01, Z: 1.01})
	}
	watch := stopwatch()
	mesh, err := glrender.Extract(ctx, root, ecfg)
	if err != nil {
		return fmt.Errorf("extracting mesh: %w", err)
	}
	logger.Info("extracted mesh", "resolution", ecfg.Resolution, "vertices", mesh.VertexCount(), "triangles", mesh.TriangleCount(), "elapsed", watch())
	if mesh.Empty() {
		logger.Warn("scene has no surface within bounds", "bounds", ecfg.Bounds)
	}
	if cfg.Simplify > 0 && cfg.Simplify < 1 && !mesh.Empty() {
		maxErr := cfg.SimplifyError
		if maxErr <= 0 {
			sz := ecfg.Bounds.Size()
			maxErr = max(sz.X, sz.Y, sz.Z) / float32(ecfg.Resolution)
		}
		before := mesh.TriangleCount()
		watch = stopwatch()
		err = mesh.Simplify(glrender.SimplifyConfig{
			TargetTriangles:    int(cfg.Simplify * float32(before)),
			MaxError:           maxErr,
			PreserveBoundaries: true,
		})
		if err != nil {
			return fmt.Errorf("simplifying mesh: %w", err)
		}
		logger.Info("simplified mesh", "from", before, "to", mesh.TriangleCount(), "elapsed", watch())
	}
	if !mesh.IsClosed() {
		logger.Debug("mesh is not closed")
	}

	if cfg.STLOutput != nil {
		watch = stopwatch()
		triangles, err := glrender.RenderAll(glrender.NewMeshRenderer(mesh), nil)
		if err != nil {
			return fmt.Errorf("rendering triangles: %w", err)
		}
		_, err = glrender.WriteBinarySTL(cfg.STLOutput, triangles)
		if err != nil {
			return fmt.Errorf("writing STL file: %w", err)
		}
		logger.Info("wrote", "file", outputName(cfg.STLOutput, "STL"), "elapsed", watch())
	}
	if cfg.OBJOutput != nil {
		watch = stopwatch()
		err = glrender.WriteOBJ(cfg.OBJOutput, mesh)
		if err != nil {
			return fmt.Errorf("writing OBJ file: %w", err)
		}
		logger.Info("wrote", "file", outputName(cfg.OBJOutput, "OBJ"), "elapsed", watch())
	}
	return nil
}

func outputName(w io.Writer, fallback string) string {
	if fp, ok := w.(*os.File); ok {
		return fp.Name()
	}
	return fallback
}

func stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}

// NewLogger creates a logger writing timestamped messages at level and above to w.
func NewLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

type ctxKey int

const loggerKey ctxKey = 0

// WithLogger returns a copy of ctx carrying l. See [LoggerFrom].
func WithLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// LoggerFrom returns the logger attached to ctx with [WithLogger] or log.Default() if there is none.
func LoggerFrom(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
