package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/gltrace"
	"github.com/soypat/sdftrace/gsdfaux"
	"github.com/spf13/cobra"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string
	width    int
	height   int
	ssaa     int
	overlay  bool
	watch    bool    // re-render when the --env file changes
	yaw      float32 // camera orbit in degrees relative to the default view
	pitch    float32
	zoom     float32
	fov      float32 // vertical field of view in degrees
	maxSteps int
}

func newRenderCmd(g *globalOpts) *cobra.Command {
	opts := renderOpts{
		output: "render.png",
		width:  640,
		height: 480,
		ssaa:   1,
		zoom:   1,
		fov:    45,
	}
	cmd := &cobra.Command{
		Use:   "render [scene]",
		Short: "Sphere trace a scene to a PNG image",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, root, err := sceneArg(args)
			if err != nil {
				return err
			}
			if opts.watch && g.envPath == "" {
				return errors.New("--watch requires --env")
			}
			env, err := g.environment()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			err = renderScene(ctx, def, root, env, opts)
			if err != nil || !opts.watch {
				return err
			}
			var scene gsdfaux.Scene
			scene.Store(root)
			logger := gsdfaux.LoggerFrom(ctx)
			logger.Info("watching environment for changes", "file", g.envPath)
			return gsdfaux.WatchEnvironment(ctx, g.envPath, func(env gltrace.Environment, err error) {
				if err != nil {
					logger.Error("reloading environment", "err", err)
					return
				}
				if _, err := scene.Rebuild(def); err != nil {
					logger.Error("rebuilding scene, keeping previous", "err", err)
				}
				err = renderScene(ctx, def, scene.Load(), env, opts)
				if err != nil {
					logger.Error("rendering", "err", err)
					return
				}
				logger.Info("re-rendered", "file", opts.output, "generation", scene.Generation())
			})
		},
	}
	cmd.Flags().StringVarP(&opts.output, "out", "o", opts.output, "output PNG file")
	cmd.Flags().IntVar(&opts.width, "width", opts.width, "image width in pixels")
	cmd.Flags().IntVar(&opts.height, "height", opts.height, "image height in pixels")
	cmd.Flags().IntVar(&opts.ssaa, "ssaa", opts.ssaa, "supersampling factor per axis")
	cmd.Flags().BoolVar(&opts.overlay, "overlay", false, "stamp render statistics on the image")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "re-render whenever the --env file changes")
	cmd.Flags().Float32Var(&opts.yaw, "yaw", 0, "camera orbit about the vertical axis in degrees")
	cmd.Flags().Float32Var(&opts.pitch, "pitch", 0, "camera elevation change in degrees")
	cmd.Flags().Float32Var(&opts.zoom, "zoom", opts.zoom, "camera distance factor, less than 1 moves closer")
	cmd.Flags().Float32Var(&opts.fov, "fov", opts.fov, "vertical field of view in degrees")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", gltrace.DefaultTraceConfig().MaxSteps, "sphere tracing step budget per ray")
	return cmd
}

// sceneCamera frames bb from the default viewing direction and applies the orbit and zoom flags.
func sceneCamera(bb ms3.Box, opts renderOpts) gltrace.Camera {
	target := bb.Center()
	def := gltrace.DefaultCamera()
	dir := ms3.Unit(def.Position)
	dist := 1.2 * bb.Diagonal()
	cam := gltrace.LookAt(ms3.Add(target, ms3.Scale(dist, dir)), target, ms3.Vec{Y: 1}, sdftrace.Deg2Rad(opts.fov))
	cam = cam.Orbit(target, sdftrace.Deg2Rad(opts.yaw), sdftrace.Deg2Rad(opts.pitch))
	return cam.Zoom(target, opts.zoom)
}

func renderScene(ctx context.Context, def gsdfaux.SceneDef, root *sdftrace.Node, env gltrace.Environment, opts renderOpts) error {
	fp, err := os.Create(opts.output)
	if err != nil {
		return err
	}
	defer fp.Close()
	cfg := gsdfaux.DefaultRenderConfig()
	cfg.ImageOutput = fp
	cfg.Width, cfg.Height = opts.width, opts.height
	cfg.Supersample = opts.ssaa
	cfg.Overlay = opts.overlay
	cfg.Environment = env
	cfg.Camera = sceneCamera(def.Bounds, opts)
	cfg.Trace.MaxSteps = opts.maxSteps
	err = gsdfaux.Render(ctx, root, cfg)
	if err != nil {
		return err
	}
	return fp.Close()
}

func newEnvCmd(g *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the environment as TOML",
		Long:  "Print the environment loaded from --env, or the default environment, as TOML. The output is a valid --env file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := g.environment()
			if err != nil {
				return err
			}
			return gsdfaux.EncodeEnvironment(cmd.OutOrStdout(), env)
		},
	}
}

func newScenesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenes",
		Short: "List the built-in scenes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, def := range gsdfaux.Scenes() {
				_, err := fmt.Fprintf(w, "%-10s %s\n", def.Name, def.Description)
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}
