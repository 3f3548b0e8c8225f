// Package cli implements the sdftrace command-line interface.
//
// Scenes are selected by name from the built-in scenes of package gsdfaux.
// The main commands are:
//   - render: sphere trace a scene to a PNG, optionally re-rendering when the environment file changes
//   - export: extract a scene's mesh to STL or OBJ, with optional simplification and levels of detail
//   - slice: visualize a planar cross section of a scene's distance field
//   - scenes: list the built-in scenes
//   - env: print an environment as TOML
//
// All commands support --verbose (-v) for debug-level logging. The logger is
// passed through context.Context, see [gsdfaux.LoggerFrom].
package cli

import (
	"github.com/charmbracelet/log"
	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/gltrace"
	"github.com/soypat/sdftrace/gsdfaux"
	"github.com/spf13/cobra"
)

var version = "devel"

// defaultScene is used by commands given no scene argument.
const defaultScene = "barrel"

// globalOpts holds flags shared by all commands.
type globalOpts struct {
	verbose bool
	envPath string // TOML environment file, empty for defaults.
}

// environment returns the environment selected by the --env flag.
func (g *globalOpts) environment() (gltrace.Environment, error) {
	if g.envPath == "" {
		return gltrace.DefaultEnvironment(), nil
	}
	return gsdfaux.LoadEnvironment(g.envPath)
}

// NewRootCommand returns the sdftrace command tree. Logging goes to the command's
// error output at info level, or debug level with --verbose.
func NewRootCommand() *cobra.Command {
	var g globalOpts
	root := &cobra.Command{
		Use:           "sdftrace",
		Short:         "sdftrace renders and meshes signed distance field scenes",
		Long:          `sdftrace sphere traces signed distance field scenes to images and extracts their surfaces as triangle meshes using the same distance evaluator.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if g.verbose {
				level = log.DebugLevel
			}
			ctx := gsdfaux.WithLogger(cmd.Context(), gsdfaux.NewLogger(cmd.ErrOrStderr(), level))
			cmd.SetContext(ctx)
		},
	}
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&g.envPath, "env", "", "TOML environment file (defaults apply to missing keys)")

	root.AddCommand(newRenderCmd(&g))
	root.AddCommand(newExportCmd(&g))
	root.AddCommand(newSliceCmd())
	root.AddCommand(newScenesCmd())
	root.AddCommand(newEnvCmd(&g))
	return root
}

// sceneArg builds the scene named by the first argument, or the default scene if there is none.
func sceneArg(args []string) (gsdfaux.SceneDef, *sdftrace.Node, error) {
	name := defaultScene
	if len(args) > 0 {
		name = args[0]
	}
	def, err := gsdfaux.LookupScene(name)
	if err != nil {
		return def, nil, err
	}
	root, err := gsdfaux.BuildScene(def)
	return def, root, err
}
