package cli

import (
	"strings"

	"github.com/soypat/sdftrace/gsdfaux"
	"github.com/spf13/cobra"
)

func newSliceCmd() *cobra.Command {
	var (
		output = "slice.png"
		axis    = "xz"
		palette = "iq"
		offset  float32
		size    = 512
	)
	cmd := &cobra.Command{
		Use:   "slice [scene]",
		Short: "Render a cross section of a scene's distance field",
		Long:  "Render the distances of a planar cross section through the scene bounds. The default iq palette is blue inside and orange outside, with isolines and a white surface.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, root, err := sceneArg(args)
			if err != nil {
				return err
			}
			a, err := gsdfaux.ParseSliceAxis(axis)
			if err != nil {
				return err
			}
			conv, err := gsdfaux.SlicePalette(palette, def.Bounds)
			if err != nil {
				return err
			}
			err = gsdfaux.RenderSlicePNGFile(cmd.Context(), output, root, def.Bounds, a, offset, size, conv)
			if err != nil {
				return err
			}
			gsdfaux.LoggerFrom(cmd.Context()).Info("wrote", "file", output, "axis", a, "offset", offset)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "out", "o", output, "output PNG file")
	cmd.Flags().StringVar(&axis, "axis", axis, "slice plane: xy, xz or yz")
	cmd.Flags().StringVar(&palette, "palette", palette, "distance coloring: "+strings.Join(gsdfaux.SlicePalettes, ", "))
	cmd.Flags().Float32Var(&offset, "offset", 0, "plane offset along its normal axis")
	cmd.Flags().IntVar(&size, "size", size, "image width and height in pixels")
	return cmd
}
