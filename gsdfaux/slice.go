package gsdfaux

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"runtime"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace/gleval"
)

// SliceAxis selects the plane of a distance field cross section.
type SliceAxis uint8

const (
	SliceXY SliceAxis = iota // Plane of constant Z.
	SliceXZ                  // Plane of constant Y, seen from above.
	SliceYZ                  // Plane of constant X.
)

func (a SliceAxis) String() string {
	switch a {
	case SliceXY:
		return "xy"
	case SliceXZ:
		return "xz"
	case SliceYZ:
		return "yz"
	}
	return "axis(invalid)"
}

// ParseSliceAxis parses the names returned by [SliceAxis.String].
func ParseSliceAxis(s string) (SliceAxis, error) {
	for a := SliceXY; a <= SliceYZ; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown slice axis %q, want xy, xz or yz", s)
}

// point maps normalized image coordinates (u right, v down) within bb to a
// point on the slice plane at the given offset along the plane's normal.
func (a SliceAxis) point(bb ms3.Box, u, v, offset float32) ms3.Vec {
	lerp := func(lo, hi, t float32) float32 { return lo + t*(hi-lo) }
	switch a {
	case SliceXY:
		return ms3.Vec{X: lerp(bb.Min.X, bb.Max.X, u), Y: lerp(bb.Max.Y, bb.Min.Y, v), Z: offset}
	case SliceXZ:
		return ms3.Vec{X: lerp(bb.Min.X, bb.Max.X, u), Y: offset, Z: lerp(bb.Min.Z, bb.Max.Z, v)}
	default:
		return ms3.Vec{X: offset, Y: lerp(bb.Max.Y, bb.Min.Y, v), Z: lerp(bb.Min.Z, bb.Max.Z, u)}
	}
}

// RenderSlice fills img with the distances of s sampled over the cross section
// of bb at offset along axis's normal, colored by conv. The zero bb uses the bounds of s.
// If conv is nil [ColorConversionInigoQuilez] is used with a third of the bounds diagonal.
func RenderSlice(ctx context.Context, s gleval.SDF3, bb ms3.Box, axis SliceAxis, offset float32, img *image.RGBA, conv func(float32) color.Color) error {
	if s == nil {
		return errors.New("nil SDF3")
	} else if img == nil || img.Bounds().Empty() {
		return errors.New("empty image")
	} else if axis > SliceYZ {
		return errors.New("invalid slice axis")
	}
	if bb == (ms3.Box{}) {
		bb = s.Bounds()
	}
	if conv == nil {
		conv = ColorConversionInigoQuilez(bb.Diagonal() / 3)
	}
	rect := img.Bounds()
	w, h := rect.Dx(), rect.Dy()
	pos := make([]ms3.Vec, 0, w*h)
	for j := 0; j < h; j++ {
		v := (float32(j) + 0.5) / float32(h)
		for i := 0; i < w; i++ {
			u := (float32(i) + 0.5) / float32(w)
			pos = append(pos, axis.point(bb, u, v, offset))
		}
	}
	dist := make([]float32, len(pos))
	var vp gleval.VecPool
	err := gleval.EvaluateParallel(ctx, s, pos, dist, runtime.GOMAXPROCS(0), &vp)
	if err != nil {
		return fmt.Errorf("evaluating slice: %w", err)
	}
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			img.Set(rect.Min.X+i, rect.Min.Y+j, conv(dist[j*w+i]))
		}
	}
	return nil
}

// SlicePalettes lists the names accepted by [SlicePalette].
var SlicePalettes = []string{"iq", "gray", "thermal"}

// SlicePalette returns the named distance coloring for slices spanning bb.
// "iq" is [ColorConversionInigoQuilez]; "gray" and "thermal" are linear gradients
// across the surface, black to white and blue to red respectively.
func SlicePalette(name string, bb ms3.Box) (func(float32) color.Color, error) {
	charDist := bb.Diagonal() / 3
	switch name {
	case "", "iq":
		return ColorConversionInigoQuilez(charDist), nil
	case "gray":
		return ColorConversionLinearGradient(charDist, color.Black, color.White), nil
	case "thermal":
		return ColorConversionLinearGradient(charDist, color.RGBA{R: 0x20, G: 0x40, B: 0xff, A: 255}, red), nil
	}
	return nil, fmt.Errorf("unknown slice palette %q, want one of %v", name, SlicePalettes)
}

// RenderSlicePNGFile renders a size×size slice of s with [RenderSlice] and saves it to a PNG file with said filename.
// A nil conv uses the default coloring of [RenderSlice].
func RenderSlicePNGFile(ctx context.Context, filename string, s gleval.SDF3, bb ms3.Box, axis SliceAxis, offset float32, size int, conv func(float32) color.Color) error {
	if size <= 0 {
		return fmt.Errorf("invalid image size %d", size)
	}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	err := RenderSlice(ctx, s, bb, axis, offset, img, conv)
	if err != nil {
		return err
	}
	fp, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer fp.Close()
	err = png.Encode(fp, img)
	if err != nil {
		return err
	}
	return fp.Close()
}
