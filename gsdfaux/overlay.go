package gsdfaux

import (
	"errors"
	"image"
	"image/color"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

const (
	overlayPad     = 6
	overlayLineGap = 1.25
)

var overlayBackdrop = color.RGBA{A: 160}

var (
	overlayFontOnce sync.Once
	overlayFont     *truetype.Font
	overlayFontErr  error
)

func loadOverlayFont() (*truetype.Font, error) {
	overlayFontOnce.Do(func() {
		overlayFont, overlayFontErr = freetype.ParseFont(goregular.TTF)
	})
	return overlayFont, overlayFontErr
}

// DrawOverlay draws lines of text in the top left corner of dst over a
// translucent backdrop. size is the font size in points at 72 DPI.
func DrawOverlay(dst draw.Image, lines []string, size float64) error {
	if len(lines) == 0 {
		return nil
	} else if !(size > 0) {
		return errors.New("overlay font size must be positive")
	}
	f, err := loadOverlayFont()
	if err != nil {
		return err
	}
	face := truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingFull})
	defer face.Close()
	var width fixed.Int26_6
	for _, line := range lines {
		width = max(width, font.MeasureString(face, line))
	}
	metrics := face.Metrics()
	lineHeight := fixed.Int26_6(float64(metrics.Height) * overlayLineGap)

	bb := dst.Bounds()
	backdrop := image.Rect(
		bb.Min.X, bb.Min.Y,
		bb.Min.X+width.Ceil()+2*overlayPad,
		bb.Min.Y+(lineHeight*fixed.Int26_6(len(lines))).Ceil()+2*overlayPad,
	).Intersect(bb)
	draw.Draw(dst, backdrop, image.NewUniform(overlayBackdrop), image.Point{}, draw.Over)

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(f)
	c.SetFontSize(size)
	c.SetHinting(font.HintingFull)
	c.SetClip(bb)
	c.SetDst(dst)
	c.SetSrc(image.White)
	pt := freetype.Pt(bb.Min.X+overlayPad, bb.Min.Y+overlayPad)
	pt.Y += metrics.Ascent
	for _, line := range lines {
		_, err = c.DrawString(line, pt)
		if err != nil {
			return err
		}
		pt.Y += lineHeight
	}
	return nil
}
