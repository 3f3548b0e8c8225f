package gsdfaux

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace"
	"github.com/soypat/sdftrace/gltrace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"
)

func TestVec2RGBA(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 255, G: 128, B: 0, A: 255}, Vec2RGBA(ms3.Vec{X: 2, Y: 0.5, Z: -1}))
	assert.Equal(t, color.RGBA{A: 255}, Vec2RGBA(ms3.Vec{X: math32.NaN(), Y: math32.NaN(), Z: math32.NaN()}))
}

func TestColorConversions(t *testing.T) {
	iq := ColorConversionInigoQuilez(1)
	assert.Equal(t, red, iq(math32.NaN()))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, iq(0), "surface is white")
	outside := iq(1).(color.RGBA)
	inside := iq(-1).(color.RGBA)
	assert.Greater(t, outside.R, outside.B)
	assert.Greater(t, inside.B, inside.R)

	bw := ColorConversionLinearGradient(1, color.Black, color.White)
	assert.Equal(t, color.Black, bw(-5))
	assert.Equal(t, color.White, bw(5))
	assert.Equal(t, color.Gray{Y: 127}, bw(0))

	grad := ColorConversionLinearGradient(2, color.White, red)
	assert.Equal(t, color.White, grad(-2))
	assert.Equal(t, red, grad(2))

	heat := ColorConversionSteps(100)
	cold := heat(0).(color.RGBA)
	hot := heat(100).(color.RGBA)
	assert.Greater(t, cold.B, cold.R)
	assert.Greater(t, hot.R, hot.B)
	assert.Equal(t, hot, heat(1000), "step counts are clamped")
}

func TestScene(t *testing.T) {
	var sc Scene
	assert.Nil(t, sc.Load())
	var bld sdftrace.Builder
	a, b := bld.NewSphere(1), bld.NewBox(1, 1, 1)
	sc.Store(a)
	assert.Same(t, a, sc.Load())
	old := sc.Swap(b)
	assert.Same(t, a, old)
	assert.Same(t, b, sc.Load())
	assert.EqualValues(t, 2, sc.Generation())

	def, err := LookupScene("barrel")
	require.NoError(t, err)
	rebuilt, err := sc.Rebuild(def)
	require.NoError(t, err)
	assert.Same(t, rebuilt, sc.Load())
	assert.NotSame(t, b, rebuilt)
	assert.EqualValues(t, 3, sc.Generation())

	_, err = sc.Rebuild(SceneDef{Name: "bad", Build: func(bld *sdftrace.Builder) *sdftrace.Node {
		return bld.NewSphere(-1)
	}})
	assert.Error(t, err)
	assert.Same(t, rebuilt, sc.Load(), "failed rebuild keeps the current scene")
	assert.EqualValues(t, 3, sc.Generation())
}

func TestBuiltinScenes(t *testing.T) {
	scenes := Scenes()
	require.NotEmpty(t, scenes)
	for i, def := range scenes {
		if i > 0 {
			assert.Less(t, scenes[i-1].Name, def.Name, "scenes are sorted")
		}
		root, err := BuildScene(def)
		require.NoError(t, err, def.Name)
		require.NotNil(t, root, def.Name)
		sz := def.Bounds.Size()
		assert.True(t, sz.X > 0 && sz.Y > 0 && sz.Z > 0, def.Name)
		d := root.Distance(ms3.Vec{X: 0.05, Y: 0.05, Z: 0.05})
		assert.False(t, math32.IsNaN(d) || math32.IsInf(d, 0), "%s: distance %g", def.Name, d)
	}
	def, err := LookupScene("spheres")
	require.NoError(t, err)
	root, err := BuildScene(def)
	require.NoError(t, err)
	assert.Less(t, root.Distance(ms3.Vec{Y: 0.5}), float32(0))

	_, err = LookupScene("no-such-scene")
	assert.Error(t, err)
	_, err = BuildScene(SceneDef{Name: "bad", Build: func(bld *sdftrace.Builder) *sdftrace.Node {
		return bld.NewSphere(-1)
	}})
	assert.Error(t, err)
}

func TestDecodeEnvironment(t *testing.T) {
	env, err := DecodeEnvironment(strings.NewReader("gamma = 1.8\nshadows_enabled = false\nsky_zenith = [0.1, 0.2, 0.3]\n"))
	require.NoError(t, err)
	def := gltrace.DefaultEnvironment()
	assert.InDelta(t, 1.8, env.Gamma, 1e-6)
	assert.False(t, env.ShadowsEnabled)
	assert.Equal(t, gltrace.Color{0.1, 0.2, 0.3}, env.SkyZenith)
	assert.Equal(t, def.SunColor, env.SunColor, "missing keys keep defaults")

	_, err = DecodeEnvironment(strings.NewReader("gama = 1.8\n"))
	assert.ErrorContains(t, err, "gama")
	_, err = DecodeEnvironment(strings.NewReader("gamma = -1\n"))
	assert.ErrorContains(t, err, "gamma")
	_, err = DecodeEnvironment(strings.NewReader("gamma = \n"))
	assert.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeEnvironment(&buf, def))
	assert.Contains(t, buf.String(), "fog_density")
	back, err := DecodeEnvironment(&buf)
	require.NoError(t, err)
	assert.InDelta(t, def.Gamma, back.Gamma, 1e-6)
	assert.Equal(t, def.AOEnabled, back.AOEnabled)

	_, err = LoadEnvironment(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWatchEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.toml")
	require.NoError(t, os.WriteFile(path, []byte("gamma = 2.2\n"), 0o644))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan gltrace.Environment, 16)
	done := make(chan error, 1)
	go func() {
		done <- WatchEnvironment(ctx, path, func(env gltrace.Environment, err error) {
			if err == nil {
				got <- env
			}
		})
	}()
	// Keep writing until the watcher picks up a change since it may not be registered yet.
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	timeout := time.After(5 * time.Second)
WAIT:
	for {
		select {
		case env := <-got:
			if math32.Abs(env.Gamma-1.5) < 1e-6 {
				break WAIT
			}
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("gamma = 1.5\n"), 0o644))
		case <-timeout:
			t.Fatal("environment change not observed")
		}
	}
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
	assert.Error(t, WatchEnvironment(context.Background(), path, nil))
}

func TestRenderSlice(t *testing.T) {
	var bld sdftrace.Builder
	s := bld.NewSphere(1)
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for axis := SliceXY; axis <= SliceYZ; axis++ {
		require.NoError(t, RenderSlice(context.Background(), s, ms3.Box{}, axis, 0, img, nil), axis.String())
		center := img.RGBAAt(16, 16)
		corner := img.RGBAAt(0, 0)
		assert.Greater(t, center.B, center.R, "inside is blue")
		assert.Greater(t, corner.R, corner.B, "outside is orange")
	}
	a, err := ParseSliceAxis("xz")
	require.NoError(t, err)
	assert.Equal(t, SliceXZ, a)
	_, err = ParseSliceAxis("zz")
	assert.Error(t, err)

	assert.Error(t, RenderSlice(context.Background(), nil, ms3.Box{}, SliceXY, 0, img, nil))
	assert.Error(t, RenderSlice(context.Background(), s, ms3.Box{}, SliceXY, 0, image.NewRGBA(image.Rect(0, 0, 0, 0)), nil))
	assert.Error(t, RenderSlice(context.Background(), s, ms3.Box{}, SliceYZ+1, 0, img, nil))

	name := filepath.Join(t.TempDir(), "slice.png")
	require.NoError(t, RenderSlicePNGFile(context.Background(), name, s, cube(2), SliceXZ, 0.5, 16, nil))
	fp, err := os.Open(name)
	require.NoError(t, err)
	defer fp.Close()
	cfg, err := png.DecodeConfig(fp)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Width)
	assert.Error(t, RenderSlicePNGFile(context.Background(), name, s, ms3.Box{}, SliceXZ, 0, 0, nil))
}

func TestSlicePalette(t *testing.T) {
	var bld sdftrace.Builder
	s := bld.NewSphere(1)
	bb := cube(2)
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for _, name := range SlicePalettes {
		conv, err := SlicePalette(name, bb)
		require.NoError(t, err, name)
		require.NoError(t, RenderSlice(context.Background(), s, bb, SliceXY, 0, img, conv), name)
		inside, outside := img.RGBAAt(16, 16), img.RGBAAt(0, 0)
		assert.NotEqual(t, inside, outside, name)
	}
	gray, err := SlicePalette("gray", bb)
	require.NoError(t, err)
	assert.Equal(t, color.Black, gray(-10), "deep inside is black")
	assert.Equal(t, color.White, gray(10), "far outside is white")
	thermal, err := SlicePalette("thermal", bb)
	require.NoError(t, err)
	assert.Equal(t, red, thermal(10))

	_, err = SlicePalette("rainbow", bb)
	assert.ErrorContains(t, err, "rainbow")
}

func TestDrawOverlay(t *testing.T) {
	gray := color.RGBA{R: 128, G: 128, B: 128, A: 255}
	img := image.NewRGBA(image.Rect(0, 0, 200, 60))
	draw.Draw(img, img.Bounds(), image.NewUniform(gray), image.Point{}, draw.Src)
	require.Equal(t, gray, img.RGBAAt(0, 0))
	require.NoError(t, DrawOverlay(img, nil, 12))
	assert.Equal(t, gray, img.RGBAAt(0, 0), "no lines draws nothing")

	require.NoError(t, DrawOverlay(img, []string{"hello", "world"}, 12))
	assert.Less(t, img.RGBAAt(1, 1).R, gray.R, "backdrop darkens")
	assert.Equal(t, gray, img.RGBAAt(199, 59), "outside the backdrop is untouched")
	bright := false
	for y := 0; y < 60 && !bright; y++ {
		for x := 0; x < 200; x++ {
			if img.RGBAAt(x, y).R > 200 {
				bright = true
				break
			}
		}
	}
	assert.True(t, bright, "text is drawn in white")
	assert.Error(t, DrawOverlay(img, []string{"x"}, 0))
}

func TestRender(t *testing.T) {
	var logs bytes.Buffer
	ctx := WithLogger(context.Background(), NewLogger(&logs, log.DebugLevel))
	var bld sdftrace.Builder
	root := bld.NewSphere(1)
	require.NoError(t, bld.Err())

	var pngBuf, stlBuf, objBuf bytes.Buffer
	cfg := DefaultRenderConfig()
	cfg.Width, cfg.Height = 32, 24
	cfg.Overlay = true
	cfg.ImageOutput = &pngBuf
	cfg.STLOutput = &stlBuf
	cfg.OBJOutput = &objBuf
	cfg.Extract.Resolution = 16
	cfg.Simplify = 0.5
	require.NoError(t, Render(ctx, root, cfg))

	img, err := png.Decode(&pngBuf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())

	require.Greater(t, stlBuf.Len(), 84)
	assert.Zero(t, (stlBuf.Len()-84)%50)
	assert.Contains(t, objBuf.String(), "\nv ")
	assert.Contains(t, objBuf.String(), "\nf ")
	assert.Contains(t, logs.String(), "rendered image")
	assert.Contains(t, logs.String(), "simplified mesh")

	assert.Error(t, Render(ctx, root, DefaultRenderConfig()), "no outputs")
	assert.Error(t, Render(ctx, nil, cfg))
	bad := cfg
	bad.Width = 0
	assert.Error(t, Render(ctx, root, bad))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err = Render(canceled, root, cfg)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestLoggerFrom(t *testing.T) {
	assert.Same(t, log.Default(), LoggerFrom(context.Background()))
	l := NewLogger(&bytes.Buffer{}, log.InfoLevel)
	assert.Same(t, l, LoggerFrom(WithLogger(context.Background(), l)))
}
