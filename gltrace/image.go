package gltrace

import (
	"context"
	"errors"
	"image"
	"runtime"

	"github.com/soypat/sdftrace/gleval"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// ImageRenderer renders a field to an RGBA image one ray per pixel.
type ImageRenderer struct {
	Shader *Shader
	// Workers is the amount of rows rendered concurrently. Zero uses GOMAXPROCS.
	Workers int
	// Supersample renders Supersample×Supersample rays per pixel which are then
	// filtered down to the target resolution. Zero or one disables supersampling.
	Supersample int
	// Stats, if not nil, accumulates the per-pixel tracing results.
	Stats *RenderStats
}

// RenderStats counts ray outcomes of a render.
type RenderStats struct {
	Hits         int
	MissSteps    int
	MissDistance int
	Steps        int
}

func (rs *RenderStats) add(other RenderStats) {
	rs.Hits += other.Hits
	rs.MissSteps += other.MissSteps
	rs.MissDistance += other.MissDistance
	rs.Steps += other.Steps
}

func (rs *RenderStats) record(res TraceResult) {
	switch res.Status {
	case Hit:
		rs.Hits++
	case MissMaxSteps:
		rs.MissSteps++
	case MissMaxDistance:
		rs.MissDistance++
	}
	rs.Steps += res.Steps
}

// Render traces every pixel of img through f as seen by cam. f must be safe for concurrent use.
// Cancellation of ctx is checked before each row.
func (ir *ImageRenderer) Render(ctx context.Context, f gleval.Field, cam Camera, img *image.RGBA) error {
	if ir.Shader == nil {
		return errors.New("nil Shader")
	} else if f == nil {
		return errors.New("nil field")
	} else if img == nil || img.Bounds().Empty() {
		return errors.New("empty image")
	}
	ss := ir.Supersample
	if ss <= 1 {
		return ir.render(ctx, f, cam, img)
	}
	bb := img.Bounds()
	big := image.NewRGBA(image.Rect(0, 0, bb.Dx()*ss, bb.Dy()*ss))
	err := ir.render(ctx, f, cam, big)
	if err != nil {
		return err
	}
	draw.BiLinear.Scale(img, bb, big, big.Bounds(), draw.Src, nil)
	return nil
}

func (ir *ImageRenderer) render(ctx context.Context, f gleval.Field, cam Camera, img *image.RGBA) error {
	bb := img.Bounds()
	w, h := bb.Dx(), bb.Dy()
	workers := ir.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	rowStats := make([]RenderStats, h)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for j := 0; j < h; j++ {
		j := j
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats := &rowStats[j]
			v := (float32(j) + 0.5) / float32(h)
			for i := 0; i < w; i++ {
				origin, dir := cam.Ray(float32(i), float32(j), w, h)
				col, res := ir.Shader.Shade(f, origin, dir)
				u := (float32(i) + 0.5) / float32(w)
				img.SetRGBA(bb.Min.X+i, bb.Min.Y+j, ir.Shader.Finish(col, u, v))
				stats.record(res)
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		return err
	}
	if ir.Stats != nil {
		for _, rs := range rowStats {
			ir.Stats.add(rs)
		}
	}
	return nil
}
