// Package gltrace renders signed distance fields by sphere tracing. It
// implements the tracer, the shading pipeline built on top of it (normals,
// ambient occlusion, soft shadows, lighting, sky and fog) and a parallel image renderer.
package gltrace

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace/gleval"
)

// Status is the terminal state of a traced ray.
type Status uint8

const (
	// Hit means the ray reached the surface within the distance adaptive threshold.
	Hit Status = iota + 1
	// MissMaxSteps means the iteration budget was exhausted before reaching a surface.
	MissMaxSteps
	// MissMaxDistance means the ray travelled past the maximum render distance.
	MissMaxDistance
)

func (s Status) String() string {
	switch s {
	case Hit:
		return "hit"
	case MissMaxSteps:
		return "miss(max-steps)"
	case MissMaxDistance:
		return "miss(max-distance)"
	}
	return "status(undefined)"
}

// TraceConfig configures the sphere tracing state machine.
type TraceConfig struct {
	// MaxSteps is the iteration budget per ray.
	MaxSteps int
	// MaxDistance is the maximum render distance. Rays going past it miss.
	MaxDistance float32
	// MinSurf and DistScale define the surface acceptance threshold at ray parameter t:
	//  surf(t) = MinSurf + DistScale*t
	MinSurf   float32
	DistScale float32
	// StepScale multiplies every step. Zero means 1. It is further multiplied by the
	// field's own StepScale() when the field provides one, see [sdftrace.Node.StepScale].
	StepScale float32
	// Near is the ray parameter at which marching starts.
	Near float32
	// OnStep, if set, is called after every field evaluation with the step index,
	// the current ray parameter and the distance sampled there.
	OnStep func(step int, t, d float32)
}

// DefaultTraceConfig returns the default sphere tracing parameters.
func DefaultTraceConfig() TraceConfig {
	return TraceConfig{
		MaxSteps:    256,
		MaxDistance: 100,
		MinSurf:     1e-4,
		DistScale:   1e-3,
		StepScale:   1,
		Near:        0.01,
	}
}

// Surface returns the distance adaptive hit threshold at ray parameter t.
func (cfg *TraceConfig) Surface(t float32) float32 {
	return cfg.MinSurf + cfg.DistScale*t
}

// TraceResult holds the outcome of tracing a single ray.
type TraceResult struct {
	Status Status
	// T is the ray parameter of the last sample: the hit distance for hits.
	T float32
	// Pos is origin + T*dir.
	Pos ms3.Vec
	// Distance is the field value sampled at Pos.
	Distance float32
	// Steps is the amount of field evaluations performed.
	Steps int
}

// Hit reports whether the ray hit a surface.
func (r TraceResult) Hit() bool { return r.Status == Hit }

type stepScaler interface {
	StepScale() float32
}

// stepScale returns the combined step factor for f.
func (cfg *TraceConfig) stepScale(f gleval.Field) float32 {
	scale := cfg.StepScale
	if scale <= 0 {
		scale = 1
	}
	if ss, ok := f.(stepScaler); ok {
		if s := ss.StepScale(); s > 0 && s < 1 {
			scale *= s
		}
	}
	return scale
}

// Trace marches the ray origin+t*dir through f. The ray parameter t never
// decreases and there is no backtracking: exhausting the distance or step
// budget is a normal miss. dir is normalized by Trace; a zero direction misses.
func Trace(f gleval.Field, origin, dir ms3.Vec, cfg TraceConfig) TraceResult {
	norm := ms3.Norm(dir)
	if norm < 1e-12 || math32.IsNaN(norm) {
		return TraceResult{Status: MissMaxDistance, T: cfg.MaxDistance, Pos: origin}
	}
	dir = ms3.Scale(1/norm, dir)
	scale := cfg.stepScale(f)
	t := cfg.Near
	res := TraceResult{Status: MissMaxSteps}
	for step := 0; step < cfg.MaxSteps; step++ {
		p := ms3.Add(origin, ms3.Scale(t, dir))
		d := f.Distance(p)
		res.T, res.Pos, res.Distance, res.Steps = t, p, d, step+1
		if cfg.OnStep != nil {
			cfg.OnStep(step, t, d)
		}
		if d < cfg.Surface(t) {
			res.Status = Hit
			return res
		} else if math32.IsNaN(d) {
			// A degenerate field cannot be marched any further.
			return res
		}
		t += d * scale
		if t > cfg.MaxDistance {
			res.Status = MissMaxDistance
			return res
		}
	}
	return res
}
