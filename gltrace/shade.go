package gltrace

import (
	"image/color"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdftrace/gleval"
)

const (
	// normalEps is the central difference step for normals at the viewpoint. It grows linearly with distance.
	normalEps = 1e-3
	aoSamples = 5
	// shadowMinT offsets the shadow ray start to avoid self intersection.
	shadowMinT     = 0.02
	shadowLift     = 1e-3
	shadowMaxSteps = 64
	// shadowOccluded is the distance below which the shadow ray is considered blocked.
	shadowOccluded = 1e-4
	skyReflection  = 0.1
	// horizonFalloff controls how quickly the horizon fog fades with ray elevation.
	horizonFalloff = 8
	horizonFogGain = 50
)

// Shader evaluates the shading pipeline for rays traced against a field.
// It is read-only after construction and safe for concurrent use.
type Shader struct {
	env   Environment
	trace TraceConfig
	sun   ms3.Vec
	// ShadowDistance is the light reachability distance: shadow rays stop after travelling it unoccluded.
	ShadowDistance float32
}

// NewShader validates env and returns a Shader using it with the given tracing configuration.
func NewShader(env Environment, cfg TraceConfig) (*Shader, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxSteps <= 0 || !(cfg.MaxDistance > 0) {
		def := DefaultTraceConfig()
		cfg.MaxSteps, cfg.MaxDistance = def.MaxSteps, def.MaxDistance
	}
	return &Shader{env: env, trace: cfg, sun: env.SunDir(), ShadowDistance: 20}, nil
}

// Environment returns the shader's environment.
func (sh *Shader) Environment() Environment { return sh.env }

// TraceConfig returns the shader's sphere tracing configuration.
func (sh *Shader) TraceConfig() TraceConfig { return sh.trace }

// Normal estimates the unit surface normal at p hit at ray distance t.
// The central difference step grows with t.
func (sh *Shader) Normal(f gleval.Field, p ms3.Vec, t float32) ms3.Vec {
	return gleval.Normal(f, p, normalEps*(1+t))
}

// AmbientOcclusion samples f along the normal n at p and returns 1 for fully lit
// and 0 for fully occluded.
func (sh *Shader) AmbientOcclusion(f gleval.Field, p, n ms3.Vec) float32 {
	if !sh.env.AOEnabled {
		return 1
	}
	var occ float32
	weight := float32(1)
	for i := 0; i < aoSamples; i++ {
		h := 0.01 + 0.12*float32(i)/4
		d := f.Distance(ms3.Add(p, ms3.Scale(h, n)))
		occ += (h - d) * weight
		weight *= 0.95
	}
	return clampf(1-sh.env.AOIntensity*occ, 0, 1)
}

// SoftShadow marches from p towards the light along unit direction l and returns
// the penumbra factor: 1 when fully lit and 0 when fully shadowed. Larger k gives harder shadows.
// The closest approach to the occluder is estimated from consecutive distance samples
// h and ph as d = sqrt(h²-y²) at ray parameter t-y, with y = h²/(2·ph).
func (sh *Shader) SoftShadow(f gleval.Field, p, l ms3.Vec, mint, maxt, k float32) float32 {
	scale := sh.trace.stepScale(f)
	res := float32(1)
	ph := float32(1e20)
	t := mint
	if t <= 0 {
		t = shadowMinT
	}
	for i := 0; i < shadowMaxSteps && t < maxt; i++ {
		h := f.Distance(ms3.Add(p, ms3.Scale(t, l)))
		if h < shadowOccluded {
			return 0
		}
		y := h * h / (2 * ph)
		d := math32.Sqrt(maxf(h*h-y*y, 0))
		if t-y > 0 {
			// Receding from a plane (h = 2·ph) gives d = 0 at t-y <= 0.
			res = minf(res, k*d/(t-y))
		}
		ph = h
		t += h * scale
	}
	return clampf(res, 0, 1)
}

// Background returns the sky color seen along unit direction dir: a vertical
// gradient from horizon to zenith mixed towards the fog color near the horizon.
func (sh *Shader) Background(dir ms3.Vec) ms3.Vec {
	env := &sh.env
	elevation := clampf(dir.Y, 0, 1)
	sky := mixv(env.SkyHorizon.vec(), env.SkyZenith.vec(), elevation)
	fog := math32.Exp(-absf(dir.Y)*horizonFalloff) * clampf(env.FogDensity*horizonFogGain, 0, 1)
	return mixv(sky, env.FogColor.vec(), fog)
}

// Lighting returns the lit surface color at p with normal n seen along unit ray direction dir.
func (sh *Shader) Lighting(f gleval.Field, p, n, dir ms3.Vec) ms3.Vec {
	env := &sh.env
	l := sh.sun
	sunColor := ms3.Scale(env.SunIntensity, env.SunColor.vec())

	diffuse := maxf(ms3.Dot(n, l), 0)
	shadow := float32(1)
	if env.ShadowsEnabled && diffuse > 0 {
		lifted := ms3.Add(p, ms3.Scale(shadowLift, n))
		shadow = sh.SoftShadow(f, lifted, l, shadowMinT, sh.ShadowDistance, env.ShadowSoftness)
	}
	half := gleval.UnitOrUp(ms3.Sub(l, dir))
	var specular float32
	if diffuse > 0 {
		specular = math32.Pow(maxf(ms3.Dot(n, half), 0), env.Shininess) * env.SpecularIntensity
	}
	ao := sh.AmbientOcclusion(f, p, n)

	direct := ms3.Scale((diffuse+specular)*shadow, sunColor)
	ambient := ms3.Scale(env.AmbientIntensity*ao, env.AmbientColor.vec())
	sky := ms3.Scale(skyReflection*clampf(0.5+0.5*n.Y, 0, 1)*ao, env.SkyZenith.vec())
	light := ms3.Add(ms3.Add(direct, ambient), sky)
	return ms3.MulElem(env.MaterialColor.vec(), light)
}

// Shade traces the ray origin+t*dir through f and returns its linear color
// before gamma correction and vignetting, together with the tracing result.
// Misses return the background color.
func (sh *Shader) Shade(f gleval.Field, origin, dir ms3.Vec) (ms3.Vec, TraceResult) {
	dir = gleval.UnitOrUp(dir)
	res := Trace(f, origin, dir, sh.trace)
	bg := sh.Background(dir)
	if !res.Hit() {
		return bg, res
	}
	n := sh.Normal(f, res.Pos, res.T)
	col := sh.Lighting(f, res.Pos, n, dir)
	visibility := math32.Exp(-sh.env.FogDensity * res.T * res.T)
	return mixv(bg, col, visibility), res
}

// Finish applies gamma correction and then the radial vignette to a linear color
// at normalized image coordinates u,v in [0,1] and converts it to 8 bit RGBA.
func (sh *Shader) Finish(col ms3.Vec, u, v float32) color.RGBA {
	invGamma := 1 / sh.env.Gamma
	col = ms3.Vec{
		X: math32.Pow(clampf(col.X, 0, 1), invGamma),
		Y: math32.Pow(clampf(col.Y, 0, 1), invGamma),
		Z: math32.Pow(clampf(col.Z, 0, 1), invGamma),
	}
	du, dv := u-0.5, v-0.5
	r2 := 2 * (du*du + dv*dv) // 0 at the center, 1 at the corners.
	col = ms3.Scale(1-sh.env.Vignette*r2, col)
	return color.RGBA{R: to8bit(col.X), G: to8bit(col.Y), B: to8bit(col.Z), A: 255}
}

func to8bit(c float32) uint8 {
	return uint8(clampf(c, 0, 1)*255 + 0.5)
}

func mixv(a, b ms3.Vec, t float32) ms3.Vec {
	return ms3.Add(ms3.Scale(1-t, a), ms3.Scale(t, b))
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	} else if v > hi {
		return hi
	}
	return v
}

func minf(a, b float32) float32 { return math32.Min(a, b) }
func maxf(a, b float32) float32 { return math32.Max(a, b) }
func absf(a float32) float32    { return math32.Abs(a) }
