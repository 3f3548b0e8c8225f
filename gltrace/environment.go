package gltrace

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/ms3"
)

// Color is a linear RGB color with components nominally in [0,1].
type Color [3]float32

func (c Color) vec() ms3.Vec { return ms3.Vec{X: c[0], Y: c[1], Z: c[2]} }

// Environment is the flat record of lighting, material, sky and fog settings
// consumed read-only by the shading pipeline. Field tags define the TOML keys.
type Environment struct {
	SunDirection [3]float32 `toml:"sun_direction"`
	SunColor     Color      `toml:"sun_color"`
	SunIntensity float32    `toml:"sun_intensity"`

	AmbientColor     Color   `toml:"ambient_color"`
	AmbientIntensity float32 `toml:"ambient_intensity"`

	MaterialColor     Color   `toml:"material_color"`
	Shininess         float32 `toml:"shininess"`
	SpecularIntensity float32 `toml:"specular_intensity"`

	SkyHorizon Color   `toml:"sky_horizon"`
	SkyZenith  Color   `toml:"sky_zenith"`
	FogColor   Color   `toml:"fog_color"`
	FogDensity float32 `toml:"fog_density"`

	AOEnabled   bool    `toml:"ao_enabled"`
	AOIntensity float32 `toml:"ao_intensity"`

	ShadowsEnabled bool    `toml:"shadows_enabled"`
	ShadowSoftness float32 `toml:"shadow_softness"`

	Gamma    float32 `toml:"gamma"`
	Vignette float32 `toml:"vignette"`
}

// DefaultEnvironment returns the default studio-like environment: a warm sun
// from the upper right, bluish sky, light fog and both ambient occlusion and shadows enabled.
func DefaultEnvironment() Environment {
	return Environment{
		SunDirection:      [3]float32{0.8, 0.4, 0.6},
		SunColor:          Color{1, 0.95, 0.85},
		SunIntensity:      1,
		AmbientColor:      Color{0.15, 0.17, 0.2},
		AmbientIntensity:  1,
		MaterialColor:     Color{0.75, 0.75, 0.75},
		Shininess:         32,
		SpecularIntensity: 0.5,
		SkyHorizon:        Color{0.7, 0.8, 0.9},
		SkyZenith:         Color{0.3, 0.5, 0.8},
		FogColor:          Color{0.6, 0.65, 0.7},
		FogDensity:        0.01,
		AOEnabled:         true,
		AOIntensity:       3,
		ShadowsEnabled:    true,
		ShadowSoftness:    8,
		Gamma:             2.2,
		Vignette:          0.25,
	}
}

// SunDir returns the normalized direction towards the sun. A zero direction results in +Y.
func (env *Environment) SunDir() ms3.Vec {
	d := ms3.Vec{X: env.SunDirection[0], Y: env.SunDirection[1], Z: env.SunDirection[2]}
	n := ms3.Norm(d)
	if n < 1e-6 {
		return ms3.Vec{Y: 1}
	}
	return ms3.Scale(1/n, d)
}

// Validate checks the environment for values the shading pipeline cannot use.
func (env *Environment) Validate() error {
	var errs []error
	nonNegative := func(name string, v float32) {
		if !(v >= 0) {
			errs = append(errs, fmt.Errorf("%s must be non-negative, got %g", name, v))
		}
	}
	nonNegative("sun_intensity", env.SunIntensity)
	nonNegative("ambient_intensity", env.AmbientIntensity)
	nonNegative("specular_intensity", env.SpecularIntensity)
	nonNegative("fog_density", env.FogDensity)
	nonNegative("ao_intensity", env.AOIntensity)
	nonNegative("vignette", env.Vignette)
	if !(env.Shininess > 0) {
		errs = append(errs, fmt.Errorf("shininess must be positive, got %g", env.Shininess))
	}
	if !(env.Gamma > 0) {
		errs = append(errs, fmt.Errorf("gamma must be positive, got %g", env.Gamma))
	}
	if env.ShadowsEnabled && !(env.ShadowSoftness > 0) {
		errs = append(errs, fmt.Errorf("shadow_softness must be positive when shadows are enabled, got %g", env.ShadowSoftness))
	}
	return errors.Join(errs...)
}
