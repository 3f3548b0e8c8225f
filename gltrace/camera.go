package gltrace

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

// Camera is a pinhole camera with an orthonormal right-handed basis.
// Forward points into the scene, Up is the image's vertical axis.
type Camera struct {
	Position ms3.Vec
	Forward  ms3.Vec
	Right    ms3.Vec
	Up       ms3.Vec
	// FOV is the vertical field of view in radians.
	FOV float32
}

// DefaultCamera returns a camera looking at the origin from slightly above
// with a 45 degree vertical field of view.
func DefaultCamera() Camera {
	return LookAt(ms3.Vec{X: 2, Y: 1.5, Z: 2}, ms3.Vec{}, ms3.Vec{Y: 1}, 45*math32.Pi/180)
}

// LookAt returns a camera at pos pointing at target. up need not be
// orthogonal to the viewing direction. If pos and target coincide the camera
// looks down -Z, and if up is parallel to the view direction a perpendicular one is picked.
func LookAt(pos, target, up ms3.Vec, fov float32) Camera {
	fwd := ms3.Sub(target, pos)
	if ms3.Norm(fwd) < 1e-9 {
		fwd = ms3.Vec{Z: -1}
	}
	fwd = ms3.Unit(fwd)
	right := ms3.Cross(fwd, up)
	if ms3.Norm(right) < 1e-6 {
		right = ms3.Cross(fwd, ms3.Vec{Z: 1})
		if ms3.Norm(right) < 1e-6 {
			right = ms3.Cross(fwd, ms3.Vec{X: 1})
		}
	}
	right = ms3.Unit(right)
	if !(fov > 0 && fov < math32.Pi) {
		fov = 45 * math32.Pi / 180
	}
	return Camera{
		Position: pos,
		Forward:  fwd,
		Right:    right,
		Up:       ms3.Cross(right, fwd),
		FOV:      fov,
	}
}

// Ray returns the world space origin and unit direction of the ray through
// the center of pixel (px,py) of a width×height image. Pixel rows grow downwards.
func (c Camera) Ray(px, py float32, width, height int) (origin, dir ms3.Vec) {
	// Image plane at unit distance spanning tan(fov/2) vertically.
	halfH := math32.Tan(c.FOV / 2)
	aspect := float32(width) / float32(height)
	u := (2*(px+0.5)/float32(width) - 1) * halfH * aspect
	v := (1 - 2*(py+0.5)/float32(height)) * halfH
	dir = ms3.Add(c.Forward, ms3.Add(ms3.Scale(u, c.Right), ms3.Scale(v, c.Up)))
	return c.Position, ms3.Unit(dir)
}

// Orbit rotates the camera around target by yaw radians about the world Y
// axis and pitch radians about the camera's right axis. Pitch is clamped short of the poles.
func (c Camera) Orbit(target ms3.Vec, yaw, pitch float32) Camera {
	off := ms3.Sub(c.Position, target)
	r := ms3.Norm(off)
	if r < 1e-9 {
		return c
	}
	theta := math32.Atan2(off.X, off.Z) + yaw
	phi := math32.Asin(clampf(off.Y/r, -1, 1)) + pitch
	const limit = 89 * math32.Pi / 180
	phi = clampf(phi, -limit, limit)
	sp, cp := math32.Sincos(phi)
	st, ct := math32.Sincos(theta)
	pos := ms3.Add(target, ms3.Vec{X: r * cp * st, Y: r * sp, Z: r * cp * ct})
	return LookAt(pos, target, ms3.Vec{Y: 1}, c.FOV)
}

// Zoom moves the camera towards target scaling its distance by factor.
// Non-positive factors leave the camera unchanged.
func (c Camera) Zoom(target ms3.Vec, factor float32) Camera {
	if !(factor > 0) {
		return c
	}
	off := ms3.Scale(factor, ms3.Sub(c.Position, target))
	if ms3.Norm(off) < 1e-6 {
		return c
	}
	c.Position = ms3.Add(target, off)
	return c
}
