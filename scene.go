package gg3d

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// clipDepth maps OpenGL clip depth [-w, w] to the [0, w] range the GPU
// backends use.
var clipDepth = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Perspective returns a perspective projection with zero-to-one depth.
func Perspective(fovy, aspect, near, far float32) mgl32.Mat4 {
	return clipDepth.Mul4(mgl32.Perspective(fovy, aspect, near, far))
}

// Ortho returns an orthographic projection with zero-to-one depth.
func Ortho(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	return clipDepth.Mul4(mgl32.Ortho(left, right, bottom, top, near, far))
}

// Camera orbits the origin.
type Camera struct {
	// Rotation holds Euler angles in radians applied to the offset
	// (0, 0, Distance) in Z, X, Y order.
	Rotation mgl32.Vec3
	Distance float32

	Fovy      float32
	Near, Far float32
}

// Position returns the eye position.
func (c Camera) Position() mgl32.Vec3 {
	p := mgl32.Vec3{0, 0, c.Distance}
	p = mgl32.Rotate3DZ(c.Rotation[2]).Mul3x1(p)
	p = mgl32.Rotate3DX(c.Rotation[0]).Mul3x1(p)
	return mgl32.Rotate3DY(c.Rotation[1]).Mul3x1(p)
}

// View looks from Position at the origin with +Y up.
func (c Camera) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.Position(), mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
}

// Projection returns the perspective projection for a viewport aspect ratio.
func (c Camera) Projection(aspect float32) mgl32.Mat4 {
	return Perspective(c.Fovy, aspect, c.Near, c.Far)
}

// Light is a directional light. Direction points towards the light.
type Light struct {
	Direction mgl32.Vec3
}

// ShadowExtent is the orthographic box the shadow map covers, seen from
// the light.
type ShadowExtent struct {
	HalfSize  float32
	Near, Far float32
	// Distance places the light's eye along Direction.
	Distance float32
}

// SceneState is the mutable state of a scene. Update functions change it
// between frames; passes only read it.
type SceneState struct {
	Camera Camera
	Light  Light
	Shadow ShadowExtent
	// Elapsed is the animation time in seconds.
	Elapsed float64
}

// LightView looks from the light towards the origin.
func (s *SceneState) LightView() mgl32.Mat4 {
	dir := s.Light.Direction
	if dir.Len() == 0 {
		dir = mgl32.Vec3{0, 1, 0}
	}
	dir = dir.Normalize()
	up := mgl32.Vec3{0, 1, 0}
	if math.Abs(float64(dir.Dot(up))) > 0.99 {
		up = mgl32.Vec3{0, 0, -1}
	}
	return mgl32.LookAtV(dir.Mul(s.Shadow.Distance), mgl32.Vec3{}, up)
}

// LightProjection returns the orthographic projection of the shadow pass.
func (s *SceneState) LightProjection() mgl32.Mat4 {
	h := s.Shadow.HalfSize
	return Ortho(-h, h, -h, h, s.Shadow.Near, s.Shadow.Far)
}

// ShadowMatrix maps world space to the light's clip space.
func (s *SceneState) ShadowMatrix() mgl32.Mat4 {
	return s.LightProjection().Mul4(s.LightView())
}

// RotateLight turns the light direction about the Y axis, then about the
// X axis, the order the light keys are applied in.
func (s *SceneState) RotateLight(x, y float32) {
	d := s.Light.Direction
	if y != 0 {
		d = mgl32.Rotate3DY(y).Mul3x1(d)
	}
	if x != 0 {
		d = mgl32.Rotate3DX(x).Mul3x1(d)
	}
	s.Light.Direction = d
}
