package demo

import (
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/gg3d"
	"github.com/gogpu/gg3d/input"
)

// steerCamera orbits with the arrow keys and zooms with Page Up, Page Down
// and the wheel.
func steerCamera(cam *gg3d.Camera, in input.State, cfg *Config, dt float32) {
	cam.Rotation[1] += in.Axis(gpucontext.KeyRight, gpucontext.KeyLeft) * cfg.CameraSpeed * dt
	cam.Rotation[0] += in.Axis(gpucontext.KeyUp, gpucontext.KeyDown) * cfg.CameraSpeed * dt
	cam.Distance += in.Axis(gpucontext.KeyPageUp, gpucontext.KeyPageDown) * cfg.ZoomSpeed * dt
	cam.Distance += float32(in.WheelSign()) * cfg.WheelStep
	cam.Distance = max(cam.Distance, cfg.MinDistance)
}

// steerLight turns the light about Y with A and D and about X with W and S.
func steerLight(s *gg3d.SceneState, in input.State, cfg *Config, dt float32) {
	x := in.Axis(gpucontext.KeyS, gpucontext.KeyW) * cfg.LightSpeed * dt
	y := in.Axis(gpucontext.KeyA, gpucontext.KeyD) * cfg.LightSpeed * dt
	s.RotateLight(x, y)
}
