// Package demo assembles the shadow-mapping and mip-mapped texture scenes
// from the gg3d core.
package demo

import (
	"fmt"
	"io/fs"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/gg3d"
)

// Tau is a full turn in radians.
const Tau = 2 * math.Pi

// SceneKind names a demo scene.
type SceneKind string

const (
	SceneShadow  SceneKind = "shadow"
	SceneTexture SceneKind = "texture"
)

// ParseSceneKind validates a scene name.
func ParseSceneKind(s string) (SceneKind, error) {
	switch k := SceneKind(s); k {
	case SceneShadow, SceneTexture:
		return k, nil
	}
	return "", fmt.Errorf("demo: unknown scene %q (want %s or %s)", s, SceneShadow, SceneTexture)
}

// Config holds the tunables of both scenes.
type Config struct {
	Scene         SceneKind
	Width, Height uint32

	// Camera speeds in radians and distance units per second.
	CameraSpeed float32
	ZoomSpeed   float32
	// WheelStep is the distance change per wheel notch.
	WheelStep   float32
	MinDistance float32

	// Shadow scene.
	ShadowCamera  gg3d.Camera
	Light         mgl32.Vec3
	LightSpeed    float32
	Shadow        gg3d.ShadowExtent
	ShadowMapSize uint32
	ShadowFormat  gputypes.TextureFormat
	PlaneScale    float32
	CubePositions []mgl32.Vec3

	// Texture scene. Without TexturePaths a generated checkerboard chain
	// is used.
	TextureCamera   gg3d.Camera
	TextureFS       fs.FS
	TexturePaths    []string
	TextureSize     uint32
	GenerateMips    bool
	DecodeWorkers   int
	TextureCacheMiB int64
}

// DefaultConfig returns the settings of the coursework scenes.
func DefaultConfig() Config {
	return Config{
		Scene:       SceneShadow,
		Width:       800,
		Height:      400,
		CameraSpeed: Tau / 10,
		ZoomSpeed:   1,
		WheelStep:   0.5,
		MinDistance: 0.5,

		ShadowCamera: gg3d.Camera{
			Rotation: mgl32.Vec3{-Tau / 12, Tau / 8, 0},
			Distance: 6,
			Fovy:     math.Pi / 2,
			Near:     0.1,
			Far:      100,
		},
		Light:         mgl32.Vec3{0.1, 1, 0.5},
		LightSpeed:    Tau / 10,
		Shadow:        gg3d.ShadowExtent{HalfSize: 4, Near: 0.1, Far: 100, Distance: 10},
		ShadowMapSize: 1024,
		ShadowFormat:  gputypes.TextureFormatRGBA16Float,
		PlaneScale:    10,
		CubePositions: []mgl32.Vec3{{2, 1, -2}, {-2, 1, -2}, {2, 1, 2}, {-2, 1, 2}},

		TextureCamera: gg3d.Camera{
			Distance: 2,
			Fovy:     math.Pi / 2,
			Near:     0.1,
			Far:      100,
		},
		TextureSize:     512,
		DecodeWorkers:   4,
		TextureCacheMiB: 16,
	}
}

// CheckerboardPaths returns the file names of a hand-made mip chain,
// checkerboard512.png down to checkerboard2.png.
func CheckerboardPaths() []string {
	var paths []string
	for s := 512; s >= 2; s /= 2 {
		paths = append(paths, fmt.Sprintf("checkerboard%d.png", s))
	}
	return paths
}
