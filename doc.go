// Package gg3d is a small real-time 3D rendering core for Go.
//
// # Overview
//
// gg3d draws lit, shadowed and textured triangle meshes with programmable
// WGSL shaders on top of the gogpu/wgpu HAL. It targets coursework-sized
// scenes: a handful of meshes, one directional light, one shadow map.
//
// # Quick Start
//
//	ctx, err := gg3d.Open("auto")
//	prog, err := gg3d.DiffuseProgram(ctx)
//	cube, err := gg3d.NewCube(ctx)
//	cube.Position = mgl32.Vec3{2, 1, -2}
//
//	target, err := gg3d.NewRenderTarget(ctx, 800, 600)
//	seq, err := gg3d.NewFrameSequencer(ctx, &gg3d.Pass{
//	    Name: "main", Kind: gg3d.PassMain, Program: prog,
//	    Projection: cam.Projection(800.0 / 600), View: cam.View(),
//	    Uniforms: map[string]any{"u_lightDirection": light},
//	    Meshes:   []*gg3d.Mesh{cube},
//	})
//	img, err := seq.RenderAndCapture(target)
//
// # Programs
//
// Compile parses both stages with naga, reflects the attribute and uniform
// slots the entry points actually reference, and links them. A Program's
// Capabilities are that set of names. Meshes consult it before binding, so a
// cube renders under a depth-only program without a normal buffer and the
// normal matrix is computed only for programs that declare u_normalMatrix.
//
// # Frames
//
// A FrameSequencer renders its passes in Shadow, Blit, Main order into a
// single command buffer. A pass may sample the RenderTarget an earlier
// pass wrote; sampling its own target is rejected with ErrFeedbackLoop.
//
// # Coordinate System
//
// Right-handed world space with +Y up. Mesh transforms apply scale, then Y,
// X and Z rotations, then translation. Projections map depth to [0, 1].
//
// # Errors
//
// Setup failures match one of ErrContextUnavailable, ErrShaderCompile,
// ErrProgramLink, ErrFramebufferIncomplete or ErrUnsupported with
// errors.Is. Frame errors leave the sequencer Idle and nothing submitted.
package gg3d

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0-alpha.1"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0

	// VersionPrerelease is the prerelease identifier
	VersionPrerelease = "alpha.1"
)
