package gg3d

import (
	"errors"
	"fmt"
)

// Setup errors. They are returned while building contexts, programs and
// render targets; nothing in the frame loop produces them.
var (
	// ErrContextUnavailable is returned when no usable GPU device could be
	// obtained.
	ErrContextUnavailable = errors.New("gg3d: graphics context unavailable")

	// ErrShaderCompile is matched by a *CompileError for a stage that failed
	// to parse or validate.
	ErrShaderCompile = errors.New("gg3d: shader compile failure")

	// ErrProgramLink is matched by a *CompileError for stages that compiled
	// but could not be linked into a program.
	ErrProgramLink = errors.New("gg3d: program link failure")

	// ErrFramebufferIncomplete is returned when render target attachments
	// could not be created.
	ErrFramebufferIncomplete = errors.New("gg3d: framebuffer incomplete")

	// ErrUnsupported is matched by every *UnsupportedError.
	ErrUnsupported = errors.New("gg3d: unsupported")
)

// Usage errors.
var (
	// ErrNoProgram is returned when drawing with no active program.
	ErrNoProgram = errors.New("gg3d: no active program")

	// ErrDestroyed is returned when a destroyed object is used.
	ErrDestroyed = errors.New("gg3d: object destroyed")

	// ErrFeedbackLoop is returned for a pass that samples its own target.
	ErrFeedbackLoop = errors.New("gg3d: pass samples its own render target")

	// ErrPassOrder is returned when passes are not in Shadow, Blit, Main order.
	ErrPassOrder = errors.New("gg3d: passes out of order")

	// ErrScissorBounds is returned for a scissor rectangle that does not
	// fit inside the pass destination.
	ErrScissorBounds = errors.New("gg3d: scissor outside the render target")

	// ErrMeshData is returned when per-vertex arrays disagree in length.
	ErrMeshData = errors.New("gg3d: inconsistent mesh data")
)

// CompileError carries the diagnostic log of a failed compile or link.
type CompileError struct {
	// Stage is "vertex", "fragment" or "link".
	Stage string
	// Label names the program being built.
	Label string
	// Log is the compiler or linker diagnostic.
	Log string

	err error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("gg3d: %s: %s stage: %s", e.Label, e.Stage, e.Log)
}

// Is matches ErrShaderCompile for stage failures and ErrProgramLink for
// link failures.
func (e *CompileError) Is(target error) bool {
	if e.Stage == "link" {
		return target == ErrProgramLink
	}
	return target == ErrShaderCompile
}

func (e *CompileError) Unwrap() error { return e.err }

// UnsupportedError reports a render target the device cannot provide.
type UnsupportedError struct {
	Width, Height uint32
	Reason        string

	err error
}

func (e *UnsupportedError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("gg3d: unsupported %dx%d render target: %s: %v", e.Width, e.Height, e.Reason, e.err)
	}
	return fmt.Sprintf("gg3d: unsupported %dx%d render target: %s", e.Width, e.Height, e.Reason)
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

func (e *UnsupportedError) Unwrap() error { return e.err }
