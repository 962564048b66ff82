// Package shaderir extracts the resource interface of WGSL shader stages.
//
// Each stage is parsed, lowered and validated with naga. The resulting IR
// is trimmed to what the entry point actually references, and the inputs,
// outputs and resource bindings that survive are reported as an [Interface].
// [Link] checks that a vertex and a fragment interface agree with each other
// and merges them into the slot tables a program needs.
package shaderir

import (
	"fmt"
	"strings"
)

// Stage identifies a programmable pipeline stage.
type Stage uint8

const (
	// StageVertex is the vertex stage.
	StageVertex Stage = iota

	// StageFragment is the fragment stage.
	StageFragment
)

// String returns the lowercase stage name.
func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StageFragment:
		return "fragment"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// StageMask is a set of stages.
type StageMask uint8

// Mask returns the single-stage mask for s.
func (s Stage) Mask() StageMask { return 1 << s }

// Has reports whether m contains s.
func (m StageMask) Has(s Stage) bool { return m&s.Mask() != 0 }

// ScalarKind is the element kind of a value type.
type ScalarKind uint8

const (
	ScalarFloat ScalarKind = iota
	ScalarSint
	ScalarUint
	ScalarBool
)

// ValueType describes a scalar, vector or matrix of 32-bit elements.
type ValueType struct {
	Kind    ScalarKind
	Rows    uint8 // 1 for scalars, 2..4 for vectors and matrix columns
	Columns uint8 // 1 unless the type is a matrix
}

// String returns the WGSL spelling of t.
func (t ValueType) String() string {
	elem := "f32"
	switch t.Kind {
	case ScalarSint:
		elem = "i32"
	case ScalarUint:
		elem = "u32"
	case ScalarBool:
		elem = "bool"
	}
	switch {
	case t.Columns > 1:
		return fmt.Sprintf("mat%dx%d<%s>", t.Columns, t.Rows, elem)
	case t.Rows > 1:
		return fmt.Sprintf("vec%d<%s>", t.Rows, elem)
	default:
		return elem
	}
}

// Size returns the size of t in bytes under the uniform buffer layout.
// Matrix columns with three or four rows occupy 16 bytes.
func (t ValueType) Size() uint32 {
	if t.Columns <= 1 {
		return uint32(t.Rows) * 4
	}
	return uint32(t.Columns) * columnStride(t.Rows)
}

func columnStride(rows uint8) uint32 {
	if rows == 2 {
		return 8
	}
	return 16
}

// Varying is a location-bound stage input or output.
type Varying struct {
	Name     string
	Location uint32
	Type     ValueType
}

// ResourceClass is the kind of binding a resource occupies.
type ResourceClass uint8

const (
	// ResourceBuffer is a uniform buffer binding.
	ResourceBuffer ResourceClass = iota

	// ResourceTexture is a sampled 2D texture.
	ResourceTexture

	// ResourceDepthTexture is a 2D depth texture.
	ResourceDepthTexture

	// ResourceSampler is a filtering or comparison sampler.
	ResourceSampler
)

// String returns the class name.
func (c ResourceClass) String() string {
	switch c {
	case ResourceBuffer:
		return "uniform"
	case ResourceTexture:
		return "texture"
	case ResourceDepthTexture:
		return "depth_texture"
	case ResourceSampler:
		return "sampler"
	default:
		return fmt.Sprintf("ResourceClass(%d)", int(c))
	}
}

// Resource is a module-scope binding referenced by an entry point.
type Resource struct {
	Name       string
	Group      uint32
	Binding    uint32
	Class      ResourceClass
	Type       ValueType // zero for struct-typed buffers
	Size       uint32    // byte size, only for ResourceBuffer
	Comparison bool      // only for ResourceSampler
	Stages     StageMask
}

// Interface is the reflected interface of a single stage.
type Interface struct {
	Stage      Stage
	EntryPoint string
	Inputs     []Varying
	Outputs    []Varying
	Resources  []Resource
}

// Resource returns the resource with the given name.
func (in *Interface) Resource(name string) (Resource, bool) {
	for _, r := range in.Resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

// Diagnostic reports why a stage failed to compile or two stages failed to link.
type Diagnostic struct {
	Stage string // "vertex", "fragment" or "link"
	Log   string
	Err   error
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString("shaderir: ")
	b.WriteString(d.Stage)
	b.WriteString(": ")
	b.WriteString(d.Log)
	return b.String()
}

func (d *Diagnostic) Unwrap() error { return d.Err }
