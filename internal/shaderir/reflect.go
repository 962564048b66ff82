package shaderir

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
)

// Reflect compiles a WGSL source for the given stage and returns the
// interface of its entry point.
//
// Inputs lists the location-bound inputs the entry point references;
// Declared lists every location-bound input. Resources lists only
// bindings reachable from the entry point.
func Reflect(stage Stage, source string) (*Interface, *Interface, error) {
	module, err := compileModule(stage, source)
	if err != nil {
		return nil, nil, err
	}
	epIndex := -1
	for i := range module.EntryPoints {
		if irStage(module.EntryPoints[i].Stage) == stage {
			epIndex = i
			break
		}
	}
	if epIndex < 0 {
		return nil, nil, &Diagnostic{Stage: stage.String(), Log: fmt.Sprintf("no @%s entry point", stage)}
	}

	declared, err := entryInterface(module, epIndex, stage, nil)
	if err != nil {
		return nil, nil, err
	}

	// Trimming rewrites expression arenas in place, so the declared
	// interface must be captured first.
	trimUnreferenced(module)
	used := usedArguments(&module.EntryPoints[epIndex].Function)
	active, err := entryInterface(module, epIndex, stage, used)
	if err != nil {
		return nil, nil, err
	}
	return active, declared, nil
}

func compileModule(stage Stage, source string) (*ir.Module, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, &Diagnostic{Stage: stage.String(), Log: err.Error(), Err: err}
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, &Diagnostic{Stage: stage.String(), Log: err.Error(), Err: err}
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, &Diagnostic{Stage: stage.String(), Log: err.Error(), Err: err}
	}
	if len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i := range verrs {
			msgs[i] = verrs[i].Error()
		}
		return nil, &Diagnostic{Stage: stage.String(), Log: strings.Join(msgs, "\n"), Err: &verrs[0]}
	}
	return module, nil
}

func irStage(s ir.ShaderStage) Stage {
	switch s {
	case ir.StageVertex:
		return StageVertex
	case ir.StageFragment:
		return StageFragment
	default:
		return Stage(255)
	}
}

// trimUnreferenced drops named-expression roots and then removes every
// expression and global no statement reaches.
func trimUnreferenced(module *ir.Module) {
	for i := range module.Functions {
		module.Functions[i].NamedExpressions = map[ir.ExpressionHandle]string{}
	}
	for i := range module.EntryPoints {
		module.EntryPoints[i].Function.NamedExpressions = map[ir.ExpressionHandle]string{}
	}
	ir.CompactExpressions(module)
	ir.CompactUnused(module)
}

// argUse records which arguments survive trimming. members is nil when the
// whole argument value is consumed.
type argUse struct {
	members map[uint32]bool
}

func usedArguments(fn *ir.Function) map[uint32]*argUse {
	argExpr := map[ir.ExpressionHandle]uint32{}
	used := map[uint32]*argUse{}
	for h, expr := range fn.Expressions {
		if fa, ok := expr.Kind.(ir.ExprFunctionArgument); ok {
			argExpr[ir.ExpressionHandle(h)] = fa.Index
			used[fa.Index] = &argUse{}
		}
	}
	for _, expr := range fn.Expressions {
		ai, ok := expr.Kind.(ir.ExprAccessIndex)
		if !ok {
			continue
		}
		idx, ok := argExpr[ai.Base]
		if !ok {
			continue
		}
		u := used[idx]
		if u.members == nil {
			u.members = map[uint32]bool{}
		}
		u.members[ai.Index] = true
	}
	return used
}

// entryInterface builds the interface of an entry point. When used is
// non-nil, inputs not present in it are skipped.
func entryInterface(module *ir.Module, epIndex int, stage Stage, used map[uint32]*argUse) (*Interface, error) {
	ep := &module.EntryPoints[epIndex]
	in := &Interface{Stage: stage, EntryPoint: ep.Name}

	for i, arg := range ep.Function.Arguments {
		var use *argUse
		if used != nil {
			use = used[uint32(i)]
			if use == nil {
				continue
			}
		}
		if arg.Binding != nil {
			loc, ok := (*arg.Binding).(ir.LocationBinding)
			if !ok {
				continue
			}
			vt, err := valueType(module, arg.Type)
			if err != nil {
				return nil, &Diagnostic{Stage: stage.String(), Log: fmt.Sprintf("input %q: %v", arg.Name, err)}
			}
			in.Inputs = append(in.Inputs, Varying{Name: arg.Name, Location: loc.Location, Type: vt})
			continue
		}
		st, ok := module.Types[arg.Type].Inner.(ir.StructType)
		if !ok {
			continue
		}
		for mi, m := range st.Members {
			if use != nil && use.members != nil && !use.members[uint32(mi)] {
				continue
			}
			v, ok, err := memberVarying(module, m)
			if err != nil {
				return nil, &Diagnostic{Stage: stage.String(), Log: fmt.Sprintf("input %q: %v", m.Name, err)}
			}
			if ok {
				in.Inputs = append(in.Inputs, v)
			}
		}
	}

	if res := ep.Function.Result; res != nil {
		switch {
		case res.Binding != nil:
			if loc, ok := (*res.Binding).(ir.LocationBinding); ok {
				vt, err := valueType(module, res.Type)
				if err != nil {
					return nil, &Diagnostic{Stage: stage.String(), Log: fmt.Sprintf("output: %v", err)}
				}
				in.Outputs = append(in.Outputs, Varying{Location: loc.Location, Type: vt})
			}
		default:
			if st, ok := module.Types[res.Type].Inner.(ir.StructType); ok {
				for _, m := range st.Members {
					v, ok, err := memberVarying(module, m)
					if err != nil {
						return nil, &Diagnostic{Stage: stage.String(), Log: fmt.Sprintf("output %q: %v", m.Name, err)}
					}
					if ok {
						in.Outputs = append(in.Outputs, v)
					}
				}
			}
		}
	}

	for _, gv := range module.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		r, ok, err := resource(module, gv)
		if err != nil {
			return nil, &Diagnostic{Stage: stage.String(), Log: fmt.Sprintf("resource %q: %v", gv.Name, err)}
		}
		if !ok {
			continue
		}
		r.Stages = stage.Mask()
		in.Resources = append(in.Resources, r)
	}

	sort.Slice(in.Inputs, func(i, j int) bool { return in.Inputs[i].Location < in.Inputs[j].Location })
	sort.Slice(in.Outputs, func(i, j int) bool { return in.Outputs[i].Location < in.Outputs[j].Location })
	sort.Slice(in.Resources, func(i, j int) bool { return in.Resources[i].Binding < in.Resources[j].Binding })
	return in, nil
}

func memberVarying(module *ir.Module, m ir.StructMember) (Varying, bool, error) {
	if m.Binding == nil {
		return Varying{}, false, nil
	}
	loc, ok := (*m.Binding).(ir.LocationBinding)
	if !ok {
		return Varying{}, false, nil
	}
	vt, err := valueType(module, m.Type)
	if err != nil {
		return Varying{}, false, err
	}
	return Varying{Name: m.Name, Location: loc.Location, Type: vt}, true, nil
}

func resource(module *ir.Module, gv ir.GlobalVariable) (Resource, bool, error) {
	r := Resource{Name: gv.Name, Group: gv.Binding.Group, Binding: gv.Binding.Binding}
	inner := module.Types[gv.Type].Inner
	switch gv.Space {
	case ir.SpaceUniform:
		r.Class = ResourceBuffer
		if st, ok := inner.(ir.StructType); ok {
			r.Size = st.Span
			return r, true, nil
		}
		vt, err := valueType(module, gv.Type)
		if err != nil {
			return r, false, err
		}
		r.Type = vt
		r.Size = vt.Size()
		return r, true, nil
	case ir.SpaceHandle:
		switch t := inner.(type) {
		case ir.SamplerType:
			r.Class = ResourceSampler
			r.Comparison = t.Comparison
		case ir.ImageType:
			if t.Dim != ir.Dim2D || t.Arrayed || t.Multisampled {
				return r, false, fmt.Errorf("only non-arrayed single-sampled 2D textures are supported")
			}
			switch t.Class {
			case ir.ImageClassSampled:
				r.Class = ResourceTexture
			case ir.ImageClassDepth:
				r.Class = ResourceDepthTexture
			default:
				return r, false, fmt.Errorf("unsupported image class %d", t.Class)
			}
		default:
			return r, false, fmt.Errorf("unsupported handle type %T", inner)
		}
		return r, true, nil
	default:
		return r, false, nil
	}
}

func valueType(module *ir.Module, h ir.TypeHandle) (ValueType, error) {
	if int(h) >= len(module.Types) {
		return ValueType{}, fmt.Errorf("type handle %d out of range", h)
	}
	switch t := module.Types[h].Inner.(type) {
	case ir.ScalarType:
		k, err := scalarKind(t)
		return ValueType{Kind: k, Rows: 1, Columns: 1}, err
	case ir.VectorType:
		k, err := scalarKind(t.Scalar)
		return ValueType{Kind: k, Rows: uint8(t.Size), Columns: 1}, err
	case ir.MatrixType:
		k, err := scalarKind(t.Scalar)
		return ValueType{Kind: k, Rows: uint8(t.Rows), Columns: uint8(t.Columns)}, err
	default:
		return ValueType{}, fmt.Errorf("unsupported type %T", t)
	}
}

func scalarKind(s ir.ScalarType) (ScalarKind, error) {
	if s.Width != 4 && s.Kind != ir.ScalarBool {
		return 0, fmt.Errorf("unsupported scalar width %d", s.Width)
	}
	switch s.Kind {
	case ir.ScalarFloat:
		return ScalarFloat, nil
	case ir.ScalarSint:
		return ScalarSint, nil
	case ir.ScalarUint:
		return ScalarUint, nil
	case ir.ScalarBool:
		return ScalarBool, nil
	default:
		return 0, fmt.Errorf("unsupported scalar kind %d", s.Kind)
	}
}
