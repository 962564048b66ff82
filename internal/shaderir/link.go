package shaderir

import (
	"fmt"
	"sort"
	"strings"
)

// Layout is the merged interface of a linked vertex/fragment pair.
type Layout struct {
	// Attributes are the vertex inputs the vertex stage references.
	Attributes []Varying

	// Streams are all declared vertex inputs. The pipeline must feed
	// each of them even when the stage never reads it.
	Streams []Varying

	// Resources are the bindings referenced by either stage, ordered by
	// binding. Stages records which stages see each one.
	Resources []Resource

	// Targets are the fragment color outputs.
	Targets []Varying

	VertexEntry   string
	FragmentEntry string
}

// Compile reflects both stages and links them.
func Compile(vertexSource, fragmentSource string) (*Layout, error) {
	vs, vsDeclared, err := Reflect(StageVertex, vertexSource)
	if err != nil {
		return nil, err
	}
	fs, _, err := Reflect(StageFragment, fragmentSource)
	if err != nil {
		return nil, err
	}
	return Link(vs, vsDeclared, fs)
}

// Link checks that the vertex outputs satisfy every fragment input and
// that resources shared between the stages agree, then merges them.
func Link(vs, vsDeclared, fs *Interface) (*Layout, error) {
	var problems []string

	outputs := make(map[uint32]Varying, len(vs.Outputs))
	for _, o := range vs.Outputs {
		outputs[o.Location] = o
	}
	for _, in := range fs.Inputs {
		out, ok := outputs[in.Location]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("fragment input %q at location %d has no vertex output", in.Name, in.Location))
		case out.Type != in.Type:
			problems = append(problems, fmt.Sprintf("location %d: vertex writes %s, fragment reads %s", in.Location, out.Type, in.Type))
		}
	}

	byName := map[string]int{}
	byBinding := map[uint32]int{}
	var resources []Resource
	add := func(r Resource) {
		if r.Group != 0 {
			problems = append(problems, fmt.Sprintf("%q uses group %d; only group 0 is supported", r.Name, r.Group))
			return
		}
		if i, ok := byName[r.Name]; ok {
			prev := &resources[i]
			if prev.Binding != r.Binding || prev.Class != r.Class || prev.Type != r.Type || prev.Size != r.Size {
				problems = append(problems, fmt.Sprintf("%q is declared differently in the two stages", r.Name))
				return
			}
			prev.Stages |= r.Stages
			return
		}
		if i, ok := byBinding[r.Binding]; ok {
			problems = append(problems, fmt.Sprintf("%q and %q share binding %d", resources[i].Name, r.Name, r.Binding))
			return
		}
		byName[r.Name] = len(resources)
		byBinding[r.Binding] = len(resources)
		resources = append(resources, r)
	}
	for _, r := range vs.Resources {
		add(r)
	}
	for _, r := range fs.Resources {
		add(r)
	}

	if len(problems) > 0 {
		return nil, &Diagnostic{Stage: "link", Log: strings.Join(problems, "\n")}
	}
	sort.Slice(resources, func(i, j int) bool { return resources[i].Binding < resources[j].Binding })

	streams := vs.Inputs
	if vsDeclared != nil {
		streams = vsDeclared.Inputs
	}
	return &Layout{
		Attributes: vs.Inputs,
		Streams:    streams,
		Resources:  resources,
		Targets:    fs.Outputs,

		VertexEntry:   vs.EntryPoint,
		FragmentEntry: fs.EntryPoint,
	}, nil
}
