package gg3d

import "sort"

// Capabilities is the immutable set of attribute and uniform names a
// program declares and references. Meshes consult it to decide which of
// their buffers and material values to bind.
type Capabilities struct {
	attributes map[string]struct{}
	uniforms   map[string]struct{}
}

func newCapabilities(attributes, uniforms []string) Capabilities {
	c := Capabilities{
		attributes: make(map[string]struct{}, len(attributes)),
		uniforms:   make(map[string]struct{}, len(uniforms)),
	}
	for _, n := range attributes {
		c.attributes[n] = struct{}{}
	}
	for _, n := range uniforms {
		c.uniforms[n] = struct{}{}
	}
	return c
}

// Has reports whether name is a declared attribute or uniform.
func (c Capabilities) Has(name string) bool {
	return c.HasAttribute(name) || c.HasUniform(name)
}

// HasAttribute reports whether name is a declared vertex attribute.
func (c Capabilities) HasAttribute(name string) bool {
	_, ok := c.attributes[name]
	return ok
}

// HasUniform reports whether name is a declared uniform, texture or sampler.
func (c Capabilities) HasUniform(name string) bool {
	_, ok := c.uniforms[name]
	return ok
}

// Attributes returns the attribute names, sorted.
func (c Capabilities) Attributes() []string { return sortedKeys(c.attributes) }

// Uniforms returns the uniform names, sorted.
func (c Capabilities) Uniforms() []string { return sortedKeys(c.uniforms) }

// Names returns every declared name, sorted.
func (c Capabilities) Names() []string {
	names := append(c.Attributes(), c.Uniforms()...)
	sort.Strings(names)
	return names
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
