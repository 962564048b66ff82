package gg3d

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gg3d/internal/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// MeshData is the vertex data of a non-indexed triangle list.
// Normals and TexCoords are optional; when present they must have one
// entry per position.
type MeshData struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	TexCoords []mgl32.Vec2
	// Color is the initial diffuse material.
	Color mgl32.Vec3
	// ClipSpace meshes are drawn without a world transform.
	ClipSpace bool
}

// Mesh is drawable geometry with a transform and a material.
//
// Vertex data is uploaded once, one buffer per attribute. Render binds only
// what the active program declares, so the same mesh draws under a depth,
// diffuse, shadowed, textured or blit program.
type Mesh struct {
	// Position, Rotation (Euler angles in radians) and Scale build the
	// world transform on every render.
	Position mgl32.Vec3
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3

	// Color is the diffuse material.
	Color mgl32.Vec3

	// Texture is bound to u_texture when set.
	Texture TextureSource

	ctx       *Context
	vertices  uint32
	clipSpace bool

	positions hal.Buffer
	normals   hal.Buffer
	texCoords hal.Buffer
}

// NewMesh validates data and uploads it.
func NewMesh(ctx *Context, data MeshData) (*Mesh, error) {
	n := len(data.Positions)
	if n == 0 || n%3 != 0 {
		return nil, fmt.Errorf("%w: %d positions is not a triangle list", ErrMeshData, n)
	}
	if data.Normals != nil && len(data.Normals) != n {
		return nil, fmt.Errorf("%w: %d normals for %d positions", ErrMeshData, len(data.Normals), n)
	}
	if data.TexCoords != nil && len(data.TexCoords) != n {
		return nil, fmt.Errorf("%w: %d texture coordinates for %d positions", ErrMeshData, len(data.TexCoords), n)
	}

	m := &Mesh{
		Scale:     mgl32.Vec3{1, 1, 1},
		Color:     data.Color,
		ctx:       ctx,
		vertices:  uint32(n),
		clipSpace: data.ClipSpace,
	}
	var err error
	if m.positions, err = m.upload("mesh_positions", flatten3(data.Positions)); err != nil {
		return nil, err
	}
	if data.Normals != nil {
		if m.normals, err = m.upload("mesh_normals", flatten3(data.Normals)); err != nil {
			m.Destroy()
			return nil, err
		}
	}
	if data.TexCoords != nil {
		if m.texCoords, err = m.upload("mesh_texcoords", flatten2(data.TexCoords)); err != nil {
			m.Destroy()
			return nil, err
		}
	}
	return m, nil
}

func (m *Mesh) upload(label string, values []float32) (hal.Buffer, error) {
	return gpu.CreateBufferWithData(m.ctx.device, m.ctx.queue, label,
		gputypes.BufferUsageVertex, gpu.Float32Bytes(values))
}

// VertexCount returns the number of vertices drawn by Render.
func (m *Mesh) VertexCount() uint32 { return m.vertices }

// WorldMatrix returns translate(Position) * rotZ * rotX * rotY * scale(Scale).
// The order matches the coursework scenes and must not change.
func (m *Mesh) WorldMatrix() mgl32.Mat4 {
	return mgl32.Translate3D(m.Position[0], m.Position[1], m.Position[2]).
		Mul4(mgl32.HomogRotate3DZ(m.Rotation[2])).
		Mul4(mgl32.HomogRotate3DX(m.Rotation[0])).
		Mul4(mgl32.HomogRotate3DY(m.Rotation[1])).
		Mul4(mgl32.Scale3D(m.Scale[0], m.Scale[1], m.Scale[2]))
}

// Render draws the mesh with the draw context's program.
func (m *Mesh) Render(dc *DrawContext) error {
	caps := dc.Capabilities()

	dc.SetAttribute("a_position", m.positions, gputypes.VertexFormatFloat32x3)
	if caps.Has("a_normal") && m.normals != nil {
		dc.SetAttribute("a_normal", m.normals, gputypes.VertexFormatFloat32x3)
	}
	if caps.Has("a_texcoords") && m.texCoords != nil {
		dc.SetAttribute("a_texcoords", m.texCoords, gputypes.VertexFormatFloat32x2)
	}

	if !m.clipSpace {
		world := m.WorldMatrix()
		dc.SetUniform("u_worldMatrix", world)
		if caps.Has("u_normalMatrix") {
			dc.SetUniform("u_normalMatrix", NormalMatrix(world))
		}
	}
	if caps.Has("u_diffuseMaterial") {
		dc.SetUniform("u_diffuseMaterial", m.Color)
	}
	if caps.Has("u_texture") && m.Texture != nil {
		dc.SetTexture("u_texture", m.Texture)
	}
	return dc.Draw(m.vertices)
}

// Destroy releases the vertex buffers.
func (m *Mesh) Destroy() {
	for _, b := range []*hal.Buffer{&m.texCoords, &m.normals, &m.positions} {
		if *b != nil {
			m.ctx.device.DestroyBuffer(*b)
			*b = nil
		}
	}
}

func flatten3(vs []mgl32.Vec3) []float32 {
	out := make([]float32, 0, len(vs)*3)
	for _, v := range vs {
		out = append(out, v[0], v[1], v[2])
	}
	return out
}

func flatten2(vs []mgl32.Vec2) []float32 {
	out := make([]float32, 0, len(vs)*2)
	for _, v := range vs {
		out = append(out, v[0], v[1])
	}
	return out
}
