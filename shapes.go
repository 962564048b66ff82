package gg3d

import "github.com/go-gl/mathgl/mgl32"

// NewCube creates a white 2x2x2 cube centered on the origin: 36 vertices
// with face normals.
func NewCube(ctx *Context) (*Mesh, error) { return NewMesh(ctx, CubeData()) }

// NewPlane creates a gray 2x2 plane on y = 0 facing +Y.
func NewPlane(ctx *Context) (*Mesh, error) { return NewMesh(ctx, PlaneData()) }

// NewQuad creates a clip-space quad covering the viewport, with texture
// coordinates. It is drawn without a world transform.
func NewQuad(ctx *Context) (*Mesh, error) { return NewMesh(ctx, QuadData()) }

// CubeData returns the vertex data of NewCube.
func CubeData() MeshData {
	type face struct {
		normal mgl32.Vec3
		points [6]mgl32.Vec3
	}
	faces := []face{
		{mgl32.Vec3{0, 0, 1}, [6]mgl32.Vec3{{-1, -1, 1}, {1, 1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, -1, 1}, {-1, 1, 1}}},
		{mgl32.Vec3{0, 0, -1}, [6]mgl32.Vec3{{1, 1, -1}, {-1, -1, -1}, {1, -1, -1}, {-1, -1, -1}, {1, 1, -1}, {-1, 1, -1}}},
		{mgl32.Vec3{-1, 0, 0}, [6]mgl32.Vec3{{-1, 1, 1}, {-1, -1, -1}, {-1, 1, -1}, {-1, -1, -1}, {-1, 1, 1}, {-1, -1, 1}}},
		{mgl32.Vec3{1, 0, 0}, [6]mgl32.Vec3{{1, -1, -1}, {1, 1, 1}, {1, 1, -1}, {1, 1, 1}, {1, -1, -1}, {1, -1, 1}}},
		{mgl32.Vec3{0, 1, 0}, [6]mgl32.Vec3{{-1, 1, -1}, {1, 1, 1}, {-1, 1, 1}, {1, 1, 1}, {-1, 1, -1}, {1, 1, -1}}},
		{mgl32.Vec3{0, -1, 0}, [6]mgl32.Vec3{{1, -1, 1}, {-1, -1, -1}, {-1, -1, 1}, {-1, -1, -1}, {1, -1, 1}, {1, -1, -1}}},
	}
	d := MeshData{Color: mgl32.Vec3{1, 1, 1}}
	for _, f := range faces {
		for _, p := range f.points {
			d.Positions = append(d.Positions, p)
			d.Normals = append(d.Normals, f.normal)
		}
	}
	return d
}

// quadTexCoords map the two triangles of a quad so v grows downwards.
var quadTexCoords = []mgl32.Vec2{{0, 1}, {1, 0}, {0, 0}, {1, 0}, {0, 1}, {1, 1}}

// PlaneData returns the vertex data of NewPlane.
func PlaneData() MeshData {
	up := mgl32.Vec3{0, 1, 0}
	return MeshData{
		Positions: []mgl32.Vec3{{-1, 0, -1}, {1, 0, 1}, {-1, 0, 1}, {1, 0, 1}, {-1, 0, -1}, {1, 0, -1}},
		Normals:   []mgl32.Vec3{up, up, up, up, up, up},
		TexCoords: append([]mgl32.Vec2(nil), quadTexCoords...),
		Color:     mgl32.Vec3{0.5, 0.5, 0.5},
	}
}

// QuadData returns the vertex data of NewQuad.
func QuadData() MeshData {
	return MeshData{
		Positions: []mgl32.Vec3{{-1, -1, 0}, {1, 1, 0}, {-1, 1, 0}, {1, 1, 0}, {-1, -1, 0}, {1, -1, 0}},
		TexCoords: append([]mgl32.Vec2(nil), quadTexCoords...),
		Color:     mgl32.Vec3{1, 1, 1},
		ClipSpace: true,
	}
}
