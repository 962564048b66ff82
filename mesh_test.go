package gg3d

import (
	"errors"
	"math"
	"reflect"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

// recordFrame renders meshes with program into a small offscreen target
// and returns every recorded draw.
func recordFrame(t *testing.T, ctx *Context, program *Program, pass *Pass, meshes ...*Mesh) []DrawInfo {
	t.Helper()
	if pass == nil {
		pass = &Pass{Name: "main", Kind: PassMain}
	}
	pass.Program = program
	pass.Meshes = meshes
	if pass.Target == nil {
		pass.Target = mustTarget(t, ctx, 16, 16)
	}
	seq, err := NewFrameSequencer(ctx, pass)
	if err != nil {
		t.Fatalf("NewFrameSequencer failed: %v", err)
	}
	var draws []DrawInfo
	seq.OnDraw(func(d DrawInfo) { draws = append(draws, d) })
	if err := seq.RenderFrame(nil); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
	return draws
}

func TestCubeUnderPositionOnlyProgram(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := mustCompile(t, ctx, "position_only", positionOnlyVS, whiteFS)

	cube, err := NewCube(ctx)
	if err != nil {
		t.Fatalf("NewCube failed: %v", err)
	}
	defer cube.Destroy()
	cube.Position = mgl32.Vec3{2, 1, -2}

	draws := recordFrame(t, ctx, p, nil, cube)
	if len(draws) != 1 {
		t.Fatalf("got %d draws, want 1", len(draws))
	}
	d := draws[0]
	if d.Vertices != 36 {
		t.Errorf("Vertices = %d, want 36", d.Vertices)
	}
	if want := []string{"a_position"}; !reflect.DeepEqual(d.Attributes, want) {
		t.Errorf("streamed attributes = %v, want %v", d.Attributes, want)
	}
	world, ok := d.Uniforms["u_worldMatrix"].(mgl32.Mat4)
	if !ok {
		t.Fatalf("u_worldMatrix not set: %v", d.Uniforms)
	}
	if want := mgl32.Translate3D(2, 1, -2); !approx(world[:], want[:]) {
		t.Errorf("u_worldMatrix = %v, want %v", world, want)
	}
	for _, name := range []string{"u_normalMatrix", "u_diffuseMaterial"} {
		if _, ok := d.Uniforms[name]; ok {
			t.Errorf("%s set although the program does not declare it", name)
		}
	}
}

func TestNormalMatrixOnlyWhenDeclared(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := mustCompile(t, ctx, "normal", normalVS, normalFS)

	cube, err := NewCube(ctx)
	if err != nil {
		t.Fatalf("NewCube failed: %v", err)
	}
	defer cube.Destroy()
	cube.Scale = mgl32.Vec3{2, 1, 1}

	draws := recordFrame(t, ctx, p, nil, cube)
	if len(draws) != 1 {
		t.Fatalf("got %d draws, want 1", len(draws))
	}
	nm, ok := draws[0].Uniforms["u_normalMatrix"].(mgl32.Mat3)
	if !ok {
		t.Fatal("u_normalMatrix not set")
	}
	if want := NormalMatrix(cube.WorldMatrix()); !approx(nm[:], want[:]) {
		t.Errorf("u_normalMatrix = %v, want %v", nm, want)
	}
	if got, want := draws[0].Attributes, []string{"a_normal", "a_position"}; !reflect.DeepEqual(slices.Sorted(slices.Values(got)), want) {
		t.Errorf("streamed = %v, want %v", got, want)
	}
}

func TestMeshWithoutNormalsStillDraws(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := mustCompile(t, ctx, "normal", normalVS, normalFS)

	m, err := NewMesh(ctx, MeshData{Positions: CubeData().Positions})
	if err != nil {
		t.Fatalf("NewMesh failed: %v", err)
	}
	defer m.Destroy()

	draws := recordFrame(t, ctx, p, nil, m)
	if len(draws) != 1 {
		t.Fatalf("got %d draws, want 1", len(draws))
	}
	for _, a := range draws[0].Attributes {
		if a == "a_normal" {
			t.Error("a_normal streamed from a mesh without normals")
		}
	}
}

func TestQuadHasNoWorldMatrix(t *testing.T) {
	ctx, _ := newTestContext(t)
	p := mustCompile(t, ctx, "position_only", positionOnlyVS, whiteFS)

	quad, err := NewQuad(ctx)
	if err != nil {
		t.Fatalf("NewQuad failed: %v", err)
	}
	defer quad.Destroy()

	draws := recordFrame(t, ctx, p, nil, quad)
	if len(draws) != 1 {
		t.Fatalf("got %d draws, want 1", len(draws))
	}
	if draws[0].Vertices != 6 {
		t.Errorf("Vertices = %d, want 6", draws[0].Vertices)
	}
	if _, ok := draws[0].Uniforms["u_worldMatrix"]; ok {
		t.Error("quad set u_worldMatrix")
	}
}

func TestWorldMatrixOrder(t *testing.T) {
	m := &Mesh{
		Position: mgl32.Vec3{1, 2, 3},
		Rotation: mgl32.Vec3{0.3, 0.5, 0.7},
		Scale:    mgl32.Vec3{2, 3, 4},
	}
	want := mgl32.Translate3D(1, 2, 3).
		Mul4(mgl32.HomogRotate3DZ(0.7)).
		Mul4(mgl32.HomogRotate3DX(0.3)).
		Mul4(mgl32.HomogRotate3DY(0.5)).
		Mul4(mgl32.Scale3D(2, 3, 4))
	if got := m.WorldMatrix(); !approx(got[:], want[:]) {
		t.Errorf("WorldMatrix = %v, want %v", got, want)
	}

	// A quarter turn about Y takes +X to -Z before the translation.
	m = &Mesh{Rotation: mgl32.Vec3{0, math.Pi / 2, 0}, Scale: mgl32.Vec3{1, 1, 1}}
	p := m.WorldMatrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !approx(p[:], []float32{0, 0, -1, 1}) {
		t.Errorf("rotated +X = %v, want (0, 0, -1)", p)
	}
}

func TestNewMeshRejectsMismatchedData(t *testing.T) {
	ctx, g := newTestContext(t)
	before := g.device.buffers.Load()

	tests := []struct {
		name string
		data MeshData
	}{
		{"empty", MeshData{}},
		{"not triangles", MeshData{Positions: make([]mgl32.Vec3, 4)}},
		{"normals", MeshData{Positions: make([]mgl32.Vec3, 3), Normals: make([]mgl32.Vec3, 2)}},
		{"texcoords", MeshData{Positions: make([]mgl32.Vec3, 6), TexCoords: make([]mgl32.Vec2, 3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMesh(ctx, tt.data); !errors.Is(err, ErrMeshData) {
				t.Errorf("NewMesh error = %v, want ErrMeshData", err)
			}
		})
	}
	if g.device.buffers.Load() != before {
		t.Error("rejected mesh data allocated buffers")
	}
}

func TestShapeData(t *testing.T) {
	tests := []struct {
		name      string
		data      MeshData
		vertices  int
		normals   bool
		texCoords bool
		clip      bool
	}{
		{"cube", CubeData(), 36, true, false, false},
		{"plane", PlaneData(), 6, true, true, false},
		{"quad", QuadData(), 6, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(tt.data.Positions); got != tt.vertices {
				t.Errorf("positions = %d, want %d", got, tt.vertices)
			}
			if (tt.data.Normals != nil) != tt.normals {
				t.Errorf("normals present = %v, want %v", tt.data.Normals != nil, tt.normals)
			}
			if (tt.data.TexCoords != nil) != tt.texCoords {
				t.Errorf("texcoords present = %v, want %v", tt.data.TexCoords != nil, tt.texCoords)
			}
			if tt.data.ClipSpace != tt.clip {
				t.Errorf("ClipSpace = %v, want %v", tt.data.ClipSpace, tt.clip)
			}
		})
	}
}

func TestCubeNormalsFaceOutward(t *testing.T) {
	data := CubeData()
	for i := 0; i < len(data.Positions); i += 3 {
		a, b, c := data.Positions[i], data.Positions[i+1], data.Positions[i+2]
		center := a.Add(b).Add(c).Mul(1.0 / 3)
		n := data.Normals[i]
		if center.Dot(n) <= 0 {
			t.Errorf("triangle %d: normal %v points inward", i/3, n)
		}
	}
}
