package render

import (
	"fmt"
	"unsafe"

	mgl "github.com/go-gl/mathgl/mgl32"
)

// TransformedVertex is a pre-transformed screen-space vertex with a single
// texture coordinate. Rhw must directly follow P in memory.
type TransformedVertex struct {
	P     mgl.Vec3
	Rhw   float32
	Color uint32 // 0xAARRGGBB
	UV    mgl.Vec2

	// Filled in by Preprocess on every draw.
	Clip mgl.Vec4
	RGBA mgl.Vec4
}

// LitVertex is a world-space vertex with a single texture coordinate.
type LitVertex struct {
	P     mgl.Vec3
	Color uint32
	UV    mgl.Vec2

	RGBA mgl.Vec4
}

// LitVertex3 is a world-space vertex with three texture coordinates.
type LitVertex3 struct {
	P     mgl.Vec3
	Color uint32
	UV    [3]mgl.Vec2

	RGBA mgl.Vec4
}

// Vertex is the closed set of vertex records the renderer can submit.
type Vertex interface {
	TransformedVertex | LitVertex | LitVertex3
}

type VertexKind int

const (
	VertexTransformed VertexKind = iota
	VertexLit
	VertexLit3
	numVertexKinds
)

func (k VertexKind) String() string {
	if k >= 0 && k < numVertexKinds {
		return vertexFormats[k].name
	}
	return fmt.Sprintf("VertexKind(%d)", int(k))
}

// TexCoordUnits returns how many texture-coordinate streams the kind binds.
func (k VertexKind) TexCoordUnits() int {
	return len(k.format().texCoords)
}

func (k VertexKind) format() *vertexFormat {
	if k < 0 || k >= numVertexKinds {
		chk(Error(fmt.Sprintf("render: unsupported vertex kind %d", int(k))))
	}
	return &vertexFormats[k]
}

func KindOf[V Vertex]() VertexKind {
	var v V
	switch any(v).(type) {
	case TransformedVertex:
		return VertexTransformed
	case LitVertex:
		return VertexLit
	case LitVertex3:
		return VertexLit3
	}
	panic("unreachable")
}

// vertexFormat describes where each attribute lives inside one record.
type vertexFormat struct {
	name   string
	stride uintptr

	color uintptr // packed uint32
	rgba  uintptr // unpacked mgl.Vec4

	// rhw kinds divide position (x, y, z, rhw at `position`) into `clip`.
	rhw      bool
	position uintptr
	clip     uintptr

	// Stream bound as the vertex array.
	vertex     uintptr
	vertexSize int

	texCoords []uintptr
}

var vertexFormats = [numVertexKinds]vertexFormat{
	VertexTransformed: {
		name:       "transformed",
		stride:     unsafe.Sizeof(TransformedVertex{}),
		color:      unsafe.Offsetof(TransformedVertex{}.Color),
		rgba:       unsafe.Offsetof(TransformedVertex{}.RGBA),
		rhw:        true,
		position:   unsafe.Offsetof(TransformedVertex{}.P),
		clip:       unsafe.Offsetof(TransformedVertex{}.Clip),
		vertex:     unsafe.Offsetof(TransformedVertex{}.Clip),
		vertexSize: 4,
		texCoords:  []uintptr{unsafe.Offsetof(TransformedVertex{}.UV)},
	},
	VertexLit: {
		name:       "lit",
		stride:     unsafe.Sizeof(LitVertex{}),
		color:      unsafe.Offsetof(LitVertex{}.Color),
		rgba:       unsafe.Offsetof(LitVertex{}.RGBA),
		position:   unsafe.Offsetof(LitVertex{}.P),
		vertex:     unsafe.Offsetof(LitVertex{}.P),
		vertexSize: 3,
		texCoords:  []uintptr{unsafe.Offsetof(LitVertex{}.UV)},
	},
	VertexLit3: {
		name:       "lit3",
		stride:     unsafe.Sizeof(LitVertex3{}),
		color:      unsafe.Offsetof(LitVertex3{}.Color),
		rgba:       unsafe.Offsetof(LitVertex3{}.RGBA),
		position:   unsafe.Offsetof(LitVertex3{}.P),
		vertex:     unsafe.Offsetof(LitVertex3{}.P),
		vertexSize: 3,
		texCoords: []uintptr{
			unsafe.Offsetof(LitVertex3{}.UV),
			unsafe.Offsetof(LitVertex3{}.UV) + unsafe.Sizeof(mgl.Vec2{}),
			unsafe.Offsetof(LitVertex3{}.UV) + 2*unsafe.Sizeof(mgl.Vec2{}),
		},
	},
}

func init() {
	var v TransformedVertex
	if unsafe.Offsetof(v.Rhw) != unsafe.Offsetof(v.P)+unsafe.Sizeof(v.P) {
		panic("render: TransformedVertex.Rhw must follow P")
	}
}
