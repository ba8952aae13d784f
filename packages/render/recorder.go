package render

import (
	"encoding/binary"
	"fmt"
	"math"

	mgl "github.com/go-gl/mathgl/mgl32"
)

// DrawnVertex is one vertex as the backend would have fetched it.
type DrawnVertex struct {
	Position  []float32
	Color     mgl.Vec4
	TexCoords []mgl.Vec2
}

type DrawCall struct {
	Mode    PrimitiveMode
	Indexed bool
	Indices []uint16
	// Vertices in submission order; for indexed draws one entry per index.
	Vertices []DrawnVertex
}

// RecordingPipeline is a headless Pipeline. It tracks client state the way
// a fixed-function driver does and decodes every draw call, so it can stand
// in for a real context in tests and in the headless demo.
type RecordingPipeline struct {
	// State calls in issue order, e.g. "enable texcoord@1".
	Calls []string
	Draws []DrawCall

	Projection mgl.Mat4
	// FailNext is returned once by the next Error call after a draw.
	FailNext error

	enabled  map[ClientArray]bool
	texUnits [MaxTexCoordUnits]bool
	active   int
	vertex   Stream
	color    Stream
	tex      [MaxTexCoordUnits]Stream
	pending  error
}

func NewRecordingPipeline() *RecordingPipeline {
	return &RecordingPipeline{enabled: map[ClientArray]bool{}}
}

func (p *RecordingPipeline) call(format string, args ...any) {
	p.Calls = append(p.Calls, fmt.Sprintf(format, args...))
}

// Enabled reports whether the client array is enabled; texcoord arrays are
// queried per unit.
func (p *RecordingPipeline) Enabled(a ClientArray, unit int) bool {
	if a == TexCoordArray {
		return p.texUnits[unit]
	}
	return p.enabled[a]
}

func (p *RecordingPipeline) ActiveTexture() int {
	return p.active
}

func (p *RecordingPipeline) Reset() {
	p.Calls = nil
	p.Draws = nil
}

func (p *RecordingPipeline) EnableClientState(a ClientArray) {
	p.call("enable %v@%d", a, p.active)
	if a == TexCoordArray {
		p.texUnits[p.active] = true
		return
	}
	p.enabled[a] = true
}

func (p *RecordingPipeline) DisableClientState(a ClientArray) {
	p.call("disable %v@%d", a, p.active)
	if a == TexCoordArray {
		p.texUnits[p.active] = false
		return
	}
	p.enabled[a] = false
}

func (p *RecordingPipeline) ClientActiveTexture(unit int) {
	if unit < 0 || unit >= MaxTexCoordUnits {
		p.pending = fmt.Errorf("invalid texture unit %d", unit)
		return
	}
	p.call("active %d", unit)
	p.active = unit
}

func (p *RecordingPipeline) VertexPointer(s Stream) {
	p.call("vertex pointer size=%d", s.Size)
	p.vertex = s
}

func (p *RecordingPipeline) ColorPointer(s Stream) {
	p.call("color pointer size=%d", s.Size)
	p.color = s
}

func (p *RecordingPipeline) TexCoordPointer(s Stream) {
	p.call("texcoord pointer@%d", p.active)
	p.tex[p.active] = s
}

func (p *RecordingPipeline) LoadProjection(m mgl.Mat4) {
	p.call("projection")
	p.Projection = m
}

func (p *RecordingPipeline) DrawArrays(mode PrimitiveMode, first, count int) {
	p.call("draw arrays %v %d %d", mode, first, count)
	dc := DrawCall{Mode: mode}
	for i := first; i < first+count; i++ {
		dc.Vertices = append(dc.Vertices, p.fetch(i))
	}
	p.Draws = append(p.Draws, dc)
	p.drawn()
}

func (p *RecordingPipeline) DrawElements(mode PrimitiveMode, indices []uint16) {
	p.call("draw elements %v %d", mode, len(indices))
	dc := DrawCall{Mode: mode, Indexed: true, Indices: append([]uint16(nil), indices...)}
	for _, idx := range indices {
		dc.Vertices = append(dc.Vertices, p.fetch(int(idx)))
	}
	p.Draws = append(p.Draws, dc)
	p.drawn()
}

func (p *RecordingPipeline) drawn() {
	if p.FailNext != nil && p.pending == nil {
		p.pending = p.FailNext
		p.FailNext = nil
	}
}

func (p *RecordingPipeline) Error() error {
	err := p.pending
	p.pending = nil
	return err
}

func (p *RecordingPipeline) fetch(i int) DrawnVertex {
	var v DrawnVertex
	if p.enabled[VertexArray] {
		v.Position = readFloats(p.vertex, i)
	}
	if p.enabled[ColorArray] {
		copy(v.Color[:], readFloats(p.color, i))
	}
	for unit, on := range p.texUnits {
		if !on {
			break
		}
		var uv mgl.Vec2
		copy(uv[:], readFloats(p.tex[unit], i))
		v.TexCoords = append(v.TexCoords, uv)
	}
	return v
}

func readFloats(s Stream, i int) []float32 {
	out := make([]float32, s.Size)
	off := i * s.Stride
	for c := range out {
		out[c] = math.Float32frombits(binary.LittleEndian.Uint32(s.Data[off+4*c:]))
	}
	return out
}
