// Package glfixed implements the render pipeline on the OpenGL 2.1
// compatibility profile using client-side vertex arrays.
//
// A GL context must be current on the calling thread before New is called,
// and every method must be called from that thread.
package glfixed

import (
	"fmt"
	"log/slog"
	"runtime"
	"unsafe"

	"github.com/go-gl/gl/v2.1/gl"
	mgl "github.com/go-gl/mathgl/mgl32"
	"github.com/leonkasovan/ffrender/packages/render"
)

type Pipeline_GL21 struct {
	stages []*TextureStage_GL
	log    *slog.Logger

	// Client arrays are read by the driver at draw time, so the streams stay
	// pinned from the *Pointer call until the draw returns.
	pinner runtime.Pinner
	pinned int
}

var _ render.Pipeline = (*Pipeline_GL21)(nil)

func New(log *slog.Logger) (*Pipeline_GL21, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("glfixed: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	log.Info("OpenGL context",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
		"vendor", gl.GoStr(gl.GetString(gl.VENDOR)))

	var units int32
	gl.GetIntegerv(gl.MAX_TEXTURE_UNITS, &units)
	if units < render.MaxTexCoordUnits {
		return nil, fmt.Errorf("glfixed: need %d texture units, context has %d", render.MaxTexCoordUnits, units)
	}
	p := &Pipeline_GL21{log: log}
	for i := 0; i < render.MaxTexCoordUnits; i++ {
		p.stages = append(p.stages, newTextureStage(uint32(i)))
	}
	return p, nil
}

func (p *Pipeline_GL21) GetName() string {
	return "OpenGL 2.1"
}

// TextureStage returns the combiner state of texture unit i.
func (p *Pipeline_GL21) TextureStage(i int) render.TextureStage {
	return p.stages[i]
}

var clientArrayLUT = map[render.ClientArray]uint32{
	render.VertexArray:   gl.VERTEX_ARRAY,
	render.ColorArray:    gl.COLOR_ARRAY,
	render.TexCoordArray: gl.TEXTURE_COORD_ARRAY,
}

func (p *Pipeline_GL21) MapPrimitiveMode(i render.PrimitiveMode) uint32 {
	var PrimitiveModeLUT = map[render.PrimitiveMode]uint32{
		render.POINTS:         gl.POINTS,
		render.LINES:          gl.LINES,
		render.LINE_LOOP:      gl.LINE_LOOP,
		render.LINE_STRIP:     gl.LINE_STRIP,
		render.TRIANGLES:      gl.TRIANGLES,
		render.TRIANGLE_STRIP: gl.TRIANGLE_STRIP,
		render.TRIANGLE_FAN:   gl.TRIANGLE_FAN,
	}
	return PrimitiveModeLUT[i]
}

func (p *Pipeline_GL21) EnableClientState(a render.ClientArray) {
	gl.EnableClientState(clientArrayLUT[a])
}

func (p *Pipeline_GL21) DisableClientState(a render.ClientArray) {
	gl.DisableClientState(clientArrayLUT[a])
}

func (p *Pipeline_GL21) ClientActiveTexture(unit int) {
	gl.ClientActiveTexture(uint32(gl.TEXTURE0 + unit))
}

// pin keeps the memory behind s in place until unpin and returns its
// address.
func (p *Pipeline_GL21) pin(s render.Stream) unsafe.Pointer {
	ptr := unsafe.Pointer(&s.Data[0])
	p.pinner.Pin(ptr)
	p.pinned++
	return ptr
}

func (p *Pipeline_GL21) unpin() {
	p.pinner.Unpin()
	p.pinned = 0
}

func (p *Pipeline_GL21) VertexPointer(s render.Stream) {
	gl.VertexPointer(int32(s.Size), gl.FLOAT, int32(s.Stride), p.pin(s))
}

func (p *Pipeline_GL21) ColorPointer(s render.Stream) {
	gl.ColorPointer(int32(s.Size), gl.FLOAT, int32(s.Stride), p.pin(s))
}

func (p *Pipeline_GL21) TexCoordPointer(s render.Stream) {
	gl.TexCoordPointer(int32(s.Size), gl.FLOAT, int32(s.Stride), p.pin(s))
}

func (p *Pipeline_GL21) LoadProjection(m mgl.Mat4) {
	gl.MatrixMode(gl.PROJECTION)
	gl.LoadMatrixf(&m[0])
	gl.MatrixMode(gl.MODELVIEW)
}

func (p *Pipeline_GL21) applyStages() {
	off := false
	for _, s := range p.stages {
		s.apply(off)
		off = off || s.off()
	}
}

func (p *Pipeline_GL21) DrawArrays(mode render.PrimitiveMode, first, count int) {
	defer p.unpin()
	p.applyStages()
	gl.DrawArrays(p.MapPrimitiveMode(mode), int32(first), int32(count))
}

func (p *Pipeline_GL21) DrawElements(mode render.PrimitiveMode, indices []uint16) {
	defer p.unpin()
	p.applyStages()
	gl.DrawElements(p.MapPrimitiveMode(mode), int32(len(indices)), gl.UNSIGNED_SHORT, gl.Ptr(indices))
}

// Error drains the GL error queue and reports the first error.
func (p *Pipeline_GL21) Error() error {
	first := uint32(gl.NO_ERROR)
	for {
		e := gl.GetError()
		if e == gl.NO_ERROR {
			break
		}
		if first == gl.NO_ERROR {
			first = e
		}
	}
	if first != gl.NO_ERROR {
		return fmt.Errorf("glfixed: GL error 0x%x", first)
	}
	return nil
}
