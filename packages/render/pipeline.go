package render

import (
	"fmt"

	mgl "github.com/go-gl/mathgl/mgl32"
)

type ClientArray int

const (
	VertexArray ClientArray = iota
	ColorArray
	TexCoordArray
)

func (a ClientArray) String() string {
	switch a {
	case VertexArray:
		return "vertex"
	case ColorArray:
		return "color"
	case TexCoordArray:
		return "texcoord"
	}
	return fmt.Sprintf("ClientArray(%d)", int(a))
}

// MaxTexCoordUnits is the number of texture units a vertex kind can feed.
const MaxTexCoordUnits = 3

// Stream is a zero-copy view of one float attribute inside a vertex range.
// Data starts at the first element; elements are Stride bytes apart and
// each holds Size float32 components in native byte order.
type Stream struct {
	Size   int
	Stride int
	Data   []byte
}

// Pipeline is a fixed-function backend that sources vertex attributes from
// client memory. Pointers bound with the *Pointer calls stay valid until the
// next draw call returns.
type Pipeline interface {
	EnableClientState(a ClientArray)
	DisableClientState(a ClientArray)
	// ClientActiveTexture selects the unit TexCoordPointer and the texcoord
	// client state calls apply to.
	ClientActiveTexture(unit int)
	VertexPointer(s Stream)
	ColorPointer(s Stream)
	TexCoordPointer(s Stream)
	LoadProjection(m mgl.Mat4)
	DrawArrays(mode PrimitiveMode, first, count int)
	DrawElements(mode PrimitiveMode, indices []uint16)
	// Error returns and clears the first pending backend error.
	Error() error
}

// TexCoordState mirrors the texture-coordinate client arrays enabled on the
// backend. Unit 0 is the base unit and stays enabled between draws; units
// above it must be disabled again by the draw call that enabled them.
type TexCoordState struct {
	enabled [MaxTexCoordUnits]bool
	active  int
}

func (s *TexCoordState) Enabled(unit int) bool {
	return s.enabled[unit]
}

// Extra returns the number of units above 0 that are enabled.
func (s *TexCoordState) Extra() int {
	n := 0
	for _, e := range s.enabled[1:] {
		if e {
			n++
		}
	}
	return n
}

func (s *TexCoordState) Active() int {
	return s.active
}

func (s *TexCoordState) activate(p Pipeline, unit int) {
	if s.active != unit {
		s.active = unit
		p.ClientActiveTexture(unit)
	}
}

// enable binds texcoord streams for units [0, len(streams)) and returns the
// units above 0 that this call switched on, highest first.
func (s *TexCoordState) enable(p Pipeline, streams []Stream) (extra []int) {
	for unit := len(streams) - 1; unit >= 0; unit-- {
		s.activate(p, unit)
		if !s.enabled[unit] {
			s.enabled[unit] = true
			p.EnableClientState(TexCoordArray)
			if unit > 0 {
				extra = append(extra, unit)
			}
		}
		p.TexCoordPointer(streams[unit])
	}
	return extra
}

// disable switches off exactly the units returned by enable and leaves
// unit 0 client-active.
func (s *TexCoordState) disable(p Pipeline, units []int) {
	for _, unit := range units {
		s.activate(p, unit)
		s.enabled[unit] = false
		p.DisableClientState(TexCoordArray)
	}
	s.activate(p, 0)
}
