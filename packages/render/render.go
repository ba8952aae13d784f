// Package render is the fixed-function side of the renderer: vertex formats,
// the vertex preprocessor, the immediate submission adapter and the emulated
// vertex buffer used when the backend has no buffer objects.
//
// Everything in this package except the kernel registry must be used from
// the thread that owns the graphics context.
package render

import (
	"errors"
	"fmt"
)

type PrimitiveMode byte

const (
	POINTS PrimitiveMode = iota
	LINES
	LINE_LOOP
	LINE_STRIP
	TRIANGLES
	TRIANGLE_STRIP
	TRIANGLE_FAN
)

func (m PrimitiveMode) String() string {
	switch m {
	case POINTS:
		return "points"
	case LINES:
		return "lines"
	case LINE_LOOP:
		return "line_loop"
	case LINE_STRIP:
		return "line_strip"
	case TRIANGLES:
		return "triangles"
	case TRIANGLE_STRIP:
		return "triangle_strip"
	case TRIANGLE_FAN:
		return "triangle_fan"
	}
	return fmt.Sprintf("primitive(%d)", byte(m))
}

// BufferFlags are hints for Write and Lock. Host memory ignores them.
type BufferFlags uint32

const (
	DiscardContents BufferFlags = 1 << iota
	NoOverwrite
)

// ErrBackend wraps every error reported by the graphics backend during a draw.
var ErrBackend = errors.New("render: backend error")

type Error string

func (e Error) Error() string {
	return string(e)
}

// Contract violations are programming errors, not recoverable conditions.
func chk(err error) {
	if err != nil {
		panic(err)
	}
}

func checkRange(offset, count, capacity int) {
	if offset < 0 || count < 0 || offset+count > capacity {
		chk(Error(fmt.Sprintf("render: range [%d, %d+%d) outside capacity %d", offset, offset, count, capacity)))
	}
}
