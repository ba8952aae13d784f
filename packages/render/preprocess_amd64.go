//go:build amd64 && !purego

package render

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

func init() {
	registerKernel(&kernel{
		name:      "sse2",
		priority:  10,
		available: func() bool { return cpu.X86.HasSSE2 },
		colors:    unpackColorsSSE2,
		divide:    perspectiveDivideSSE2,
	})
}

//go:noescape
func unpackColorsSSE2(dst unsafe.Pointer, dstStride uintptr, src unsafe.Pointer, srcStride uintptr, n int)

//go:noescape
func perspectiveDivideSSE2(dst unsafe.Pointer, dstStride uintptr, src unsafe.Pointer, srcStride uintptr, n int)
