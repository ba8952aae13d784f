package render

import (
	"fmt"
	"sort"
	"unsafe"

	mgl "github.com/go-gl/mathgl/mgl32"
)

// inv255 is 1/255 rounded to float32 (0x3B808081). The assembly kernels load
// the same bit pattern.
const inv255 = float32(1.0 / 255.0)

// kernel operates on strided attribute views. dst and src point at the first
// element, consecutive elements are stride bytes apart.
type kernel struct {
	name string
	// Higher wins for "auto".
	priority int
	// Reports whether the running CPU can execute the kernel.
	available func() bool

	// dst: mgl.Vec4 RGBA, src: uint32 0xAARRGGBB.
	colors func(dst unsafe.Pointer, dstStride uintptr, src unsafe.Pointer, srcStride uintptr, n int)
	// dst: mgl.Vec4 clip position, src: x, y, z, rhw.
	divide func(dst unsafe.Pointer, dstStride uintptr, src unsafe.Pointer, srcStride uintptr, n int)
}

var kernels = map[string]*kernel{}

// not designed to be thread safe, called from init only
func registerKernel(k *kernel) {
	if _, ok := kernels[k.name]; ok {
		panic("render: kernel registered twice: " + k.name)
	}
	kernels[k.name] = k
}

func init() {
	registerKernel(&kernel{
		name:      "scalar",
		available: func() bool { return true },
		colors:    unpackColorsScalar,
		divide:    perspectiveDivideScalar,
	})
}

// Kernels lists the kernels usable on this machine, best first.
func Kernels() []string {
	var ks []*kernel
	for _, k := range kernels {
		if k.available() {
			ks = append(ks, k)
		}
	}
	sort.Slice(ks, func(i, j int) bool {
		if ks[i].priority != ks[j].priority {
			return ks[i].priority > ks[j].priority
		}
		return ks[i].name < ks[j].name
	})
	names := make([]string, len(ks))
	for i, k := range ks {
		names[i] = k.name
	}
	return names
}

// Preprocessor is the vertex preprocessing strategy chosen at startup.
// The zero value uses the scalar kernel.
type Preprocessor struct {
	k *kernel
}

// NewPreprocessor selects a kernel by name. "auto" or "" picks the best
// kernel available on this CPU.
func NewPreprocessor(name string) (Preprocessor, error) {
	if name == "" || name == "auto" {
		return Preprocessor{k: kernels[Kernels()[0]]}, nil
	}
	k, ok := kernels[name]
	if !ok {
		return Preprocessor{}, fmt.Errorf("render: unknown preprocessing kernel %q", name)
	}
	if !k.available() {
		return Preprocessor{}, fmt.Errorf("render: kernel %q is not supported by this CPU", name)
	}
	return Preprocessor{k: k}, nil
}

func (p Preprocessor) kernel() *kernel {
	if p.k == nil {
		return kernels["scalar"]
	}
	return p.k
}

func (p Preprocessor) Name() string {
	return p.kernel().name
}

// Preprocess recomputes the derived fields of vs[offset:offset+count] in
// place: RGBA from the packed color and, for transformed vertices, the clip
// position (x/rhw, y/rhw, z/rhw, 1/rhw).
func Preprocess[V Vertex](p Preprocessor, vs []V, offset, count int) {
	checkRange(offset, count, len(vs))
	if count == 0 {
		return
	}
	f := KindOf[V]().format()
	k := p.kernel()
	base := unsafe.Pointer(&vs[offset])
	k.colors(unsafe.Add(base, f.rgba), f.stride, unsafe.Add(base, f.color), f.stride, count)
	if f.rhw {
		k.divide(unsafe.Add(base, f.clip), f.stride, unsafe.Add(base, f.position), f.stride, count)
	}
}

// UnpackColor converts a packed 0xAARRGGBB color to normalized RGBA.
func UnpackColor(c uint32) mgl.Vec4 {
	return mgl.Vec4{
		float32(c>>16&0xff) * inv255,
		float32(c>>8&0xff) * inv255,
		float32(c&0xff) * inv255,
		float32(c>>24) * inv255,
	}
}

// PackColor is the inverse of UnpackColor for channels in [0, 1].
func PackColor(r, g, b, a uint8) uint32 {
	return uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}

func unpackColorsScalar(dst unsafe.Pointer, dstStride uintptr, src unsafe.Pointer, srcStride uintptr, n int) {
	for i := 0; i < n; i++ {
		c := *(*uint32)(unsafe.Add(src, uintptr(i)*srcStride))
		out := (*mgl.Vec4)(unsafe.Add(dst, uintptr(i)*dstStride))
		out[0] = float32(c>>16&0xff) * inv255
		out[1] = float32(c>>8&0xff) * inv255
		out[2] = float32(c&0xff) * inv255
		out[3] = float32(c>>24) * inv255
	}
}

func perspectiveDivideScalar(dst unsafe.Pointer, dstStride uintptr, src unsafe.Pointer, srcStride uintptr, n int) {
	for i := 0; i < n; i++ {
		p := (*mgl.Vec4)(unsafe.Add(src, uintptr(i)*srcStride))
		out := (*mgl.Vec4)(unsafe.Add(dst, uintptr(i)*dstStride))
		w := 1 / p[3]
		out[0] = p[0] * w
		out[1] = p[1] * w
		out[2] = p[2] * w
		out[3] = w
	}
}
