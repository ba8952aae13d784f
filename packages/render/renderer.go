package render

import (
	"fmt"
	"log/slog"
	"unsafe"

	mgl "github.com/go-gl/mathgl/mgl32"
	"github.com/leonkasovan/ffrender/packages/profiler"
)

// RendererOptions configures a Renderer_FF. Zero fields take defaults.
type RendererOptions struct {
	// Preprocessing kernel name, "auto" when empty.
	Kernel string
	// Screen size used for the screen-space projection of transformed vertices.
	Width, Height int
	Logger        *slog.Logger
	// Optional; draw calls are recorded as profile points when set.
	Profiler *profiler.Profiler
	Thread   profiler.ThreadID
}

type projectionMode int

const (
	projectionUnset projectionMode = iota
	projectionWorld
	projectionScreen
)

// Renderer_FF drives a fixed-function Pipeline. It owns all client-array
// state of that pipeline, so nothing else may enable or disable client arrays
// on it. Not safe for concurrent use.
type Renderer_FF struct {
	pipe      Pipeline
	pre       Preprocessor
	texCoords TexCoordState
	log       *slog.Logger
	prof      *profiler.Profiler
	thread    profiler.ThreadID

	width, height int
	world         mgl.Mat4
	projection    projectionMode

	arraysEnabled bool
	nDrawcall     int
}

func NewRenderer(pipe Pipeline, opts RendererOptions) (*Renderer_FF, error) {
	pre, err := NewPreprocessor(opts.Kernel)
	if err != nil {
		return nil, err
	}
	r := &Renderer_FF{
		pipe:   pipe,
		pre:    pre,
		log:    opts.Logger,
		prof:   opts.Profiler,
		thread: opts.Thread,
		width:  opts.Width,
		height: opts.Height,
		world:  mgl.Ident4(),
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.width <= 0 || r.height <= 0 {
		r.width, r.height = 640, 480
	}
	r.log.Debug("fixed-function renderer ready", "kernel", pre.Name(), "width", r.width, "height", r.height)
	return r, nil
}

func (r *Renderer_FF) GetName() string {
	return "OpenGL fixed function"
}

func (r *Renderer_FF) Preprocessor() Preprocessor {
	return r.pre
}

func (r *Renderer_FF) TexCoordState() *TexCoordState {
	return &r.texCoords
}

// DrawCalls returns the number of draw calls issued to the pipeline.
func (r *Renderer_FF) DrawCalls() int {
	return r.nDrawcall
}

func (r *Renderer_FF) SetViewport(width, height int) {
	if width != r.width || height != r.height {
		r.width, r.height = width, height
		if r.projection == projectionScreen {
			r.projection = projectionUnset
		}
	}
}

// SetProjection sets the projection used for lit (world-space) vertices.
func (r *Renderer_FF) SetProjection(m mgl.Mat4) {
	r.world = m
	if r.projection == projectionWorld {
		r.projection = projectionUnset
	}
}

func (r *Renderer_FF) PerspectiveProjectionMatrix(angle, aspect, near, far float32) mgl.Mat4 {
	return mgl.Perspective(angle, aspect, near, far)
}

func (r *Renderer_FF) OrthographicProjectionMatrix(left, right, bottom, top, near, far float32) mgl.Mat4 {
	return mgl.Ortho(left, right, bottom, top, near, far)
}

// beforeDraw puts the pipeline in the mode the vertex kind expects.
func (r *Renderer_FF) beforeDraw(kind VertexKind) {
	want := projectionWorld
	if kind.format().rhw {
		want = projectionScreen
	}
	if want != r.projection {
		r.projection = want
		if want == projectionScreen {
			r.pipe.LoadProjection(mgl.Ortho(0, float32(r.width), float32(r.height), 0, -1, 1))
		} else {
			r.pipe.LoadProjection(r.world)
		}
	}
	if !r.arraysEnabled {
		r.arraysEnabled = true
		r.pipe.EnableClientState(VertexArray)
		r.pipe.EnableClientState(ColorArray)
	}
}

func (r *Renderer_FF) profile(tag string) func() {
	if r.prof == nil {
		return func() {}
	}
	return r.prof.Scope(tag, r.thread)
}

// streams returns zero-copy views of the bound attributes of vs[offset:offset+count].
func streams[V Vertex](vs []V, offset, count int) (vertex, color Stream, texCoords []Stream) {
	f := KindOf[V]().format()
	base := unsafe.Pointer(&vs[offset])
	span := int(f.stride) * count
	view := func(field uintptr, size int) Stream {
		return Stream{
			Size:   size,
			Stride: int(f.stride),
			Data:   unsafe.Slice((*byte)(unsafe.Add(base, field)), span-int(field)),
		}
	}
	vertex = view(f.vertex, f.vertexSize)
	color = view(f.rgba, 4)
	texCoords = make([]Stream, len(f.texCoords))
	for i, off := range f.texCoords {
		texCoords[i] = view(off, 2)
	}
	return
}

// submit preprocesses and binds vs[offset:offset+count], runs issue and tears
// the texture units down again.
func submit[V Vertex](r *Renderer_FF, vs []V, offset, count int, issue func()) (err error) {
	kind := KindOf[V]()
	r.beforeDraw(kind)
	Preprocess(r.pre, vs, offset, count)

	vertex, color, texCoords := streams(vs, offset, count)
	r.pipe.VertexPointer(vertex)
	r.pipe.ColorPointer(color)
	extra := r.texCoords.enable(r.pipe, texCoords)
	defer r.texCoords.disable(r.pipe, extra)

	issue()

	if perr := r.pipe.Error(); perr != nil {
		r.log.Error("draw failed", "kind", kind, "offset", offset, "count", count, "error", perr)
		return fmt.Errorf("%w: %v", ErrBackend, perr)
	}
	return nil
}

func drawImmediate[V Vertex](r *Renderer_FF, vs []V, mode PrimitiveMode, count, offset int) error {
	checkRange(offset, count, len(vs))
	if count == 0 {
		return nil
	}
	defer r.profile("draw")()
	return submit(r, vs, offset, count, func() {
		r.pipe.DrawArrays(mode, 0, count)
		r.nDrawcall++
	})
}

func drawIndexedImmediate[V Vertex](r *Renderer_FF, vs []V, mode PrimitiveMode, count, offset int, indices []uint16) error {
	checkRange(offset, count, len(vs))
	if count == 0 {
		return nil
	}
	for i, idx := range indices {
		if int(idx) >= count {
			chk(Error(fmt.Sprintf("render: index %d at position %d outside draw range of %d vertices", idx, i, count)))
		}
	}
	defer r.profile("drawIndexed")()
	return submit(r, vs, offset, count, func() {
		if len(indices) == 0 {
			return
		}
		r.pipe.DrawElements(mode, indices)
		r.nDrawcall++
	})
}
