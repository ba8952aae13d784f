package render

// VertexBuffer is the generic vertex buffer interface shared by buffer-object
// backed implementations and the host-memory emulation below.
type VertexBuffer[V Vertex] interface {
	Capacity() int
	// Write copies vs into [offset, offset+len(vs)).
	Write(vs []V, offset int, flags BufferFlags)
	// Lock returns a writable view of [offset, offset+count). Unlock must be
	// called before the next draw.
	Lock(flags BufferFlags, offset, count int) []V
	Unlock()
	Draw(mode PrimitiveMode, count, offset int) error
	// DrawIndexed draws vertices offset+indices[i] of the range [offset, offset+count).
	DrawIndexed(mode PrimitiveMode, count, offset int, indices []uint16) error
	Destroy()
}

// ImmediateBuffer emulates a vertex buffer object in host memory and submits
// its contents through client arrays on every draw.
type ImmediateBuffer[V Vertex] struct {
	renderer  *Renderer_FF
	capacity  int
	buffer    []V
	locked    bool
	destroyed bool
}

var _ VertexBuffer[LitVertex] = (*ImmediateBuffer[LitVertex])(nil)

func NewImmediateBuffer[V Vertex](r *Renderer_FF, capacity int) *ImmediateBuffer[V] {
	if capacity < 0 {
		chk(Error("render: negative vertex buffer capacity"))
	}
	return &ImmediateBuffer[V]{
		renderer: r,
		capacity: capacity,
		buffer:   make([]V, capacity),
	}
}

func (b *ImmediateBuffer[V]) Capacity() int {
	return b.capacity
}

func (b *ImmediateBuffer[V]) Kind() VertexKind {
	return KindOf[V]()
}

func (b *ImmediateBuffer[V]) alive() {
	if b.destroyed {
		chk(Error("render: vertex buffer used after Destroy"))
	}
}

func (b *ImmediateBuffer[V]) Write(vs []V, offset int, flags BufferFlags) {
	b.alive()
	checkRange(offset, len(vs), b.capacity)
	copy(b.buffer[offset:], vs)
}

func (b *ImmediateBuffer[V]) Lock(flags BufferFlags, offset, count int) []V {
	b.alive()
	checkRange(offset, count, b.capacity)
	if b.locked {
		chk(Error("render: vertex buffer locked twice"))
	}
	b.locked = true
	return b.buffer[offset : offset+count : offset+count]
}

// Unlock closes the Lock scope. Host memory needs no flush.
func (b *ImmediateBuffer[V]) Unlock() {
	if !b.locked {
		chk(Error("render: Unlock without Lock"))
	}
	b.locked = false
}

func (b *ImmediateBuffer[V]) drawable() {
	b.alive()
	if b.locked {
		chk(Error("render: draw from a locked vertex buffer"))
	}
}

func (b *ImmediateBuffer[V]) Draw(mode PrimitiveMode, count, offset int) error {
	b.drawable()
	return drawImmediate(b.renderer, b.buffer, mode, count, offset)
}

func (b *ImmediateBuffer[V]) DrawIndexed(mode PrimitiveMode, count, offset int, indices []uint16) error {
	b.drawable()
	return drawIndexedImmediate(b.renderer, b.buffer, mode, count, offset, indices)
}

// Destroy releases the backing array. The buffer must not be used afterwards.
func (b *ImmediateBuffer[V]) Destroy() {
	b.buffer = nil
	b.capacity = 0
	b.locked = false
	b.destroyed = true
}
