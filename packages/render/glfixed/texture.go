package glfixed

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/go-gl/gl/v2.1/gl"
	"github.com/leonkasovan/ffrender/packages/render"
)

type Texture_GL struct {
	width  int32
	height int32
	format render.ImageFormat
	handle uint32
	// serial changes on every Create. GL may hand out a deleted name again,
	// so stages compare serials rather than handles.
	serial uint64
}

var textureSerial atomic.Uint64

var _ render.Texture = (*Texture_GL)(nil)

func NewTexture() *Texture_GL {
	return &Texture_GL{}
}

// MapImageFormat returns the internal and pixel format used to upload f.
func (t *Texture_GL) MapImageFormat(f render.ImageFormat) (internal int32, format uint32) {
	var ImageFormatLUT = map[render.ImageFormat][2]uint32{
		render.Format_L8:       {gl.LUMINANCE8, gl.LUMINANCE},
		render.Format_A8:       {gl.ALPHA8, gl.ALPHA},
		render.Format_L8A8:     {gl.LUMINANCE8_ALPHA8, gl.LUMINANCE_ALPHA},
		render.Format_R8G8B8:   {gl.RGB8, gl.RGB},
		render.Format_B8G8R8:   {gl.RGB8, gl.BGR},
		render.Format_R8G8B8A8: {gl.RGBA8, gl.RGBA},
		render.Format_B8G8R8A8: {gl.RGBA8, gl.BGRA},
	}
	e := ImageFormatLUT[f]
	return int32(e[0]), e[1]
}

func (t *Texture_GL) Create(width, height int32, format render.ImageFormat) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("glfixed: invalid texture size %dx%d", width, height)
	}
	format.BytesPerPixel()
	if t.handle == 0 {
		gl.GenTextures(1, &t.handle)
	}
	t.width, t.height, t.format = width, height, format
	t.serial = textureSerial.Add(1)

	internal, pixel := t.MapImageFormat(format)
	defer bindTexture(t.handle)()
	gl.TexParameteri(gl.TEXTURE_2D, gl.GENERATE_MIPMAP, gl.TRUE)
	gl.TexImage2D(gl.TEXTURE_2D, 0, internal, width, height, 0, pixel, gl.UNSIGNED_BYTE, nil)
	if e := gl.GetError(); e != gl.NO_ERROR {
		return fmt.Errorf("glfixed: create texture %dx%d: GL error 0x%x", width, height, e)
	}
	return nil
}

// Bind a texture and upload texel data to it
func (t *Texture_GL) SetData(data []byte) {
	if n := int(t.width) * int(t.height) * t.format.BytesPerPixel(); len(data) < n {
		panic(fmt.Sprintf("glfixed: texture data has %d bytes, need %d", len(data), n))
	}
	_, pixel := t.MapImageFormat(t.format)
	defer bindTexture(t.handle)()
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, t.width, t.height, pixel, gl.UNSIGNED_BYTE, unsafe.Pointer(&data[0]))
}

// bindTexture binds handle on the active unit and returns the function that
// restores the previous binding, leaving the stage caches accurate.
func bindTexture(handle uint32) func() {
	var prev int32
	gl.GetIntegerv(gl.TEXTURE_BINDING_2D, &prev)
	gl.BindTexture(gl.TEXTURE_2D, handle)
	return func() {
		gl.BindTexture(gl.TEXTURE_2D, uint32(prev))
	}
}

// Return whether texture has a valid handle
func (t *Texture_GL) IsValid() bool {
	return t.width != 0 && t.height != 0 && t.handle != 0
}

func (t *Texture_GL) GetWidth() int32 {
	return t.width
}

func (t *Texture_GL) GetHeight() int32 {
	return t.height
}

func (t *Texture_GL) Destroy() {
	if t.handle != 0 {
		gl.DeleteTextures(1, &t.handle)
	}
	*t = Texture_GL{}
}

// TextureStage_GL caches the combiner state of one texture unit and pushes
// it to GL right before a draw.
type TextureStage_GL struct {
	unit     uint32
	texture  *Texture_GL
	colorOp  [3]int
	alphaOp  [3]int
	wrap     render.WrapMode
	minF     render.FilterMode
	magF     render.FilterMode
	mipF     render.FilterMode
	dirty    bool
	disabled bool
	bound    uint64 // serial of the texture last bound, 0 when disabled
}

var _ render.TextureStage = (*TextureStage_GL)(nil)

func newTextureStage(unit uint32) *TextureStage_GL {
	s := &TextureStage_GL{unit: unit, minF: render.FilterLinear, magF: render.FilterLinear, dirty: true}
	if unit == 0 {
		s.colorOp = [3]int{int(render.OpModulate), int(render.ArgTexture), int(render.ArgCurrent)}
		s.alphaOp = [3]int{int(render.OpSelectArg1), int(render.ArgTexture), int(render.ArgCurrent)}
	}
	return s
}

func (s *TextureStage_GL) SetTexture(t render.Texture) {
	tex, ok := t.(*Texture_GL)
	if !ok {
		panic(fmt.Sprintf("glfixed: cannot bind %T", t))
	}
	s.texture = tex
	s.dirty = true
}

func (s *TextureStage_GL) ResetTexture() {
	s.texture = nil
	s.dirty = true
}

func (s *TextureStage_GL) SetColorOp(op render.TextureOp, arg1, arg2 render.TextureArg) {
	s.colorOp = [3]int{int(op), int(arg1), int(arg2)}
	s.dirty = true
}

func (s *TextureStage_GL) SetAlphaOp(op render.TextureOp, arg1, arg2 render.TextureArg) {
	s.alphaOp = [3]int{int(op), int(arg1), int(arg2)}
	s.dirty = true
}

func (s *TextureStage_GL) SetWrapMode(mode render.WrapMode) {
	s.wrap = mode
	s.dirty = true
}

func (s *TextureStage_GL) SetMinFilter(mode render.FilterMode) {
	if mode == render.FilterNone {
		panic("glfixed: FilterNone is only valid as a mip filter")
	}
	s.minF = mode
	s.dirty = true
}

func (s *TextureStage_GL) SetMagFilter(mode render.FilterMode) {
	if mode == render.FilterNone {
		panic("glfixed: FilterNone is only valid as a mip filter")
	}
	s.magF = mode
	s.dirty = true
}

func (s *TextureStage_GL) SetMipFilter(mode render.FilterMode) {
	s.mipF = mode
	s.dirty = true
}

// off reports whether this stage ends the combiner chain.
func (s *TextureStage_GL) off() bool {
	return render.TextureOp(s.colorOp[0]) == render.OpDisable || s.texture == nil || !s.texture.IsValid()
}

func (s *TextureStage_GL) MapWrapMode(i render.WrapMode) int32 {
	var WrapModeLUT = map[render.WrapMode]int32{
		render.WrapRepeat: gl.REPEAT,
		render.WrapMirror: gl.MIRRORED_REPEAT,
		render.WrapClamp:  gl.CLAMP_TO_EDGE,
	}
	return WrapModeLUT[i]
}

func (s *TextureStage_GL) minFilter() int32 {
	switch {
	case s.mipF == render.FilterNone && s.minF == render.FilterNearest:
		return gl.NEAREST
	case s.mipF == render.FilterNone:
		return gl.LINEAR
	case s.mipF == render.FilterNearest && s.minF == render.FilterNearest:
		return gl.NEAREST_MIPMAP_NEAREST
	case s.mipF == render.FilterNearest:
		return gl.LINEAR_MIPMAP_NEAREST
	case s.minF == render.FilterNearest:
		return gl.NEAREST_MIPMAP_LINEAR
	}
	return gl.LINEAR_MIPMAP_LINEAR
}

func (s *TextureStage_GL) magFilter() int32 {
	if s.magF == render.FilterNearest {
		return gl.NEAREST
	}
	return gl.LINEAR
}

func mapSource(a int, alpha bool) (src, operand int32) {
	switch render.TextureArg(a) & render.ArgMask {
	case render.ArgDiffuse:
		src = gl.PRIMARY_COLOR
	case render.ArgTexture:
		src = gl.TEXTURE
	default:
		src = gl.PREVIOUS
	}
	complement := render.TextureArg(a)&render.ArgComplement != 0
	switch {
	case alpha && complement:
		operand = gl.ONE_MINUS_SRC_ALPHA
	case alpha:
		operand = gl.SRC_ALPHA
	case complement:
		operand = gl.ONE_MINUS_SRC_COLOR
	default:
		operand = gl.SRC_COLOR
	}
	return
}

func (s *TextureStage_GL) applyCombiner(op [3]int, alpha bool) {
	combine, scale := uint32(gl.COMBINE_RGB), uint32(gl.RGB_SCALE)
	src := [2]uint32{gl.SRC0_RGB, gl.SRC1_RGB}
	operand := [2]uint32{gl.OPERAND0_RGB, gl.OPERAND1_RGB}
	if alpha {
		combine, scale = gl.COMBINE_ALPHA, gl.ALPHA_SCALE
		src = [2]uint32{gl.SRC0_ALPHA, gl.SRC1_ALPHA}
		operand = [2]uint32{gl.OPERAND0_ALPHA, gl.OPERAND1_ALPHA}
	}

	var mode, mul int32 = gl.MODULATE, 1
	switch render.TextureOp(op[0]) {
	case render.OpSelectArg1:
		mode = gl.REPLACE
	case render.OpSelectArg2:
		mode = gl.REPLACE
		op[1] = op[2]
	case render.OpModulate2X:
		mul = 2
	case render.OpModulate4X:
		mul = 4
	case render.OpAddSigned:
		mode = gl.ADD_SIGNED
	}
	gl.TexEnvi(gl.TEXTURE_ENV, combine, mode)
	gl.TexEnvi(gl.TEXTURE_ENV, scale, mul)
	for i := 0; i < 2; i++ {
		sv, ov := mapSource(op[1+i], alpha)
		gl.TexEnvi(gl.TEXTURE_ENV, src[i], sv)
		gl.TexEnvi(gl.TEXTURE_ENV, operand[i], ov)
	}
}

// apply pushes the cached state of the unit. chainOff is true when a lower
// stage ended the combiner chain.
func (s *TextureStage_GL) apply(chainOff bool) {
	disable := chainOff || s.off()
	if !s.stale(disable) {
		return
	}
	gl.ActiveTexture(gl.TEXTURE0 + s.unit)
	if disable {
		gl.Disable(gl.TEXTURE_2D)
	} else {
		gl.Enable(gl.TEXTURE_2D)
		gl.BindTexture(gl.TEXTURE_2D, s.texture.handle)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, s.MapWrapMode(s.wrap))
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, s.MapWrapMode(s.wrap))
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, s.minFilter())
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, s.magFilter())
		gl.TexEnvi(gl.TEXTURE_ENV, gl.TEXTURE_ENV_MODE, gl.COMBINE)
		s.applyCombiner(s.colorOp, false)
		s.applyCombiner(s.alphaOp, true)
	}
	gl.ActiveTexture(gl.TEXTURE0)
	s.commit(disable)
}

// stale reports whether the unit's GL state differs from what the stage
// holds.
func (s *TextureStage_GL) stale(disable bool) bool {
	if s.dirty || disable != s.disabled {
		return true
	}
	return !disable && s.texture.serial != s.bound
}

func (s *TextureStage_GL) commit(disable bool) {
	s.disabled = disable
	s.dirty = false
	s.bound = 0
	if !disable {
		s.bound = s.texture.serial
	}
}
