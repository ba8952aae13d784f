package render

import "fmt"

type ImageFormat int

const (
	Format_L8 ImageFormat = iota
	Format_A8
	Format_L8A8
	Format_R8G8B8
	Format_B8G8R8
	Format_R8G8B8A8
	Format_B8G8R8A8
)

// BytesPerPixel panics on formats the backend cannot upload.
func (f ImageFormat) BytesPerPixel() int {
	switch f {
	case Format_L8, Format_A8:
		return 1
	case Format_L8A8:
		return 2
	case Format_R8G8B8, Format_B8G8R8:
		return 3
	case Format_R8G8B8A8, Format_B8G8R8A8:
		return 4
	}
	chk(Error(fmt.Sprintf("render: unsupported image format %d", int(f))))
	return 0
}

func (f ImageFormat) HasAlpha() bool {
	switch f {
	case Format_A8, Format_L8A8, Format_R8G8B8A8, Format_B8G8R8A8:
		return true
	}
	return false
}

type Texture interface {
	Create(width, height int32, format ImageFormat) error
	// SetData uploads width*height*BytesPerPixel bytes.
	SetData(data []byte)
	IsValid() bool
	GetWidth() int32
	GetHeight() int32
	Destroy()
}

type TextureOp int

const (
	// OpDisable disables this stage and every stage above it.
	OpDisable TextureOp = iota
	OpSelectArg1
	OpSelectArg2
	OpModulate
	OpModulate2X
	OpModulate4X
	OpAddSigned
)

type TextureArg int

const (
	ArgDiffuse    TextureArg = 0x00000
	ArgCurrent    TextureArg = 0x00001
	ArgTexture    TextureArg = 0x00002
	ArgMask       TextureArg = 0x0000F
	ArgComplement TextureArg = 0x00010
)

type WrapMode int

const (
	WrapRepeat WrapMode = iota
	WrapMirror
	WrapClamp
)

type FilterMode int

const (
	// FilterNone is only valid as a mip filter.
	FilterNone FilterMode = iota
	FilterNearest
	FilterLinear
)

// TextureStage is one fixed-function texture combiner unit.
type TextureStage interface {
	SetTexture(t Texture)
	ResetTexture()
	SetColorOp(op TextureOp, arg1, arg2 TextureArg)
	SetAlphaOp(op TextureOp, arg1, arg2 TextureArg)
	SetWrapMode(mode WrapMode)
	SetMinFilter(mode FilterMode)
	SetMagFilter(mode FilterMode)
	SetMipFilter(mode FilterMode)
}
