package glfixed

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"unsafe"

	"github.com/go-gl/gl/v2.1/gl"
	"golang.org/x/mobile/exp/f32"

	"github.com/leonkasovan/ffrender/packages/config"
)

//go:embed shaders/post.vert.glsl
var postVertShader string

//go:embed shaders/post.frag.glsl
var postFragShader string

// postVertData is the screen quad drawn as a triangle strip.
var postVertData = f32.Bytes(binary.LittleEndian, -1, -1, 1, -1, -1, 1, 1, 1)

// PostProcess_GL is an offscreen render target. Frames are drawn into it
// between Attach and Render, and Render copies the result to the default
// framebuffer through a gamma pass.
type PostProcess_GL struct {
	width  int32
	height int32
	gamma  float32

	fbo     uint32
	color   uint32
	depth   uint32
	quad    uint32
	program uint32

	aVertCoord int32
	uTexture   int32
	uGamma     int32

	log *slog.Logger
}

func checkGamma(g float32) error {
	if !(g > 0) || math.IsInf(float64(g), 1) {
		return fmt.Errorf("glfixed: invalid gamma %v", g)
	}
	return nil
}

func checkTargetSize(width, height int32) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("glfixed: invalid render target size %dx%d", width, height)
	}
	return nil
}

// newPostProcessState validates v and returns a target with no GL objects.
func newPostProcessState(v config.Video, log *slog.Logger) (*PostProcess_GL, error) {
	w, h := int32(v.Width), int32(v.Height)
	if err := checkTargetSize(w, h); err != nil {
		return nil, err
	}
	if err := checkGamma(v.Gamma); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostProcess_GL{width: w, height: h, gamma: v.Gamma, log: log}, nil
}

// NewPostProcess creates a target of the configured video size and gamma.
// Like New it needs a current GL context.
func NewPostProcess(v config.Video, log *slog.Logger) (*PostProcess_GL, error) {
	p, err := newPostProcessState(v, log)
	if err != nil {
		return nil, err
	}
	if p.program, err = newProgram(postVertShader, postFragShader); err != nil {
		return nil, fmt.Errorf("glfixed: postprocess shader: %w", err)
	}
	p.aVertCoord = gl.GetAttribLocation(p.program, gl.Str("VertCoord\x00"))
	p.uTexture = gl.GetUniformLocation(p.program, gl.Str("Texture_GL\x00"))
	p.uGamma = gl.GetUniformLocation(p.program, gl.Str("Gamma\x00"))

	gl.GenBuffers(1, &p.quad)
	gl.BindBuffer(gl.ARRAY_BUFFER, p.quad)
	gl.BufferData(gl.ARRAY_BUFFER, len(postVertData), unsafe.Pointer(&postVertData[0]), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	gl.GenTextures(1, &p.color)
	gl.GenRenderbuffers(1, &p.depth)
	p.allocate()

	gl.GenFramebuffers(1, &p.fbo)
	gl.BindFramebuffer(gl.FRAMEBUFFER, p.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, p.color, 0)
	gl.FramebufferRenderbuffer(gl.FRAMEBUFFER, gl.DEPTH_ATTACHMENT, gl.RENDERBUFFER, p.depth)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if err := framebufferStatus(status); err != nil {
		p.Destroy()
		return nil, err
	}
	p.log.Debug("postprocess target created", "width", p.width, "height", p.height, "gamma", p.gamma)
	return p, nil
}

func framebufferStatus(status uint32) error {
	switch status {
	case gl.FRAMEBUFFER_COMPLETE:
		return nil
	case gl.FRAMEBUFFER_UNSUPPORTED:
		return fmt.Errorf("glfixed: framebuffer format combination unsupported")
	}
	return fmt.Errorf("glfixed: framebuffer incomplete: 0x%x", status)
}

// allocate sizes the color texture and the depth renderbuffer.
func (p *PostProcess_GL) allocate() {
	restore := bindTexture(p.color)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, p.width, p.height, 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	restore()

	gl.BindRenderbuffer(gl.RENDERBUFFER, p.depth)
	gl.RenderbufferStorage(gl.RENDERBUFFER, gl.DEPTH_COMPONENT24, p.width, p.height)
	gl.BindRenderbuffer(gl.RENDERBUFFER, 0)
}

func (p *PostProcess_GL) Width() int32 {
	return p.width
}

func (p *PostProcess_GL) Height() int32 {
	return p.height
}

func (p *PostProcess_GL) Gamma() float32 {
	return p.gamma
}

// SetGamma sets the exponent applied by Render. 1 leaves colors unchanged.
func (p *PostProcess_GL) SetGamma(g float32) error {
	if err := checkGamma(g); err != nil {
		return err
	}
	p.gamma = g
	return nil
}

// Resize reallocates the target. The contents are lost.
func (p *PostProcess_GL) Resize(width, height int32) error {
	if err := checkTargetSize(width, height); err != nil {
		return err
	}
	p.width, p.height = width, height
	p.allocate()
	return nil
}

// Attach redirects drawing into the target and clears it.
func (p *PostProcess_GL) Attach() {
	gl.BindFramebuffer(gl.FRAMEBUFFER, p.fbo)
	gl.Viewport(0, 0, p.width, p.height)
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Render draws the target to the default framebuffer.
func (p *PostProcess_GL) Render() {
	var prev int32
	gl.GetIntegerv(gl.CURRENT_PROGRAM, &prev)

	gl.Disable(gl.CULL_FACE)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, p.width, p.height)
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	gl.UseProgram(p.program)
	gl.ActiveTexture(gl.TEXTURE0)
	defer bindTexture(p.color)()
	gl.Uniform1i(p.uTexture, 0)
	gl.Uniform1f(p.uGamma, p.gamma)

	loc := uint32(p.aVertCoord)
	gl.BindBuffer(gl.ARRAY_BUFFER, p.quad)
	gl.EnableVertexAttribArray(loc)
	gl.VertexAttribPointer(loc, 2, gl.FLOAT, false, 0, nil)
	gl.DrawArrays(gl.TRIANGLE_STRIP, 0, 4)
	gl.DisableVertexAttribArray(loc)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	gl.UseProgram(uint32(prev))
}

func (p *PostProcess_GL) Destroy() {
	if p.fbo != 0 {
		gl.DeleteFramebuffers(1, &p.fbo)
	}
	if p.depth != 0 {
		gl.DeleteRenderbuffers(1, &p.depth)
	}
	if p.color != 0 {
		gl.DeleteTextures(1, &p.color)
	}
	if p.quad != 0 {
		gl.DeleteBuffers(1, &p.quad)
	}
	if p.program != 0 {
		gl.DeleteProgram(p.program)
	}
	p.fbo, p.depth, p.color, p.quad, p.program = 0, 0, 0, 0, 0
}

func newProgram(vert, frag string) (uint32, error) {
	vertObj, err := compileShader(gl.VERTEX_SHADER, vert)
	if err != nil {
		return 0, fmt.Errorf("vertex shader: %w", err)
	}
	fragObj, err := compileShader(gl.FRAGMENT_SHADER, frag)
	if err != nil {
		gl.DeleteShader(vertObj)
		return 0, fmt.Errorf("fragment shader: %w", err)
	}
	program := gl.CreateProgram()
	gl.AttachShader(program, vertObj)
	gl.AttachShader(program, fragObj)
	gl.LinkProgram(program)
	// Mark shaders for deletion when the program is deleted
	gl.DeleteShader(vertObj)
	gl.DeleteShader(fragObj)

	var ok int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &ok)
	if ok == 0 {
		var size, l int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &size)
		err := fmt.Errorf("unknown link error")
		if size > 0 {
			str := make([]byte, size+1)
			gl.GetProgramInfoLog(program, size, &l, &str[0])
			err = fmt.Errorf("link: %s", str[:l])
		}
		gl.DeleteProgram(program)
		return 0, err
	}
	return program, nil
}

func compileShader(shaderType uint32, src string) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	src += "\x00"
	s, free := gl.Strs(src)
	defer free()
	l := int32(len(src) - 1)
	gl.ShaderSource(shader, 1, s, &l)
	gl.CompileShader(shader)
	var ok int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &ok)
	if ok == 0 {
		var size, l int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &size)
		err := fmt.Errorf("unknown compile error")
		if size > 0 {
			str := make([]byte, size+1)
			gl.GetShaderInfoLog(shader, size, &l, &str[0])
			err = fmt.Errorf("%s", str[:l])
		}
		gl.DeleteShader(shader)
		return 0, err
	}
	return shader, nil
}
