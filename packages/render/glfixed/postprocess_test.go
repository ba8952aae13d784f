package glfixed

import (
	"encoding/binary"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/gl/v2.1/gl"

	"github.com/leonkasovan/ffrender/packages/config"
)

func TestPostProcessFromConfig(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := config.Default().Video
	v.Gamma = 2.2
	p, err := newPostProcessState(v, log)
	if err != nil {
		t.Fatalf("newPostProcessState failed: %v", err)
	}
	if p.Width() != 640 || p.Height() != 480 || p.Gamma() != 2.2 {
		t.Errorf("target %dx%d gamma %v", p.Width(), p.Height(), p.Gamma())
	}

	tests := []struct {
		name string
		edit func(*config.Video)
	}{
		{"zero width", func(v *config.Video) { v.Width = 0 }},
		{"negative height", func(v *config.Video) { v.Height = -1 }},
		{"zero gamma", func(v *config.Video) { v.Gamma = 0 }},
		{"nan gamma", func(v *config.Video) { v.Gamma = float32(math.NaN()) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := config.Default().Video
			tt.edit(&v)
			if _, err := newPostProcessState(v, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPostProcessSetGamma(t *testing.T) {
	p, err := newPostProcessState(config.Default().Video, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.Gamma() != 1 {
		t.Fatalf("default gamma = %v", p.Gamma())
	}
	if err := p.SetGamma(1.8); err != nil || p.Gamma() != 1.8 {
		t.Fatalf("SetGamma(1.8): gamma %v, err %v", p.Gamma(), err)
	}
	for _, g := range []float32{0, -1, float32(math.Inf(1))} {
		if err := p.SetGamma(g); err == nil {
			t.Errorf("SetGamma(%v) succeeded", g)
		}
	}
	if p.Gamma() != 1.8 {
		t.Errorf("rejected gamma changed the setting to %v", p.Gamma())
	}
	if err := p.Resize(0, 10); err == nil {
		t.Error("Resize to an empty target succeeded")
	}
}

func TestScreenQuad(t *testing.T) {
	want := []float32{-1, -1, 1, -1, -1, 1, 1, 1}
	if len(postVertData) != 4*len(want) {
		t.Fatalf("quad is %d bytes", len(postVertData))
	}
	for i, w := range want {
		if got := math.Float32frombits(binary.LittleEndian.Uint32(postVertData[4*i:])); got != w {
			t.Errorf("component %d = %v, want %v", i, got, w)
		}
	}
}

func TestFramebufferStatus(t *testing.T) {
	if err := framebufferStatus(gl.FRAMEBUFFER_COMPLETE); err != nil {
		t.Errorf("complete framebuffer: %v", err)
	}
	if err := framebufferStatus(gl.FRAMEBUFFER_UNSUPPORTED); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("unsupported framebuffer: %v", err)
	}
	if err := framebufferStatus(0); err == nil {
		t.Error("zero status accepted")
	}
}

func TestPostShadersDeclareUniforms(t *testing.T) {
	for _, name := range []string{"Texture_GL", "Gamma"} {
		if !strings.Contains(postFragShader, name) {
			t.Errorf("fragment shader lacks %s", name)
		}
	}
	if !strings.Contains(postVertShader, "VertCoord") {
		t.Error("vertex shader lacks VertCoord")
	}
}
