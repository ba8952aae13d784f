package render

import (
	"math"
	"math/rand/v2"
	"testing"

	mgl "github.com/go-gl/mathgl/mgl32"
)

func closeEnough(a, b float32) bool {
	d := math.Abs(float64(a - b))
	return d <= 1e-5*math.Max(1, math.Max(math.Abs(float64(a)), math.Abs(float64(b))))
}

func vecClose(a, b mgl.Vec4) bool {
	for i := range a {
		if !closeEnough(a[i], b[i]) {
			return false
		}
	}
	return true
}

func randomTransformed(rng *rand.Rand, n int) []TransformedVertex {
	vs := make([]TransformedVertex, n)
	for i := range vs {
		rhw := rng.Float32()*4 + 0.01
		if rng.IntN(2) == 0 {
			rhw = -rhw
		}
		vs[i] = TransformedVertex{
			P:     mgl.Vec3{rng.Float32()*2000 - 1000, rng.Float32()*2000 - 1000, rng.Float32()},
			Rhw:   rhw,
			Color: rng.Uint32(),
			UV:    mgl.Vec2{rng.Float32(), rng.Float32()},
		}
	}
	return vs
}

func TestUnpackColor(t *testing.T) {
	tests := []struct {
		color uint32
		want  mgl.Vec4
	}{
		{0xFF102030, mgl.Vec4{0x10 / 255.0, 0x20 / 255.0, 0x30 / 255.0, 1}},
		{0x00000000, mgl.Vec4{0, 0, 0, 0}},
		{0xFFFFFFFF, mgl.Vec4{1, 1, 1, 1}},
		{0x80FF0000, mgl.Vec4{1, 0, 0, 128 / 255.0}},
	}
	for _, tt := range tests {
		if got := UnpackColor(tt.color); !vecClose(got, tt.want) {
			t.Errorf("UnpackColor(%#08x) = %v, want %v", tt.color, got, tt.want)
		}
	}
	if c := PackColor(0x10, 0x20, 0x30, 0xFF); c != 0xFF102030 {
		t.Errorf("PackColor = %#08x, want 0xff102030", c)
	}
}

func TestPreprocessPerKernel(t *testing.T) {
	for _, name := range Kernels() {
		t.Run(name, func(t *testing.T) {
			p, err := NewPreprocessor(name)
			if err != nil {
				t.Fatalf("NewPreprocessor(%q) failed: %v", name, err)
			}
			if p.Name() != name {
				t.Fatalf("Name() = %q, want %q", p.Name(), name)
			}

			vs := []TransformedVertex{{P: mgl.Vec3{2, 4, 6}, Rhw: 0.5, Color: 0xFF102030}}
			Preprocess(p, vs, 0, 1)
			if want := (mgl.Vec4{4, 8, 12, 2}); !vecClose(vs[0].Clip, want) {
				t.Errorf("Clip = %v, want %v", vs[0].Clip, want)
			}
			if want := UnpackColor(0xFF102030); !vecClose(vs[0].RGBA, want) {
				t.Errorf("RGBA = %v, want %v", vs[0].RGBA, want)
			}
		})
	}
}

// Every kernel must agree with the scalar reference on random input,
// including odd counts and offsets.
func TestKernelsMatchScalar(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	src := randomTransformed(rng, 257)

	ref := append([]TransformedVertex(nil), src...)
	Preprocess(Preprocessor{}, ref, 3, 251)

	for _, name := range Kernels() {
		t.Run(name, func(t *testing.T) {
			p, err := NewPreprocessor(name)
			if err != nil {
				t.Fatalf("NewPreprocessor(%q) failed: %v", name, err)
			}
			got := append([]TransformedVertex(nil), src...)
			Preprocess(p, got, 3, 251)
			for i := range got {
				if !vecClose(got[i].Clip, ref[i].Clip) {
					t.Fatalf("vertex %d: Clip = %v, want %v", i, got[i].Clip, ref[i].Clip)
				}
				if !vecClose(got[i].RGBA, ref[i].RGBA) {
					t.Fatalf("vertex %d: RGBA = %v, want %v", i, got[i].RGBA, ref[i].RGBA)
				}
			}
		})
	}
}

func TestPreprocessLitKinds(t *testing.T) {
	for _, name := range Kernels() {
		p, err := NewPreprocessor(name)
		if err != nil {
			t.Fatalf("NewPreprocessor(%q) failed: %v", name, err)
		}

		lit := []LitVertex{
			{P: mgl.Vec3{1, 2, 3}, Color: 0x80FF8000},
			{P: mgl.Vec3{4, 5, 6}, Color: 0xFF0000FF},
		}
		Preprocess(p, lit, 0, 2)
		for i, v := range lit {
			if !vecClose(v.RGBA, UnpackColor(v.Color)) {
				t.Errorf("%s: lit vertex %d RGBA = %v", name, i, v.RGBA)
			}
		}
		if lit[0].P != (mgl.Vec3{1, 2, 3}) {
			t.Errorf("%s: position modified: %v", name, lit[0].P)
		}

		lit3 := []LitVertex3{{Color: 0xFF102030, UV: [3]mgl.Vec2{{1, 2}, {3, 4}, {5, 6}}}}
		Preprocess(p, lit3, 0, 1)
		if !vecClose(lit3[0].RGBA, UnpackColor(0xFF102030)) {
			t.Errorf("%s: lit3 RGBA = %v", name, lit3[0].RGBA)
		}
		if lit3[0].UV[2] != (mgl.Vec2{5, 6}) {
			t.Errorf("%s: texture coordinates modified: %v", name, lit3[0].UV)
		}
	}
}

func TestPreprocessSubRange(t *testing.T) {
	vs := make([]TransformedVertex, 8)
	for i := range vs {
		vs[i] = TransformedVertex{P: mgl.Vec3{1, 1, 1}, Rhw: 1, Color: 0xFFFFFFFF}
	}
	Preprocess(Preprocessor{}, vs, 2, 3)
	for i, v := range vs {
		touched := i >= 2 && i < 5
		if touched && v.Clip != (mgl.Vec4{1, 1, 1, 1}) {
			t.Errorf("vertex %d not preprocessed: %v", i, v.Clip)
		}
		if !touched && (v.Clip != mgl.Vec4{} || v.RGBA != mgl.Vec4{}) {
			t.Errorf("vertex %d outside the range was modified", i)
		}
	}
}

func TestPreprocessEmpty(t *testing.T) {
	Preprocess(Preprocessor{}, []LitVertex(nil), 0, 0)
	vs := []LitVertex{{Color: 0xFFFFFFFF}}
	Preprocess(Preprocessor{}, vs, 1, 0)
	if vs[0].RGBA != (mgl.Vec4{}) {
		t.Fatal("count 0 must not touch any vertex")
	}
}

func TestPreprocessOutOfRange(t *testing.T) {
	tests := []struct {
		name          string
		offset, count int
	}{
		{"past end", 2, 3},
		{"negative offset", -1, 1},
		{"negative count", 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			Preprocess(Preprocessor{}, make([]LitVertex, 4), tt.offset, tt.count)
		})
	}
}

func TestNewPreprocessor(t *testing.T) {
	if _, err := NewPreprocessor("bogus"); err == nil {
		t.Fatal("expected error for unknown kernel")
	}
	for _, name := range []string{"", "auto"} {
		p, err := NewPreprocessor(name)
		if err != nil {
			t.Fatalf("NewPreprocessor(%q) failed: %v", name, err)
		}
		if p.Name() != Kernels()[0] {
			t.Errorf("NewPreprocessor(%q) picked %q, want %q", name, p.Name(), Kernels()[0])
		}
	}
	if (Preprocessor{}).Name() != "scalar" {
		t.Error("zero Preprocessor must use the scalar kernel")
	}

	names := Kernels()
	if names[len(names)-1] != "scalar" {
		t.Errorf("scalar must be the lowest priority kernel, got %v", names)
	}
}

func BenchmarkPreprocess(b *testing.B) {
	vs := randomTransformed(rand.New(rand.NewPCG(3, 4)), 4096)
	for _, name := range Kernels() {
		p, err := NewPreprocessor(name)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(name, func(b *testing.B) {
			b.SetBytes(int64(len(vs)) * int64(vertexFormats[VertexTransformed].stride))
			for b.Loop() {
				Preprocess(p, vs, 0, len(vs))
			}
		})
	}
}
