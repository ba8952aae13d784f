package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	mgl "github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"

	"github.com/leonkasovan/ffrender/packages/config"
	"github.com/leonkasovan/ffrender/packages/profiler"
	"github.com/leonkasovan/ffrender/packages/render"
)

const (
	numSprites = 64
	numLoaders = 2
)

// quadIndices are two triangles per quad, relative to the first sprite drawn.
var quadIndices = func() []uint16 {
	idx := make([]uint16, 0, numSprites*6)
	for q := uint16(0); q < numSprites; q++ {
		b := q * 4
		idx = append(idx, b, b+1, b+2, b+2, b+1, b+3)
	}
	return idx
}()

type scene struct {
	r       *render.Renderer_FF
	sprites *render.ImmediateBuffer[render.TransformedVertex]
	ground  *render.ImmediateBuffer[render.LitVertex]
	decal   *render.ImmediateBuffer[render.LitVertex3]
	width   float32
	height  float32
}

func newScene(r *render.Renderer_FF, width, height int) *scene {
	s := &scene{
		r:       r,
		sprites: render.NewImmediateBuffer[render.TransformedVertex](r, numSprites*4),
		ground:  render.NewImmediateBuffer[render.LitVertex](r, 6),
		decal:   render.NewImmediateBuffer[render.LitVertex3](r, 4),
		width:   float32(width),
		height:  float32(height),
	}
	ground := []render.LitVertex{
		{P: mgl.Vec3{-10, 0, -10}, Color: 0xff406040, UV: mgl.Vec2{0, 0}},
		{P: mgl.Vec3{10, 0, -10}, Color: 0xff406040, UV: mgl.Vec2{8, 0}},
		{P: mgl.Vec3{-10, 0, 10}, Color: 0xff406040, UV: mgl.Vec2{0, 8}},
		{P: mgl.Vec3{-10, 0, 10}, Color: 0xff406040, UV: mgl.Vec2{0, 8}},
		{P: mgl.Vec3{10, 0, -10}, Color: 0xff406040, UV: mgl.Vec2{8, 0}},
		{P: mgl.Vec3{10, 0, 10}, Color: 0xff406040, UV: mgl.Vec2{8, 8}},
	}
	s.ground.Write(ground, 0, render.DiscardContents)

	var decal [4]render.LitVertex3
	for i := range decal {
		u, v := float32(i&1), float32(i>>1)
		decal[i] = render.LitVertex3{
			P:     mgl.Vec3{u*2 - 1, 0.01, v*2 - 1},
			Color: 0x80ffffff,
			UV:    [3]mgl.Vec2{{u, v}, {u * 4, v * 4}, {v, u}},
		}
	}
	s.decal.Write(decal[:], 0, render.DiscardContents)

	r.SetProjection(r.PerspectiveProjectionMatrix(mgl.DegToRad(60), s.width/s.height, 0.1, 100).
		Mul4(mgl.LookAtV(mgl.Vec3{0, 5, 12}, mgl.Vec3{}, mgl.Vec3{0, 1, 0})))
	return s
}

// frame animates the sprites and issues one draw per buffer.
func (s *scene) frame(n int) error {
	vs := s.sprites.Lock(render.DiscardContents, 0, numSprites*4)
	t := float64(n) / 60
	for q := 0; q < numSprites; q++ {
		a := t + float64(q)*2*math.Pi/numSprites
		cx := s.width/2 + float32(math.Cos(a))*s.width/3
		cy := s.height/2 + float32(math.Sin(a))*s.height/3
		depth := 0.5 + 0.5*float32(math.Sin(a*3))
		rhw := 1 / (1 + depth)
		color := render.PackColor(uint8(q*4), uint8(255-q*4), uint8(n), 0xff)
		for c := 0; c < 4; c++ {
			u, v := float32(c&1), float32(c>>1)
			// Rhw-scaled so the divide lands on screen pixels.
			vs[q*4+c] = render.TransformedVertex{
				P:     mgl.Vec3{(cx + (u-0.5)*16) * rhw, (cy + (v-0.5)*16) * rhw, depth * rhw},
				Rhw:   rhw,
				Color: color,
				UV:    mgl.Vec2{u, v},
			}
		}
	}
	s.sprites.Unlock()

	if err := s.ground.Draw(render.TRIANGLES, 6, 0); err != nil {
		return err
	}
	if err := s.decal.Draw(render.TRIANGLE_STRIP, 4, 0); err != nil {
		return err
	}
	// Only every other sprite is visible on odd frames.
	if n%2 == 1 {
		return s.sprites.DrawIndexed(render.TRIANGLES, numSprites*4, 0, quadIndices[:len(quadIndices)/2])
	}
	return s.sprites.DrawIndexed(render.TRIANGLES, numSprites*4, 0, quadIndices)
}

func (s *scene) destroy() {
	s.sprites.Destroy()
	s.ground.Destroy()
	s.decal.Destroy()
}

func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	cfgPath := fs.String("config", "", "YAML configuration file")
	frames := fs.Int("frames", 120, "number of frames to render")
	kernel := fs.String("kernel", "", "preprocessing kernel (overrides the config)")
	out := fs.String("out", "", "profile log path (overrides the config)")
	csvPath := fs.String("csv", "", "profile variables path (overrides the config)")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}
	if *kernel != "" {
		cfg.Video.Kernel = *kernel
	}
	if *out != "" {
		cfg.Profiler.LogPath = *out
	}
	if *csvPath != "" {
		cfg.Profiler.CSVPath = *csvPath
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	prof := profiler.New(cfg.Profiler.Capacity)
	prof.SetLogger(log)
	mainThread := prof.RegisterThread("render")

	opts := render.RendererOptions{
		Kernel: cfg.Video.Kernel,
		Width:  cfg.Video.Width,
		Height: cfg.Video.Height,
		Logger: log,
	}
	if cfg.Profiler.Enabled {
		opts.Profiler = prof
		opts.Thread = mainThread
	}
	pipe := render.NewRecordingPipeline()
	r, err := render.NewRenderer(pipe, opts)
	if err != nil {
		return err
	}
	log.Info("renderer", "name", r.GetName(), "kernel", r.Preprocessor().Name(), "gamma", cfg.Video.Gamma)

	var flushOnce sync.Once
	var flushErr error
	flush := func() {
		flushOnce.Do(func() {
			if !cfg.Profiler.Enabled {
				return
			}
			prof.UnregisterThread(mainThread)
			flushErr = prof.FlushFiles(cfg.Profiler.LogPath, cfg.Profiler.CSVPath)
			if flushErr == nil {
				log.Info("profile written", "log", cfg.Profiler.LogPath, "csv", cfg.Profiler.CSVPath)
			}
		})
	}
	// Interrupted runs still leave a readable profile behind.
	closer.Bind(func() {
		flush()
		if flushErr != nil {
			log.Error("profile flush failed", "error", flushErr)
		}
	})

	s := newScene(r, cfg.Video.Width, cfg.Video.Height)
	defer s.destroy()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < numLoaders; i++ {
		wg.Go(func() {
			loader(prof, fmt.Sprintf("loader%d", i), done)
		})
	}

	for n := 0; n < *frames; n++ {
		end := prof.Scope("frame", mainThread)
		err := s.frame(n)
		prof.RecordVariable("drawCalls", float32(len(pipe.Draws)))
		prof.RecordVariable("stateCalls", float32(len(pipe.Calls)))
		pipe.Reset()
		end()
		if err != nil {
			close(done)
			wg.Wait()
			return fmt.Errorf("frame %d: %w", n, err)
		}
	}
	close(done)
	wg.Wait()

	log.Info("demo finished", "frames", *frames, "drawCalls", r.DrawCalls())
	flush()
	return flushErr
}

// loader simulates a background asset thread so the profile has more than
// one track.
func loader(prof *profiler.Profiler, name string, done <-chan struct{}) {
	id := prof.RegisterThread(name)
	defer prof.UnregisterThread(id)
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-done:
			return
		default:
		}
		end := prof.Scope("decode", id)
		for i := range buf {
			buf[i] = byte(i * 31)
		}
		end()
		time.Sleep(time.Millisecond)
	}
}
