// Package profiler records timed scopes from many goroutines into a fixed
// ring of profile points and serializes them into the binary .perf log read
// by the offline viewer.
package profiler

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCapacity is the ring size of the engine's profiler. A log never
// holds more points than the ring of the profiler that wrote it.
const DefaultCapacity = 4 * 1024

type ThreadID uint32

type ThreadInfo struct {
	Name  string
	ID    ThreadID
	Start uint64 // us
	End   uint64 // us
}

type Point struct {
	Tag    string
	Thread ThreadID
	Start  uint64 // us
	End    uint64 // us
}

func (p Point) Duration() uint64 {
	return p.End - p.Start
}

type Profiler struct {
	points     []Point
	writeIndex atomic.Uint64

	// Writers spin while a flush is running. inflight counts writers that
	// passed the gate and have not finished storing their point yet.
	flushing atomic.Bool
	inflight atomic.Int64

	mu         sync.Mutex
	threads    map[ThreadID]*ThreadInfo
	nextThread ThreadID
	variables  map[string][]float32

	epoch time.Time
	log   *slog.Logger
}

func New(capacity int) *Profiler {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Profiler{
		points:    make([]Point, capacity),
		threads:   map[ThreadID]*ThreadInfo{},
		variables: map[string][]float32{},
		epoch:     time.Now(),
		log:       slog.Default(),
	}
}

func (p *Profiler) SetLogger(l *slog.Logger) {
	p.log = l
}

func (p *Profiler) Capacity() int {
	return len(p.points)
}

// Now returns monotonic microseconds since the profiler was created.
func (p *Profiler) Now() uint64 {
	return uint64(time.Since(p.epoch).Microseconds())
}

// RegisterThread names the calling thread of execution and returns the id
// its points are tagged with.
func (p *Profiler) RegisterThread(name string) ThreadID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextThread++
	id := p.nextThread
	now := p.Now()
	p.threads[id] = &ThreadInfo{Name: name, ID: id, Start: now, End: now}
	return id
}

func (p *Profiler) UnregisterThread(id ThreadID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.threads[id]; ok {
		t.End = p.Now()
	}
}

// AddPoint stores one profile point. It never locks; once the ring is full
// the oldest point is overwritten.
func (p *Profiler) AddPoint(tag string, thread ThreadID, start, end uint64) {
	for {
		for p.flushing.Load() {
			runtime.Gosched()
		}
		p.inflight.Add(1)
		if !p.flushing.Load() {
			break
		}
		p.inflight.Add(-1)
	}
	pos := p.writeIndex.Add(1) - 1
	p.points[pos%uint64(len(p.points))] = Point{Tag: tag, Thread: thread, Start: start, End: end}
	p.inflight.Add(-1)
}

// Scope starts timing tag and returns the function that records it:
//
//	defer prof.Scope("frame", tid)()
func (p *Profiler) Scope(tag string, thread ThreadID) func() {
	start := p.Now()
	return func() {
		p.AddPoint(tag, thread, start, p.Now())
	}
}

// RecordVariable appends one sample of a named value to the CSV output.
func (p *Profiler) RecordVariable(name string, value float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.variables[name] = append(p.variables[name], value)
}

// snapshot returns the registered threads ordered by id and the points in
// the ring from oldest to newest. Must not run concurrently with writers.
func (p *Profiler) snapshot() ([]ThreadInfo, []Point) {
	threads := make([]ThreadInfo, 0, len(p.threads))
	for _, t := range p.threads {
		threads = append(threads, *t)
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].ID < threads[j].ID })

	written := p.writeIndex.Load()
	capacity := uint64(len(p.points))
	index, n := uint64(0), written
	if written >= capacity {
		index, n = written, capacity
	}
	points := make([]Point, 0, n)
	for i := uint64(0); i < n; i, index = i+1, index+1 {
		points = append(points, p.points[index%capacity])
	}
	return threads, points
}

// Flush blocks all writers, writes the profile log to logw and the recorded
// variables to csvw (skipped when nil or when nothing was recorded), then
// clears the points and variables. Concurrent flushes run one after another.
func (p *Profiler) Flush(logw, csvw io.Writer) error {
	// Closing the gate under the lock keeps one flusher from reopening it
	// while another is snapshotting.
	p.mu.Lock()
	defer p.mu.Unlock()

	p.flushing.Store(true)
	defer p.flushing.Store(false)
	for p.inflight.Load() != 0 {
		runtime.Gosched()
	}

	threads, points := p.snapshot()
	if err := WriteLog(logw, threads, points); err != nil {
		return fmt.Errorf("profiler: write log: %w", err)
	}
	if csvw != nil && len(p.variables) > 0 {
		if err := writeVariables(csvw, p.variables); err != nil {
			return fmt.Errorf("profiler: write variables: %w", err)
		}
	}
	p.log.Debug("profiler flushed", "threads", len(threads), "points", len(points), "variables", len(p.variables))

	p.writeIndex.Store(0)
	clear(p.points)
	clear(p.variables)
	return nil
}

// FlushFiles flushes into logPath and, if csvPath is not empty, csvPath.
func (p *Profiler) FlushFiles(logPath, csvPath string) (err error) {
	lf, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("profiler: %w", err)
	}
	defer func() {
		if cerr := lf.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("profiler: %w", cerr)
		}
	}()
	lw := bufio.NewWriter(lf)

	var cw *bufio.Writer
	if csvPath != "" {
		cf, err := os.Create(csvPath)
		if err != nil {
			return fmt.Errorf("profiler: %w", err)
		}
		defer cf.Close()
		cw = bufio.NewWriter(cf)
	}

	if cw != nil {
		err = p.Flush(lw, cw)
	} else {
		err = p.Flush(lw, nil)
	}
	if err != nil {
		return err
	}
	if err := lw.Flush(); err != nil {
		return fmt.Errorf("profiler: %w", err)
	}
	if cw != nil {
		if err := cw.Flush(); err != nil {
			return fmt.Errorf("profiler: %w", err)
		}
	}
	return nil
}
