package profiler

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
)

func newQuiet(capacity int) *Profiler {
	p := New(capacity)
	p.SetLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return p
}

func flushLog(t *testing.T, p *Profiler) *Log {
	t.Helper()
	var buf bytes.Buffer
	if err := p.Flush(&buf, nil); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	l, err := ReadLog(&buf)
	if err != nil {
		t.Fatalf("ReadLog failed: %v", err)
	}
	return l
}

func TestRegisterThread(t *testing.T) {
	p := newQuiet(8)
	a := p.RegisterThread("main")
	b := p.RegisterThread("worker")
	if a != 1 || b != 2 {
		t.Fatalf("ids = %d, %d; want 1, 2", a, b)
	}
	p.UnregisterThread(b)
	p.UnregisterThread(99)

	l := flushLog(t, p)
	if len(l.Threads) != 2 {
		t.Fatalf("%d threads, want 2", len(l.Threads))
	}
	if l.Threads[0].Name != "main" || l.Threads[1].Name != "worker" {
		t.Errorf("threads = %+v", l.Threads)
	}
	if w := l.Threads[1]; w.End < w.Start {
		t.Errorf("worker ends before it starts: %+v", w)
	}
}

func TestRingKeepsNewestPoints(t *testing.T) {
	const capacity = 8
	tests := []struct {
		name  string
		added int
	}{
		{"empty", 0},
		{"partial", 5},
		{"exactly full", capacity},
		{"wrapped", capacity + 3},
		{"wrapped twice", 3*capacity + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newQuiet(capacity)
			tid := p.RegisterThread("main")
			for i := 0; i < tt.added; i++ {
				p.AddPoint(fmt.Sprintf("p%d", i), tid, uint64(i), uint64(i+1))
			}
			l := flushLog(t, p)

			first := max(0, tt.added-capacity)
			if len(l.Points) != tt.added-first {
				t.Fatalf("%d points, want %d", len(l.Points), tt.added-first)
			}
			for i, pt := range l.Points {
				want := Point{Tag: fmt.Sprintf("p%d", first+i), Thread: tid, Start: uint64(first + i), End: uint64(first + i + 1)}
				if pt != want {
					t.Fatalf("point %d = %+v, want %+v", i, pt, want)
				}
			}
		})
	}
}

func TestFlushResets(t *testing.T) {
	p := newQuiet(4)
	tid := p.RegisterThread("main")
	for i := 0; i < 6; i++ {
		p.AddPoint("a", tid, 0, 1)
	}
	p.RecordVariable("fps", 60)
	var csv bytes.Buffer
	if err := p.Flush(io.Discard, &csv); err != nil {
		t.Fatal(err)
	}
	if csv.Len() == 0 {
		t.Fatal("no variables written")
	}

	p.AddPoint("b", tid, 2, 3)
	csv.Reset()
	var buf bytes.Buffer
	if err := p.Flush(&buf, &csv); err != nil {
		t.Fatal(err)
	}
	if csv.Len() != 0 {
		t.Errorf("variables survived the flush: %q", csv.String())
	}
	l, err := ReadLog(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Points) != 1 || l.Points[0].Tag != "b" {
		t.Fatalf("points after flush = %+v", l.Points)
	}
	if len(l.Threads) != 1 {
		t.Errorf("threads must survive a flush, got %d", len(l.Threads))
	}
}

func TestConcurrentWriters(t *testing.T) {
	const (
		writers   = 8
		perWriter = 500
	)
	p := newQuiet(writers * perWriter)

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Go(func() {
			tid := p.RegisterThread(fmt.Sprintf("w%d", w))
			for i := 0; i < perWriter; i++ {
				p.Scope("work", tid)()
			}
			p.UnregisterThread(tid)
		})
	}
	wg.Wait()

	l := flushLog(t, p)
	if len(l.Points) != writers*perWriter {
		t.Fatalf("%d points, want %d", len(l.Points), writers*perWriter)
	}
	perThread := map[ThreadID]int{}
	for _, pt := range l.Points {
		if pt.Tag != "work" || pt.End < pt.Start {
			t.Fatalf("bad point %+v", pt)
		}
		perThread[pt.Thread]++
	}
	for _, tr := range l.Threads {
		if perThread[tr.ID] != perWriter {
			t.Errorf("thread %q wrote %d points, want %d", tr.Name, perThread[tr.ID], perWriter)
		}
	}
}

// Writers keep running while flushes happen. Every flush must produce a
// readable log and no point may be lost or reported twice.
func TestFlushDuringWrites(t *testing.T) {
	const (
		writers   = 4
		perWriter = 200
	)
	p := newQuiet(writers * perWriter)
	tid := p.RegisterThread("main")

	finished := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Go(func() {
			for i := 0; i < perWriter; i++ {
				p.AddPoint("spin", tid, uint64(i), uint64(i+1))
			}
		})
	}
	go func() {
		wg.Wait()
		close(finished)
	}()

	total := 0
	for running := true; running; {
		select {
		case <-finished:
			running = false
		default:
		}
		l := flushLog(t, p)
		for _, pt := range l.Points {
			if pt.Tag != "spin" || pt.End != pt.Start+1 {
				t.Fatalf("bad point %+v", pt)
			}
		}
		total += len(l.Points)
	}
	if total != writers*perWriter {
		t.Fatalf("flushed %d points in total, want %d", total, writers*perWriter)
	}
}

// Two flushers race each other and the writers. A flush that reopens the
// gate while the other still snapshots would drop points on reset.
func TestConcurrentFlushes(t *testing.T) {
	const (
		writers   = 4
		perWriter = 500
		flushers  = 2
	)
	p := newQuiet(writers * perWriter)
	tid := p.RegisterThread("main")

	finished := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Go(func() {
			for i := 0; i < perWriter; i++ {
				p.AddPoint("spin", tid, uint64(i), uint64(i+1))
			}
		})
	}
	go func() {
		wg.Wait()
		close(finished)
	}()

	var (
		mu    sync.Mutex
		total int
		errs  []error
	)
	var fg sync.WaitGroup
	for f := 0; f < flushers; f++ {
		fg.Go(func() {
			for running := true; running; {
				select {
				case <-finished:
					running = false
				default:
				}
				var buf bytes.Buffer
				err := p.Flush(&buf, nil)
				var l *Log
				if err == nil {
					l, err = ReadLog(&buf)
				}
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
				} else {
					total += len(l.Points)
				}
				mu.Unlock()
			}
		})
	}
	fg.Wait()

	if len(errs) > 0 {
		t.Fatalf("flush failed: %v", errs[0])
	}
	total += len(flushLog(t, p).Points)
	if total != writers*perWriter {
		t.Fatalf("flushed %d points in total, want %d", total, writers*perWriter)
	}
}

func TestFlushFiles(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "profile.perf")
	csvPath := filepath.Join(dir, "profile.csv")

	p := newQuiet(16)
	tid := p.RegisterThread("main")
	p.AddPoint("frame", tid, 10, 20)
	p.RecordVariable("fps", 59.5)
	p.RecordVariable("fps", 60)
	p.RecordVariable("draws", 12)

	if err := p.FlushFiles(logPath, csvPath); err != nil {
		t.Fatalf("FlushFiles failed: %v", err)
	}
	l, err := ReadLogFile(logPath)
	if err != nil {
		t.Fatalf("ReadLogFile failed: %v", err)
	}
	if len(l.Points) != 1 || l.Points[0].Tag != "frame" {
		t.Fatalf("points = %+v", l.Points)
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	want := "sep=;\ndraws;fps\n12.00000;59.50000\n;60.00000\n"
	if string(data) != want {
		t.Errorf("csv:\n%q\nwant\n%q", data, want)
	}

	if err := p.FlushFiles(filepath.Join(dir, "missing", "x.perf"), ""); err == nil {
		t.Error("expected error for unwritable log path")
	}
}

func TestLogRoundTrip(t *testing.T) {
	threads := []ThreadInfo{
		{Name: "main", ID: 1, Start: 5, End: 900},
		{Name: "", ID: 2, Start: 0, End: 0},
		{Name: "音声", ID: 7, Start: 1 << 40, End: 1<<40 + 1},
	}
	points := []Point{
		{Tag: "frame", Thread: 1, Start: 10, End: 50},
		{Tag: "", Thread: 7, Start: 1 << 40, End: 1<<40 + 1},
		{Tag: "orphan", Thread: 3, Start: 60, End: 61},
	}
	var buf bytes.Buffer
	if err := WriteLog(&buf, threads, points); err != nil {
		t.Fatal(err)
	}

	raw := buf.Bytes()
	if n := binary.LittleEndian.Uint32(raw); n != 3 {
		t.Fatalf("thread count field = %d", n)
	}
	if n := binary.LittleEndian.Uint32(raw[4:]); n != 4 || string(raw[8:12]) != "main" {
		t.Fatalf("first thread name encoded as len %d %q", n, raw[8:12])
	}
	wantSize := 4 + 4
	for _, th := range threads {
		wantSize += 4 + len(th.Name) + 4 + 8 + 8
	}
	for _, pt := range points {
		wantSize += 4 + len(pt.Tag) + 4 + 8 + 8
	}
	if len(raw) != wantSize {
		t.Fatalf("encoded size %d, want %d", len(raw), wantSize)
	}

	l, err := ReadLog(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(l.Threads, threads) || !slices.Equal(l.Points, points) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", l.Threads, l.Points)
	}
}

func TestReadLogTruncated(t *testing.T) {
	var buf bytes.Buffer
	err := WriteLog(&buf,
		[]ThreadInfo{{Name: "main", ID: 1, Start: 1, End: 2}},
		[]Point{{Tag: "frame", Thread: 1, Start: 1, End: 2}})
	if err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()
	for _, n := range []int{0, 3, 10, 20, len(raw) - 1} {
		_, err := ReadLog(bytes.NewReader(raw[:n]))
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("truncated at %d: err = %v, want io.ErrUnexpectedEOF", n, err)
		}
	}
}

func TestReadLogRejectsHugeStrings(t *testing.T) {
	var raw [8]byte
	binary.LittleEndian.PutUint32(raw[0:], 1)
	binary.LittleEndian.PutUint32(raw[4:], 1<<31)
	_, err := ReadLog(bytes.NewReader(raw[:]))
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("err = %v, want length error", err)
	}
}

func BenchmarkAddPoint(b *testing.B) {
	p := newQuiet(DefaultCapacity)
	tid := p.RegisterThread("bench")
	for b.Loop() {
		p.AddPoint("bench", tid, 1, 2)
	}
}

func BenchmarkAddPointParallel(b *testing.B) {
	p := newQuiet(DefaultCapacity)
	tid := p.RegisterThread("bench")
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			p.AddPoint("bench", tid, 1, 2)
		}
	})
}
