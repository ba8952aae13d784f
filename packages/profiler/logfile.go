package profiler

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// The .perf layout, all integers little-endian, no header or version:
//
//	u32 threadCount
//	  u32 nameLen, name, u32 threadID, u64 start, u64 end
//	u32 pointCount
//	  u32 tagLen, tag, u32 threadID, u64 start, u64 end
//
// Points are stored oldest first. Times are microseconds.

// maxStringLen bounds names and tags when reading untrusted logs.
const maxStringLen = 64 * 1024

type Log struct {
	Threads []ThreadInfo
	Points  []Point
}

type logWriter struct {
	w   io.Writer
	buf [8]byte
	err error
}

func (lw *logWriter) u32(v uint32) {
	if lw.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(lw.buf[:4], v)
	_, lw.err = lw.w.Write(lw.buf[:4])
}

func (lw *logWriter) u64(v uint64) {
	if lw.err != nil {
		return
	}
	binary.LittleEndian.PutUint64(lw.buf[:8], v)
	_, lw.err = lw.w.Write(lw.buf[:8])
}

func (lw *logWriter) str(s string) {
	lw.u32(uint32(len(s)))
	if lw.err != nil {
		return
	}
	_, lw.err = io.WriteString(lw.w, s)
}

func WriteLog(w io.Writer, threads []ThreadInfo, points []Point) error {
	lw := &logWriter{w: w}
	lw.u32(uint32(len(threads)))
	for _, t := range threads {
		lw.str(t.Name)
		lw.u32(uint32(t.ID))
		lw.u64(t.Start)
		lw.u64(t.End)
	}
	lw.u32(uint32(len(points)))
	for _, p := range points {
		lw.str(p.Tag)
		lw.u32(uint32(p.Thread))
		lw.u64(p.Start)
		lw.u64(p.End)
	}
	return lw.err
}

type logReader struct {
	r   *bufio.Reader
	buf [8]byte
	err error
}

func (lr *logReader) read(n int) []byte {
	if lr.err != nil {
		return lr.buf[:n]
	}
	if _, err := io.ReadFull(lr.r, lr.buf[:n]); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		lr.err = err
	}
	return lr.buf[:n]
}

func (lr *logReader) u32() uint32 {
	return binary.LittleEndian.Uint32(lr.read(4))
}

func (lr *logReader) u64() uint64 {
	return binary.LittleEndian.Uint64(lr.read(8))
}

func (lr *logReader) str() string {
	n := lr.u32()
	if lr.err != nil {
		return ""
	}
	if n > maxStringLen {
		lr.err = fmt.Errorf("string length %d exceeds %d", n, maxStringLen)
		return ""
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(lr.r, b); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		lr.err = err
		return ""
	}
	return string(b)
}

func ReadLog(r io.Reader) (*Log, error) {
	lr := &logReader{r: bufio.NewReader(r)}
	l := &Log{}

	n := lr.u32()
	for i := uint32(0); i < n && lr.err == nil; i++ {
		var t ThreadInfo
		t.Name = lr.str()
		t.ID = ThreadID(lr.u32())
		t.Start = lr.u64()
		t.End = lr.u64()
		l.Threads = append(l.Threads, t)
	}
	if lr.err != nil {
		return nil, fmt.Errorf("profiler: read threads: %w", lr.err)
	}

	n = lr.u32()
	for i := uint32(0); i < n && lr.err == nil; i++ {
		var p Point
		p.Tag = lr.str()
		p.Thread = ThreadID(lr.u32())
		p.Start = lr.u64()
		p.End = lr.u64()
		l.Points = append(l.Points, p)
	}
	if lr.err != nil {
		return nil, fmt.Errorf("profiler: read points: %w", lr.err)
	}
	return l, nil
}

func ReadLogFile(filename string) (*Log, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLog(f)
}
