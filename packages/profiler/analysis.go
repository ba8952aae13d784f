package profiler

import (
	"fmt"
	"math"
	"sort"
)

// Track is the timeline of one thread as the viewer lays it out.
type Track struct {
	Info   ThreadInfo
	Points []Point
}

// Tracks groups the points by thread, ordered by thread id. Points of
// threads missing from the thread table get a track with only the id set.
func (l *Log) Tracks() []Track {
	byID := map[ThreadID]*Track{}
	for _, t := range l.Threads {
		byID[t.ID] = &Track{Info: t}
	}
	for _, p := range l.Points {
		t, ok := byID[p.Thread]
		if !ok {
			t = &Track{Info: ThreadInfo{ID: p.Thread}}
			byID[p.Thread] = t
		}
		t.Points = append(t.Points, p)
	}
	tracks := make([]Track, 0, len(byID))
	for _, t := range byID {
		tracks = append(tracks, *t)
	}
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].Info.ID < tracks[j].Info.ID })
	return tracks
}

// TimeRange spans the first point's start to the last point's end of the
// track. ok is false for a track without points.
func (t Track) TimeRange() (start, end uint64, ok bool) {
	if len(t.Points) == 0 {
		return 0, 0, false
	}
	return t.Points[0].Start, t.Points[len(t.Points)-1].End, true
}

// Depths returns the nesting depth of each point. Scopes record on exit, so
// an enclosing scope comes after the scopes it contains; walking backwards
// keeps a stack of the enclosing start times.
func (t Track) Depths() []int {
	depths := make([]int, len(t.Points))
	var stack []uint64
	for i := len(t.Points) - 1; i >= 0; i-- {
		p := t.Points[i]
		for len(stack) > 0 && p.End <= stack[len(stack)-1] {
			stack = stack[:len(stack)-1]
		}
		depths[i] = len(stack)
		stack = append(stack, p.Start)
	}
	return depths
}

// TimeRange covers every track that has points.
func (l *Log) TimeRange() (start, end uint64, ok bool) {
	start = math.MaxUint64
	for _, t := range l.Tracks() {
		s, e, has := t.TimeRange()
		if !has {
			continue
		}
		ok = true
		start = min(start, s)
		end = max(end, e)
	}
	if !ok {
		return 0, 0, false
	}
	return start, end, true
}

var (
	durationUnits = [...]string{"us", "ms", "s", "m", "h", "d"}
	durationNext  = [...]float64{1000, 1000, 60, 60, 24}
)

// FormatDuration renders microseconds in the largest fitting unit with two
// decimals, e.g. 1500 -> "1.50 ms".
func FormatDuration(us uint64) string {
	d := float64(us)
	unit := 0
	for unit < len(durationNext) && d > durationNext[unit] {
		d /= durationNext[unit]
		unit++
	}
	return fmt.Sprintf("%.2f %s", d, durationUnits[unit])
}

// TagStats aggregates the points sharing a tag.
type TagStats struct {
	Tag   string
	Count int
	Total uint64
	Min   uint64
	Max   uint64
}

func (s TagStats) Mean() uint64 {
	if s.Count == 0 {
		return 0
	}
	return s.Total / uint64(s.Count)
}

// Stats returns one entry per tag, most total time first.
func (l *Log) Stats() []TagStats {
	byTag := map[string]*TagStats{}
	for _, p := range l.Points {
		s, ok := byTag[p.Tag]
		if !ok {
			s = &TagStats{Tag: p.Tag, Min: math.MaxUint64}
			byTag[p.Tag] = s
		}
		d := p.Duration()
		s.Count++
		s.Total += d
		s.Min = min(s.Min, d)
		s.Max = max(s.Max, d)
	}
	stats := make([]TagStats, 0, len(byTag))
	for _, s := range byTag {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Total != stats[j].Total {
			return stats[i].Total > stats[j].Total
		}
		return stats[i].Tag < stats[j].Tag
	})
	return stats
}
