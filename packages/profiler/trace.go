package profiler

import (
	"encoding/json"
	"io"
)

// traceEvent is one entry of the Chrome trace-event format
// (chrome://tracing, Perfetto).
type traceEvent struct {
	Name  string            `json:"name"`
	Phase string            `json:"ph"`
	TS    uint64            `json:"ts"`
	Dur   uint64            `json:"dur,omitempty"`
	PID   int               `json:"pid"`
	TID   ThreadID          `json:"tid"`
	Args  map[string]string `json:"args,omitempty"`
}

type traceFile struct {
	TraceEvents     []traceEvent `json:"traceEvents"`
	DisplayTimeUnit string       `json:"displayTimeUnit"`
}

// WriteTrace converts the log to Chrome trace-event JSON. Each thread
// becomes a named track and each point a complete event. progress, if not
// nil, is called once per converted point.
func (l *Log) WriteTrace(w io.Writer, progress func()) error {
	f := traceFile{
		TraceEvents:     make([]traceEvent, 0, len(l.Threads)+len(l.Points)),
		DisplayTimeUnit: "ms",
	}
	for _, t := range l.Threads {
		f.TraceEvents = append(f.TraceEvents, traceEvent{
			Name:  "thread_name",
			Phase: "M",
			PID:   1,
			TID:   t.ID,
			Args:  map[string]string{"name": t.Name},
		})
	}
	for _, p := range l.Points {
		f.TraceEvents = append(f.TraceEvents, traceEvent{
			Name:  p.Tag,
			Phase: "X",
			TS:    p.Start,
			Dur:   p.Duration(),
			PID:   1,
			TID:   p.Thread,
		})
		if progress != nil {
			progress()
		}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(&f)
}
