package profiler

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
)

// writeVariables writes one column per variable, one row per sample. The
// leading "sep=;" line tells spreadsheet tools which separator is used.
func writeVariables(w io.Writer, vars map[string][]float32) error {
	if _, err := w.Write([]byte("sep=;\n")); err != nil {
		return err
	}

	names := make([]string, 0, len(vars))
	rows := 0
	for name, samples := range vars {
		names = append(names, name)
		rows = max(rows, len(samples))
	}
	sort.Strings(names)

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := cw.Write(names); err != nil {
		return err
	}
	record := make([]string, len(names))
	for i := 0; i < rows; i++ {
		for c, name := range names {
			record[c] = ""
			if samples := vars[name]; i < len(samples) {
				record[c] = strconv.FormatFloat(float64(samples[i]), 'f', 5, 32)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
