package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/xlab/tablewriter"
	"golang.org/x/term"

	"github.com/leonkasovan/ffrender/packages/profiler"
	"github.com/leonkasovan/ffrender/packages/render"
)

func runDump(filename string) error {
	l, err := profiler.ReadLogFile(filename)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	for _, t := range l.Tracks() {
		fmt.Fprintf(w, "thread %d %q [%d, %d] %d points\n", t.Info.ID, t.Info.Name, t.Info.Start, t.Info.End, len(t.Points))
		depths := t.Depths()
		for i, p := range t.Points {
			fmt.Fprintf(w, "  %s%s %d +%s\n", strings.Repeat("  ", depths[i]), p.Tag, p.Start, profiler.FormatDuration(p.Duration()))
		}
	}
	return nil
}

func runSummary(filename string) error {
	l, err := profiler.ReadLogFile(filename)
	if err != nil {
		return err
	}

	table := tablewriter.CreateTable()
	table.UTF8Box()
	table.AddTitle("PROFILE " + filename)
	if start, end, ok := l.TimeRange(); ok {
		table.AddRow("Captured", profiler.FormatDuration(end-start))
	}
	table.AddRow("Threads", len(l.Threads))
	table.AddRow("Points", len(l.Points))

	table.AddSeparator()
	table.AddRow("THREAD", "ID", "LIFETIME", "POINTS")
	for _, t := range l.Tracks() {
		name := t.Info.Name
		if name == "" {
			name = "?"
		}
		table.AddRow(name, t.Info.ID, profiler.FormatDuration(t.Info.End-t.Info.Start), len(t.Points))
	}

	table.AddSeparator()
	table.AddRow("TAG", "COUNT", "TOTAL", "MEAN", "MAX")
	for _, s := range l.Stats() {
		table.AddRow(s.Tag, s.Count, profiler.FormatDuration(s.Total), profiler.FormatDuration(s.Mean()), profiler.FormatDuration(s.Max))
	}

	fmt.Println(table.Render())
	return nil
}

func runTrace(filename, out string) (err error) {
	l, err := profiler.ReadLogFile(filename)
	if err != nil {
		return err
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)

	var progress func()
	if term.IsTerminal(int(os.Stdout.Fd())) {
		bar := progressbar.Default(int64(len(l.Points)), "export "+out)
		defer bar.Close()
		progress = func() { bar.Add(1) }
	}
	if err := l.WriteTrace(w, progress); err != nil {
		return fmt.Errorf("write trace: %w", err)
	}
	return w.Flush()
}

func runKernels() error {
	for i, name := range render.Kernels() {
		suffix := ""
		if i == 0 {
			suffix = " (auto)"
		}
		fmt.Printf("%s%s\n", name, suffix)
	}
	return nil
}
