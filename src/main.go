// Command ffrender drives the fixed-function renderer headlessly and
// inspects the profile logs it writes.
package main

import (
	"fmt"
	"os"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: ffrender <command> [args...]\n")
	fmt.Fprintf(os.Stderr, "commands:\n")
	fmt.Fprintf(os.Stderr, "  demo [-config file] [-frames n] [-kernel name] [-out file.perf] [-csv file.csv]\n")
	fmt.Fprintf(os.Stderr, "      render a scene into a recording pipeline and write a profile\n")
	fmt.Fprintf(os.Stderr, "  dump file.perf: print every thread and point of a profile log\n")
	fmt.Fprintf(os.Stderr, "  summary file.perf: print per-thread and per-tag statistics\n")
	fmt.Fprintf(os.Stderr, "  trace file.perf out.json: convert a profile log to Chrome trace JSON\n")
	fmt.Fprintf(os.Stderr, "  kernels: list the preprocessing kernels usable on this CPU\n")
	os.Exit(1)
}

func run(args []string) error {
	if len(args) < 1 {
		usage()
	}
	switch args[0] {
	case "demo":
		return runDemo(args[1:])
	case "dump":
		if len(args) != 2 {
			usage()
		}
		return runDump(args[1])
	case "summary":
		if len(args) != 2 {
			usage()
		}
		return runSummary(args[1])
	case "trace":
		if len(args) != 3 {
			usage()
		}
		return runTrace(args[1], args[2])
	case "kernels":
		return runKernels()
	default:
		usage()
	}
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ffrender: %v\n", err)
		os.Exit(1)
	}
}
