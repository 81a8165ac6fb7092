// Command actsim runs the aircraft collision-detection simulator.
//
// Usage:
//
//	actsim filter [-threshold N]
//	actsim simulate [-max-age SECONDS] [-scale METERS] [-threshold N] [-d]
//
// Both subcommands read line-delimited input from standard input: filter
// treats each line as an opaque id, simulate expects a JSON packet per line
// (see internal/simulator/pipeline.Packet).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/actsim/internal/simulator/debug"
	"github.com/banshee-data/actsim/internal/simulator/pipeline"
	"github.com/banshee-data/actsim/internal/simulator/ui"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "filter":
		err = runFilter(os.Args[2:])
	case "simulate":
		err = runSimulate(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "actsim: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("actsim: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: actsim <filter|simulate> [flags]")
	fmt.Fprintln(os.Stderr, "  filter     admit ids from stdin, report first-seen/promoted ids")
	fmt.Fprintln(os.Stderr, "  simulate   track ADS-B packets from stdin and render a live radar view")
}

func runFilter(args []string) error {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	threshold := fs.Int("threshold", 0, "sightings required before promotion (0 = default)")
	debugMode := fs.Bool("d", false, "enable debug logging to stderr")
	fs.BoolVar(debugMode, "debug", false, "enable debug logging to stderr")
	fs.Parse(args)

	if *debugMode {
		debug.SetLogger(os.Stderr)
	}

	d := pipeline.NewDriver(pipeline.Config{Threshold: *threshold})
	return d.RunFilter(os.Stdin, os.Stdout)
}

func runSimulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	maxAgeSecs := fs.Int("max-age", int(pipeline.DefaultMaxAge/time.Second), "track expiry age in seconds")
	scale := fs.Float64("scale", 0, "radar operating scale in meters (0 = default)")
	threshold := fs.Int("threshold", 0, "sightings required before promotion (0 = default)")
	debugMode := fs.Bool("d", false, "enable debug logging to stderr")
	fs.BoolVar(debugMode, "debug", false, "enable debug logging to stderr")
	fs.Parse(args)

	if *debugMode {
		debug.SetLogger(os.Stderr)
	}

	d := pipeline.NewDriver(pipeline.Config{
		Scale:     *scale,
		MaxAge:    time.Duration(*maxAgeSecs) * time.Second,
		Threshold: *threshold,
	})

	renderer, err := ui.NewScreen()
	if err != nil {
		return fmt.Errorf("start terminal: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runErr := d.RunSimulate(ctx, os.Stdin, renderer)
	if err := d.WriteRunSummary(); err != nil {
		log.Printf("actsim: write run summary: %v", err)
	}
	return runErr
}
