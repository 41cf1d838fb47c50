package main

// flags.go declares the CLI options and their parsing.  Kept apart from
// main.go so the control flow there stays readable.
//
// © 2025 kvstorage authors. MIT License.

import (
	"flag"
	"time"
)

type options struct {
	target           string
	json             bool
	watch            bool
	interval         time.Duration
	heapProfile      string
	goroutineProfile string
	version          bool
}

func parseFlags() *options {
	opts := &options{}
	flag.StringVar(&opts.target, "target", "http://localhost:6060",
		"base URL of the service exposing the kvstorage debug endpoint")
	flag.BoolVar(&opts.json, "json", false, "print the raw snapshot as indented JSON")
	flag.BoolVar(&opts.watch, "watch", false, "refresh the snapshot periodically")
	flag.DurationVar(&opts.interval, "interval", 2*time.Second, "watch refresh interval")
	flag.StringVar(&opts.heapProfile, "heap", "", "download a heap profile to the given path and exit")
	flag.StringVar(&opts.goroutineProfile, "goroutine", "", "download a goroutine profile to the given path and exit")
	flag.BoolVar(&opts.version, "version", false, "print version and exit")
	flag.Parse()
	return opts
}
