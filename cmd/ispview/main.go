// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command ispview develops an ISP pipeline against recorded sensor data.
//
// It reads a raw frame (or synthesizes a color chart), runs it through
// the pipeline and writes the result as PNG, TIFF or BMP. With -watch it
// keeps running and rebuilds the pipeline whenever a shader or the
// parameter file changes; a broken edit is logged and the last good
// pipeline keeps serving.
//
// Usage:
//
//	ispview -raw frame.raw -width 1920 -height 1080 -format u12 -cfa GRBG -out frame.png
//	ispview -synthetic -width 640 -height 480 -shaders ./wgsl -params isp.toml -watch
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gogpu/isp"
	_ "github.com/gogpu/isp/backend/native"   // registers the GPU backend
	_ "github.com/gogpu/isp/backend/software" // registers the CPU fallback
)

// config holds the parsed command line.
type config struct {
	raw        string
	width      int
	height     int
	format     string
	cfa        string
	params     string
	saveParams string
	shaders    string
	backend    string
	out        string
	frames     int
	watch      bool
	dump       string
	disable    string
	synthetic  bool
	verbose    bool

	// set holds the flags given explicitly.
	set map[string]bool
}

func parseFlags(args []string) (config, error) {
	var c config
	fs := flag.NewFlagSet("ispview", flag.ContinueOnError)
	fs.StringVar(&c.raw, "raw", "", "raw frame (headerless samples) or a PNG/TIFF/BMP mosaic")
	fs.IntVar(&c.width, "width", 0, "frame width in pixels")
	fs.IntVar(&c.height, "height", 0, "frame height in pixels")
	fs.StringVar(&c.format, "format", "u16", "sample format: u8, u10, u12, u14 or u16")
	fs.StringVar(&c.cfa, "cfa", "RGGB", "Bayer layout: RGGB, GRBG, GBRG or BGGR")
	fs.StringVar(&c.params, "params", "", "TOML or YAML parameter file")
	fs.StringVar(&c.saveParams, "save-params", "", "write the effective parameters to this file and exit")
	fs.StringVar(&c.shaders, "shaders", "", "directory of WGSL files overriding the built-in shaders")
	fs.StringVar(&c.backend, "backend", "", "device backend (native, software); empty picks the best available")
	fs.StringVar(&c.out, "out", "out.png", "output image (.png, .tif, .bmp)")
	fs.IntVar(&c.frames, "frames", 1, "number of frames to run")
	fs.BoolVar(&c.watch, "watch", false, "rebuild on shader or parameter changes until interrupted")
	fs.StringVar(&c.dump, "dump", "", "dump every pipeline buffer to this directory")
	fs.StringVar(&c.disable, "disable", "", "comma separated stages to leave out (auto_white_balance, color_correction)")
	fs.BoolVar(&c.synthetic, "synthetic", false, "synthesize a color chart instead of reading -raw")
	fs.BoolVar(&c.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	c.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { c.set[f.Name] = true })

	switch {
	case c.frames < 1:
		return c, fmt.Errorf("-frames must be at least 1")
	case c.raw == "" && !c.synthetic && c.saveParams == "":
		return c, fmt.Errorf("one of -raw or -synthetic is required")
	case c.raw != "" && c.synthetic:
		return c, fmt.Errorf("-raw and -synthetic are exclusive")
	}
	return c, nil
}

// parseDisabled parses the -disable list.
func parseDisabled(s string) (isp.StageMask, error) {
	var m isp.StageMask
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, err := isp.ParseStageID(name)
		if err != nil {
			return 0, err
		}
		m |= id.Mask()
	}
	return m, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "ispview:", err)
		os.Exit(2)
	}

	log := newLogger(cfg.verbose)
	isp.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("ispview failed", "err", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}
