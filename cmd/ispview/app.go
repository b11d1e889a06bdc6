// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/isp"
	"github.com/gogpu/isp/backend"
	"github.com/gogpu/isp/gpucore"
	"github.com/gogpu/isp/paramfile"
	"github.com/gogpu/isp/rawio"
	"github.com/gogpu/isp/shader"
)

// app is one ispview session: a device, the current pipeline and the
// frame it processes.
type app struct {
	cfg     config
	log     *slog.Logger
	printer *message.Printer

	dev    gpucore.Device
	params isp.Params
	args   isp.Args
	raw    []byte
	pl     *isp.Pipeline
}

func run(ctx context.Context, cfg config, log *slog.Logger) error {
	a := &app{
		cfg:     cfg,
		log:     log,
		printer: message.NewPrinter(language.English),
		args:    isp.DefaultArgs(),
	}

	var sensor *paramfile.Sensor
	if cfg.params != "" {
		doc, err := paramfile.LoadDocument(cfg.params)
		if err != nil {
			return err
		}
		if a.args, err = doc.Args(); err != nil {
			return err
		}
		sensor = doc.Sensor
	}

	var err error
	if a.params, err = paramsFor(cfg, sensor); err != nil {
		return err
	}
	if cfg.saveParams != "" {
		return a.saveParams()
	}
	if a.raw, err = a.loadInput(); err != nil {
		return err
	}

	if a.dev, err = openDevice(cfg.backend); err != nil {
		return err
	}
	defer a.dev.Close()
	log.Info("device opened", "backend", a.dev.Name())

	if a.pl, err = isp.New(a.dev, a.params); err != nil {
		return err
	}
	defer func() { a.pl.Release() }()

	if err := a.pl.WriteRaw(a.raw); err != nil {
		return err
	}
	if err := a.process(); err != nil {
		return err
	}
	if cfg.dump != "" {
		if err := a.pl.DumpBuffers(cfg.dump); err != nil {
			return err
		}
	}
	if !cfg.watch {
		return nil
	}
	return a.watch(ctx)
}

// paramsFor builds pipeline params from the flags. Geometry missing from
// the command line is taken from the parameter file's sensor table.
func paramsFor(cfg config, sensor *paramfile.Sensor) (isp.Params, error) {
	w, h := cfg.width, cfg.height
	format, cfa := cfg.format, cfg.cfa
	if sensor != nil {
		if w == 0 && h == 0 {
			w, h = sensor.Width, sensor.Height
		}
		if !cfg.set["format"] && sensor.Format != "" {
			format = sensor.Format
		}
		if !cfg.set["cfa"] && sensor.CFA != "" {
			cfa = sensor.CFA
		}
	}

	p := isp.DefaultParams(w, h)
	var err error
	if p.Format, err = isp.ParseSampleFormat(format); err != nil {
		return p, err
	}
	if p.CFA, err = isp.ParseCFA(cfa); err != nil {
		return p, err
	}
	if p.Disabled, err = parseDisabled(cfg.disable); err != nil {
		return p, err
	}
	if cfg.shaders != "" {
		if p.Shaders, err = shader.Load(cfg.shaders); err != nil {
			return p, err
		}
	}
	return p, nil
}

// isMosaicImage reports whether path names an image rather than raw samples.
func isMosaicImage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".tif", ".tiff", ".bmp":
		return true
	}
	return false
}

// loadInput returns the frame to process in the pipeline's sample format.
// Mosaic images fix the geometry and switch the format to u16.
func (a *app) loadInput() ([]byte, error) {
	p := &a.params
	switch {
	case a.cfg.synthetic:
		if p.Width == 0 || p.Height == 0 {
			p.Width, p.Height = 640, 480
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return rawio.Synthesize(p.Width, p.Height, p.Format, p.CFA), nil

	case isMosaicImage(a.cfg.raw):
		raw, w, h, err := rawio.ReadMosaic(a.cfg.raw)
		if err != nil {
			return nil, err
		}
		if p.Width != 0 && (p.Width != w || p.Height != h) {
			a.log.Warn("mosaic size overrides -width/-height", "image", fmt.Sprintf("%dx%d", w, h))
		}
		p.Width, p.Height, p.Format = w, h, isp.U16
		return raw, p.Validate()

	default:
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return rawio.ReadRaw(a.cfg.raw, p.Width, p.Height, p.Format)
	}
}

func openDevice(name string) (gpucore.Device, error) {
	if name == "" {
		return backend.Default()
	}
	return backend.Get(name)
}

// process runs the configured number of frames and writes the output.
func (a *app) process() error {
	start := time.Now()
	for range a.cfg.frames {
		if err := a.pl.Run(&a.args); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)
	pixels := float64(a.params.Width*a.params.Height) * float64(a.cfg.frames)
	a.log.Info("frames processed",
		"frames", a.cfg.frames,
		"elapsed", elapsed,
		"mpix_per_sec", a.printer.Sprintf("%.1f", pixels/elapsed.Seconds()/1e6))

	rgba, err := a.pl.ReadOutput()
	if err != nil {
		return err
	}
	if err := rawio.Save(a.cfg.out, a.params.Width, a.params.Height, rgba); err != nil {
		return err
	}
	size := int64(0)
	if fi, err := os.Stat(a.cfg.out); err == nil {
		size = fi.Size()
	}
	a.log.Info("output written", "path", a.cfg.out, "size", a.printer.Sprintf("%d bytes", size))
	return nil
}

// saveParams writes the effective arguments and sensor geometry.
func (a *app) saveParams() error {
	doc := paramfile.FromArgs(a.args)
	doc.Sensor = &paramfile.Sensor{
		Width:  a.params.Width,
		Height: a.params.Height,
		Format: a.params.Format.String(),
		CFA:    a.params.CFA.String(),
	}
	f, err := paramfile.FormatOf(a.cfg.saveParams)
	if err != nil {
		return err
	}
	data, err := paramfile.MarshalDocument(f, doc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(a.cfg.saveParams, data, 0o644); err != nil {
		return fmt.Errorf("ispview: %w", err)
	}
	a.log.Info("parameters written", "path", a.cfg.saveParams, "format", f)
	return nil
}

// reload rebuilds the pipeline after an edit. Shaders are reread when
// shadersChanged; arguments when argsChanged. Any failure is logged and
// the running pipeline is kept.
func (a *app) reload(shadersChanged, argsChanged bool) {
	if argsChanged {
		args, err := paramfile.Load(a.cfg.params)
		if err != nil {
			a.log.Warn("parameter reload failed", "path", a.cfg.params, "err", err)
		} else {
			a.args = args
			a.log.Info("parameters reloaded", "path", a.cfg.params)
		}
	}
	if shadersChanged {
		src, err := shader.Load(a.cfg.shaders)
		if err != nil {
			a.log.Warn("shader reload failed", "dir", a.cfg.shaders, "err", err)
			return
		}
		next := a.params
		next.Shaders = src
		pl, err := a.pl.Reload(next)
		if err != nil {
			a.log.Warn("pipeline rebuild failed, keeping the previous one", "err", err)
			return
		}
		a.pl.Release()
		a.pl = pl
		a.params = next
	}
	if err := a.process(); err != nil {
		a.log.Warn("frame failed", "err", err)
	}
}
