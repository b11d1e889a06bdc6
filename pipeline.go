// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/isp/bufplan"
	"github.com/gogpu/isp/gpucore"
)

// Pipeline is a constructed ISP pipeline bound to one device.
//
// A Pipeline is built once for a set of Params and then driven frame by
// frame: write the raw input, Run (or Execute plus ConvertOutput on a host
// encoder), then read or display the output texture. It is not safe for
// concurrent use.
type Pipeline struct {
	dev    gpucore.Device
	params Params
	stages []Stage
	active []int
	plan   *bufplan.Plan
	output *outputConversion

	released bool
}

// New builds a pipeline on dev. Every active stage is constructed against
// one solved buffer plan; on failure everything created so far is released
// and a *PipelineConstructionError is returned.
func New(dev gpucore.Device, p Params) (*Pipeline, error) {
	if dev == nil {
		return nil, &PipelineConstructionError{Stage: "device", Err: ErrNilDevice}
	}
	return build(dev, p, defaultStages())
}

func build(dev gpucore.Device, p Params, stages []Stage) (*Pipeline, error) {
	if err := p.Validate(); err != nil {
		return nil, &PipelineConstructionError{Stage: "params", Err: err}
	}
	log := Logger()
	propagateLogger(dev, log)

	pl := &Pipeline{dev: dev, params: p, stages: stages}

	var decls []bufplan.Declaration
	for i, s := range stages {
		if !s.Active(p) {
			log.Debug("isp: stage inactive", "stage", s.ID())
			continue
		}
		pl.active = append(pl.active, i)
		decls = append(decls, bufplan.Declare(i, s.Declare(p)...)...)
	}

	plan, err := bufplan.Resolve(decls, dev)
	if err != nil {
		return nil, &PipelineConstructionError{Stage: "plan", Err: err}
	}
	pl.plan = plan
	log.Debug("isp: buffer plan", "stats", plan.Layout().Stats().String())

	for n, i := range pl.active {
		s := stages[i]
		if err := s.Construct(dev, p, plan.View(i)); err != nil {
			// The failing stage may hold partial resources.
			pl.releaseStages(n + 1)
			plan.Release()
			return nil, &PipelineConstructionError{Stage: s.ID().String(), Err: err}
		}
		log.Debug("isp: stage constructed", "stage", s.ID())
	}

	rgb, err := plan.Lookup(bufRGB)
	if err == nil {
		pl.output, err = newOutputConversion(dev, p, rgb.Buffer)
	}
	if err != nil {
		pl.releaseStages(len(pl.active))
		plan.Release()
		return nil, &PipelineConstructionError{Stage: "output", Err: err}
	}

	log.Info("isp: pipeline built",
		"backend", dev.Name(),
		"width", p.Width,
		"height", p.Height,
		"format", p.Format,
		"cfa", p.CFA,
		"stages", len(pl.active))
	return pl, nil
}

// releaseStages releases the first n active stages in reverse order.
func (pl *Pipeline) releaseStages(n int) {
	for k := n - 1; k >= 0; k-- {
		pl.stages[pl.active[k]].Release()
	}
}

// Execute records every active stage into enc in registration order,
// uploading each stage's arguments from a first. a is not retained.
func (pl *Pipeline) Execute(enc gpucore.CommandEncoder, a *Args) error {
	switch {
	case pl.released:
		return ErrReleased
	case enc == nil:
		return errors.New("isp: nil encoder")
	case a == nil:
		return ErrNilArgs
	}
	for _, i := range pl.active {
		s := pl.stages[i]
		if err := s.Execute(enc, a); err != nil {
			return fmt.Errorf("isp: execute %s: %w", s.ID(), err)
		}
	}
	return nil
}

// ConvertOutput records the conversion of rgb into the output texture.
func (pl *Pipeline) ConvertOutput(enc gpucore.CommandEncoder) error {
	if pl.released {
		return ErrReleased
	}
	if enc == nil {
		return errors.New("isp: nil encoder")
	}
	pl.output.record(enc)
	return nil
}

// Run records, submits and waits for one frame.
func (pl *Pipeline) Run(a *Args) error {
	if pl.released {
		return ErrReleased
	}
	enc, err := pl.dev.CreateCommandEncoder("isp.frame")
	if err != nil {
		return fmt.Errorf("isp: frame encoder: %w", err)
	}
	if err := pl.Execute(enc, a); err != nil {
		enc.Discard()
		return err
	}
	if err := pl.ConvertOutput(enc); err != nil {
		enc.Discard()
		return err
	}
	return pl.submit(enc)
}

func (pl *Pipeline) submit(enc gpucore.CommandEncoder) error {
	cmd, err := enc.Finish()
	if err != nil {
		return fmt.Errorf("isp: finish: %w", err)
	}
	if err := pl.dev.Submit(cmd); err != nil {
		return fmt.Errorf("isp: submit %s: %w", cmd.Label(), err)
	}
	return pl.dev.WaitIdle()
}

// WriteInput uploads one frame of samples, in sample units, into the raw
// buffer. len(samples) must be Width*Height.
func (pl *Pipeline) WriteInput(samples []float32) error {
	if pl.released {
		return ErrReleased
	}
	want := pl.params.Width * pl.params.Height
	if len(samples) != want {
		return pl.mismatch(len(samples), want)
	}
	buf := make([]byte, 0, 4*len(samples))
	for _, v := range samples {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return pl.writeRaw(buf)
}

// WriteRaw uploads one frame of little-endian sensor samples in the
// pipeline's sample format. len(raw) must be
// Width*Height*Format.BytesPerSample(); nothing reaches the device
// otherwise.
func (pl *Pipeline) WriteRaw(raw []byte) error {
	if pl.released {
		return ErrReleased
	}
	bps := pl.params.Format.BytesPerSample()
	want := pl.params.Width * pl.params.Height * bps
	if len(raw) != want {
		return pl.mismatch(len(raw), want)
	}
	buf := make([]byte, 0, 4*len(raw)/bps)
	for i := 0; i < len(raw); i += bps {
		var v uint16
		if bps == 1 {
			v = uint16(raw[i])
		} else {
			v = binary.LittleEndian.Uint16(raw[i:])
		}
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v)))
	}
	return pl.writeRaw(buf)
}

func (pl *Pipeline) mismatch(got, want int) error {
	return &DimensionMismatchError{
		Width:  pl.params.Width,
		Height: pl.params.Height,
		Format: pl.params.Format,
		Got:    got,
		Want:   want,
	}
}

func (pl *Pipeline) writeRaw(data []byte) error {
	raw, err := pl.plan.Lookup(bufRaw)
	if err != nil {
		return err
	}
	return pl.dev.WriteBuffer(raw.Buffer, 0, data)
}

// Reload builds a new pipeline for p on the same device. On success the
// raw input is copied into the new pipeline when both have the same
// dimensions and sample format. On failure the receiver is untouched and
// keeps working. The caller releases the old pipeline once it switches
// over.
func (pl *Pipeline) Reload(p Params) (*Pipeline, error) {
	if pl.released {
		return nil, ErrReleased
	}
	next, err := New(pl.dev, p)
	if err != nil {
		Logger().Warn("isp: reload failed", "err", err)
		return nil, err
	}

	if p.Width == pl.params.Width && p.Height == pl.params.Height && p.Format == pl.params.Format {
		if err := pl.copyRawTo(next); err != nil {
			next.Release()
			return nil, fmt.Errorf("isp: reload copy-forward: %w", err)
		}
	} else {
		Logger().Debug("isp: raw input not carried over",
			"from", fmt.Sprintf("%dx%d %s", pl.params.Width, pl.params.Height, pl.params.Format),
			"to", fmt.Sprintf("%dx%d %s", p.Width, p.Height, p.Format))
	}
	Logger().Info("isp: pipeline reloaded", "shaders", p.Shaders.Origin())
	return next, nil
}

func (pl *Pipeline) copyRawTo(next *Pipeline) error {
	src, err := pl.plan.Lookup(bufRaw)
	if err != nil {
		return err
	}
	dst, err := next.plan.Lookup(bufRaw)
	if err != nil {
		return err
	}
	enc, err := pl.dev.CreateCommandEncoder("isp.reload")
	if err != nil {
		return err
	}
	enc.CopyBufferToBuffer(src.Buffer, 0, dst.Buffer, 0, src.Size)
	return pl.submit(enc)
}

// ReadBuffer reads a logical buffer back as float32 values. It waits for
// submitted work.
func (pl *Pipeline) ReadBuffer(name string) ([]float32, error) {
	if pl.released {
		return nil, ErrReleased
	}
	b, err := pl.plan.Lookup(name)
	if err != nil {
		return nil, err
	}
	data := make([]byte, b.Size)
	if err := pl.dev.ReadBuffer(b.Buffer, 0, data); err != nil {
		return nil, fmt.Errorf("isp: read %s: %w", name, err)
	}
	return decodeF32(data), nil
}

// ReadOutput reads the output texture back as RGBA float32 values, row by
// row.
func (pl *Pipeline) ReadOutput() ([]float32, error) {
	if pl.released {
		return nil, ErrReleased
	}
	data := make([]byte, pl.params.pixels()*16)
	if err := pl.dev.ReadTexture(pl.output.texture, data); err != nil {
		return nil, fmt.Errorf("isp: read output: %w", err)
	}
	return decodeF32(data), nil
}

func decodeF32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out
}

// Texture returns the rgba32float output texture.
func (pl *Pipeline) Texture() gpucore.TextureID {
	if pl.released {
		return gpucore.InvalidID
	}
	return pl.output.texture
}

// Device returns the device the pipeline was built on.
func (pl *Pipeline) Device() gpucore.Device { return pl.dev }

// Params returns the params the pipeline was built with.
func (pl *Pipeline) Params() Params { return pl.params }

// Layout returns the solved buffer layout.
func (pl *Pipeline) Layout() *bufplan.Layout { return pl.plan.Layout() }

// Stages returns the active stages in execution order.
func (pl *Pipeline) Stages() []StageID {
	ids := make([]StageID, len(pl.active))
	for n, i := range pl.active {
		ids[n] = pl.stages[i].ID()
	}
	return ids
}

// Release destroys every resource of the pipeline. The device stays
// open. Release is idempotent.
func (pl *Pipeline) Release() {
	if pl.released {
		return
	}
	pl.released = true
	pl.output.release()
	pl.releaseStages(len(pl.active))
	pl.plan.Release()
	Logger().Debug("isp: pipeline released")
}
