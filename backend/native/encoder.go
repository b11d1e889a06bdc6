// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/isp/gpucore"
)

// ErrEncoderState is returned by Finish when commands were recorded out
// of order.
var ErrEncoderState = errors.New("native: invalid encoder state")

// commandEncoder records directly into a hal encoder. Recording errors
// are latched and reported by Finish.
type commandEncoder struct {
	dev      *Device
	label    string
	enc      hal.CommandEncoder
	buffers  *bufferTracker
	err      error
	inPass   bool
	finished bool
}

// commandBuffer is a finished hal command buffer awaiting Submit.
type commandBuffer struct {
	dev   *Device
	label string
	cmd   hal.CommandBuffer
}

func (c *commandBuffer) Label() string { return c.label }

// CreateCommandEncoder starts recording a command sequence.
func (d *Device) CreateCommandEncoder(label string) (gpucore.CommandEncoder, error) {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}
	return &commandEncoder{dev: d, label: label, enc: enc, buffers: newBufferTracker()}, nil
}

func (e *commandEncoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *commandEncoder) BeginComputePass(label string) gpucore.ComputePassEncoder {
	if e.inPass || e.finished {
		e.fail(fmt.Errorf("%w: begin pass %q", ErrEncoderState, label))
		return &computePass{enc: e, label: label}
	}
	// Later passes read what earlier passes and copies wrote.
	if barriers := e.buffers.all(gputypes.BufferUsageStorage); len(barriers) > 0 {
		e.enc.TransitionBuffers(barriers)
	}
	e.inPass = true
	return &computePass{
		enc:   e,
		label: label,
		pass:  e.enc.BeginComputePass(&hal.ComputePassDescriptor{Label: label}),
	}
}

func (e *commandEncoder) CopyBufferToBuffer(src gpucore.BufferID, srcOffset uint64, dst gpucore.BufferID, dstOffset uint64, size uint64) {
	if e.inPass || e.finished {
		e.fail(fmt.Errorf("%w: copy inside pass", ErrEncoderState))
		return
	}
	e.dev.mu.RLock()
	srcBuf, srcOK := e.dev.buffers[src]
	dstBuf, dstOK := e.dev.buffers[dst]
	e.dev.mu.RUnlock()
	if !srcOK || !dstOK {
		e.fail(fmt.Errorf("%w: copy %d -> %d", ErrUnknownResource, src, dst))
		return
	}
	barriers := e.buffers.one(srcBuf, gputypes.BufferUsageCopySrc)
	barriers = append(barriers, e.buffers.one(dstBuf, gputypes.BufferUsageCopyDst)...)
	if len(barriers) > 0 {
		e.enc.TransitionBuffers(barriers)
	}
	e.enc.CopyBufferToBuffer(srcBuf, dstBuf, []hal.BufferCopy{
		{SrcOffset: srcOffset, DstOffset: dstOffset, Size: align4(size)},
	})
}

func (e *commandEncoder) Finish() (gpucore.CommandBuffer, error) {
	if e.inPass {
		e.fail(fmt.Errorf("%w: finish with open pass", ErrEncoderState))
	}
	if e.finished {
		return nil, fmt.Errorf("%w: finish called twice", ErrEncoderState)
	}
	e.finished = true
	if e.err != nil {
		e.enc.DiscardEncoding()
		return nil, e.err
	}
	cmd, err := e.enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("native: end encoding %q: %w", e.label, err)
	}
	return &commandBuffer{dev: e.dev, label: e.label, cmd: cmd}, nil
}

func (e *commandEncoder) Discard() {
	if e.finished {
		return
	}
	e.finished = true
	e.enc.DiscardEncoding()
}

// computePass forwards to a hal compute pass. A pass that could not be
// begun records nothing.
type computePass struct {
	enc   *commandEncoder
	label string
	pass  hal.ComputePassEncoder
	ended bool
}

// SetPipeline sets the active compute pipeline.
func (p *computePass) SetPipeline(pipeline gpucore.ComputePipelineID) {
	if p.pass == nil {
		return
	}
	p.enc.dev.mu.RLock()
	halPipeline, ok := p.enc.dev.computePipelines[pipeline]
	p.enc.dev.mu.RUnlock()
	if !ok {
		p.enc.fail(fmt.Errorf("%w: pipeline %d in pass %q", ErrUnknownResource, pipeline, p.label))
		return
	}
	p.pass.SetPipeline(halPipeline)
}

// SetBindGroup sets a bind group at the specified index.
func (p *computePass) SetBindGroup(index uint32, group gpucore.BindGroupID) {
	if p.pass == nil {
		return
	}
	p.enc.dev.mu.RLock()
	halGroup, ok := p.enc.dev.bindGroups[group]
	bound := p.enc.dev.groupBuffers[group]
	p.enc.dev.mu.RUnlock()
	if !ok {
		p.enc.fail(fmt.Errorf("%w: bind group %d in pass %q", ErrUnknownResource, group, p.label))
		return
	}
	for _, b := range bound {
		p.enc.buffers.use(b.buf, b.usage)
	}
	p.pass.SetBindGroup(index, halGroup, nil)
}

// Dispatch dispatches compute workgroups.
func (p *computePass) Dispatch(x, y, z uint32) {
	if p.pass == nil {
		return
	}
	if p.ended {
		p.enc.fail(fmt.Errorf("%w: dispatch after end of pass %q", ErrEncoderState, p.label))
		return
	}
	p.pass.Dispatch(x, y, z)
}

// End finishes the compute pass.
func (p *computePass) End() {
	if p.ended {
		return
	}
	p.ended = true
	if p.pass != nil {
		p.pass.End()
		p.enc.inPass = false
	}
}
