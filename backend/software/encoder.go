// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"errors"
	"fmt"

	"github.com/gogpu/isp/gpucore"
)

// ErrEncoderState is latched when commands are recorded out of order.
var ErrEncoderState = errors.New("software: invalid encoder state")

type command interface {
	run(d *Device) error
}

type copyCommand struct {
	src, dst       gpucore.BufferID
	srcOff, dstOff uint64
	size           uint64
}

func (c *copyCommand) run(d *Device) error {
	src, ok := d.buffers[c.src]
	if !ok {
		return fmt.Errorf("%w: copy source %d", ErrUnknownResource, c.src)
	}
	dst, ok := d.buffers[c.dst]
	if !ok {
		return fmt.Errorf("%w: copy destination %d", ErrUnknownResource, c.dst)
	}
	if c.srcOff+c.size > uint64(len(src.data)) || c.dstOff+c.size > uint64(len(dst.data)) {
		return fmt.Errorf("%w: copy of %d bytes %q -> %q", ErrOutOfBounds, c.size, src.label, dst.label)
	}
	if src.usage&gpucore.BufferUsageCopySrc == 0 || dst.usage&gpucore.BufferUsageCopyDst == 0 {
		return fmt.Errorf("software: copy %q -> %q requires CopySrc and CopyDst usage", src.label, dst.label)
	}
	copy(dst.data[c.dstOff:c.dstOff+c.size], src.data[c.srcOff:c.srcOff+c.size])
	return nil
}

type dispatchCommand struct {
	pass     string
	pipeline gpucore.ComputePipelineID
	groups   map[uint32]gpucore.BindGroupID
	x, y, z  uint32
}

func (c *dispatchCommand) run(d *Device) error {
	p, ok := d.computePipelines[c.pipeline]
	if !ok {
		return fmt.Errorf("%w: pipeline %d", ErrUnknownResource, c.pipeline)
	}
	bg, ok := d.bindGroups[c.groups[0]]
	if !ok {
		return fmt.Errorf("%w: bind group 0 of pass %q", ErrUnknownResource, c.pass)
	}

	disp := &Dispatch{
		Groups:   [3]uint32{c.x, c.y, c.z},
		consts:   p.consts,
		buffers:  make(map[uint32][]byte, len(bg.entries)),
		textures: make(map[uint32]*texture),
		pool:     d.pool,
	}
	for _, e := range bg.entries {
		if tex, ok := d.textures[e.Texture]; ok && e.Buffer == gpucore.InvalidID {
			disp.textures[e.Binding] = tex
			continue
		}
		b, ok := d.buffers[e.Buffer]
		if !ok {
			return fmt.Errorf("%w: buffer %d at binding %d of %q", ErrUnknownResource, e.Buffer, e.Binding, bg.label)
		}
		end := uint64(len(b.data))
		if e.Size != 0 {
			end = e.Offset + e.Size
		}
		if e.Offset > end || end > uint64(len(b.data)) {
			return fmt.Errorf("%w: binding %d of %q", ErrOutOfBounds, e.Binding, bg.label)
		}
		disp.buffers[e.Binding] = b.data[e.Offset:end]
	}

	if err := runKernel(p, disp); err != nil {
		return fmt.Errorf("software: pass %q (%s): %w", c.pass, p.entry, err)
	}
	return nil
}

// runKernel converts a kernel panic (an out of range index) into an error.
func runKernel(p *computePipeline, disp *Dispatch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("kernel panic: %v", r)
		}
	}()
	if err := p.kernel(disp); err != nil {
		return err
	}
	return disp.Err()
}

// commandEncoder records commands for later execution by Submit.
type commandEncoder struct {
	label    string
	cmds     []command
	err      error
	inPass   bool
	finished bool
}

// commandBuffer is a finished command sequence.
type commandBuffer struct {
	label string
	cmds  []command
}

func (c *commandBuffer) Label() string { return c.label }

// CreateCommandEncoder starts recording a command sequence.
func (d *Device) CreateCommandEncoder(label string) (gpucore.CommandEncoder, error) {
	d.calls.Add(1)
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	return &commandEncoder{label: label}, nil
}

func (e *commandEncoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *commandEncoder) BeginComputePass(label string) gpucore.ComputePassEncoder {
	if e.inPass || e.finished {
		e.fail(fmt.Errorf("%w: begin pass %q", ErrEncoderState, label))
	}
	e.inPass = true
	return &computePass{enc: e, label: label, groups: make(map[uint32]gpucore.BindGroupID)}
}

func (e *commandEncoder) CopyBufferToBuffer(src gpucore.BufferID, srcOffset uint64, dst gpucore.BufferID, dstOffset uint64, size uint64) {
	if e.inPass || e.finished {
		e.fail(fmt.Errorf("%w: copy inside pass", ErrEncoderState))
		return
	}
	e.cmds = append(e.cmds, &copyCommand{src: src, dst: dst, srcOff: srcOffset, dstOff: dstOffset, size: size})
}

func (e *commandEncoder) Finish() (gpucore.CommandBuffer, error) {
	if e.inPass {
		e.fail(fmt.Errorf("%w: finish with open pass", ErrEncoderState))
	}
	if e.finished {
		e.fail(fmt.Errorf("%w: finish called twice", ErrEncoderState))
	}
	e.finished = true
	if e.err != nil {
		return nil, e.err
	}
	return &commandBuffer{label: e.label, cmds: e.cmds}, nil
}

func (e *commandEncoder) Discard() {
	e.finished = true
	e.cmds = nil
}

// computePass records dispatches into its parent encoder.
type computePass struct {
	enc      *commandEncoder
	label    string
	pipeline gpucore.ComputePipelineID
	groups   map[uint32]gpucore.BindGroupID
	ended    bool
}

func (p *computePass) SetPipeline(pipeline gpucore.ComputePipelineID) {
	p.pipeline = pipeline
}

func (p *computePass) SetBindGroup(index uint32, group gpucore.BindGroupID) {
	p.groups[index] = group
}

func (p *computePass) Dispatch(x, y, z uint32) {
	if p.ended {
		p.enc.fail(fmt.Errorf("%w: dispatch after end of pass %q", ErrEncoderState, p.label))
		return
	}
	if p.pipeline == gpucore.InvalidID {
		p.enc.fail(fmt.Errorf("%w: dispatch without pipeline in pass %q", ErrEncoderState, p.label))
		return
	}
	groups := make(map[uint32]gpucore.BindGroupID, len(p.groups))
	for k, v := range p.groups {
		groups[k] = v
	}
	p.enc.cmds = append(p.enc.cmds, &dispatchCommand{
		pass:     p.label,
		pipeline: p.pipeline,
		groups:   groups,
		x:        x,
		y:        y,
		z:        z,
	})
}

func (p *computePass) End() {
	if p.ended {
		return
	}
	p.ended = true
	p.enc.inPass = false
}

// Submit runs every command of cmd in recording order. Execution stops
// at the first failing command.
func (d *Device) Submit(cmd gpucore.CommandBuffer) error {
	d.calls.Add(1)
	cb, ok := cmd.(*commandBuffer)
	if !ok {
		return fmt.Errorf("software: foreign command buffer %T", cmd)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	for i, c := range cb.cmds {
		if err := c.run(d); err != nil {
			return fmt.Errorf("software: %q command %d: %w", cb.label, i, err)
		}
	}
	logger().Debug("software: submitted", "label", cb.label, "commands", len(cb.cmds))
	return nil
}
