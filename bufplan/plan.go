// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bufplan

import (
	"fmt"
	"strings"

	"github.com/gogpu/isp/gpucore"
)

// Allocator creates and destroys the physical buffers of a plan.
// gpucore.Device satisfies it.
type Allocator interface {
	CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error)
	DestroyBuffer(id gpucore.BufferID)
}

// Binding is a resolved logical buffer.
type Binding struct {
	Name     string
	Buffer   gpucore.BufferID
	Category Category

	// Size is the declared size of the name. The backing buffer may be
	// larger when the name shares a transient slot.
	Size uint64

	Slot int
}

// Plan maps every logical buffer name to a physical buffer.
// It is immutable once allocated and owns its buffers until Release.
type Plan struct {
	layout   *Layout
	alloc    Allocator
	buffers  []gpucore.BufferID
	released bool
}

// Resolve solves the declarations and allocates the resulting layout.
func Resolve(decls []Declaration, alloc Allocator) (*Plan, error) {
	layout, err := Solve(decls)
	if err != nil {
		return nil, err
	}
	return Allocate(layout, alloc)
}

// Allocate creates one physical buffer per layout slot. On failure every
// buffer created so far is destroyed.
func Allocate(layout *Layout, alloc Allocator) (*Plan, error) {
	p := &Plan{
		layout:  layout,
		alloc:   alloc,
		buffers: make([]gpucore.BufferID, 0, len(layout.Slots)),
	}
	for _, slot := range layout.Slots {
		id, err := alloc.CreateBuffer(&gpucore.BufferDescriptor{
			Label: slotLabel(slot),
			Size:  slot.Size,
			Usage: slot.Usage,
		})
		if err != nil {
			p.Release()
			return nil, fmt.Errorf("bufplan: allocate slot %d (%s): %w", slot.Index, slotLabel(slot), err)
		}
		p.buffers = append(p.buffers, id)
	}
	return p, nil
}

func slotLabel(s Slot) string {
	if s.Category == Persistent {
		return s.Names[0]
	}
	return fmt.Sprintf("transient%d[%s]", s.Index, strings.Join(s.Names, ","))
}

// Layout returns the layout the plan was allocated from.
func (p *Plan) Layout() *Layout {
	return p.layout
}

// Lookup resolves any name in the plan. It is the host-side lookup used
// for input upload, diagnostics and carrying buffers across a reload;
// stages use View.
func (p *Plan) Lookup(name string) (Binding, error) {
	if p.released {
		return Binding{}, ErrReleased
	}
	e, ok := p.layout.entries[name]
	if !ok {
		return Binding{}, &UnboundBufferError{Stage: -1, Name: name}
	}
	return Binding{
		Name:     name,
		Buffer:   p.buffers[e.slot],
		Category: e.desc.Category,
		Size:     e.desc.Size,
		Slot:     e.slot,
	}, nil
}

// View returns the lookup scoped to one stage.
func (p *Plan) View(stage int) StageView {
	return StageView{plan: p, stage: stage}
}

// Release destroys every physical buffer. It is safe to call twice.
func (p *Plan) Release() {
	if p.released {
		return
	}
	p.released = true
	for _, id := range p.buffers {
		p.alloc.DestroyBuffer(id)
	}
	p.buffers = nil
}

// StageView resolves only the names one stage declared.
type StageView struct {
	plan  *Plan
	stage int
}

// Stage returns the stage index the view is scoped to.
func (v StageView) Stage() int {
	return v.stage
}

// Buffer resolves name, failing with *UnboundBufferError if the stage did
// not declare it.
func (v StageView) Buffer(name string) (Binding, error) {
	if v.plan == nil {
		return Binding{}, &UnboundBufferError{Stage: v.stage, Name: name}
	}
	if !v.plan.layout.declares(v.stage, name) {
		return Binding{}, &UnboundBufferError{Stage: v.stage, Name: name}
	}
	return v.plan.Lookup(name)
}
