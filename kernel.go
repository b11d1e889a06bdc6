// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"fmt"

	"github.com/gogpu/isp/gpucore"
	"github.com/gogpu/isp/shader"
)

// kernelSpec describes one compute entry point and its bind group 0.
type kernelSpec struct {
	Label    string
	File     string
	Entry    string
	Defs     shader.Defs
	Bindings []gpucore.BindingType
}

// kernel is a compiled entry point with its layouts and one bind group.
// Resources are destroyed in reverse creation order.
type kernel struct {
	dev      gpucore.Device
	label    string
	module   gpucore.ShaderModuleID
	bgl      gpucore.BindGroupLayoutID
	layout   gpucore.PipelineLayoutID
	pipeline gpucore.ComputePipelineID
	groups   []gpucore.BindGroupID
}

// newKernel specializes and compiles spec. Every failure is a
// *ShaderBuildError and leaves nothing allocated.
func newKernel(dev gpucore.Device, src *shader.Source, spec kernelSpec) (*kernel, error) {
	mod, err := src.Process(spec.File, spec.Entry, spec.Defs)
	if err != nil {
		return nil, err
	}
	buildErr := func(step string, err error) error {
		return &ShaderBuildError{File: spec.File, Entry: spec.Entry, Err: fmt.Errorf("%s: %w", step, err)}
	}

	k := &kernel{dev: dev, label: spec.Label}
	k.module, err = dev.CreateShaderModule(mod.Descriptor(spec.Label))
	if err != nil {
		return nil, buildErr("shader module", err)
	}

	entries := make([]gpucore.BindGroupLayoutEntry, len(spec.Bindings))
	for i, t := range spec.Bindings {
		entries[i] = gpucore.BindGroupLayoutEntry{Binding: uint32(i), Type: t}
		if t == gpucore.BindingTypeWriteOnlyStorageTexture {
			entries[i].Format = gpucore.TextureFormatRGBA32Float
		}
	}
	k.bgl, err = dev.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{Label: spec.Label, Entries: entries})
	if err != nil {
		k.release()
		return nil, buildErr("bind group layout", err)
	}
	k.layout, err = dev.CreatePipelineLayout(&gpucore.PipelineLayoutDesc{
		Label:            spec.Label,
		BindGroupLayouts: []gpucore.BindGroupLayoutID{k.bgl},
	})
	if err != nil {
		k.release()
		return nil, buildErr("pipeline layout", err)
	}
	k.pipeline, err = dev.CreateComputePipeline(&gpucore.ComputePipelineDesc{
		Label:        spec.Label,
		Layout:       k.layout,
		ShaderModule: k.module,
		EntryPoint:   spec.Entry,
	})
	if err != nil {
		k.release()
		return nil, buildErr("compute pipeline", err)
	}
	return k, nil
}

// bind creates a bind group over entries and returns its index.
func (k *kernel) bind(entries ...gpucore.BindGroupEntry) (int, error) {
	bg, err := k.dev.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:   fmt.Sprintf("%s#%d", k.label, len(k.groups)),
		Layout:  k.bgl,
		Entries: entries,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: bind group: %w", k.label, err)
	}
	k.groups = append(k.groups, bg)
	return len(k.groups) - 1, nil
}

// record adds one dispatch using bind group g as its own compute pass.
func (k *kernel) record(enc gpucore.CommandEncoder, g int, x, y, z uint32) {
	pass := enc.BeginComputePass(k.label)
	pass.SetPipeline(k.pipeline)
	pass.SetBindGroup(0, k.groups[g])
	pass.Dispatch(x, y, z)
	pass.End()
}

func (k *kernel) release() {
	if k == nil || k.dev == nil {
		return
	}
	for _, bg := range k.groups {
		k.dev.DestroyBindGroup(bg)
	}
	k.groups = nil
	if k.pipeline != gpucore.InvalidID {
		k.dev.DestroyComputePipeline(k.pipeline)
	}
	if k.layout != gpucore.InvalidID {
		k.dev.DestroyPipelineLayout(k.layout)
	}
	if k.bgl != gpucore.InvalidID {
		k.dev.DestroyBindGroupLayout(k.bgl)
	}
	if k.module != gpucore.InvalidID {
		k.dev.DestroyShaderModule(k.module)
	}
	k.dev = nil
}

// groupsFor returns ceil(n / size).
func groupsFor(n, size uint32) uint32 {
	return (n + size - 1) / size
}

// bufferEntries binds resolved buffers to consecutive binding indices
// starting at 0.
func bufferEntries(bufs ...gpucore.BufferID) []gpucore.BindGroupEntry {
	entries := make([]gpucore.BindGroupEntry, len(bufs))
	for i, b := range bufs {
		entries[i] = gpucore.BufferEntry(uint32(i), b)
	}
	return entries
}
