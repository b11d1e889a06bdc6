// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"crypto/sha256"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/isp/gpucore"
	"github.com/gogpu/isp/internal/cache"
)

// spirvCache holds compiled modules keyed by the SHA-256 of their WGSL.
// It is shared by every device in the process.
var spirvCache = cache.New[[sha256.Size]byte, []uint32](128)

// ShaderCacheStats returns the counters of the SPIR-V cache.
func ShaderCacheStats() cache.Stats {
	return spirvCache.Stats()
}

// CompileWGSL compiles WGSL source to SPIR-V words, consulting the cache.
// The caller owns the returned slice.
func CompileWGSL(wgsl string) ([]uint32, error) {
	words, err := spirvCache.GetOrCreate(sha256.Sum256([]byte(wgsl)), func() ([]uint32, error) {
		return compileSPIRV(wgsl)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(words), nil
}

func compileSPIRV(wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("failed to compile shader: %w", err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("failed to compile shader: SPIR-V length %d is not a multiple of 4", len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words
	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirvCode, nil
}

// === Shader Compilation ===

// CreateShaderModule compiles WGSL with naga and creates a shader module.
func (d *Device) CreateShaderModule(desc *gpucore.ShaderModuleDescriptor) (gpucore.ShaderModuleID, error) {
	if desc == nil || desc.WGSL == "" {
		return gpucore.InvalidID, fmt.Errorf("native: empty shader source")
	}
	spirv, err := CompileWGSL(desc.WGSL)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: shader %q: %w", desc.Label, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	module, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create shader module %q: %w", desc.Label, err)
	}

	id := gpucore.ShaderModuleID(d.newID())
	d.shaderModules[id] = module
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.mu.Lock()
	module, ok := d.shaderModules[id]
	if ok {
		delete(d.shaderModules, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyShaderModule(module)
	}
}

// === Pipeline Management ===

// CreateBindGroupLayout creates a bind group layout visible to compute.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("native: nil bind group layout descriptor")
	}

	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
	for i, entry := range desc.Entries {
		entries[i] = convertBindGroupLayoutEntry(entry)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	layout, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group layout %q: %w", desc.Label, err)
	}

	id := gpucore.BindGroupLayoutID(d.newID())
	d.bindGroupLayouts[id] = layout
	d.layoutEntries[id] = entries
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.mu.Lock()
	layout, ok := d.bindGroupLayouts[id]
	if ok {
		delete(d.bindGroupLayouts, id)
		delete(d.layoutEntries, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyBindGroupLayout(layout)
	}
}

// CreatePipelineLayout creates a pipeline layout.
func (d *Device) CreatePipelineLayout(desc *gpucore.PipelineLayoutDesc) (gpucore.PipelineLayoutID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("native: nil pipeline layout descriptor")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	layouts := make([]hal.BindGroupLayout, len(desc.BindGroupLayouts))
	for i, id := range desc.BindGroupLayouts {
		layout, ok := d.bindGroupLayouts[id]
		if !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", ErrUnknownResource, id)
		}
		layouts[i] = layout
	}

	pipelineLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create pipeline layout %q: %w", desc.Label, err)
	}

	id := gpucore.PipelineLayoutID(d.newID())
	d.pipelineLayouts[id] = pipelineLayout
	return id, nil
}

// DestroyPipelineLayout releases a pipeline layout.
func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	d.mu.Lock()
	layout, ok := d.pipelineLayouts[id]
	if ok {
		delete(d.pipelineLayouts, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyPipelineLayout(layout)
	}
}

// CreateComputePipeline creates a compute pipeline.
func (d *Device) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("native: nil compute pipeline descriptor")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	pipelineLayout, ok := d.pipelineLayouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: pipeline layout %d", ErrUnknownResource, desc.Layout)
	}
	shaderModule, ok := d.shaderModules[desc.ShaderModule]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: shader module %d", ErrUnknownResource, desc.ShaderModule)
	}

	pipeline, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: pipelineLayout,
		Compute: hal.ComputeState{
			Module:     shaderModule,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create compute pipeline %q (%s): %w", desc.Label, desc.EntryPoint, err)
	}

	id := gpucore.ComputePipelineID(d.newID())
	d.computePipelines[id] = pipeline
	return id, nil
}

// DestroyComputePipeline releases a compute pipeline.
func (d *Device) DestroyComputePipeline(id gpucore.ComputePipelineID) {
	d.mu.Lock()
	pipeline, ok := d.computePipelines[id]
	if ok {
		delete(d.computePipelines, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyComputePipeline(pipeline)
	}
}

// CreateBindGroup binds buffers and storage texture views to a layout.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("native: nil bind group descriptor")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}
	layout, ok := d.bindGroupLayouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", ErrUnknownResource, desc.Layout)
	}

	entries := make([]gputypes.BindGroupEntry, len(desc.Entries))
	var bound []boundBuffer
	for i, entry := range desc.Entries {
		e, err := d.convertBindGroupEntry(entry)
		if err != nil {
			return gpucore.InvalidID, fmt.Errorf("native: bind group %q binding %d: %w", desc.Label, entry.Binding, err)
		}
		entries[i] = e
		if entry.Buffer != gpucore.InvalidID {
			bound = append(bound, boundBuffer{
				buf:   d.buffers[entry.Buffer],
				usage: bindingUsage(d.layoutEntries[desc.Layout], entry.Binding),
			})
		}
	}

	group, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create bind group %q: %w", desc.Label, err)
	}

	id := gpucore.BindGroupID(d.newID())
	d.bindGroups[id] = group
	d.groupBuffers[id] = bound
	return id, nil
}

// convertBindGroupEntry resolves the IDs of one entry. Must be called
// with mu held.
func (d *Device) convertBindGroupEntry(entry gpucore.BindGroupEntry) (gputypes.BindGroupEntry, error) {
	result := gputypes.BindGroupEntry{Binding: entry.Binding}

	switch {
	case entry.Buffer != gpucore.InvalidID:
		buf, ok := d.buffers[entry.Buffer]
		if !ok {
			return result, fmt.Errorf("%w: buffer %d", ErrUnknownResource, entry.Buffer)
		}
		size := entry.Size
		if size == 0 {
			size = d.bufferSizes[entry.Buffer] - entry.Offset
		}
		result.Resource = gputypes.BufferBinding{
			Buffer: buf.NativeHandle(),
			Offset: entry.Offset,
			Size:   size,
		}
	case entry.Texture != gpucore.InvalidID:
		t, ok := d.textures[entry.Texture]
		if !ok {
			return result, fmt.Errorf("%w: texture %d", ErrUnknownResource, entry.Texture)
		}
		result.Resource = gputypes.TextureViewBinding{
			TextureView: t.view.NativeHandle(),
		}
	default:
		return result, fmt.Errorf("native: entry names no resource")
	}
	return result, nil
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.mu.Lock()
	group, ok := d.bindGroups[id]
	if ok {
		delete(d.bindGroups, id)
		delete(d.groupBuffers, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyBindGroup(group)
	}
}
