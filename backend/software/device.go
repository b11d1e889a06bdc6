// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package software provides a CPU implementation of gpucore.Device.
//
// Buffers and textures live in host memory. Compute pipelines resolve
// their entry point to a Go kernel that reproduces the WGSL entry point of
// the same name, workgroup layout and bounds checks included, so a
// pipeline built for the GPU runs unchanged on the CPU. Recorded commands
// execute in order when the command buffer is submitted.
package software

import (
	"errors"
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/gogpu/isp/backend"
	"github.com/gogpu/isp/gpucore"
	"github.com/gogpu/isp/internal/parallel"
)

// Package errors.
var (
	// ErrUnknownResource is returned when an ID does not name a live resource.
	ErrUnknownResource = errors.New("software: unknown resource")

	// ErrOutOfBounds is returned for reads or writes past the end of a resource.
	ErrOutOfBounds = errors.New("software: access out of bounds")

	// ErrNoKernel is returned when no kernel is registered for an entry point.
	ErrNoKernel = errors.New("software: no kernel for entry point")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("software: device closed")
)

func init() {
	backend.Register(backend.BackendSoftware, func() (gpucore.Device, error) {
		return New(), nil
	})
}

type buffer struct {
	label string
	usage gpucore.BufferUsage
	data  []byte
}

type texture struct {
	desc gpucore.TextureDescriptor
	data []byte
}

type shaderModule struct {
	label  string
	wgsl   string
	consts map[string]float64
}

type pipelineLayout struct {
	groups []gpucore.BindGroupLayoutID
}

type computePipeline struct {
	label  string
	entry  string
	kernel Kernel
	consts map[string]float64
}

type bindGroup struct {
	label   string
	entries []gpucore.BindGroupEntry
}

// Device is a CPU-backed gpucore.Device.
//
// Thread Safety: Device is safe for concurrent use from multiple goroutines.
// All resource operations are protected by a mutex.
type Device struct {
	mu     sync.RWMutex
	closed bool

	// ID generation
	nextID atomic.Uint64

	// calls counts every Device method invocation.
	calls atomic.Uint64

	buffers          map[gpucore.BufferID]*buffer
	textures         map[gpucore.TextureID]*texture
	shaderModules    map[gpucore.ShaderModuleID]*shaderModule
	computePipelines map[gpucore.ComputePipelineID]*computePipeline
	bindGroupLayouts map[gpucore.BindGroupLayoutID][]gpucore.BindGroupLayoutEntry
	pipelineLayouts  map[gpucore.PipelineLayoutID]*pipelineLayout
	bindGroups       map[gpucore.BindGroupID]*bindGroup

	// pool runs the rows of a dispatch in parallel.
	pool *parallel.WorkerPool
}

var _ gpucore.Device = (*Device)(nil)

// New creates a CPU device that uses every available CPU.
func New() *Device {
	return NewWithWorkers(0)
}

// NewWithWorkers creates a CPU device whose kernels run on the given
// number of goroutines. Zero or less means GOMAXPROCS; one runs every
// kernel on the submitting goroutine.
func NewWithWorkers(workers int) *Device {
	d := &Device{
		buffers:          make(map[gpucore.BufferID]*buffer),
		textures:         make(map[gpucore.TextureID]*texture),
		shaderModules:    make(map[gpucore.ShaderModuleID]*shaderModule),
		computePipelines: make(map[gpucore.ComputePipelineID]*computePipeline),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID][]gpucore.BindGroupLayoutEntry),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID]*pipelineLayout),
		bindGroups:       make(map[gpucore.BindGroupID]*bindGroup),
	}
	if workers != 1 {
		d.pool = parallel.NewWorkerPool(workers)
	}
	// Start ID generation at 1 (0 is invalid)
	d.nextID.Store(1)
	return d
}

// newID generates a unique resource ID.
func (d *Device) newID() uint64 {
	return d.nextID.Add(1) - 1
}

// Name returns the backend identifier.
func (d *Device) Name() string {
	d.calls.Add(1)
	return backend.BackendSoftware
}

// Calls returns the number of Device methods invoked so far.
func (d *Device) Calls() uint64 {
	return d.calls.Load()
}

// LiveBuffers returns the number of buffers not yet destroyed.
func (d *Device) LiveBuffers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.buffers)
}

// LiveResources returns the number of resources of any kind not yet destroyed.
func (d *Device) LiveResources() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.buffers) + len(d.textures) + len(d.shaderModules) +
		len(d.computePipelines) + len(d.bindGroupLayouts) + len(d.pipelineLayouts) + len(d.bindGroups)
}

// === Buffer Management ===

// CreateBuffer creates a zeroed host buffer.
func (d *Device) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	d.calls.Add(1)
	if desc == nil || desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: buffer size must be positive")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, ErrClosed
	}
	id := gpucore.BufferID(d.newID())
	d.buffers[id] = &buffer{label: desc.Label, usage: desc.Usage, data: make([]byte, desc.Size)}
	logger().Debug("software: buffer created", "label", desc.Label, "size", desc.Size, "usage", desc.Usage)
	return id, nil
}

// DestroyBuffer releases a buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.calls.Add(1)
	d.mu.Lock()
	delete(d.buffers, id)
	d.mu.Unlock()
}

// WriteBuffer copies data into a buffer at offset.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownResource, id)
	}
	if offset+uint64(len(data)) > uint64(len(b.data)) {
		return fmt.Errorf("%w: write of %d bytes at %d into %q (%d bytes)", ErrOutOfBounds, len(data), offset, b.label, len(b.data))
	}
	copy(b.data[offset:], data)
	return nil
}

// ReadBuffer copies len(dst) bytes from a buffer at offset.
func (d *Device) ReadBuffer(id gpucore.BufferID, offset uint64, dst []byte) error {
	d.calls.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()

	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrUnknownResource, id)
	}
	if offset+uint64(len(dst)) > uint64(len(b.data)) {
		return fmt.Errorf("%w: read of %d bytes at %d from %q (%d bytes)", ErrOutOfBounds, len(dst), offset, b.label, len(b.data))
	}
	copy(dst, b.data[offset:])
	return nil
}

// === Texture Management ===

// CreateTexture creates a zeroed host texture.
func (d *Device) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	d.calls.Add(1)
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: texture dimensions must be positive")
	}
	bpp := desc.Format.BytesPerPixel()
	if bpp == 0 {
		return gpucore.InvalidID, fmt.Errorf("software: unsupported texture format %d", desc.Format)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gpucore.InvalidID, ErrClosed
	}
	id := gpucore.TextureID(d.newID())
	d.textures[id] = &texture{desc: *desc, data: make([]byte, int(desc.Width)*int(desc.Height)*bpp)}
	return id, nil
}

// DestroyTexture releases a texture.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.calls.Add(1)
	d.mu.Lock()
	delete(d.textures, id)
	d.mu.Unlock()
}

// ReadTexture copies the texture contents into dst.
func (d *Device) ReadTexture(id gpucore.TextureID, dst []byte) error {
	d.calls.Add(1)
	d.mu.RLock()
	defer d.mu.RUnlock()

	tex, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrUnknownResource, id)
	}
	if len(dst) != len(tex.data) {
		return fmt.Errorf("%w: texture %q holds %d bytes, destination %d", ErrOutOfBounds, tex.desc.Label, len(tex.data), len(dst))
	}
	copy(dst, tex.data)
	return nil
}

// === Pipeline Management ===

// CreateShaderModule stores the module source and its specialization
// constants. WGSL is not compiled; entry points resolve to Go kernels.
func (d *Device) CreateShaderModule(desc *gpucore.ShaderModuleDescriptor) (gpucore.ShaderModuleID, error) {
	d.calls.Add(1)
	if desc == nil || desc.WGSL == "" {
		return gpucore.InvalidID, fmt.Errorf("software: empty shader source")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.ShaderModuleID(d.newID())
	d.shaderModules[id] = &shaderModule{label: desc.Label, wgsl: desc.WGSL, consts: desc.Constants}
	return id, nil
}

// DestroyShaderModule releases a shader module.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	d.calls.Add(1)
	d.mu.Lock()
	delete(d.shaderModules, id)
	d.mu.Unlock()
}

// CreateBindGroupLayout records the layout entries.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	d.calls.Add(1)
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("software: nil bind group layout descriptor")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	id := gpucore.BindGroupLayoutID(d.newID())
	d.bindGroupLayouts[id] = append([]gpucore.BindGroupLayoutEntry(nil), desc.Entries...)
	return id, nil
}

// DestroyBindGroupLayout releases a bind group layout.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	d.calls.Add(1)
	d.mu.Lock()
	delete(d.bindGroupLayouts, id)
	d.mu.Unlock()
}

// CreatePipelineLayout records the bind group layouts of a pipeline.
func (d *Device) CreatePipelineLayout(desc *gpucore.PipelineLayoutDesc) (gpucore.PipelineLayoutID, error) {
	d.calls.Add(1)
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("software: nil pipeline layout descriptor")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range desc.BindGroupLayouts {
		if _, ok := d.bindGroupLayouts[l]; !ok {
			return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", ErrUnknownResource, l)
		}
	}
	id := gpucore.PipelineLayoutID(d.newID())
	d.pipelineLayouts[id] = &pipelineLayout{groups: append([]gpucore.BindGroupLayoutID(nil), desc.BindGroupLayouts...)}
	return id, nil
}

// DestroyPipelineLayout releases a pipeline layout.
func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	d.calls.Add(1)
	d.mu.Lock()
	delete(d.pipelineLayouts, id)
	d.mu.Unlock()
}

// CreateComputePipeline resolves the entry point to a registered kernel.
// The module source must declare the entry point.
func (d *Device) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	d.calls.Add(1)
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("software: nil compute pipeline descriptor")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pipelineLayouts[desc.Layout]; !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: pipeline layout %d", ErrUnknownResource, desc.Layout)
	}
	module, ok := d.shaderModules[desc.ShaderModule]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: shader module %d", ErrUnknownResource, desc.ShaderModule)
	}
	if !declaresEntry(module.wgsl, desc.EntryPoint) {
		return gpucore.InvalidID, fmt.Errorf("software: module %q does not declare fn %s", module.label, desc.EntryPoint)
	}
	kernel, ok := lookupKernel(desc.EntryPoint)
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: %s", ErrNoKernel, desc.EntryPoint)
	}

	id := gpucore.ComputePipelineID(d.newID())
	d.computePipelines[id] = &computePipeline{
		label:  desc.Label,
		entry:  desc.EntryPoint,
		kernel: kernel,
		consts: module.consts,
	}
	return id, nil
}

// DestroyComputePipeline releases a compute pipeline.
func (d *Device) DestroyComputePipeline(id gpucore.ComputePipelineID) {
	d.calls.Add(1)
	d.mu.Lock()
	delete(d.computePipelines, id)
	d.mu.Unlock()
}

// CreateBindGroup checks every entry against its layout and records it.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	d.calls.Add(1)
	if desc == nil {
		return gpucore.InvalidID, fmt.Errorf("software: nil bind group descriptor")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	layout, ok := d.bindGroupLayouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("%w: bind group layout %d", ErrUnknownResource, desc.Layout)
	}
	if len(desc.Entries) != len(layout) {
		return gpucore.InvalidID, fmt.Errorf("software: bind group %q has %d entries, layout expects %d", desc.Label, len(desc.Entries), len(layout))
	}
	for _, e := range desc.Entries {
		if err := d.checkEntry(layout, e); err != nil {
			return gpucore.InvalidID, fmt.Errorf("software: bind group %q: %w", desc.Label, err)
		}
	}

	id := gpucore.BindGroupID(d.newID())
	d.bindGroups[id] = &bindGroup{label: desc.Label, entries: append([]gpucore.BindGroupEntry(nil), desc.Entries...)}
	return id, nil
}

// checkEntry validates one bind group entry. Must be called with mu held.
func (d *Device) checkEntry(layout []gpucore.BindGroupLayoutEntry, e gpucore.BindGroupEntry) error {
	for _, le := range layout {
		if le.Binding != e.Binding {
			continue
		}
		if le.Type == gpucore.BindingTypeWriteOnlyStorageTexture {
			if _, ok := d.textures[e.Texture]; !ok {
				return fmt.Errorf("%w: texture %d at binding %d", ErrUnknownResource, e.Texture, e.Binding)
			}
			return nil
		}
		b, ok := d.buffers[e.Buffer]
		if !ok {
			return fmt.Errorf("%w: buffer %d at binding %d", ErrUnknownResource, e.Buffer, e.Binding)
		}
		want := gpucore.BufferUsageStorage
		if le.Type == gpucore.BindingTypeUniformBuffer {
			want = gpucore.BufferUsageUniform
		}
		if b.usage&want == 0 {
			return fmt.Errorf("buffer %q at binding %d lacks %s usage", b.label, e.Binding, want)
		}
		return nil
	}
	return fmt.Errorf("binding %d not in layout", e.Binding)
}

// DestroyBindGroup releases a bind group.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	d.calls.Add(1)
	d.mu.Lock()
	delete(d.bindGroups, id)
	d.mu.Unlock()
}

// WaitIdle returns immediately: Submit runs commands synchronously.
func (d *Device) WaitIdle() error {
	d.calls.Add(1)
	return nil
}

// Close drops every resource.
func (d *Device) Close() {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	clear(d.buffers)
	clear(d.textures)
	clear(d.shaderModules)
	clear(d.computePipelines)
	clear(d.bindGroupLayouts)
	clear(d.pipelineLayouts)
	clear(d.bindGroups)
	if d.pool != nil {
		d.pool.Close()
	}
}

func declaresEntry(wgsl, entry string) bool {
	re, err := regexp.Compile(`\bfn\s+` + regexp.QuoteMeta(entry) + `\s*\(`)
	return err == nil && re.MatchString(wgsl)
}
