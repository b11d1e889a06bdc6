// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // registers the Vulkan HAL backend

	"github.com/gogpu/isp/backend"
	"github.com/gogpu/isp/gpucore"
)

// fenceTimeout bounds every wait for submitted work.
const fenceTimeout = 5 * time.Second

func init() {
	backend.Register(backend.BackendNative, func() (gpucore.Device, error) {
		return Open()
	})
}

type texture struct {
	tex   hal.Texture
	view  hal.TextureView
	desc  gpucore.TextureDescriptor
	state gputypes.TextureUsage
}

// Device implements gpucore.Device using gogpu/wgpu/hal directly.
//
// Thread Safety: Device is safe for concurrent use from multiple goroutines.
// All resource tables are protected by a mutex; submissions are
// serialized.
type Device struct {
	mu       sync.RWMutex
	submitMu sync.Mutex
	closed   bool

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
	borrowed bool
	limits   gputypes.Limits

	// ID generation
	nextID atomic.Uint64

	// Resource tracking maps gpucore IDs to hal resources
	buffers          map[gpucore.BufferID]hal.Buffer
	bufferSizes      map[gpucore.BufferID]uint64
	textures         map[gpucore.TextureID]*texture
	shaderModules    map[gpucore.ShaderModuleID]hal.ShaderModule
	computePipelines map[gpucore.ComputePipelineID]hal.ComputePipeline
	bindGroupLayouts map[gpucore.BindGroupLayoutID]hal.BindGroupLayout
	pipelineLayouts  map[gpucore.PipelineLayoutID]hal.PipelineLayout
	bindGroups       map[gpucore.BindGroupID]hal.BindGroup

	// Binding metadata for buffer barriers
	layoutEntries map[gpucore.BindGroupLayoutID][]gputypes.BindGroupLayoutEntry
	groupBuffers  map[gpucore.BindGroupID][]boundBuffer
}

// boundBuffer is a buffer referenced by a bind group and the usage its
// binding implies.
type boundBuffer struct {
	buf   hal.Buffer
	usage gputypes.BufferUsage
}

var _ gpucore.Device = (*Device)(nil)

// Open creates a device on the first discrete GPU, falling back to an
// integrated GPU and then to any adapter.
func Open() (*Device, error) {
	b, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("native: vulkan backend not available")
	}
	instance, err := b.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, ErrNoGPU
	}
	selected := selectAdapter(adapters)

	limits := gputypes.DefaultLimits()
	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}

	d := newDevice(openDev.Device, openDev.Queue, limits)
	d.instance = instance
	d.name = selected.Info.Name
	logger().Info("native: device opened", "adapter", selected.Info.Name, "type", selected.Info.DeviceType)
	return d, nil
}

func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// FromProvider wraps the device and queue of a host application. The
// provider must also expose HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue. The host keeps ownership: Close releases the
// resources created through the returned Device and nothing else.
func FromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	if provider == nil {
		return nil, ErrNotHalProvider
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNotHalProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNotHalProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNotHalProvider)
	}

	d := newDevice(device, queue, gputypes.DefaultLimits())
	d.borrowed = true
	d.name = "shared"
	logger().Info("native: using shared device")
	return d, nil
}

func newDevice(device hal.Device, queue hal.Queue, limits gputypes.Limits) *Device {
	d := &Device{
		device:           device,
		queue:            queue,
		limits:           limits,
		buffers:          make(map[gpucore.BufferID]hal.Buffer),
		bufferSizes:      make(map[gpucore.BufferID]uint64),
		textures:         make(map[gpucore.TextureID]*texture),
		shaderModules:    make(map[gpucore.ShaderModuleID]hal.ShaderModule),
		computePipelines: make(map[gpucore.ComputePipelineID]hal.ComputePipeline),
		bindGroupLayouts: make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout),
		pipelineLayouts:  make(map[gpucore.PipelineLayoutID]hal.PipelineLayout),
		bindGroups:       make(map[gpucore.BindGroupID]hal.BindGroup),
		layoutEntries:    make(map[gpucore.BindGroupLayoutID][]gputypes.BindGroupLayoutEntry),
		groupBuffers:     make(map[gpucore.BindGroupID][]boundBuffer),
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
	return backend.BackendNative
}

// Adapter returns the name of the GPU adapter, or "shared" for a device
// borrowed from a provider.
func (d *Device) Adapter() string {
	return d.name
}

// HalDevice returns the underlying hal.Device, so a host can share it.
func (d *Device) HalDevice() any { return d.device }

// HalQueue returns the underlying hal.Queue.
func (d *Device) HalQueue() any { return d.queue }

func (d *Device) checkOpen() error {
	if d.closed {
		return ErrClosed
	}
	return nil
}

// === Buffer Management ===

// CreateBuffer creates a GPU buffer.
func (d *Device) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	if desc == nil || desc.Size == 0 {
		return gpucore.InvalidID, fmt.Errorf("native: buffer size must be positive")
	}
	if d.limits.MaxBufferSize != 0 && desc.Size > d.limits.MaxBufferSize {
		return gpucore.InvalidID, fmt.Errorf("native: buffer %q of %d bytes exceeds limit %d", desc.Label, desc.Size, d.limits.MaxBufferSize)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen(); err != nil {
		return gpucore.InvalidID, err
	}

	buf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  align4(desc.Size),
		Usage: convertBufferUsage(desc.Usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("native: create buffer %q: %w", desc.Label, err)
	}

	id := gpucore.BufferID(d.newID())
	d.buffers[id] = buf
	d.bufferSizes[id] = desc.Size
	logger().Debug("native: buffer created", "label", desc.Label, "size", desc.Size, "usage", desc.Usage)
	return id, nil
}

// DestroyBuffer releases a GPU buffer.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	d.mu.Lock()
	buf, ok := d.buffers[id]
	if ok {
		delete(d.buffers, id)
		delete(d.bufferSizes, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyBuffer(buf)
	}
}

func (d *Device) lookupBuffer(id gpucore.BufferID) (hal.Buffer, uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen(); err != nil {
		return nil, 0, err
	}
	buf, ok := d.buffers[id]
	if !ok {
		return nil, 0, fmt.Errorf("%w: buffer %d", ErrUnknownResource, id)
	}
	return buf, d.bufferSizes[id], nil
}

// WriteBuffer queues a write of data at offset.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	buf, size, err := d.lookupBuffer(id)
	if err != nil {
		return err
	}
	if offset+uint64(len(data)) > size {
		return fmt.Errorf("native: write of %d bytes at %d overflows buffer %d (%d bytes)", len(data), offset, id, size)
	}
	if len(data) == 0 {
		return nil
	}
	if rem := len(data) % 4; rem != 0 {
		padded := make([]byte, len(data)+4-rem)
		copy(padded, data)
		data = padded
	}
	d.queue.WriteBuffer(buf, offset, data)
	return nil
}

// ReadBuffer copies a buffer range into dst through a staging buffer.
// Submissions already wait on their fence, so the copy sees all
// previously submitted work.
func (d *Device) ReadBuffer(id gpucore.BufferID, offset uint64, dst []byte) error {
	buf, size, err := d.lookupBuffer(id)
	if err != nil {
		return err
	}
	n := uint64(len(dst))
	if offset+n > size {
		return fmt.Errorf("native: read of %d bytes at %d overflows buffer %d (%d bytes)", n, offset, id, size)
	}
	if n == 0 {
		return nil
	}

	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "isp.staging",
		Size:  align4(n),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	err = d.oneShot("isp.read-buffer", func(enc hal.CommandEncoder) {
		enc.CopyBufferToBuffer(buf, staging, []hal.BufferCopy{
			{SrcOffset: offset, DstOffset: 0, Size: align4(n)},
		})
	})
	if err != nil {
		return err
	}

	if n%4 == 0 {
		return d.queue.ReadBuffer(staging, 0, dst)
	}
	tmp := make([]byte, align4(n))
	if err := d.queue.ReadBuffer(staging, 0, tmp); err != nil {
		return fmt.Errorf("native: readback: %w", err)
	}
	copy(dst, tmp)
	return nil
}

// === Texture Management ===

// CreateTexture creates a 2D texture and its full view.
func (d *Device) CreateTexture(desc *gpucore.TextureDescriptor) (gpucore.TextureID, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return gpucore.InvalidID, fmt.Errorf("native: texture dimensions must be positive")
	}
	format := convertTextureFormat(desc.Format)

	d.mu.Lock()
	if err := d.checkOpen(); err != nil {
		d.mu.Unlock()
		return gpucore.InvalidID, err
	}
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         convertTextureUsage(desc.Usage),
	})
	if err != nil {
		d.mu.Unlock()
		return gpucore.InvalidID, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         desc.Label + "_view",
		Format:        format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		d.mu.Unlock()
		return gpucore.InvalidID, fmt.Errorf("native: create texture view %q: %w", desc.Label, err)
	}
	id := gpucore.TextureID(d.newID())
	t := &texture{tex: tex, view: view, desc: *desc}
	d.textures[id] = t
	d.mu.Unlock()

	// Storage textures live in the storage layout between readbacks.
	if desc.Usage&gpucore.TextureUsageStorageBinding != 0 {
		err := d.oneShot("isp.texture-init", func(enc hal.CommandEncoder) {
			t.state = d.transition(enc, t, 0, gputypes.TextureUsageStorageBinding)
		})
		if err != nil {
			d.DestroyTexture(id)
			return gpucore.InvalidID, err
		}
	}
	return id, nil
}

// transition records a texture barrier and returns the new usage.
func (d *Device) transition(enc hal.CommandEncoder, t *texture, from, to gputypes.TextureUsage) gputypes.TextureUsage {
	enc.TransitionTextures([]hal.TextureBarrier{{
		Texture: t.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: from,
			NewUsage: to,
		},
	}})
	return to
}

// DestroyTexture releases a texture and its view.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	d.mu.Lock()
	t, ok := d.textures[id]
	if ok {
		delete(d.textures, id)
	}
	d.mu.Unlock()

	if ok {
		d.device.DestroyTextureView(t.view)
		d.device.DestroyTexture(t.tex)
	}
}

// ReadTexture copies the texels of a texture into dst, tightly packed.
func (d *Device) ReadTexture(id gpucore.TextureID, dst []byte) error {
	d.mu.RLock()
	t, ok := d.textures[id]
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrUnknownResource, id)
	}

	w, h := t.desc.Width, t.desc.Height
	bpp := t.desc.Format.BytesPerPixel()
	if bpp == 0 {
		bpp = gpucore.TextureFormatRGBA32Float.BytesPerPixel()
	}
	row := int(w) * bpp
	if len(dst) != row*int(h) {
		return fmt.Errorf("native: texture %d needs %d bytes, got %d", id, row*int(h), len(dst))
	}

	pitch := alignedBytesPerRow(w, bpp)
	staging, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "isp.texture-staging",
		Size:  uint64(pitch) * uint64(h),
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("native: create staging buffer: %w", err)
	}
	defer d.device.DestroyBuffer(staging)

	err = d.oneShot("isp.read-texture", func(enc hal.CommandEncoder) {
		prev := t.state
		d.transition(enc, t, prev, gputypes.TextureUsageCopySrc)
		enc.CopyTextureToBuffer(t.tex, staging, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: pitch, RowsPerImage: h},
			TextureBase:  hal.ImageCopyTexture{Texture: t.tex, MipLevel: 0},
			Size:         hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		}})
		if prev != 0 {
			d.transition(enc, t, gputypes.TextureUsageCopySrc, prev)
		} else {
			t.state = gputypes.TextureUsageCopySrc
		}
	})
	if err != nil {
		return err
	}

	if int(pitch) == row {
		return d.queue.ReadBuffer(staging, 0, dst)
	}
	padded := make([]byte, int(pitch)*int(h))
	if err := d.queue.ReadBuffer(staging, 0, padded); err != nil {
		return fmt.Errorf("native: texture readback: %w", err)
	}
	for y := range int(h) {
		copy(dst[y*row:(y+1)*row], padded[y*int(pitch):])
	}
	return nil
}

// === Execution ===

// oneShot records a command sequence with fn, submits it and waits.
func (d *Device) oneShot(label string, fn func(enc hal.CommandEncoder)) error {
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}
	fn(enc)
	cmd, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmd)
	return d.submitAndWait([]hal.CommandBuffer{cmd})
}

// submitAndWait submits cmds with a fence and waits for it.
func (d *Device) submitAndWait(cmds []hal.CommandBuffer) error {
	d.submitMu.Lock()
	defer d.submitMu.Unlock()

	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("native: create fence: %w", err)
	}
	defer d.device.DestroyFence(fence)

	if err := d.queue.Submit(cmds, fence, 1); err != nil {
		return fmt.Errorf("native: submit: %w", err)
	}
	ok, err := d.device.Wait(fence, 1, fenceTimeout)
	if err != nil {
		return fmt.Errorf("native: wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w after %s", ErrTimeout, fenceTimeout)
	}
	return nil
}

// Submit executes a finished command buffer and waits for it.
func (d *Device) Submit(cmd gpucore.CommandBuffer) error {
	cb, ok := cmd.(*commandBuffer)
	if !ok || cb == nil {
		return fmt.Errorf("native: command buffer %T was not recorded by this device", cmd)
	}
	if cb.dev != d {
		return fmt.Errorf("native: command buffer %q belongs to another device", cb.label)
	}
	if cb.cmd == nil {
		return fmt.Errorf("native: command buffer %q already submitted", cb.label)
	}
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	defer func() {
		d.device.FreeCommandBuffer(cb.cmd)
		cb.cmd = nil
	}()
	start := time.Now()
	if err := d.submitAndWait([]hal.CommandBuffer{cb.cmd}); err != nil {
		return err
	}
	logger().Debug("native: submitted", "label", cb.label, "elapsed", time.Since(start))
	return nil
}

// WaitIdle waits for all GPU operations to complete.
func (d *Device) WaitIdle() error {
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	// Submit empty work to synchronize
	return d.submitAndWait(nil)
}

// Close destroys every resource created through the device. An owned
// device and its instance are destroyed as well. Close is idempotent.
func (d *Device) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	_ = d.submitAndWait(nil)

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, bg := range d.bindGroups {
		d.device.DestroyBindGroup(bg)
		delete(d.bindGroups, id)
	}
	clear(d.groupBuffers)
	clear(d.layoutEntries)
	for id, p := range d.computePipelines {
		d.device.DestroyComputePipeline(p)
		delete(d.computePipelines, id)
	}
	for id, l := range d.pipelineLayouts {
		d.device.DestroyPipelineLayout(l)
		delete(d.pipelineLayouts, id)
	}
	for id, l := range d.bindGroupLayouts {
		d.device.DestroyBindGroupLayout(l)
		delete(d.bindGroupLayouts, id)
	}
	for id, m := range d.shaderModules {
		d.device.DestroyShaderModule(m)
		delete(d.shaderModules, id)
	}
	for id, t := range d.textures {
		d.device.DestroyTextureView(t.view)
		d.device.DestroyTexture(t.tex)
		delete(d.textures, id)
	}
	for id, b := range d.buffers {
		d.device.DestroyBuffer(b)
		delete(d.buffers, id)
	}

	if d.borrowed {
		logger().Info("native: detached from shared device")
		return
	}
	d.device.Destroy()
	if d.instance != nil {
		d.instance.Destroy()
	}
	logger().Info("native: device closed", "adapter", d.name)
}
