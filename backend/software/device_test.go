// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/isp/backend"
	"github.com/gogpu/isp/gpucore"
	"github.com/gogpu/isp/shader"
)

func f32Bytes(vs ...float32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		PutF32(b, uint32(i), v)
	}
	return b
}

func readF32(t *testing.T, d *Device, id gpucore.BufferID, n int) []float32 {
	t.Helper()
	b := make([]byte, 4*n)
	require.NoError(t, d.ReadBuffer(id, 0, b))
	out := make([]float32, n)
	for i := range out {
		out[i] = F32At(b, uint32(i))
	}
	return out
}

// compute builds a one-group pipeline for a built-in entry point.
func compute(t *testing.T, d *Device, entry string, defs shader.Defs, types []gpucore.BindingType, entries []gpucore.BindGroupEntry) (gpucore.ComputePipelineID, gpucore.BindGroupID) {
	t.Helper()
	m, err := shader.Default().Process(entry+".wgsl", entry, defs)
	require.NoError(t, err)
	mod, err := d.CreateShaderModule(m.Descriptor(entry))
	require.NoError(t, err)

	layoutEntries := make([]gpucore.BindGroupLayoutEntry, len(types))
	for i, ty := range types {
		layoutEntries[i] = gpucore.BindGroupLayoutEntry{Binding: uint32(i), Type: ty}
	}
	bgl, err := d.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{Label: entry, Entries: layoutEntries})
	require.NoError(t, err)
	pl, err := d.CreatePipelineLayout(&gpucore.PipelineLayoutDesc{Label: entry, BindGroupLayouts: []gpucore.BindGroupLayoutID{bgl}})
	require.NoError(t, err)
	pipe, err := d.CreateComputePipeline(&gpucore.ComputePipelineDesc{Label: entry, Layout: pl, ShaderModule: mod, EntryPoint: entry})
	require.NoError(t, err)
	bg, err := d.CreateBindGroup(&gpucore.BindGroupDesc{Label: entry, Layout: bgl, Entries: entries})
	require.NoError(t, err)
	return pipe, bg
}

func run(t *testing.T, d *Device, pipe gpucore.ComputePipelineID, bg gpucore.BindGroupID, x, y uint32) {
	t.Helper()
	enc, err := d.CreateCommandEncoder("test")
	require.NoError(t, err)
	pass := enc.BeginComputePass("test")
	pass.SetPipeline(pipe)
	pass.SetBindGroup(0, bg)
	pass.Dispatch(x, y, 1)
	pass.End()
	cmd, err := enc.Finish()
	require.NoError(t, err)
	require.NoError(t, d.Submit(cmd))
}

func storage(t *testing.T, d *Device, label string, size uint64) gpucore.BufferID {
	t.Helper()
	id, err := d.CreateBuffer(&gpucore.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: gpucore.BufferUsageStorage | gpucore.BufferUsageCopySrc | gpucore.BufferUsageCopyDst,
	})
	require.NoError(t, err)
	return id
}

func uniform(t *testing.T, d *Device, label string, data []byte) gpucore.BufferID {
	t.Helper()
	id, err := d.CreateBuffer(&gpucore.BufferDescriptor{
		Label: label,
		Size:  uint64(len(data)),
		Usage: gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst,
	})
	require.NoError(t, err)
	require.NoError(t, d.WriteBuffer(id, 0, data))
	return id
}

func TestRegistered(t *testing.T) {
	dev, err := backend.Get(backend.BackendSoftware)
	require.NoError(t, err)
	defer dev.Close()
	assert.Equal(t, backend.BackendSoftware, dev.Name())
}

func TestBufferReadWrite(t *testing.T) {
	d := New()
	defer d.Close()

	id := storage(t, d, "buf", 16)
	require.NoError(t, d.WriteBuffer(id, 4, f32Bytes(1.5, 2.5)))
	assert.Equal(t, []float32{0, 1.5, 2.5, 0}, readF32(t, d, id, 4))

	assert.ErrorIs(t, d.WriteBuffer(id, 12, f32Bytes(1, 2)), ErrOutOfBounds)
	assert.ErrorIs(t, d.ReadBuffer(id, 8, make([]byte, 16)), ErrOutOfBounds)
	assert.ErrorIs(t, d.WriteBuffer(999, 0, nil), ErrUnknownResource)

	d.DestroyBuffer(id)
	assert.Equal(t, 0, d.LiveBuffers())
}

func TestCopyBufferToBuffer(t *testing.T) {
	d := New()
	defer d.Close()

	src := storage(t, d, "src", 16)
	dst := storage(t, d, "dst", 16)
	require.NoError(t, d.WriteBuffer(src, 0, f32Bytes(1, 2, 3, 4)))

	enc, err := d.CreateCommandEncoder("copy")
	require.NoError(t, err)
	enc.CopyBufferToBuffer(src, 4, dst, 0, 8)
	cmd, err := enc.Finish()
	require.NoError(t, err)
	assert.Equal(t, "copy", cmd.Label())
	require.NoError(t, d.Submit(cmd))

	assert.Equal(t, []float32{2, 3, 0, 0}, readF32(t, d, dst, 4))
}

func TestEncoderStateErrors(t *testing.T) {
	d := New()
	defer d.Close()

	t.Run("copy inside pass", func(t *testing.T) {
		enc, err := d.CreateCommandEncoder("bad")
		require.NoError(t, err)
		enc.BeginComputePass("p")
		enc.CopyBufferToBuffer(1, 0, 2, 0, 4)
		_, err = enc.Finish()
		assert.ErrorIs(t, err, ErrEncoderState)
	})

	t.Run("dispatch without pipeline", func(t *testing.T) {
		enc, err := d.CreateCommandEncoder("bad")
		require.NoError(t, err)
		pass := enc.BeginComputePass("p")
		pass.Dispatch(1, 1, 1)
		pass.End()
		_, err = enc.Finish()
		assert.ErrorIs(t, err, ErrEncoderState)
	})
}

func TestPipelineRequiresKernelAndEntry(t *testing.T) {
	d := New()
	defer d.Close()

	bgl, err := d.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{})
	require.NoError(t, err)
	pl, err := d.CreatePipelineLayout(&gpucore.PipelineLayoutDesc{BindGroupLayouts: []gpucore.BindGroupLayoutID{bgl}})
	require.NoError(t, err)

	mod, err := d.CreateShaderModule(&gpucore.ShaderModuleDescriptor{WGSL: "fn not_registered() {}"})
	require.NoError(t, err)
	_, err = d.CreateComputePipeline(&gpucore.ComputePipelineDesc{Layout: pl, ShaderModule: mod, EntryPoint: "not_registered"})
	assert.ErrorIs(t, err, ErrNoKernel)

	_, err = d.CreateComputePipeline(&gpucore.ComputePipelineDesc{Layout: pl, ShaderModule: mod, EntryPoint: "debayer"})
	assert.Error(t, err)
}

func TestBindGroupUsageChecked(t *testing.T) {
	d := New()
	defer d.Close()

	bgl, err := d.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Entries: []gpucore.BindGroupLayoutEntry{{Binding: 0, Type: gpucore.BindingTypeUniformBuffer}},
	})
	require.NoError(t, err)
	buf := storage(t, d, "not-uniform", 16)

	_, err = d.CreateBindGroup(&gpucore.BindGroupDesc{Layout: bgl, Entries: []gpucore.BindGroupEntry{gpucore.BufferEntry(0, buf)}})
	assert.ErrorContains(t, err, "lacks Uniform usage")
}

func TestBlackLevelKernel(t *testing.T) {
	d := New()
	defer d.Close()

	const w, h = 4, 2
	raw := storage(t, d, "raw", w*h*4)
	out := storage(t, d, "out", w*h*4)
	require.NoError(t, d.WriteBuffer(raw, 0, f32Bytes(
		100, 200, 100, 200,
		300, 400, 300, 400,
	)))
	args := uniform(t, d, "args", f32Bytes(10, 20, 30, 40, 0.5, 2, 0, 0))

	pipe, bg := compute(t, d, "black_level",
		shader.Defs{shader.U32("WIDTH", w), shader.U32("HEIGHT", h), shader.U32("CFA", 0)},
		[]gpucore.BindingType{gpucore.BindingTypeUniformBuffer, gpucore.BindingTypeReadOnlyStorageBuffer, gpucore.BindingTypeStorageBuffer},
		[]gpucore.BindGroupEntry{gpucore.BufferEntry(0, args), gpucore.BufferEntry(1, raw), gpucore.BufferEntry(2, out)})
	run(t, d, pipe, bg, 1, 1)

	// scale = 1 - 0.5 + 0.5 * 2 = 1.5
	assert.Equal(t, []float32{
		135, 270, 135, 270,
		405, 540, 405, 540,
	}, readF32(t, d, out, w*h))
}

func TestReduceMeanKernel(t *testing.T) {
	d := New()
	defer d.Close()

	const n = 300
	values := make([]float32, 4*n)
	for i := range n {
		values[4*i] = 1
		values[4*i+1] = 2
		values[4*i+3] = float32(i)
	}
	in := storage(t, d, "values", 4*4*n)
	require.NoError(t, d.WriteBuffer(in, 0, f32Bytes(values...)))
	sums := storage(t, d, "sums", 16)

	args := make([]byte, 16)
	binary.LittleEndian.PutUint32(args, n)
	PutF32(args, 1, 1.0/n)
	u := uniform(t, d, "args", args)

	pipe, bg := compute(t, d, "reduce_mean",
		shader.Defs{shader.U32("STRIDE", 4)},
		[]gpucore.BindingType{gpucore.BindingTypeUniformBuffer, gpucore.BindingTypeReadOnlyStorageBuffer, gpucore.BindingTypeStorageBuffer},
		[]gpucore.BindGroupEntry{gpucore.BufferEntry(0, u), gpucore.BufferEntry(1, in), gpucore.BufferEntry(2, sums)})
	run(t, d, pipe, bg, 1, 1)

	got := readF32(t, d, sums, 4)
	assert.InDelta(t, 1.0, got[0], 1e-5)
	assert.InDelta(t, 2.0, got[1], 1e-5)
	assert.InDelta(t, 0.0, got[2], 0)
	assert.InDelta(t, 149.5, got[3], 1e-3)
}

func TestDebayerReflect(t *testing.T) {
	assert.Equal(t, int32(1), reflect101(-1, 4))
	assert.Equal(t, int32(2), reflect101(4, 4))
	assert.Equal(t, int32(0), reflect101(0, 4))
	assert.Equal(t, int32(0), reflect101(-1, 1))
}

func TestToTexture(t *testing.T) {
	d := New()
	defer d.Close()

	const w, h = 3, 2
	px := make([]float32, 0, 4*w*h)
	for i := range w * h {
		px = append(px, float32(i), 0, 0, 1)
	}
	rgb := storage(t, d, "rgb", 16*w*h)
	require.NoError(t, d.WriteBuffer(rgb, 0, f32Bytes(px...)))
	tex, err := d.CreateTexture(&gpucore.TextureDescriptor{
		Label:  "out",
		Width:  w,
		Height: h,
		Format: gpucore.TextureFormatRGBA32Float,
		Usage:  gpucore.TextureUsageStorageBinding | gpucore.TextureUsageCopySrc,
	})
	require.NoError(t, err)

	pipe, bg := compute(t, d, "to_texture",
		shader.Defs{shader.U32("WIDTH", w), shader.U32("HEIGHT", h)},
		[]gpucore.BindingType{gpucore.BindingTypeReadOnlyStorageBuffer, gpucore.BindingTypeWriteOnlyStorageTexture},
		[]gpucore.BindGroupEntry{gpucore.BufferEntry(0, rgb), gpucore.TextureEntry(1, tex)})
	run(t, d, pipe, bg, 1, 1)

	got := make([]byte, 16*w*h)
	require.NoError(t, d.ReadTexture(tex, got))
	for i := range w * h {
		assert.InDelta(t, float32(i), F32At(got, uint32(4*i)), 0)
		assert.InDelta(t, float32(1), F32At(got, uint32(4*i+3)), 0)
	}
}

func TestCallsCounted(t *testing.T) {
	d := New()
	defer d.Close()

	before := d.Calls()
	storage(t, d, "a", 4)
	assert.Equal(t, before+1, d.Calls())
}

func TestParallelMatchesSerial(t *testing.T) {
	const w, h = 96, 40
	bayer := make([]float32, w*h)
	for i := range bayer {
		bayer[i] = float32((i*37)%1000) * 0.5
	}

	debayerOn := func(d *Device) []float32 {
		in := storage(t, d, "bayer", w*h*4)
		require.NoError(t, d.WriteBuffer(in, 0, f32Bytes(bayer...)))
		out := storage(t, d, "rgb", w*h*16)
		args := uniform(t, d, "args", []byte{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
		pipe, bg := compute(t, d, "debayer",
			shader.Defs{shader.U32("WIDTH", w), shader.U32("HEIGHT", h), shader.U32("CFA", 2), shader.U32("PADDING", 2)},
			[]gpucore.BindingType{gpucore.BindingTypeUniformBuffer, gpucore.BindingTypeReadOnlyStorageBuffer, gpucore.BindingTypeStorageBuffer},
			[]gpucore.BindGroupEntry{gpucore.BufferEntry(0, args), gpucore.BufferEntry(1, in), gpucore.BufferEntry(2, out)})
		run(t, d, pipe, bg, (h+7)/8, (w+31)/32)
		return readF32(t, d, out, 4*w*h)
	}

	serial := NewWithWorkers(1)
	defer serial.Close()
	wide := NewWithWorkers(8)
	defer wide.Close()

	assert.Equal(t, debayerOn(serial), debayerOn(wide))
}

func TestKernelPanicBecomesError(t *testing.T) {
	RegisterKernel("test_panics", func(d *Dispatch) error {
		d.Rows(16, func(row uint32) {
			if row == 7 {
				var b []byte
				_ = b[row]
			}
		})
		return nil
	})

	d := NewWithWorkers(4)
	defer d.Close()

	mod, err := d.CreateShaderModule(&gpucore.ShaderModuleDescriptor{Label: "p", WGSL: "fn test_panics() {}"})
	require.NoError(t, err)
	bgl, err := d.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{Label: "p"})
	require.NoError(t, err)
	pl, err := d.CreatePipelineLayout(&gpucore.PipelineLayoutDesc{BindGroupLayouts: []gpucore.BindGroupLayoutID{bgl}})
	require.NoError(t, err)
	pipe, err := d.CreateComputePipeline(&gpucore.ComputePipelineDesc{Layout: pl, ShaderModule: mod, EntryPoint: "test_panics"})
	require.NoError(t, err)
	bg, err := d.CreateBindGroup(&gpucore.BindGroupDesc{Layout: bgl})
	require.NoError(t, err)

	enc, err := d.CreateCommandEncoder("panic")
	require.NoError(t, err)
	pass := enc.BeginComputePass("panic")
	pass.SetPipeline(pipe)
	pass.SetBindGroup(0, bg)
	pass.Dispatch(1, 1, 1)
	pass.End()
	cmd, err := enc.Finish()
	require.NoError(t, err)

	err = d.Submit(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel panic")
}
