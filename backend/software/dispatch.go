// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/chewxy/math32"

	"github.com/gogpu/isp/internal/parallel"
)

// Kernel executes one whole dispatch on the CPU.
type Kernel func(d *Dispatch) error

var (
	kernelsMu sync.RWMutex
	kernels   = make(map[string]Kernel)
)

// RegisterKernel makes a Go kernel available for the WGSL entry point of
// the same name. Registering an existing entry point replaces it.
func RegisterKernel(entry string, k Kernel) {
	kernelsMu.Lock()
	defer kernelsMu.Unlock()
	kernels[entry] = k
}

func lookupKernel(entry string) (Kernel, bool) {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	k, ok := kernels[entry]
	return k, ok
}

// Dispatch is the view a kernel has of one dispatch: the workgroup counts,
// the module constants and the resources of bind group 0.
type Dispatch struct {
	Groups [3]uint32

	consts   map[string]float64
	buffers  map[uint32][]byte
	textures map[uint32]*texture
	pool     *parallel.WorkerPool

	mu  sync.Mutex
	err error
}

func (d *Dispatch) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err == nil {
		d.err = err
	}
}

// Err returns the first error of the dispatch.
func (d *Dispatch) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Rows calls fn once for every index in [0, n). Calls run in parallel on
// the device workers, so fn must only write outputs owned by its index.
// A panic in fn becomes the dispatch error.
func (d *Dispatch) Rows(n uint32, fn func(row uint32)) {
	run := func(lo, hi int) {
		defer func() {
			if r := recover(); r != nil {
				d.fail(fmt.Errorf("kernel panic: %v", r))
			}
		}()
		for r := lo; r < hi; r++ {
			fn(uint32(r))
		}
	}
	if d.pool == nil {
		run(0, int(n))
		return
	}
	d.pool.ForRange(int(n), run)
}

// U32 returns a module constant as u32.
func (d *Dispatch) U32(name string) uint32 {
	v, ok := d.consts[name]
	if !ok {
		d.fail(fmt.Errorf("missing constant %s", name))
		return 0
	}
	return uint32(v)
}

// F32 returns a module constant as f32.
func (d *Dispatch) F32(name string) float32 {
	v, ok := d.consts[name]
	if !ok {
		d.fail(fmt.Errorf("missing constant %s", name))
		return 0
	}
	return float32(v)
}

// Buffer returns the bytes bound at binding.
func (d *Dispatch) Buffer(binding uint32) []byte {
	b, ok := d.buffers[binding]
	if !ok {
		d.fail(fmt.Errorf("no buffer at binding %d", binding))
	}
	return b
}

// Store writes one RGBA32F texel of the storage texture at binding.
func (d *Dispatch) Store(binding uint32, x, y uint32, texel [4]float32) {
	tex, ok := d.textures[binding]
	if !ok {
		d.fail(fmt.Errorf("no texture at binding %d", binding))
		return
	}
	if x >= tex.desc.Width || y >= tex.desc.Height {
		return
	}
	off := (int(y)*int(tex.desc.Width) + int(x)) * 16
	for i, v := range texel {
		binary.LittleEndian.PutUint32(tex.data[off+4*i:], math32.Float32bits(v))
	}
}

// F32At reads the i-th f32 of a buffer.
func F32At(b []byte, i uint32) float32 {
	return math32.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
}

// PutF32 writes the i-th f32 of a buffer.
func PutF32(b []byte, i uint32, v float32) {
	binary.LittleEndian.PutUint32(b[4*i:], math32.Float32bits(v))
}

// U32At reads the i-th u32 of a buffer.
func U32At(b []byte, i uint32) uint32 {
	return binary.LittleEndian.Uint32(b[4*i:])
}

// Vec4At reads the i-th vec4<f32> of a buffer.
func Vec4At(b []byte, i uint32) [4]float32 {
	return [4]float32{F32At(b, 4*i), F32At(b, 4*i+1), F32At(b, 4*i+2), F32At(b, 4*i+3)}
}

// PutVec4 writes the i-th vec4<f32> of a buffer.
func PutVec4(b []byte, i uint32, v [4]float32) {
	for k, c := range v {
		PutF32(b, 4*i+uint32(k), c)
	}
}
