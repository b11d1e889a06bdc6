// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"fmt"

	"github.com/gogpu/isp/gpucore"
	"github.com/gogpu/isp/shader"
)

// outputConversion copies rgb into the rgba32float display texture.
type outputConversion struct {
	dev     gpucore.Device
	texture gpucore.TextureID
	kernel  *kernel
	gx, gy  uint32
}

func newOutputConversion(dev gpucore.Device, p Params, rgb gpucore.BufferID) (*outputConversion, error) {
	o := &outputConversion{dev: dev}
	var err error
	o.texture, err = dev.CreateTexture(&gpucore.TextureDescriptor{
		Label:  "isp.output",
		Width:  uint32(p.Width),
		Height: uint32(p.Height),
		Format: gpucore.TextureFormatRGBA32Float,
		Usage: gpucore.TextureUsageStorageBinding |
			gpucore.TextureUsageCopySrc |
			gpucore.TextureUsageTextureBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("output texture: %w", err)
	}

	o.kernel, err = newKernel(dev, p.Shaders, kernelSpec{
		Label: "output",
		File:  "to_texture.wgsl",
		Entry: "to_texture",
		Defs: shader.Defs{
			shader.U32("WIDTH", uint32(p.Width)),
			shader.U32("HEIGHT", uint32(p.Height)),
		},
		Bindings: []gpucore.BindingType{
			gpucore.BindingTypeReadOnlyStorageBuffer,
			gpucore.BindingTypeWriteOnlyStorageTexture,
		},
	})
	if err != nil {
		o.release()
		return nil, err
	}
	if _, err := o.kernel.bind(gpucore.BufferEntry(0, rgb), gpucore.TextureEntry(1, o.texture)); err != nil {
		o.release()
		return nil, err
	}
	o.gx = groupsFor(uint32(p.Height), 16)
	o.gy = groupsFor(uint32(p.Width), 16)
	return o, nil
}

func (o *outputConversion) record(enc gpucore.CommandEncoder) {
	o.kernel.record(enc, 0, o.gx, o.gy, 1)
}

func (o *outputConversion) release() {
	if o == nil {
		return
	}
	o.kernel.release()
	o.kernel = nil
	if o.texture != gpucore.InvalidID {
		o.dev.DestroyTexture(o.texture)
		o.texture = gpucore.InvalidID
	}
}
