// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"github.com/gogpu/isp/bufplan"
	"github.com/gogpu/isp/gpucore"
	"github.com/gogpu/isp/shader"
)

// colorStage applies the color matrix and tone curve in place on rgb.
// When the stage is disabled at construction, rgb keeps sample units.
type colorStage struct {
	dev    gpucore.Device
	kernel *kernel
	args   gpucore.BufferID
	gx, gy uint32
}

func (s *colorStage) ID() StageID { return StageColorCorrection }

func (s *colorStage) Active(p Params) bool {
	return !p.Disabled.Has(StageColorCorrection)
}

func (s *colorStage) Declare(p Params) []bufplan.Descriptor {
	return []bufplan.Descriptor{
		rgbDesc(p),
		uniformDesc(bufColorArgs, colorArgsSize),
	}
}

func (s *colorStage) Construct(dev gpucore.Device, p Params, view bufplan.StageView) error {
	ids, err := lookup(view, bufColorArgs, bufRGB)
	if err != nil {
		return err
	}
	s.args = ids[0]

	s.kernel, err = newKernel(dev, p.Shaders, kernelSpec{
		Label: "color",
		File:  "rgb_space.wgsl",
		Entry: "rgb_space",
		Defs: shader.Defs{
			shader.U32("WIDTH", uint32(p.Width)),
			shader.U32("HEIGHT", uint32(p.Height)),
			shader.F32("WHITE_LEVEL", float32(p.Format.WhiteLevel())),
		},
		Bindings: []gpucore.BindingType{
			gpucore.BindingTypeUniformBuffer,
			gpucore.BindingTypeStorageBuffer,
		},
	})
	if err != nil {
		return err
	}
	if _, err := s.kernel.bind(bufferEntries(ids...)...); err != nil {
		return err
	}
	s.dev = dev
	s.gx, s.gy = imageGroups(p)
	return nil
}

func (s *colorStage) Execute(enc gpucore.CommandEncoder, a *Args) error {
	if err := s.dev.WriteBuffer(s.args, 0, a.Color.Bytes()); err != nil {
		return err
	}
	s.kernel.record(enc, 0, s.gx, s.gy, 1)
	return nil
}

func (s *colorStage) Release() {
	s.kernel.release()
	s.kernel = nil
}
