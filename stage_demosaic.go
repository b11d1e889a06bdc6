// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"github.com/gogpu/isp/bufplan"
	"github.com/gogpu/isp/gpucore"
	"github.com/gogpu/isp/shader"
)

// demosaicPadding is the tile border of the debayer kernel. It must be at
// least the interpolation radius.
const demosaicPadding = 2

// demosaicStage interpolates black_level into the four channel rgb buffer.
type demosaicStage struct {
	dev    gpucore.Device
	kernel *kernel
	args   gpucore.BufferID
	gx, gy uint32
}

func (s *demosaicStage) ID() StageID { return StageDemosaic }

func (s *demosaicStage) Active(Params) bool { return true }

func (s *demosaicStage) Declare(p Params) []bufplan.Descriptor {
	return []bufplan.Descriptor{
		blackLevelDesc(p),
		rgbDesc(p),
		uniformDesc(bufDemosaicArgs, demosaicArgsSize),
	}
}

func (s *demosaicStage) Construct(dev gpucore.Device, p Params, view bufplan.StageView) error {
	ids, err := lookup(view, bufDemosaicArgs, bufBlackLevel, bufRGB)
	if err != nil {
		return err
	}
	s.args = ids[0]

	defs := append(imageDefs(p), shader.U32("PADDING", demosaicPadding))
	s.kernel, err = newKernel(dev, p.Shaders, kernelSpec{
		Label: "demosaic",
		File:  "debayer.wgsl",
		Entry: "debayer",
		Defs:  defs,
		Bindings: []gpucore.BindingType{
			gpucore.BindingTypeUniformBuffer,
			gpucore.BindingTypeReadOnlyStorageBuffer,
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

func (s *demosaicStage) Execute(enc gpucore.CommandEncoder, a *Args) error {
	if err := s.dev.WriteBuffer(s.args, 0, a.Demosaic.Bytes()); err != nil {
		return err
	}
	s.kernel.record(enc, 0, s.gx, s.gy, 1)
	return nil
}

func (s *demosaicStage) Release() {
	s.kernel.release()
	s.kernel = nil
}
