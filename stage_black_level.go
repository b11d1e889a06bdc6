// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"github.com/gogpu/isp/bufplan"
	"github.com/gogpu/isp/gpucore"
)

// blackLevelStage subtracts the per-channel black level from the raw
// samples into black_level.
type blackLevelStage struct {
	dev    gpucore.Device
	kernel *kernel
	args   gpucore.BufferID
	raw    gpucore.BufferID
	out    gpucore.BufferID
	size   uint64
	gx, gy uint32
}

func (s *blackLevelStage) ID() StageID { return StageBlackLevel }

func (s *blackLevelStage) Active(Params) bool { return true }

func (s *blackLevelStage) Declare(p Params) []bufplan.Descriptor {
	return []bufplan.Descriptor{
		rawDesc(p),
		blackLevelDesc(p),
		uniformDesc(bufBlackLevelArgs, blackLevelArgsSize),
	}
}

func (s *blackLevelStage) Construct(dev gpucore.Device, p Params, view bufplan.StageView) error {
	ids, err := lookup(view, bufBlackLevelArgs, bufRaw, bufBlackLevel)
	if err != nil {
		return err
	}
	s.args, s.raw, s.out = ids[0], ids[1], ids[2]
	s.size = blackLevelDesc(p).Size

	s.kernel, err = newKernel(dev, p.Shaders, kernelSpec{
		Label: "black_level",
		File:  "black_level.wgsl",
		Entry: "black_level",
		Defs:  imageDefs(p),
		Bindings: []gpucore.BindingType{
			gpucore.BindingTypeUniformBuffer,
			gpucore.BindingTypeReadOnlyStorageBuffer,
			gpucore.BindingTypeStorageBuffer,
		},
	})
	if err != nil {
		return err
	}
	if _, err := s.kernel.bind(bufferEntries(s.args, s.raw, s.out)...); err != nil {
		return err
	}
	s.dev = dev
	s.gx, s.gy = imageGroups(p)
	return nil
}

func (s *blackLevelStage) Execute(enc gpucore.CommandEncoder, a *Args) error {
	if !a.BlackLevel.Enabled {
		enc.CopyBufferToBuffer(s.raw, 0, s.out, 0, s.size)
		return nil
	}
	if err := s.dev.WriteBuffer(s.args, 0, a.BlackLevel.Bytes()); err != nil {
		return err
	}
	s.kernel.record(enc, 0, s.gx, s.gy, 1)
	return nil
}

func (s *blackLevelStage) Release() {
	s.kernel.release()
	s.kernel = nil
}
