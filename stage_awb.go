// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"github.com/gogpu/isp/bufplan"
	"github.com/gogpu/isp/gpucore"
	"github.com/gogpu/isp/shader"
)

// Reduction geometry: reduce_mean folds reduceStride elements per thread
// in workgroups of reduceGroup threads.
const (
	reduceGroup  = 256
	reduceStride = 4
	reducePerWG  = reduceGroup * reduceStride
)

// reducePass is one reduce_mean dispatch.
type reducePass struct {
	len    uint32
	groups uint32
	final  bool
}

// reducePasses plans the reduction of n vec4 values down to one.
func reducePasses(n uint32) []reducePass {
	var passes []reducePass
	for {
		g := groupsFor(n, reducePerWG)
		passes = append(passes, reducePass{len: n, groups: g, final: g == 1})
		if g == 1 {
			return passes
		}
		n = g
	}
}

// whiteBalanceStage estimates the per-channel mean of the black-level
// corrected image and rescales every channel towards the green mean.
//
// Phases: bayer_to_vec4 packs each 2x2 cell into a vec4, reduce_mean
// folds the packed cells into awb.mean over one or more passes, and
// auto_white_balance applies the gains in place on black_level.
type whiteBalanceStage struct {
	dev    gpucore.Device
	pack   *kernel
	reduce *kernel
	apply  *kernel
	args   gpucore.BufferID
	passes []reducePass

	packX, packY   uint32
	applyX, applyY uint32
}

func (s *whiteBalanceStage) ID() StageID { return StageAutoWhiteBalance }

func (s *whiteBalanceStage) Active(p Params) bool {
	return !p.Disabled.Has(StageAutoWhiteBalance)
}

func cells(p Params) uint32 {
	return uint32(p.Width/2) * uint32(p.Height/2)
}

func (s *whiteBalanceStage) Declare(p Params) []bufplan.Descriptor {
	n := cells(p)
	passes := reducePasses(n)

	descs := []bufplan.Descriptor{
		blackLevelDesc(p),
		{
			Name:     bufAWBPacked,
			Category: bufplan.Transient,
			Usage:    bufplan.UsageStorage | bufplan.UsageCopySrc,
			Size:     uint64(n) * 16,
		},
		{
			Name:     bufAWBMean,
			Category: bufplan.Persistent,
			Usage:    bufplan.UsageStorage | bufplan.UsageCopySrc,
			Size:     16,
		},
		uniformDesc(bufAWBArgs, gainArgsSize),
	}
	if len(passes) > 1 {
		descs = append(descs, bufplan.Descriptor{
			Name:     bufAWBScratch,
			Category: bufplan.Transient,
			Usage:    bufplan.UsageStorage | bufplan.UsageCopySrc,
			Size:     uint64(passes[0].groups) * 16,
		})
	}
	for i := range passes {
		descs = append(descs, uniformDesc(reduceArgsName(i), reduceArgsSize))
	}
	return descs
}

func (s *whiteBalanceStage) Construct(dev gpucore.Device, p Params, view bufplan.StageView) error {
	ids, err := lookup(view, bufBlackLevel, bufAWBPacked, bufAWBMean, bufAWBArgs)
	if err != nil {
		return err
	}
	bl, packed, mean, args := ids[0], ids[1], ids[2], ids[3]
	s.dev = dev
	s.args = args

	n := cells(p)
	s.passes = reducePasses(n)
	var scratch gpucore.BufferID
	if len(s.passes) > 1 {
		if scratch, err = lookupOne(view, bufAWBScratch); err != nil {
			return err
		}
	}

	s.pack, err = newKernel(dev, p.Shaders, kernelSpec{
		Label: "awb.bayer_to_vec4",
		File:  "bayer_to_vec4.wgsl",
		Entry: "bayer_to_vec4",
		Defs:  imageDefs(p),
		Bindings: []gpucore.BindingType{
			gpucore.BindingTypeReadOnlyStorageBuffer,
			gpucore.BindingTypeStorageBuffer,
		},
	})
	if err != nil {
		return err
	}
	if _, err := s.pack.bind(bufferEntries(bl, packed)...); err != nil {
		return err
	}

	s.reduce, err = newKernel(dev, p.Shaders, kernelSpec{
		Label: "awb.reduce_mean",
		File:  "reduce_mean.wgsl",
		Entry: "reduce_mean",
		Defs:  shader.Defs{shader.U32("STRIDE", reduceStride)},
		Bindings: []gpucore.BindingType{
			gpucore.BindingTypeUniformBuffer,
			gpucore.BindingTypeReadOnlyStorageBuffer,
			gpucore.BindingTypeStorageBuffer,
		},
	})
	if err != nil {
		return err
	}

	// Passes ping-pong between packed and scratch; the last one writes
	// the mean, scaled by the number of cells.
	src, dst := packed, scratch
	for i, pass := range s.passes {
		u, err := lookupOne(view, reduceArgsName(i))
		if err != nil {
			return err
		}
		scale := float32(1)
		out := dst
		if pass.final {
			scale = 1 / float32(n)
			out = mean
		}
		if err := dev.WriteBuffer(u, 0, reduceArgs(pass.len, scale)); err != nil {
			return err
		}
		if _, err := s.reduce.bind(bufferEntries(u, src, out)...); err != nil {
			return err
		}
		src, dst = dst, src
	}

	s.apply, err = newKernel(dev, p.Shaders, kernelSpec{
		Label: "awb.auto_white_balance",
		File:  "auto_white_balance.wgsl",
		Entry: "auto_white_balance",
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
	if _, err := s.apply.bind(bufferEntries(args, mean, bl)...); err != nil {
		return err
	}

	s.packX = groupsFor(uint32(p.Height/2), 16)
	s.packY = groupsFor(uint32(p.Width/2), 16)
	s.applyX, s.applyY = imageGroups(p)
	return nil
}

func (s *whiteBalanceStage) Execute(enc gpucore.CommandEncoder, a *Args) error {
	if !a.WhiteBalance.Enabled {
		return nil
	}
	if err := s.dev.WriteBuffer(s.args, 0, a.WhiteBalance.Bytes()); err != nil {
		return err
	}
	s.pack.record(enc, 0, s.packX, s.packY, 1)
	for i, pass := range s.passes {
		s.reduce.record(enc, i, pass.groups, 1, 1)
	}
	s.apply.record(enc, 0, s.applyX, s.applyY, 1)
	return nil
}

func (s *whiteBalanceStage) Release() {
	s.apply.release()
	s.reduce.release()
	s.pack.release()
	s.apply, s.reduce, s.pack = nil, nil, nil
}

func lookupOne(view bufplan.StageView, name string) (gpucore.BufferID, error) {
	b, err := view.Buffer(name)
	if err != nil {
		return gpucore.InvalidID, err
	}
	return b.Buffer, nil
}
