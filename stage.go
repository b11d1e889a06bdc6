// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"fmt"

	"github.com/gogpu/isp/bufplan"
	"github.com/gogpu/isp/gpucore"
	"github.com/gogpu/isp/shader"
)

// Stage is one step of the pipeline.
//
// A stage goes through three phases. Declare lists the buffers it needs
// for the given params, Construct builds its dispatches once against the
// resolved buffers, and Execute records them every frame. Stages never
// allocate buffers themselves.
type Stage interface {
	// ID identifies the stage.
	ID() StageID

	// Active reports whether the stage takes part in a pipeline built
	// with p. Inactive stages declare nothing and record nothing.
	Active(p Params) bool

	// Declare lists the logical buffers the stage reads or writes.
	Declare(p Params) []bufplan.Descriptor

	// Construct compiles the stage's kernels and binds them to the
	// buffers in view.
	Construct(dev gpucore.Device, p Params, view bufplan.StageView) error

	// Execute uploads the stage's arguments and records its dispatches.
	Execute(enc gpucore.CommandEncoder, a *Args) error

	// Release destroys everything Construct created.
	Release()
}

// defaultStages returns the stages in execution order. The position of a
// stage in the slice is its registration index.
func defaultStages() []Stage {
	return []Stage{
		&blackLevelStage{},
		&whiteBalanceStage{},
		&demosaicStage{},
		&colorStage{},
		&preserveRawStage{},
	}
}

// Logical buffer names shared between stages.
const (
	bufRaw        = "raw"
	bufBlackLevel = "black_level"
	bufRGB        = "rgb"
)

// Per-stage buffer names.
const (
	bufBlackLevelArgs = "black_level.args"
	bufAWBPacked      = "awb.packed"
	bufAWBScratch     = "awb.scratch"
	bufAWBMean        = "awb.mean"
	bufAWBArgs        = "awb.args"
	bufDemosaicArgs   = "demosaic.args"
	bufColorArgs      = "color.args"
)

func reduceArgsName(pass int) string {
	return fmt.Sprintf("awb.reduce.%d", pass)
}

// Declarations of the buffers shared between stages. Sizes must agree
// exactly across stages, so they are computed in one place.

func rawDesc(p Params) bufplan.Descriptor {
	return bufplan.Descriptor{
		Name:     bufRaw,
		Category: bufplan.Persistent,
		Usage:    bufplan.UsageStorage | bufplan.UsageCopyDst | bufplan.UsageCopySrc,
		Size:     p.pixels() * 4,
	}
}

func blackLevelDesc(p Params) bufplan.Descriptor {
	return bufplan.Descriptor{
		Name:     bufBlackLevel,
		Category: bufplan.Persistent,
		Usage:    bufplan.UsageStorage | bufplan.UsageCopyDst | bufplan.UsageCopySrc,
		Size:     p.pixels() * 4,
	}
}

func rgbDesc(p Params) bufplan.Descriptor {
	return bufplan.Descriptor{
		Name:     bufRGB,
		Category: bufplan.Persistent,
		Usage:    bufplan.UsageStorage | bufplan.UsageCopySrc,
		Size:     p.pixels() * 16,
	}
}

func uniformDesc(name string, size uint64) bufplan.Descriptor {
	return bufplan.Descriptor{
		Name:     name,
		Category: bufplan.Persistent,
		Usage:    bufplan.UsageUniform | bufplan.UsageCopyDst,
		Size:     size,
	}
}

// lookup resolves names through a stage view.
func lookup(view bufplan.StageView, names ...string) ([]gpucore.BufferID, error) {
	ids := make([]gpucore.BufferID, len(names))
	for i, n := range names {
		b, err := view.Buffer(n)
		if err != nil {
			return nil, err
		}
		ids[i] = b.Buffer
	}
	return ids, nil
}

// imageGroups is the dispatch grid of the 8x32 image kernels: x covers
// rows and y covers columns.
func imageGroups(p Params) (x, y uint32) {
	return groupsFor(uint32(p.Height), 8), groupsFor(uint32(p.Width), 32)
}

// imageDefs are the definitions every full-resolution kernel receives.
func imageDefs(p Params) shader.Defs {
	return shader.Defs{
		shader.U32("WIDTH", uint32(p.Width)),
		shader.U32("HEIGHT", uint32(p.Height)),
		shader.U32("CFA", uint32(p.CFA)),
	}
}
