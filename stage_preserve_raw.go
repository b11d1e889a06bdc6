// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"github.com/gogpu/isp/bufplan"
	"github.com/gogpu/isp/gpucore"
)

// preserveRawStage keeps the raw input declared by a stage that runs
// after every consumer, so the buffer stays intact for the next frame and
// can be carried across a reload. It records nothing.
type preserveRawStage struct{}

func (s *preserveRawStage) ID() StageID { return StagePreserveRaw }

func (s *preserveRawStage) Active(Params) bool { return true }

func (s *preserveRawStage) Declare(p Params) []bufplan.Descriptor {
	return []bufplan.Descriptor{rawDesc(p)}
}

func (s *preserveRawStage) Construct(_ gpucore.Device, _ Params, view bufplan.StageView) error {
	_, err := view.Buffer(bufRaw)
	return err
}

func (s *preserveRawStage) Execute(gpucore.CommandEncoder, *Args) error { return nil }

func (s *preserveRawStage) Release() {}
