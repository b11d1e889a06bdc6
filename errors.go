// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"errors"
	"fmt"

	"github.com/gogpu/isp/bufplan"
	"github.com/gogpu/isp/shader"
)

// Sentinel errors.
var (
	// ErrInvalidParams is returned when Params fail validation.
	ErrInvalidParams = errors.New("isp: invalid params")

	// ErrReleased is returned by operations on a released pipeline.
	ErrReleased = errors.New("isp: pipeline released")

	// ErrNilDevice is returned when New is called without a device.
	ErrNilDevice = errors.New("isp: nil device")

	// ErrNilArgs is returned when a frame is recorded without arguments.
	ErrNilArgs = errors.New("isp: nil args")
)

// Construction error kinds, re-exported so hosts need only import isp.
type (
	// ResolutionError reports conflicting or invalid buffer declarations.
	ResolutionError = bufplan.ResolutionError

	// UnboundBufferError reports a stage looking up a name it did not declare.
	UnboundBufferError = bufplan.UnboundBufferError

	// ShaderBuildError reports a shader that could not be specialized or compiled.
	ShaderBuildError = shader.ShaderBuildError
)

// PipelineConstructionError is returned by New and Reload. Stage is the
// stage that failed, or "plan" and "output" for the shared steps.
type PipelineConstructionError struct {
	Stage string
	Err   error
}

func (e *PipelineConstructionError) Error() string {
	return fmt.Sprintf("isp: construct %s: %v", e.Stage, e.Err)
}

func (e *PipelineConstructionError) Unwrap() error { return e.Err }

// DimensionMismatchError reports input data whose size does not match the
// pipeline dimensions.
type DimensionMismatchError struct {
	Width, Height int
	Format        SampleFormat
	Got, Want     int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("isp: input size %d for %dx%d %s, want %d", e.Got, e.Width, e.Height, e.Format, e.Want)
}
