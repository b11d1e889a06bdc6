// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/gogpu/isp/shader"
)

// SampleFormat is the bit depth of raw sensor samples.
type SampleFormat uint8

// Sample formats.
const (
	U16 SampleFormat = iota
	U8
	U10
	U12
	U14
)

var sampleFormats = [...]struct {
	name       string
	bytes      int
	whiteLevel uint32
}{
	U16: {"u16", 2, 65535},
	U8:  {"u8", 1, 255},
	U10: {"u10", 2, 1023},
	U12: {"u12", 2, 4095},
	U14: {"u14", 2, 16383},
}

func (f SampleFormat) valid() bool { return int(f) < len(sampleFormats) }

// BytesPerSample is the size of one stored sample.
func (f SampleFormat) BytesPerSample() int {
	if !f.valid() {
		return 0
	}
	return sampleFormats[f].bytes
}

// WhiteLevel is the largest sample value of the format.
func (f SampleFormat) WhiteLevel() uint32 {
	if !f.valid() {
		return 0
	}
	return sampleFormats[f].whiteLevel
}

func (f SampleFormat) String() string {
	if !f.valid() {
		return fmt.Sprintf("SampleFormat(%d)", f)
	}
	return sampleFormats[f].name
}

// ParseSampleFormat parses "u8", "u10", "u12", "u14" or "u16".
func ParseSampleFormat(s string) (SampleFormat, error) {
	for i, f := range sampleFormats {
		if strings.EqualFold(s, f.name) {
			return SampleFormat(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown sample format %q", ErrInvalidParams, s)
}

// CFA is the Bayer color filter layout of the top-left 2x2 cell.
// The channel of a pixel is ((row&1)*2 + (col&1)) XOR CFA, where channel
// 0 is red, 1 and 2 are the two greens and 3 is blue.
type CFA uint8

// CFA layouts.
const (
	RGGB CFA = iota
	GRBG
	GBRG
	BGGR
)

var cfaNames = [...]string{"RGGB", "GRBG", "GBRG", "BGGR"}

func (c CFA) String() string {
	if int(c) >= len(cfaNames) {
		return fmt.Sprintf("CFA(%d)", c)
	}
	return cfaNames[c]
}

// ParseCFA parses a layout name such as "RGGB".
func ParseCFA(s string) (CFA, error) {
	for i, n := range cfaNames {
		if strings.EqualFold(s, n) {
			return CFA(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown CFA %q", ErrInvalidParams, s)
}

// Channel returns the CFA channel of the pixel at row, col.
func (c CFA) Channel(row, col int) int {
	return ((row&1)*2 + (col & 1)) ^ int(c)
}

// StageID identifies a pipeline stage.
type StageID uint8

// Stages in execution order.
const (
	StageBlackLevel StageID = iota
	StageAutoWhiteBalance
	StageDemosaic
	StageColorCorrection
	StagePreserveRaw
)

var stageNames = [...]string{
	StageBlackLevel:       "black_level",
	StageAutoWhiteBalance: "auto_white_balance",
	StageDemosaic:         "demosaic",
	StageColorCorrection:  "color_correction",
	StagePreserveRaw:      "preserve_raw",
}

func (s StageID) String() string {
	if int(s) >= len(stageNames) {
		return fmt.Sprintf("StageID(%d)", s)
	}
	return stageNames[s]
}

// ParseStageID parses a stage name as printed by String.
func ParseStageID(s string) (StageID, error) {
	for i, n := range stageNames {
		if s == n {
			return StageID(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown stage %q", ErrInvalidParams, s)
}

// StageMask is a set of stages.
type StageMask uint32

// Mask returns the set holding only s.
func (s StageID) Mask() StageMask { return 1 << s }

// Has reports whether s is in the set.
func (m StageMask) Has(s StageID) bool { return m&s.Mask() != 0 }

// optionalStages may be removed at construction time.
const optionalStages = StageMask(1<<StageAutoWhiteBalance | 1<<StageColorCorrection)

// Params fix the shape of a pipeline. They cannot change after New;
// building a new pipeline with Reload is how they change.
type Params struct {
	Width, Height int
	Format        SampleFormat
	CFA           CFA

	// Disabled removes stages from the pipeline: their buffers are not
	// allocated and their dispatches are not recorded. Only auto white
	// balance and color correction may be disabled.
	Disabled StageMask

	// Shaders holds the WGSL sources every stage specializes.
	Shaders *shader.Source
}

// DefaultParams returns params for a width x height RGGB 16-bit sensor
// with the built-in shaders.
func DefaultParams(width, height int) Params {
	return Params{
		Width:   width,
		Height:  height,
		Format:  U16,
		CFA:     RGGB,
		Shaders: shader.Default(),
	}
}

// Validate checks the params. Errors wrap ErrInvalidParams.
func (p Params) Validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("%w: dimensions %dx%d must be positive", ErrInvalidParams, p.Width, p.Height)
	case p.Width%2 != 0 || p.Height%2 != 0:
		return fmt.Errorf("%w: dimensions %dx%d must be even", ErrInvalidParams, p.Width, p.Height)
	case !p.Format.valid():
		return fmt.Errorf("%w: %s", ErrInvalidParams, p.Format)
	case int(p.CFA) >= len(cfaNames):
		return fmt.Errorf("%w: %s", ErrInvalidParams, p.CFA)
	case p.Shaders == nil:
		return fmt.Errorf("%w: no shader source", ErrInvalidParams)
	case p.Disabled&^optionalStages != 0:
		return fmt.Errorf("%w: only auto_white_balance and color_correction can be disabled", ErrInvalidParams)
	}

	// The largest buffer holds one vec4<f32> per pixel and must be
	// addressable with u32 indices.
	hi, pixels := bits.Mul64(uint64(p.Width), uint64(p.Height))
	if hi != 0 || pixels > 1<<32/16 {
		return fmt.Errorf("%w: %dx%d is too large", ErrInvalidParams, p.Width, p.Height)
	}
	return nil
}

func (p Params) pixels() uint64 { return uint64(p.Width) * uint64(p.Height) }
