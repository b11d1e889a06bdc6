// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"encoding/binary"
	"math"
)

// Args is the per-frame argument bundle. The pipeline copies every block
// into the stage uniforms when the frame is recorded and keeps no
// reference to it.
type Args struct {
	BlackLevel   BlackLevelArgs
	WhiteBalance WhiteBalanceArgs
	Demosaic     DemosaicArgs
	Color        ColorArgs
}

// BlackLevelArgs are the black level correction arguments:
//
//	out = (v - offset[channel]) * (1 - Alpha + Alpha*Beta)
//
// When Enabled is false the raw samples pass through unchanged.
type BlackLevelArgs struct {
	Enabled      bool
	R, Gr, Gb, B float32
	Alpha, Beta  float32
}

// WhiteBalanceArgs are the auto white balance arguments. Every channel is
// scaled by Gain times the ratio of the green mean to its own mean.
type WhiteBalanceArgs struct {
	Enabled bool
	Gain    float32
}

// DemosaicArgs are the demosaic arguments. When Enabled is false every
// pixel is replicated into a gray RGB value.
type DemosaicArgs struct {
	Enabled bool
}

// ColorArgs are the color correction and tone curve arguments:
//
//	c   = Matrix * vec4(rgb / white level, 1)
//	rgb = pow(max(c * Gain, 0), Gamma)
//
// Matrix is column-major. When Enabled is false only the normalization
// to [0, 1] is applied.
type ColorArgs struct {
	Enabled bool
	Matrix  [16]float32
	Gain    float32
	Gamma   float32
}

// Identity is the column-major 4x4 identity matrix.
var Identity = [16]float32{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 1, 0,
	0, 0, 0, 1,
}

// MatrixFromRows converts a row-major matrix to the column-major layout
// of ColorArgs.Matrix.
func MatrixFromRows(rows [4][4]float32) [16]float32 {
	var m [16]float32
	for r := range 4 {
		for c := range 4 {
			m[c*4+r] = rows[r][c]
		}
	}
	return m
}

// Rows returns the matrix in row-major order.
func (a ColorArgs) Rows() [4][4]float32 {
	var rows [4][4]float32
	for r := range 4 {
		for c := range 4 {
			rows[r][c] = a.Matrix[c*4+r]
		}
	}
	return rows
}

// DefaultArgs returns an identity-like bundle: every stage enabled, zero
// black offsets, unit gains, identity color matrix and a 1/2.2 gamma.
func DefaultArgs() Args {
	return Args{
		BlackLevel:   BlackLevelArgs{Enabled: true, Alpha: 0, Beta: 1},
		WhiteBalance: WhiteBalanceArgs{Enabled: true, Gain: 1},
		Demosaic:     DemosaicArgs{Enabled: true},
		Color: ColorArgs{
			Enabled: true,
			Matrix:  Identity,
			Gain:    1,
			Gamma:   1 / 2.2,
		},
	}
}

// Uniform block sizes in bytes.
const (
	blackLevelArgsSize = 32
	gainArgsSize       = 16
	demosaicArgsSize   = 16
	colorArgsSize      = 80
	reduceArgsSize     = 16
)

func appendF32(b []byte, vs ...float32) []byte {
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v))
	}
	return b
}

// Bytes encodes the block as the black_level uniform:
// {offsets: vec4, alpha, beta, pad, pad}.
func (a BlackLevelArgs) Bytes() []byte {
	return appendF32(make([]byte, 0, blackLevelArgsSize), a.R, a.Gr, a.Gb, a.B, a.Alpha, a.Beta, 0, 0)
}

// Bytes encodes the block as the auto_white_balance uniform:
// {gain, pad, pad, pad}.
func (a WhiteBalanceArgs) Bytes() []byte {
	return appendF32(make([]byte, 0, gainArgsSize), a.Gain, 0, 0, 0)
}

// Bytes encodes the block as the debayer uniform: {enabled: u32, pad x3}.
func (a DemosaicArgs) Bytes() []byte {
	b := make([]byte, demosaicArgsSize)
	if a.Enabled {
		binary.LittleEndian.PutUint32(b, 1)
	}
	return b
}

// Bytes encodes the block as the rgb_space uniform: the 64 byte matrix
// block followed by the 16 byte tone block {gain, gamma, pad, pad}.
// A disabled block encodes as identity, gain 1 and gamma 1.
func (a ColorArgs) Bytes() []byte {
	m, gain, gamma := a.Matrix, a.Gain, a.Gamma
	if !a.Enabled {
		m, gain, gamma = Identity, 1, 1
	}
	b := appendF32(make([]byte, 0, colorArgsSize), m[:]...)
	return appendF32(b, gain, gamma, 0, 0)
}

// reduceArgs is the reduce_mean uniform: {len: u32, scale, pad, pad}.
func reduceArgs(n uint32, scale float32) []byte {
	b := binary.LittleEndian.AppendUint32(make([]byte, 0, reduceArgsSize), n)
	return appendF32(b, scale, 0, 0)
}
