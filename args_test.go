// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package isp

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32s(t *testing.T, b []byte) []float32 {
	t.Helper()
	require.Zero(t, len(b)%4)
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

func TestBlackLevelArgsBytes(t *testing.T) {
	a := BlackLevelArgs{Enabled: true, R: 1, Gr: 2, Gb: 3, B: 4, Alpha: 0.5, Beta: 2}
	b := a.Bytes()
	require.Len(t, b, blackLevelArgsSize)
	assert.Equal(t, []float32{1, 2, 3, 4, 0.5, 2, 0, 0}, f32s(t, b))
}

func TestWhiteBalanceArgsBytes(t *testing.T) {
	b := WhiteBalanceArgs{Enabled: true, Gain: 1.5}.Bytes()
	require.Len(t, b, gainArgsSize)
	assert.Equal(t, []float32{1.5, 0, 0, 0}, f32s(t, b))
}

func TestDemosaicArgsBytes(t *testing.T) {
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(DemosaicArgs{Enabled: true}.Bytes()))
	b := DemosaicArgs{}.Bytes()
	require.Len(t, b, demosaicArgsSize)
	assert.Equal(t, make([]byte, demosaicArgsSize), b)
}

func TestColorArgsBytes(t *testing.T) {
	a := DefaultArgs().Color
	a.Matrix = MatrixFromRows([4][4]float32{
		{1, 2, 3, 0},
		{4, 5, 6, 0},
		{7, 8, 9, 0},
		{0, 0, 0, 1},
	})
	a.Gain = 2

	got := f32s(t, a.Bytes())
	require.Len(t, got, colorArgsSize/4)
	// Column-major: the first column is the first four floats.
	assert.Equal(t, []float32{1, 4, 7, 0}, got[0:4])
	assert.Equal(t, []float32{2, 5, 8, 0}, got[4:8])
	assert.Equal(t, []float32{2, 1 / 2.2, 0, 0}, got[16:20])

	a.Enabled = false
	got = f32s(t, a.Bytes())
	assert.Equal(t, Identity[:], got[:16])
	assert.Equal(t, []float32{1, 1, 0, 0}, got[16:20])
}

func TestMatrixRows(t *testing.T) {
	rows := [4][4]float32{
		{0.9, 0.1, 0, 0},
		{0.05, 1.1, -0.15, 0},
		{0, -0.2, 1.2, 0},
		{0, 0, 0, 1},
	}
	a := ColorArgs{Matrix: MatrixFromRows(rows)}
	assert.Equal(t, rows, a.Rows())
	assert.Equal(t, Identity, MatrixFromRows(ColorArgs{Matrix: Identity}.Rows()))
}

func TestReduceArgs(t *testing.T) {
	b := reduceArgs(300, 0.25)
	require.Len(t, b, reduceArgsSize)
	assert.Equal(t, uint32(300), binary.LittleEndian.Uint32(b))
	assert.Equal(t, float32(0.25), math.Float32frombits(binary.LittleEndian.Uint32(b[4:])))
}

func TestReducePasses(t *testing.T) {
	tests := []struct {
		n    uint32
		want []reducePass
	}{
		{1, []reducePass{{1, 1, true}}},
		{1024, []reducePass{{1024, 1, true}}},
		{1025, []reducePass{{1025, 2, false}, {2, 1, true}}},
		{1 << 20, []reducePass{{1 << 20, 1024, false}, {1024, 1, true}}},
		{1<<20 + 1, []reducePass{{1<<20 + 1, 1025, false}, {1025, 2, false}, {2, 1, true}}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, reducePasses(tt.n), "n=%d", tt.n)
	}
}
