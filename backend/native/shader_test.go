// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/isp/shader"
)

const spirvMagic = 0x07230203

func TestCompileShippedShaders(t *testing.T) {
	image := shader.Defs{
		shader.U32("WIDTH", 64),
		shader.U32("HEIGHT", 32),
		shader.U32("CFA", 0),
	}
	tests := []struct {
		file, entry string
		defs        shader.Defs
	}{
		{"black_level.wgsl", "black_level", image},
		{"bayer_to_vec4.wgsl", "bayer_to_vec4", image},
		{"reduce_mean.wgsl", "reduce_mean", shader.Defs{shader.U32("STRIDE", 256)}},
		{"auto_white_balance.wgsl", "auto_white_balance", image},
		{"debayer.wgsl", "debayer", append(image, shader.U32("PADDING", 2))},
		{"rgb_space.wgsl", "rgb_space", shader.Defs{shader.U32("WIDTH", 64), shader.U32("HEIGHT", 32), shader.F32("WHITE_LEVEL", 4095)}},
		{"to_texture.wgsl", "to_texture", shader.Defs{shader.U32("WIDTH", 64), shader.U32("HEIGHT", 32)}},
	}
	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			m, err := shader.Default().Process(tt.file, tt.entry, tt.defs)
			require.NoError(t, err)

			words, err := CompileWGSL(m.WGSL)
			require.NoError(t, err)
			require.NotEmpty(t, words)
			assert.Equal(t, uint32(spirvMagic), words[0], "SPIR-V magic")
		})
	}
}

func TestCompileCachesBySource(t *testing.T) {
	src := `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;

@compute @workgroup_size(64)
fn double_it(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = data[id.x] * 2.0;
}
`
	before := ShaderCacheStats()
	first, err := CompileWGSL(src)
	require.NoError(t, err)
	second, err := CompileWGSL(src)
	require.NoError(t, err)
	after := ShaderCacheStats()

	assert.Equal(t, first, second)
	assert.Equal(t, before.Hits+1, after.Hits)
	assert.Equal(t, before.Misses+1, after.Misses)
}

func TestCompileReturnsCopy(t *testing.T) {
	src := `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;

@compute @workgroup_size(64)
fn negate_it(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = -data[id.x];
}
`
	first, err := CompileWGSL(src)
	require.NoError(t, err)
	require.NotEmpty(t, first)
	first[0] = 0

	second, err := CompileWGSL(src)
	require.NoError(t, err)
	assert.Equal(t, uint32(spirvMagic), second[0], "caller writes must not reach the cache")
}

func TestCompileErrorNotCached(t *testing.T) {
	before := ShaderCacheStats().Len
	_, err := CompileWGSL("fn broken( {")
	require.Error(t, err)
	assert.Equal(t, before, ShaderCacheStats().Len)
}
