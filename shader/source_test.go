// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHasEveryEntryPoint(t *testing.T) {
	src := Default()
	assert.Equal(t, "embedded", src.Origin())
	for _, entry := range []string{
		"black_level",
		"bayer_to_vec4",
		"reduce_mean",
		"auto_white_balance",
		"debayer",
		"rgb_space",
		"to_texture",
	} {
		t.Run(entry, func(t *testing.T) {
			assert.True(t, src.HasEntry(entry+".wgsl", entry))
		})
	}
}

func TestDefsHeader(t *testing.T) {
	defs := Defs{
		U32("WIDTH", 64),
		F32("WHITE_LEVEL", 65535),
		I32("SHIFT", -2),
		F32("HALF", 0.5),
	}
	header, err := defs.Header()
	require.NoError(t, err)
	assert.Equal(t,
		"const HALF: f32 = 0.5;\n"+
			"const SHIFT: i32 = -2i;\n"+
			"const WHITE_LEVEL: f32 = 65535.0;\n"+
			"const WIDTH: u32 = 64u;\n",
		header)

	consts := defs.Constants()
	assert.InDelta(t, 64.0, consts["WIDTH"], 0)
	assert.InDelta(t, 65535.0, consts["WHITE_LEVEL"], 0)
}

func TestDefsHeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		defs Defs
	}{
		{"duplicate", Defs{U32("A", 1), U32("A", 2)}},
		{"bad type", Defs{{Name: "A", Type: "f16", Value: 1}}},
		{"negative u32", Defs{{Name: "A", Type: "u32", Value: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.defs.Header()
			assert.Error(t, err)
		})
	}
}

func TestProcess(t *testing.T) {
	src := New("test", map[string]string{
		"k.wgsl": "@compute @workgroup_size(1)\nfn main_entry() {}\n",
	})

	m, err := src.Process("k.wgsl", "main_entry", Defs{U32("WIDTH", 8)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(m.WGSL, "const WIDTH: u32 = 8u;\n\n@compute"))
	assert.Equal(t, "main_entry", m.Entry)

	desc := m.Descriptor("k")
	assert.Equal(t, "k", desc.Label)
	assert.Equal(t, m.WGSL, desc.WGSL)
	assert.InDelta(t, 8.0, desc.Constants["WIDTH"], 0)
}

func TestProcessErrors(t *testing.T) {
	src := New("test", map[string]string{
		"k.wgsl": "fn main_entry_suffix() {}\n",
	})

	tests := []struct {
		name  string
		file  string
		entry string
		defs  Defs
		want  error
	}{
		{"missing file", "nope.wgsl", "main_entry", nil, ErrMissingFile},
		{"missing entry", "k.wgsl", "main_entry", nil, ErrMissingEntry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := src.Process(tt.file, tt.entry, tt.defs)
			var berr *ShaderBuildError
			require.ErrorAs(t, err, &berr)
			assert.Equal(t, tt.file, berr.File)
			assert.Equal(t, tt.entry, berr.Entry)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := src.Process("k.wgsl", "main_entry_suffix", Defs{U32("A", 1), U32("A", 1)})
	var berr *ShaderBuildError
	assert.ErrorAs(t, err, &berr)
}

func TestLoadAndHash(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wgsl"), []byte("fn a() {}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	first, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.wgsl"}, first.Files())
	assert.Equal(t, dir, first.Origin())

	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, first.Hash(), again.Hash())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.wgsl"), []byte("fn a() { }"), 0o600))
	edited, err := Load(dir)
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash(), edited.Hash())
}

func TestLoadEmptyDir(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, ErrNoSources)
}
