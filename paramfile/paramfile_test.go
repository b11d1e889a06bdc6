// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package paramfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/isp"
)

func sampleArgs() isp.Args {
	a := isp.DefaultArgs()
	a.BlackLevel = isp.BlackLevelArgs{Enabled: true, R: 64, Gr: 60, Gb: 61, B: 66, Alpha: 0.25, Beta: 1.5}
	a.WhiteBalance.Gain = 1.125
	a.Demosaic.Enabled = false
	a.Color.Matrix = isp.MatrixFromRows([4][4]float32{
		{1.5, -0.25, -0.25, 0},
		{-0.125, 1.25, -0.125, 0},
		{0, -0.5, 1.5, 0},
		{0, 0, 0, 1},
	})
	a.Color.Gain = 2
	a.Color.Gamma = 0.5
	return a
}

func TestRoundTrip(t *testing.T) {
	for _, name := range []string{"args.toml", "args.yaml", "args.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			want := sampleArgs()
			require.NoError(t, Save(path, want))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDefaultsRoundTrip(t *testing.T) {
	for _, f := range []Format{TOML, YAML} {
		data, err := Marshal(f, isp.DefaultArgs())
		require.NoError(t, err)
		got, err := Unmarshal(f, data)
		require.NoError(t, err)
		assert.Equal(t, isp.DefaultArgs(), got, string(f))
	}
}

func TestMissingFieldsKeepDefaults(t *testing.T) {
	tests := []struct {
		format Format
		data   string
	}{
		{TOML, "[black_level]\nr_offset = 12.0\n\n[color]\ngain = 3.0\n"},
		{YAML, "black_level:\n  r_offset: 12\ncolor:\n  gain: 3\n"},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			got, err := Unmarshal(tt.format, []byte(tt.data))
			require.NoError(t, err)

			want := isp.DefaultArgs()
			want.BlackLevel.R = 12
			want.Color.Gain = 3
			assert.Equal(t, want, got)
		})
	}
}

func TestThreeByThreeMatrix(t *testing.T) {
	data := "[color]\nmatrix = [[0.0, 0.0, 1.0], [0.0, 1.0, 0.0], [1.0, 0.0, 0.0]]\n"
	got, err := Unmarshal(TOML, []byte(data))
	require.NoError(t, err)
	assert.Equal(t, [4][4]float32{
		{0, 0, 1, 0},
		{0, 1, 0, 0},
		{1, 0, 0, 0},
		{0, 0, 0, 1},
	}, got.Color.Rows())
}

func TestBadMatrix(t *testing.T) {
	tests := []string{
		"color:\n  matrix: [[1, 0], [0, 1]]\n",
		"color:\n  matrix: [[1, 0, 0], [0, 1], [0, 0, 1]]\n",
	}
	for _, data := range tests {
		_, err := Unmarshal(YAML, []byte(data))
		assert.ErrorIs(t, err, ErrMatrix)
	}
}

func TestVersion(t *testing.T) {
	for _, doc := range []string{"version = 2\n", "version = 0\n", "version = -3\n"} {
		_, err := Unmarshal(TOML, []byte(doc))
		assert.ErrorIs(t, err, ErrVersion, doc)
	}

	_, err := Unmarshal(TOML, []byte("[white_balance]\ngain = 1.5\n"))
	assert.NoError(t, err, "a missing version reads as the current one")

	data, err := Marshal(TOML, isp.DefaultArgs())
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
}

func TestUnknownFormat(t *testing.T) {
	_, err := FormatOf("args.json")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.ErrorIs(t, Save(filepath.Join(t.TempDir(), "args.ini"), isp.DefaultArgs()), ErrUnknownFormat)
	_, err = Load("args.txt")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	_, err = Marshal(Format("json"), isp.DefaultArgs())
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("[black_level\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.toml")
}

func TestSensor(t *testing.T) {
	data := "sensor:\n  width: 640\n  height: 480\n  format: u12\n  cfa: GRBG\n"
	d, err := UnmarshalDocument(YAML, []byte(data))
	require.NoError(t, err)
	require.NotNil(t, d.Sensor)

	p, err := d.Sensor.Params()
	require.NoError(t, err)
	assert.Equal(t, 640, p.Width)
	assert.Equal(t, 480, p.Height)
	assert.Equal(t, isp.U12, p.Format)
	assert.Equal(t, isp.GRBG, p.CFA)

	d.Sensor.Format = "u9"
	_, err = d.Sensor.Params()
	assert.ErrorIs(t, err, isp.ErrInvalidParams)

	d, err = UnmarshalDocument(TOML, []byte("version = 1\n"))
	require.NoError(t, err)
	assert.Nil(t, d.Sensor)
}
