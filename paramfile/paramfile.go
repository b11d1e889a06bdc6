// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package paramfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/isp"
)

// Version is the document version written by Save and Marshal.
const Version = 1

var (
	// ErrUnknownFormat is returned for file extensions other than .toml,
	// .yaml and .yml.
	ErrUnknownFormat = errors.New("paramfile: unknown format")

	// ErrVersion is returned for documents whose version is not Version.
	ErrVersion = errors.New("paramfile: unsupported version")

	// ErrMatrix is returned for a color matrix that is not 3x3 or 4x4.
	ErrMatrix = errors.New("paramfile: color matrix must be 3x3 or 4x4")
)

// Format is a parameter file encoding.
type Format string

// Formats.
const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Document is the on-disk layout of a parameter file.
type Document struct {
	Version      int          `toml:"version" yaml:"version"`
	Sensor       *Sensor      `toml:"sensor,omitempty" yaml:"sensor,omitempty"`
	BlackLevel   BlackLevel   `toml:"black_level" yaml:"black_level"`
	WhiteBalance WhiteBalance `toml:"white_balance" yaml:"white_balance"`
	Demosaic     Demosaic     `toml:"demosaic" yaml:"demosaic"`
	Color        Color        `toml:"color" yaml:"color"`
}

// Sensor describes the raw input geometry.
type Sensor struct {
	Width  int    `toml:"width" yaml:"width"`
	Height int    `toml:"height" yaml:"height"`
	Format string `toml:"format" yaml:"format"`
	CFA    string `toml:"cfa" yaml:"cfa"`
}

// Params converts the sensor table into pipeline params with the default
// shaders.
func (s *Sensor) Params() (isp.Params, error) {
	p := isp.DefaultParams(s.Width, s.Height)
	var err error
	if s.Format != "" {
		if p.Format, err = isp.ParseSampleFormat(s.Format); err != nil {
			return p, err
		}
	}
	if s.CFA != "" {
		if p.CFA, err = isp.ParseCFA(s.CFA); err != nil {
			return p, err
		}
	}
	return p, p.Validate()
}

// BlackLevel is the [black_level] table.
type BlackLevel struct {
	Enabled  bool    `toml:"enabled" yaml:"enabled"`
	ROffset  float32 `toml:"r_offset" yaml:"r_offset"`
	GrOffset float32 `toml:"gr_offset" yaml:"gr_offset"`
	GbOffset float32 `toml:"gb_offset" yaml:"gb_offset"`
	BOffset  float32 `toml:"b_offset" yaml:"b_offset"`
	Alpha    float32 `toml:"alpha" yaml:"alpha"`
	Beta     float32 `toml:"beta" yaml:"beta"`
}

// WhiteBalance is the [white_balance] table.
type WhiteBalance struct {
	Enabled bool    `toml:"enabled" yaml:"enabled"`
	Gain    float32 `toml:"gain" yaml:"gain"`
}

// Demosaic is the [demosaic] table.
type Demosaic struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// Color is the [color] table. Matrix is row-major.
type Color struct {
	Enabled bool        `toml:"enabled" yaml:"enabled"`
	Matrix  [][]float32 `toml:"matrix" yaml:"matrix,flow"`
	Gain    float32     `toml:"gain" yaml:"gain"`
	Gamma   float32     `toml:"gamma" yaml:"gamma"`
}

// FromArgs builds a document holding a.
func FromArgs(a isp.Args) Document {
	rows := a.Color.Rows()
	m := make([][]float32, 4)
	for r := range rows {
		m[r] = rows[r][:]
	}
	return Document{
		Version: Version,
		BlackLevel: BlackLevel{
			Enabled:  a.BlackLevel.Enabled,
			ROffset:  a.BlackLevel.R,
			GrOffset: a.BlackLevel.Gr,
			GbOffset: a.BlackLevel.Gb,
			BOffset:  a.BlackLevel.B,
			Alpha:    a.BlackLevel.Alpha,
			Beta:     a.BlackLevel.Beta,
		},
		WhiteBalance: WhiteBalance{Enabled: a.WhiteBalance.Enabled, Gain: a.WhiteBalance.Gain},
		Demosaic:     Demosaic{Enabled: a.Demosaic.Enabled},
		Color: Color{
			Enabled: a.Color.Enabled,
			Matrix:  m,
			Gain:    a.Color.Gain,
			Gamma:   a.Color.Gamma,
		},
	}
}

// Args converts the document into an argument bundle.
func (d *Document) Args() (isp.Args, error) {
	if d.Version != Version {
		return isp.Args{}, fmt.Errorf("%w: %d", ErrVersion, d.Version)
	}
	m, err := matrix(d.Color.Matrix)
	if err != nil {
		return isp.Args{}, err
	}
	return isp.Args{
		BlackLevel: isp.BlackLevelArgs{
			Enabled: d.BlackLevel.Enabled,
			R:       d.BlackLevel.ROffset,
			Gr:      d.BlackLevel.GrOffset,
			Gb:      d.BlackLevel.GbOffset,
			B:       d.BlackLevel.BOffset,
			Alpha:   d.BlackLevel.Alpha,
			Beta:    d.BlackLevel.Beta,
		},
		WhiteBalance: isp.WhiteBalanceArgs{Enabled: d.WhiteBalance.Enabled, Gain: d.WhiteBalance.Gain},
		Demosaic:     isp.DemosaicArgs{Enabled: d.Demosaic.Enabled},
		Color: isp.ColorArgs{
			Enabled: d.Color.Enabled,
			Matrix:  m,
			Gain:    d.Color.Gain,
			Gamma:   d.Color.Gamma,
		},
	}, nil
}

// matrix converts row-major rows to the column-major isp layout. A 3x3
// matrix is embedded in the identity.
func matrix(rows [][]float32) ([16]float32, error) {
	n := len(rows)
	if n != 3 && n != 4 {
		return [16]float32{}, fmt.Errorf("%w: %d rows", ErrMatrix, n)
	}
	var full [4][4]float32
	full[3][3] = 1
	for r, row := range rows {
		if len(row) != n {
			return [16]float32{}, fmt.Errorf("%w: row %d has %d values", ErrMatrix, r, len(row))
		}
		copy(full[r][:], row)
	}
	return isp.MatrixFromRows(full), nil
}

// Marshal encodes a as a document in format f.
func Marshal(f Format, a isp.Args) ([]byte, error) {
	return MarshalDocument(f, FromArgs(a))
}

// MarshalDocument encodes d in format f.
func MarshalDocument(f Format, d Document) ([]byte, error) {
	switch f {
	case TOML:
		return toml.Marshal(d)
	case YAML:
		return yaml.Marshal(d)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Unmarshal decodes a document in format f. Fields missing from data keep
// their isp.DefaultArgs value.
func Unmarshal(f Format, data []byte) (isp.Args, error) {
	d, err := UnmarshalDocument(f, data)
	if err != nil {
		return isp.Args{}, err
	}
	return d.Args()
}

// UnmarshalDocument decodes a document in format f on top of the default
// arguments.
func UnmarshalDocument(f Format, data []byte) (Document, error) {
	d := FromArgs(isp.DefaultArgs())
	var err error
	switch f {
	case TOML:
		err = toml.Unmarshal(data, &d)
	case YAML:
		err = yaml.Unmarshal(data, &d)
	default:
		return d, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if err != nil {
		return d, fmt.Errorf("paramfile: decode %s: %w", f, err)
	}
	return d, nil
}

// Load reads the arguments stored at path. The format follows the file
// extension.
func Load(path string) (isp.Args, error) {
	d, err := LoadDocument(path)
	if err != nil {
		return isp.Args{}, err
	}
	a, err := d.Args()
	if err != nil {
		return isp.Args{}, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// LoadDocument reads the document stored at path.
func LoadDocument(path string) (Document, error) {
	f, err := FormatOf(path)
	if err != nil {
		return Document{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("paramfile: %w", err)
	}
	d, err := UnmarshalDocument(f, data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Save writes a to path in the format of its extension.
func Save(path string, a isp.Args) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Marshal(f, a)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("paramfile: %w", err)
	}
	return nil
}
