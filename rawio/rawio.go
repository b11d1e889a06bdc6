// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package rawio loads raw sensor frames and writes pipeline output as
// images.
package rawio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/gogpu/isp"
)

// ErrUnknownFormat is returned for image extensions rawio cannot write.
var ErrUnknownFormat = errors.New("rawio: unknown image format")

// ReadRaw reads a headerless frame of little-endian samples. The file size
// must be width*height*format.BytesPerSample().
func ReadRaw(path string, width, height int, format isp.SampleFormat) ([]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, fmt.Errorf("rawio: %w", err)
	}
	if want := width * height * format.BytesPerSample(); len(data) != want {
		return nil, &isp.DimensionMismatchError{
			Width:  width,
			Height: height,
			Format: format,
			Got:    len(data),
			Want:   want,
		}
	}
	return data, nil
}

// ReadMosaic decodes a single channel PNG, TIFF or BMP image holding a
// Bayer mosaic into u16 samples. 8-bit images are widened so the result is
// always in U16 units.
func ReadMosaic(path string) (raw []byte, width, height int, err error) {
	f, err := os.Open(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return nil, 0, 0, fmt.Errorf("rawio: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("rawio: decode %s: %w", path, err)
	}
	b := img.Bounds()
	width, height = b.Dx(), b.Dy()
	raw = make([]byte, 0, 2*width*height)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			raw = binary.LittleEndian.AppendUint16(raw, g.Y)
		}
	}
	return raw, width, height, nil
}

// DefaultChart holds the patch colors Synthesize uses when none are given:
// a neutral gray, red, green, blue and white.
var DefaultChart = [][3]float32{
	{0.5, 0.5, 0.5},
	{0.8, 0.1, 0.1},
	{0.1, 0.8, 0.1},
	{0.1, 0.1, 0.8},
	{1, 1, 1},
}

// Synthesize renders a Bayer test chart of vertical bands, one per patch.
// Patch colors are linear RGB in [0, 1] and scale to the white level of
// format. The result is in the byte layout WriteRaw expects.
func Synthesize(width, height int, format isp.SampleFormat, cfa isp.CFA, patches ...[3]float32) []byte {
	if len(patches) == 0 {
		patches = DefaultChart
	}
	white := float32(format.WhiteLevel())
	bps := format.BytesPerSample()
	raw := make([]byte, 0, width*height*bps)
	for row := range height {
		for col := range width {
			patch := patches[col*len(patches)/width]
			var v float32
			switch cfa.Channel(row, col) {
			case 0:
				v = patch[0]
			case 3:
				v = patch[2]
			default:
				v = patch[1]
			}
			s := uint16(clamp01(v)*white + 0.5)
			if bps == 1 {
				raw = append(raw, byte(s))
			} else {
				raw = binary.LittleEndian.AppendUint16(raw, s)
			}
		}
	}
	return raw
}

func clamp01(v float32) float32 {
	return max(0, min(v, 1))
}

// ToImage converts row-major RGBA float output in [0, 1] to an 8-bit
// image. Values outside the range are clamped.
func ToImage(width, height int, rgba []float32) (*image.NRGBA, error) {
	if len(rgba) != 4*width*height {
		return nil, fmt.Errorf("rawio: %d values for a %dx%d image", len(rgba), width, height)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i, v := range rgba {
		img.Pix[i] = uint8(clamp01(v)*255 + 0.5)
	}
	return img, nil
}

// ImageFormat is an output image encoding.
type ImageFormat uint8

// Output image formats.
const (
	PNG ImageFormat = iota
	TIFF
	BMP
)

func (f ImageFormat) String() string {
	switch f {
	case PNG:
		return "png"
	case TIFF:
		return "tiff"
	case BMP:
		return "bmp"
	}
	return fmt.Sprintf("ImageFormat(%d)", uint8(f))
}

// FormatOf picks the image format from a file extension.
func FormatOf(path string) (ImageFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return PNG, nil
	case ".tif", ".tiff":
		return TIFF, nil
	case ".bmp":
		return BMP, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, path)
}

// Encode writes RGBA float output to w as an 8-bit image.
func Encode(w io.Writer, f ImageFormat, width, height int, rgba []float32) error {
	img, err := ToImage(width, height, rgba)
	if err != nil {
		return err
	}
	switch f {
	case PNG:
		return png.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case BMP:
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("%w: %s", ErrUnknownFormat, f)
}

// Save writes RGBA float output to path in the format of its extension.
func Save(path string, width, height int, rgba []float32) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	file, err := os.Create(path) //nolint:gosec // path is user-provided intentionally
	if err != nil {
		return fmt.Errorf("rawio: %w", err)
	}
	bw := bufio.NewWriter(file)
	if err := Encode(bw, f, width, height, rgba); err != nil {
		_ = file.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
