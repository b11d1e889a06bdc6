// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package software

import (
	"github.com/chewxy/math32"
)

// Built-in kernels mirror the WGSL entry points shipped with the shader
// package. Each walks the dispatch grid the way the GPU would: gid.x is the
// row, out-of-range invocations return early.

func init() {
	RegisterKernel("black_level", blackLevel)
	RegisterKernel("bayer_to_vec4", bayerToVec4)
	RegisterKernel("reduce_mean", reduceMean)
	RegisterKernel("auto_white_balance", autoWhiteBalance)
	RegisterKernel("debayer", debayer)
	RegisterKernel("rgb_space", rgbSpace)
	RegisterKernel("to_texture", toTexture)
}

// channel is the CFA channel (0 R, 1 Gr, 2 Gb, 3 B) of a Bayer site.
func channel(row, col, cfa uint32) uint32 {
	return ((row&1)*2 + (col & 1)) ^ cfa
}

// grid returns the invocation extent of a 2D dispatch clipped to the image.
func grid(d *Dispatch, wgRows, wgCols, height, width uint32) (rows, cols uint32) {
	return min(d.Groups[0]*wgRows, height), min(d.Groups[1]*wgCols, width)
}

func blackLevel(d *Dispatch) error {
	width, height, cfa := d.U32("WIDTH"), d.U32("HEIGHT"), d.U32("CFA")
	args, raw, out := d.Buffer(0), d.Buffer(1), d.Buffer(2)
	if err := d.Err(); err != nil {
		return err
	}

	offsets := Vec4At(args, 0)
	alpha, beta := F32At(args, 4), F32At(args, 5)
	scale := float32(1-alpha) + float32(alpha*beta)

	rows, cols := grid(d, 8, 32, height, width)
	d.Rows(rows, func(row uint32) {
		for col := range cols {
			idx := row*width + col
			PutF32(out, idx, float32(F32At(raw, idx)-offsets[channel(row, col, cfa)])*scale)
		}
	})
	return nil
}

func bayerToVec4(d *Dispatch) error {
	width, height, cfa := d.U32("WIDTH"), d.U32("HEIGHT"), d.U32("CFA")
	bayer, packed := d.Buffer(0), d.Buffer(1)
	if err := d.Err(); err != nil {
		return err
	}

	qw, qh := width/2, height/2
	rows, cols := grid(d, 16, 16, qh, qw)
	d.Rows(rows, func(qrow uint32) {
		for qcol := range cols {
			base := 2*qrow*width + 2*qcol
			var cell [4]float32
			cell[channel(0, 0, cfa)] = F32At(bayer, base)
			cell[channel(0, 1, cfa)] = F32At(bayer, base+1)
			cell[channel(1, 0, cfa)] = F32At(bayer, base+width)
			cell[channel(1, 1, cfa)] = F32At(bayer, base+width+1)
			PutVec4(packed, qrow*qw+qcol, cell)
		}
	})
	return nil
}

const reduceGroup = 256

func reduceMean(d *Dispatch) error {
	stride := d.U32("STRIDE")
	args, values, sums := d.Buffer(0), d.Buffer(1), d.Buffer(2)
	if err := d.Err(); err != nil {
		return err
	}

	n, scale := U32At(args, 0), F32At(args, 1)
	d.Rows(d.Groups[0], func(wid uint32) {
		var partial [reduceGroup][4]float32
		base := wid * reduceGroup * stride
		for lid := range uint32(reduceGroup) {
			var acc [4]float32
			for k := range stride {
				if i := base + lid + k*reduceGroup; i < n {
					v := Vec4At(values, i)
					for c := range acc {
						acc[c] += v[c]
					}
				}
			}
			partial[lid] = acc
		}
		for s := uint32(reduceGroup / 2); s > 0; s >>= 1 {
			for lid := range s {
				for c := range 4 {
					partial[lid][c] += partial[lid+s][c]
				}
			}
		}
		var out [4]float32
		for c := range out {
			out[c] = partial[0][c] * scale
		}
		PutVec4(sums, wid, out)
	})
	return nil
}

func autoWhiteBalance(d *Dispatch) error {
	width, height, cfa := d.U32("WIDTH"), d.U32("HEIGHT"), d.U32("CFA")
	args, mean, data := d.Buffer(0), d.Buffer(1), d.Buffer(2)
	if err := d.Err(); err != nil {
		return err
	}

	gain := F32At(args, 0)
	m := Vec4At(mean, 0)
	green := float32(m[1]+m[2]) * 0.5

	var k [4]float32
	for ch, c := range m {
		k[ch] = gain
		if c > 0 {
			k[ch] = gain * float32(green/c)
		}
	}

	rows, cols := grid(d, 8, 32, height, width)
	d.Rows(rows, func(row uint32) {
		for col := range cols {
			idx := row*width + col
			PutF32(data, idx, F32At(data, idx)*k[channel(row, col, cfa)])
		}
	})
	return nil
}

// reflect101 mirrors i about the edge samples without repeating them.
func reflect101(i, n int32) int32 {
	j := i
	if j < 0 {
		j = -j
	}
	if j >= n {
		j = 2*n - 2 - j
	}
	return max(0, min(j, n-1))
}

func debayer(d *Dispatch) error {
	width, height, cfa := d.U32("WIDTH"), d.U32("HEIGHT"), d.U32("CFA")
	args, bayer, rgb := d.Buffer(0), d.Buffer(1), d.Buffer(2)
	if err := d.Err(); err != nil {
		return err
	}
	enabled := U32At(args, 0) != 0

	at := func(row, col int32) float32 {
		r := reflect101(row, int32(height))
		c := reflect101(col, int32(width))
		return F32At(bayer, uint32(r)*width+uint32(c))
	}

	rows, cols := grid(d, 8, 32, height, width)
	d.Rows(rows, func(row uint32) {
		for col := range cols {
			idx := row*width + col
			r, c := int32(row), int32(col)
			v := at(r, c)
			if !enabled {
				PutVec4(rgb, idx, [4]float32{v, v, v, 1})
				continue
			}

			cross := float32(at(r-1, c)+at(r+1, c)+at(r, c-1)+at(r, c+1)) * 0.25
			diag := float32(at(r-1, c-1)+at(r-1, c+1)+at(r+1, c-1)+at(r+1, c+1)) * 0.25
			horiz := float32(at(r, c-1)+at(r, c+1)) * 0.5
			vert := float32(at(r-1, c)+at(r+1, c)) * 0.5

			var out [4]float32
			switch channel(row, col, cfa) {
			case 0:
				out = [4]float32{v, cross, diag, 1}
			case 1:
				out = [4]float32{horiz, v, vert, 1}
			case 2:
				out = [4]float32{vert, v, horiz, 1}
			default:
				out = [4]float32{diag, cross, v, 1}
			}
			PutVec4(rgb, idx, out)
		}
	})
	return nil
}

func rgbSpace(d *Dispatch) error {
	width, height, white := d.U32("WIDTH"), d.U32("HEIGHT"), d.F32("WHITE_LEVEL")
	args, rgb := d.Buffer(0), d.Buffer(1)
	if err := d.Err(); err != nil {
		return err
	}

	// Column-major mat4x4 followed by gain and gamma.
	var m [16]float32
	for i := range m {
		m[i] = F32At(args, uint32(i))
	}
	gain, gamma := F32At(args, 16), F32At(args, 17)

	rows, cols := grid(d, 8, 32, height, width)
	d.Rows(rows, func(row uint32) {
		for col := range cols {
			idx := row*width + col
			px := Vec4At(rgb, idx)
			in := [4]float32{px[0] / white, px[1] / white, px[2] / white, 1}

			var out [4]float32
			for r := range 3 {
				var c float32
				for k := range 4 {
					c += float32(m[k*4+r] * in[k])
				}
				out[r] = math32.Pow(math32.Max(float32(c*gain), 0), gamma)
			}
			out[3] = 1
			PutVec4(rgb, idx, out)
		}
	})
	return nil
}

func toTexture(d *Dispatch) error {
	width, height := d.U32("WIDTH"), d.U32("HEIGHT")
	rgb := d.Buffer(0)
	if err := d.Err(); err != nil {
		return err
	}

	rows, cols := grid(d, 16, 16, height, width)
	d.Rows(rows, func(row uint32) {
		for col := range cols {
			d.Store(1, col, row, Vec4At(rgb, row*width+col))
		}
	})
	return d.Err()
}
