// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package paramfile stores per-frame ISP arguments in TOML or YAML files.
//
// A parameter file is a versioned Document with one table per stage:
//
//	version = 1
//
//	[black_level]
//	enabled = true
//	r_offset = 64.0
//	gr_offset = 64.0
//	gb_offset = 64.0
//	b_offset = 64.0
//	alpha = 0.0
//	beta = 1.0
//
//	[white_balance]
//	enabled = true
//	gain = 1.0
//
//	[demosaic]
//	enabled = true
//
//	[color]
//	enabled = true
//	matrix = [[1.0, 0.0, 0.0], [0.0, 1.0, 0.0], [0.0, 0.0, 1.0]]
//	gain = 1.0
//	gamma = 0.4545
//
// The color matrix is written row by row as 3x3 or 4x4. Fields missing
// from a file keep their isp.DefaultArgs value. The optional [sensor]
// table describes the raw input for tools that load frames from disk.
package paramfile
