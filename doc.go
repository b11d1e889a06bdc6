// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package isp turns raw Bayer sensor data into a displayable RGB image
// with a fixed sequence of GPU compute stages.
//
// # Overview
//
// A Pipeline is built once for a sensor geometry (Params) on a
// gpucore.Device and then driven frame by frame with an argument bundle
// (Args). Stages run in a fixed order:
//
//   - black level correction: raw -> black_level
//   - auto white balance: in place on black_level (optional)
//   - demosaic: black_level -> rgb
//   - color correction and gamma: in place on rgb (optional)
//   - raw preservation: keeps raw for the next frame and for reloads
//
// A final conversion copies rgb into an rgba32float storage texture the
// host can display or read back.
//
// # Quick Start
//
//	dev, err := backend.Default()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
//
//	pl, err := isp.New(dev, isp.DefaultParams(1920, 1080))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer pl.Release()
//
//	_ = pl.WriteRaw(frame)
//	args := isp.DefaultArgs()
//	_ = pl.Run(&args)
//	rgba, _ := pl.ReadOutput()
//
// # Buffers
//
// Stages never allocate. Each one declares named buffers (bufplan.Descriptor)
// and the bufplan solver maps every name to a physical buffer: persistent
// names get their own buffer, transient names share buffers when their
// stage windows do not overlap. A stage can only look up the names it
// declared.
//
// # Reload
//
// Params are immutable. Reload builds a complete new pipeline, for
// example with a freshly loaded shader.Source, and carries the raw input
// over. A failed reload leaves the current pipeline usable.
//
// # Backends
//
// Devices come from the backend registry. backend/native runs on the GPU
// through gogpu/wgpu; backend/software runs the same WGSL entry points as
// Go kernels on the CPU.
package isp
