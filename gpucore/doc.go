// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpucore defines the device abstraction the ISP pipeline records
// its compute work against.
//
// The [Device] interface is ID based: every GPU object is referred to by an
// opaque handle and the backend keeps the mapping to its own resources.
// This lets the same stages run on:
//   - backend/native: gogpu/wgpu HAL (Vulkan), WGSL compiled by naga
//   - backend/software: CPU kernels mirroring each WGSL entry point
//
//	               +------------------+
//	               |   isp.Pipeline   |
//	               +--------+---------+
//	                        |
//	               +--------v---------+
//	               | gpucore.Device   |
//	               +--------+---------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	| backend/native  |          | backend/software|
//	|  (hal.Device)   |          |  (Go kernels)   |
//	+-----------------+          +-----------------+
//
// # Command Model
//
// Work is recorded into a [CommandEncoder] as compute passes and buffer
// copies, finished into a [CommandBuffer], and executed with
// [Device.Submit]. Dispatches within one command buffer observe the
// writes of earlier dispatches in the same buffer.
package gpucore
