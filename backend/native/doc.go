// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native provides a Pure Go GPU implementation of gpucore.Device
// on top of gogpu/wgpu's HAL.
//
// Open creates its own Vulkan device, preferring a discrete adapter.
// FromProvider borrows the device and queue of a host application (for
// example a gogpu window) that implements gpucontext.DeviceProvider and
// exposes its HAL types; Close then leaves the host's device alive.
//
// WGSL is compiled to SPIR-V with naga. Compiled modules are cached by
// source hash, so reloading a pipeline with unchanged shaders skips
// compilation.
//
// Every Submit waits on a fence, which keeps host reads ordered after
// the work that produced them.
//
// Build with the nogpu tag to leave the backend out.
package native
