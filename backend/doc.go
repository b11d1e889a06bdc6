// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend provides a registry of device backends for the ISP
// pipeline.
//
// # Backend Registration
//
// Backends register a [Factory] from init() functions and are selected at
// runtime. Import the backend packages you want available:
//
//	import (
//		_ "github.com/gogpu/isp/backend/native"
//		_ "github.com/gogpu/isp/backend/software"
//	)
//
// # Backend Selection
//
// Use Default() to open the best available backend, or Get() to request
// a specific backend by name:
//
//	dev, err := backend.Default()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dev.Close()
//
//	// Or request a specific backend
//	dev, err = backend.Get(backend.BackendSoftware)
//
// # Available Backends
//
//   - "native": gogpu/wgpu HAL, Vulkan adapter, WGSL compiled by naga
//   - "software": CPU kernels, always available
package backend
