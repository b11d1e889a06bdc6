// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"

	"github.com/gogpu/isp/gpucore"
)

// Backend name constants.
const (
	// BackendSoftware is the name of the CPU backend.
	BackendSoftware = "software"
	// BackendNative is the name of the Pure Go GPU backend (gogpu/wgpu).
	BackendNative = "native"
)

// Common backend errors.
var (
	// ErrBackendNotFound is returned when a requested backend is not registered.
	ErrBackendNotFound = errors.New("backend: not registered")

	// ErrNoBackend is returned when no registered backend could open a device.
	ErrNoBackend = errors.New("backend: no backend available")
)

// Factory opens a device on one backend.
type Factory func() (gpucore.Device, error)
