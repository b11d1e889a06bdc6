// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import "errors"

// Package errors.
var (
	// ErrNoGPU is returned when no GPU adapter is available.
	ErrNoGPU = errors.New("native: no GPU adapter available")

	// ErrNotHalProvider is returned by FromProvider when the provider does
	// not expose hal.Device and hal.Queue.
	ErrNotHalProvider = errors.New("native: provider does not expose HAL types")

	// ErrUnknownResource is returned when an ID does not name a live resource.
	ErrUnknownResource = errors.New("native: unknown resource")

	// ErrClosed is returned by operations on a closed device.
	ErrClosed = errors.New("native: device closed")

	// ErrTimeout is returned when the GPU does not signal a fence in time.
	ErrTimeout = errors.New("native: GPU timeout")
)
