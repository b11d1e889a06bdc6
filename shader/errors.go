// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingFile is returned when a source set has no file of the given name.
	ErrMissingFile = errors.New("shader: file not found")

	// ErrMissingEntry is returned when a file does not declare the entry point.
	ErrMissingEntry = errors.New("shader: entry point not found")

	// ErrNoSources is returned by Load when a directory holds no .wgsl files.
	ErrNoSources = errors.New("shader: no .wgsl files")
)

// ShaderBuildError reports a shader that could not be prepared or compiled
// for a pipeline stage.
type ShaderBuildError struct {
	File  string
	Entry string
	Err   error
}

func (e *ShaderBuildError) Error() string {
	return fmt.Sprintf("shader %s (entry %s): %v", e.File, e.Entry, e.Err)
}

func (e *ShaderBuildError) Unwrap() error {
	return e.Err
}
