// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bufplan

import (
	"errors"
	"fmt"
)

// ErrReleased is returned by lookups on a released plan.
var ErrReleased = errors.New("bufplan: plan released")

// ResolutionError reports declarations that cannot be reconciled: a size
// or category mismatch between stages, an invalid descriptor, or a size
// computation that overflows.
type ResolutionError struct {
	Name   string
	Reason string
}

func (e *ResolutionError) Error() string {
	if e.Name == "" {
		return "bufplan: " + e.Reason
	}
	return fmt.Sprintf("bufplan: buffer %q: %s", e.Name, e.Reason)
}

// UnboundBufferError is returned when a stage asks for a buffer it never
// declared, even if the buffer exists in the plan.
type UnboundBufferError struct {
	Stage int
	Name  string
}

func (e *UnboundBufferError) Error() string {
	return fmt.Sprintf("bufplan: stage %d did not declare buffer %q", e.Stage, e.Name)
}
