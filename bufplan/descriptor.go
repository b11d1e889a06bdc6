// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bufplan

import (
	"fmt"

	"github.com/gogpu/isp/gpucore"
)

// Category is the memory category of a logical buffer.
type Category uint8

const (
	// Persistent buffers keep identity and contents for the whole
	// pipeline lifetime and across frames.
	Persistent Category = iota

	// Transient buffers are scratch space. Their storage may be shared
	// with other transient buffers that are never live at the same time.
	Transient
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case Persistent:
		return "Persistent"
	case Transient:
		return "Transient"
	default:
		return fmt.Sprintf("Category(%d)", c)
	}
}

// Usage is the set of ways a buffer is accessed.
type Usage = gpucore.BufferUsage

// Usage flags.
const (
	UsageStorage  = gpucore.BufferUsageStorage
	UsageUniform  = gpucore.BufferUsageUniform
	UsageCopySrc  = gpucore.BufferUsageCopySrc
	UsageCopyDst  = gpucore.BufferUsageCopyDst
	UsageMapRead  = gpucore.BufferUsageMapRead
	UsageMapWrite = gpucore.BufferUsageMapWrite
)

// Descriptor describes one logical buffer a stage needs.
//
// Name is the stable key shared by every stage that refers to the same
// buffer. Declarations of the same name must agree on Category and Size;
// their usages are unioned.
type Descriptor struct {
	Name     string
	Category Category
	Usage    Usage
	Size     uint64
}

// Validate reports whether the descriptor can take part in resolution.
func (d Descriptor) Validate() error {
	switch {
	case d.Name == "":
		return &ResolutionError{Reason: "empty buffer name"}
	case d.Size == 0:
		return &ResolutionError{Name: d.Name, Reason: "zero size"}
	case d.Usage == 0:
		return &ResolutionError{Name: d.Name, Reason: "empty usage set"}
	case d.Category != Persistent && d.Category != Transient:
		return &ResolutionError{Name: d.Name, Reason: d.Category.String()}
	}
	return nil
}

// mappingClass returns the host-mapping bits of the usage.
func (d Descriptor) mappingClass() Usage {
	return d.Usage & gpucore.BufferUsageMapMask
}

// Declaration is a descriptor tagged with the registration index of the
// stage that declared it.
type Declaration struct {
	Stage int
	Descriptor
}

// Declare tags each descriptor with the given stage index.
func Declare(stage int, descs ...Descriptor) []Declaration {
	out := make([]Declaration, len(descs))
	for i, d := range descs {
		out[i] = Declaration{Stage: stage, Descriptor: d}
	}
	return out
}
