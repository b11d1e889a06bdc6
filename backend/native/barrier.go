// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package native

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// bufferTracker remembers the last usage of every buffer touched by one
// encoder. A later compute pass or copy reads what an earlier one wrote
// only after a barrier, so each transition point turns the remembered
// usages into buffer barriers.
type bufferTracker struct {
	order []hal.Buffer
	last  map[hal.Buffer]gputypes.BufferUsage
}

func newBufferTracker() *bufferTracker {
	return &bufferTracker{last: make(map[hal.Buffer]gputypes.BufferUsage)}
}

// use records buf at usage without a barrier. Buffers bound inside a pass
// are recorded this way.
func (t *bufferTracker) use(buf hal.Buffer, usage gputypes.BufferUsage) {
	if _, ok := t.last[buf]; !ok {
		t.order = append(t.order, buf)
	}
	t.last[buf] = usage
}

// all returns barriers moving every touched buffer to usage, in first-use
// order, and records the new usage. Uniform buffers are only written by
// the host before submission and need none.
func (t *bufferTracker) all(usage gputypes.BufferUsage) []hal.BufferBarrier {
	var barriers []hal.BufferBarrier
	for _, buf := range t.order {
		if t.last[buf] == gputypes.BufferUsageUniform {
			continue
		}
		barriers = append(barriers, hal.BufferBarrier{
			Buffer: buf,
			Usage:  hal.BufferUsageTransition{OldUsage: t.last[buf], NewUsage: usage},
		})
		t.last[buf] = usage
	}
	return barriers
}

// one returns the barrier moving buf to usage, if buf was touched before,
// and records the new usage.
func (t *bufferTracker) one(buf hal.Buffer, usage gputypes.BufferUsage) []hal.BufferBarrier {
	old, ok := t.last[buf]
	t.use(buf, usage)
	if !ok {
		return nil
	}
	return []hal.BufferBarrier{{
		Buffer: buf,
		Usage:  hal.BufferUsageTransition{OldUsage: old, NewUsage: usage},
	}}
}
