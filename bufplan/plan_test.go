// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bufplan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/isp/gpucore"
)

// fakeAllocator records buffer creation and destruction.
type fakeAllocator struct {
	next      gpucore.BufferID
	live      map[gpucore.BufferID]*gpucore.BufferDescriptor
	failAfter int
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{live: make(map[gpucore.BufferID]*gpucore.BufferDescriptor), failAfter: -1}
}

var errOutOfMemory = errors.New("out of memory")

func (a *fakeAllocator) CreateBuffer(desc *gpucore.BufferDescriptor) (gpucore.BufferID, error) {
	if a.failAfter == 0 {
		return gpucore.InvalidID, errOutOfMemory
	}
	a.failAfter--
	a.next++
	d := *desc
	a.live[a.next] = &d
	return a.next, nil
}

func (a *fakeAllocator) DestroyBuffer(id gpucore.BufferID) {
	delete(a.live, id)
}

func testDecls() []Declaration {
	var decls []Declaration
	decls = append(decls, Declare(0, persistent("raw", 64, UsageStorage|UsageCopyDst), persistent("bl", 64, UsageStorage))...)
	decls = append(decls, Declare(1, persistent("bl", 64, UsageStorage), transient("scratch", 32))...)
	decls = append(decls, Declare(2, transient("scratch2", 48), persistent("rgb", 256, UsageStorage))...)
	return decls
}

func TestResolveAllocatesOneBufferPerSlot(t *testing.T) {
	alloc := newFakeAllocator()
	plan, err := Resolve(testDecls(), alloc)
	require.NoError(t, err)

	require.Len(t, alloc.live, len(plan.Layout().Slots))
	assert.Len(t, alloc.live, 4)

	scratch, err := plan.Lookup("scratch")
	require.NoError(t, err)
	scratch2, err := plan.Lookup("scratch2")
	require.NoError(t, err)
	assert.Equal(t, scratch.Buffer, scratch2.Buffer)
	assert.Equal(t, uint64(32), scratch.Size)
	assert.Equal(t, uint64(48), alloc.live[scratch.Buffer].Size)

	raw, err := plan.Lookup("raw")
	require.NoError(t, err)
	assert.Equal(t, "raw", alloc.live[raw.Buffer].Label)
	assert.Equal(t, Persistent, raw.Category)

	plan.Release()
	assert.Empty(t, alloc.live)
	plan.Release()

	_, err = plan.Lookup("raw")
	assert.ErrorIs(t, err, ErrReleased)
}

func TestStageViewRejectsUndeclared(t *testing.T) {
	alloc := newFakeAllocator()
	plan, err := Resolve(testDecls(), alloc)
	require.NoError(t, err)
	defer plan.Release()

	v := plan.View(1)
	assert.Equal(t, 1, v.Stage())

	bl, err := v.Buffer("bl")
	require.NoError(t, err)
	assert.NotEqual(t, gpucore.BufferID(gpucore.InvalidID), bl.Buffer)

	// raw exists physically but stage 1 never declared it.
	_, err = v.Buffer("raw")
	var unbound *UnboundBufferError
	require.ErrorAs(t, err, &unbound)
	assert.Equal(t, 1, unbound.Stage)
	assert.Equal(t, "raw", unbound.Name)

	_, err = plan.Lookup("missing")
	require.ErrorAs(t, err, &unbound)

	var zero StageView
	_, err = zero.Buffer("raw")
	require.ErrorAs(t, err, &unbound)
}

func TestAllocateFailureReleasesPartialPlan(t *testing.T) {
	alloc := newFakeAllocator()
	alloc.failAfter = 2

	plan, err := Resolve(testDecls(), alloc)
	assert.Nil(t, plan)
	require.ErrorIs(t, err, errOutOfMemory)
	assert.Empty(t, alloc.live)
}
