// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package bufplan turns per-stage buffer declarations into a concrete
// allocation plan.
//
// Stages never allocate GPU memory themselves. Each declares the logical
// buffers it reads or writes as [Descriptor] values keyed by a stable name.
// [Solve] reconciles the declarations of all stages into a [Layout]:
//
//   - Persistent names get exactly one physical buffer, whatever the
//     number of declaring stages. Sizes must agree; usages are unioned.
//   - Transient names are scratch space. Two transient names whose
//     liveness windows (the range of declaring stage indices) do not
//     overlap may share one physical buffer sized to the larger of the two.
//
// [Allocate] then creates the physical buffers through any [Allocator]
// and returns a [Plan]. A stage resolves its buffers through the
// [StageView] scoped to its index, which refuses names the stage did not
// declare:
//
//	layout, err := bufplan.Solve(decls)
//	if err != nil {
//		return err
//	}
//	plan, err := bufplan.Allocate(layout, device)
//	if err != nil {
//		return err
//	}
//	defer plan.Release()
//
//	raw, err := plan.View(0).Buffer("raw")
package bufplan
