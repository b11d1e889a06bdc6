// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bufplan

import "fmt"

// Stats summarizes the memory footprint of a layout.
type Stats struct {
	// PersistentBytes is the total size of persistent slots.
	PersistentBytes uint64

	// TransientBytes is the total size of transient slots after aliasing.
	TransientBytes uint64

	// TransientDeclaredBytes is the sum of every transient name's size,
	// i.e. the footprint without aliasing.
	TransientDeclaredBytes uint64

	// PeakLiveTransientBytes is the largest sum of transient sizes live
	// at any single stage.
	PeakLiveTransientBytes uint64

	// TransientSlots is the number of transient physical buffers.
	TransientSlots int

	// PeakLiveTransients is the sum, over host-mapping classes, of the
	// largest number of transient names of that class live at one stage.
	// Solve never opens more transient slots than this.
	PeakLiveTransients int

	// Slots is the number of physical buffers.
	Slots int

	// Names is the number of logical buffers.
	Names int
}

// TotalBytes returns the bytes allocated across all slots.
func (s Stats) TotalBytes() uint64 {
	return s.PersistentBytes + s.TransientBytes
}

// String returns a human-readable string of plan stats.
func (s Stats) String() string {
	return fmt.Sprintf("Plan[%d names in %d slots, persistent %d B, transient %d/%d B (peak live %d B)]",
		s.Names,
		s.Slots,
		s.PersistentBytes,
		s.TransientBytes,
		s.TransientDeclaredBytes,
		s.PeakLiveTransientBytes,
	)
}

// Stats computes footprint statistics for the layout.
func (l *Layout) Stats() Stats {
	st := Stats{Slots: len(l.Slots), Names: len(l.order)}
	for _, slot := range l.Slots {
		if slot.Category == Persistent {
			st.PersistentBytes += slot.Size
		} else {
			st.TransientBytes += slot.Size
			st.TransientSlots++
		}
	}

	first, last := 0, -1
	for _, name := range l.order {
		e := l.entries[name]
		if e.desc.Category != Transient {
			continue
		}
		st.TransientDeclaredBytes += e.desc.Size
		if last < first {
			first, last = e.window.First, e.window.Last
			continue
		}
		first = min(first, e.window.First)
		last = max(last, e.window.Last)
	}

	peakCount := make(map[Usage]int)
	for stage := first; stage <= last; stage++ {
		var live uint64
		count := make(map[Usage]int)
		for _, name := range l.order {
			e := l.entries[name]
			if e.desc.Category == Transient && e.window.First <= stage && stage <= e.window.Last {
				live += e.desc.Size
				count[e.desc.mappingClass()]++
			}
		}
		st.PeakLiveTransientBytes = max(st.PeakLiveTransientBytes, live)
		for class, n := range count {
			peakCount[class] = max(peakCount[class], n)
		}
	}
	for _, n := range peakCount {
		st.PeakLiveTransients += n
	}
	return st
}
