// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bufplan

import (
	"fmt"
	"math/bits"
	"slices"

	"github.com/gogpu/isp/gpucore"
)

// Slot is one physical buffer of a layout. A persistent slot backs exactly
// one name; a transient slot backs every transient name assigned to it.
type Slot struct {
	Index    int
	Category Category
	Usage    Usage
	Size     uint64

	// Names lists the logical buffers backed by this slot, in assignment order.
	Names []string

	// busyUntil is the last stage index of the most recent occupant.
	busyUntil int
}

// Window is the inclusive range of stage indices that declare a name.
type Window struct {
	First int
	Last  int
}

// Overlaps reports whether two windows share a stage.
func (w Window) Overlaps(o Window) bool {
	return w.First <= o.Last && o.First <= w.Last
}

// entry is the reconciled view of one name.
type entry struct {
	desc   Descriptor
	window Window
	slot   int
}

// Layout is the device-free result of resolution: which slot backs which
// name, and which names each stage declared. A Layout is immutable.
type Layout struct {
	Slots []Slot

	order    []string
	entries  map[string]*entry
	declared map[int][]string
}

// Solve resolves ordered declarations into a layout.
//
// Persistent names get one slot each, with the declared size (all
// declarations must agree) and the union of declared usages. Transient
// names are packed greedily in first-declaration order: a name reuses the
// first transient slot whose previous occupant's liveness window ended
// before this name's window begins and whose host-mapping class matches.
// The reused slot grows to the larger size and unions usages.
//
// With declarations in non-decreasing stage order, as Pipeline produces
// them, the transient slot count never exceeds Stats.PeakLiveTransients
// and TransientBytes never exceeds TransientDeclaredBytes. Aliased bytes
// can exceed the peak live bytes: a slot is sized for its largest occupant.
func Solve(decls []Declaration) (*Layout, error) {
	l := &Layout{
		entries:  make(map[string]*entry),
		declared: make(map[int][]string),
	}

	for _, d := range decls {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if err := l.add(d); err != nil {
			return nil, err
		}
	}

	for _, name := range l.order {
		e := l.entries[name]
		if e.desc.Category == Persistent {
			l.Slots = append(l.Slots, Slot{
				Index:     len(l.Slots),
				Category:  Persistent,
				Usage:     e.desc.Usage,
				Size:      e.desc.Size,
				Names:     []string{name},
				busyUntil: e.window.Last,
			})
			e.slot = len(l.Slots) - 1
			continue
		}
		e.slot = l.placeTransient(name, e)
	}

	if _, err := l.totalBytes(); err != nil {
		return nil, err
	}
	return l, nil
}

// add merges one declaration into the per-name entries.
func (l *Layout) add(d Declaration) error {
	if !slices.Contains(l.declared[d.Stage], d.Name) {
		l.declared[d.Stage] = append(l.declared[d.Stage], d.Name)
	}

	e, ok := l.entries[d.Name]
	if !ok {
		l.entries[d.Name] = &entry{
			desc:   d.Descriptor,
			window: Window{First: d.Stage, Last: d.Stage},
			slot:   -1,
		}
		l.order = append(l.order, d.Name)
		return nil
	}

	if e.desc.Category != d.Category {
		return &ResolutionError{
			Name:   d.Name,
			Reason: fmt.Sprintf("declared %s and %s", e.desc.Category, d.Category),
		}
	}
	if e.desc.Size != d.Size {
		return &ResolutionError{
			Name:   d.Name,
			Reason: fmt.Sprintf("size mismatch: %d bytes vs %d bytes (stage %d)", e.desc.Size, d.Size, d.Stage),
		}
	}
	if e.desc.mappingClass() != d.mappingClass() {
		return &ResolutionError{
			Name:   d.Name,
			Reason: fmt.Sprintf("mapping mismatch: %s vs %s", e.desc.mappingClass(), d.mappingClass()),
		}
	}
	e.desc.Usage |= d.Usage
	e.window.First = min(e.window.First, d.Stage)
	e.window.Last = max(e.window.Last, d.Stage)
	return nil
}

// placeTransient assigns a transient name to a slot and returns its index.
func (l *Layout) placeTransient(name string, e *entry) int {
	for i := range l.Slots {
		s := &l.Slots[i]
		if s.Category != Transient {
			continue
		}
		if s.busyUntil >= e.window.First {
			continue
		}
		if s.Usage&gpucore.BufferUsageMapMask != e.desc.mappingClass() {
			continue
		}
		s.Size = max(s.Size, e.desc.Size)
		s.Usage |= e.desc.Usage
		s.Names = append(s.Names, name)
		s.busyUntil = e.window.Last
		return i
	}

	l.Slots = append(l.Slots, Slot{
		Index:     len(l.Slots),
		Category:  Transient,
		Usage:     e.desc.Usage,
		Size:      e.desc.Size,
		Names:     []string{name},
		busyUntil: e.window.Last,
	})
	return len(l.Slots) - 1
}

// totalBytes sums slot sizes with overflow detection.
func (l *Layout) totalBytes() (uint64, error) {
	var total, carry uint64
	for _, s := range l.Slots {
		total, carry = bits.Add64(total, s.Size, 0)
		if carry != 0 {
			return 0, &ResolutionError{Name: s.Names[0], Reason: "total allocation size overflows"}
		}
	}
	return total, nil
}

// Names returns every logical buffer name in first-declaration order.
func (l *Layout) Names() []string {
	return slices.Clone(l.order)
}

// Binding returns the slot index backing name.
func (l *Layout) Binding(name string) (int, bool) {
	e, ok := l.entries[name]
	if !ok {
		return 0, false
	}
	return e.slot, true
}

// Descriptor returns the reconciled descriptor of name: the declared size
// and the union of all declared usages.
func (l *Layout) Descriptor(name string) (Descriptor, bool) {
	e, ok := l.entries[name]
	if !ok {
		return Descriptor{}, false
	}
	return e.desc, true
}

// Window returns the liveness window of name.
func (l *Layout) Window(name string) (Window, bool) {
	e, ok := l.entries[name]
	if !ok {
		return Window{}, false
	}
	return e.window, true
}

// Declared returns the names declared by stage, in declaration order.
func (l *Layout) Declared(stage int) []string {
	return slices.Clone(l.declared[stage])
}

// declares reports whether stage declared name.
func (l *Layout) declares(stage int, name string) bool {
	return slices.Contains(l.declared[stage], name)
}
