// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetSet(t *testing.T) {
	c := New[string, int](4)
	if _, ok := c.Get("a"); ok {
		t.Fatal("empty cache returned a value")
	}
	c.Set("a", 1)
	c.Set("a", 2)
	if v, ok := c.Get("a"); !ok || v != 2 {
		t.Fatalf("Get(a) = %d, %v; want 2, true", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int, int](3)
	c.Set(1, 1)
	c.Set(2, 2)
	c.Set(3, 3)
	c.Get(1) // 2 is now the oldest
	c.Set(4, 4)

	if _, ok := c.Get(2); ok {
		t.Error("2 should have been evicted")
	}
	for _, k := range []int{1, 3, 4} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%d missing", k)
		}
	}
	if s := c.Stats(); s.Evictions != 1 || s.Len != 3 {
		t.Errorf("stats = %+v, want 1 eviction and 3 entries", s)
	}
}

func TestUnlimited(t *testing.T) {
	c := New[int, int](0)
	for i := range 1000 {
		c.Set(i, i)
	}
	if c.Len() != 1000 {
		t.Errorf("Len() = %d, want 1000", c.Len())
	}
}

func TestGetOrCreate(t *testing.T) {
	c := New[string, []uint32](2)
	calls := 0
	create := func() ([]uint32, error) {
		calls++
		return []uint32{0x07230203}, nil
	}

	for range 3 {
		v, err := c.GetOrCreate("k", create)
		if err != nil || len(v) != 1 {
			t.Fatalf("GetOrCreate = %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 2/1", s.Hits, s.Misses)
	}
	if s.HitRate < 0.66 || s.HitRate > 0.67 {
		t.Errorf("HitRate = %f", s.HitRate)
	}
}

func TestGetOrCreateErrorNotCached(t *testing.T) {
	c := New[string, int](2)
	boom := errors.New("boom")
	if _, err := c.GetOrCreate("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Error("failed create was cached")
	}
	v, err := c.GetOrCreate("k", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("GetOrCreate = %d, %v", v, err)
	}
}

func TestDeleteClear(t *testing.T) {
	c := New[int, int](4)
	c.Set(1, 1)
	c.Set(2, 2)
	if !c.Delete(1) || c.Delete(1) {
		t.Error("Delete should report presence once")
	}
	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d", c.Len())
	}
	c.Set(3, 3)
	if v, ok := c.Get(3); !ok || v != 3 {
		t.Error("cache unusable after Clear")
	}
}

func TestConcurrentGetOrCreate(t *testing.T) {
	c := New[int, int](8)
	var created atomic.Int32
	var wg sync.WaitGroup
	for i := range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrCreate(i%4, func() (int, error) {
				created.Add(1)
				return i, nil
			})
		}()
	}
	wg.Wait()
	if n := created.Load(); n != 4 {
		t.Errorf("created %d values, want 4", n)
	}
}

func TestLRUList(t *testing.T) {
	var l lruList[string, int]
	a := l.PushFront("a", 1)
	l.PushFront("b", 2)
	c := l.PushFront("c", 3)

	l.MoveToFront(a)
	if l.head != a || l.tail.key != "b" {
		t.Fatalf("head %q tail %q, want a and b", l.head.key, l.tail.key)
	}
	l.Remove(c)
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
	if n := l.RemoveOldest(); n == nil || n.key != "b" {
		t.Error("RemoveOldest should return b")
	}
	if n := l.RemoveOldest(); n == nil || n.key != "a" {
		t.Error("RemoveOldest should return a")
	}
	if l.RemoveOldest() != nil || l.Len() != 0 {
		t.Error("list should be empty")
	}
}
