package cmap

import (
	"fmt"
	"sort"
	"sync"
	"testing"
)

func TestNewWithShards(t *testing.T) {
	tests := []struct {
		input, want int
	}{
		{0, DefaultShardCount},
		{-1, DefaultShardCount},
		{3, DefaultShardCount},
		{1, 1},
		{8, 8},
		{64, 64},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("shards=%d", tt.input), func(t *testing.T) {
			m := NewWithShards[string, int](tt.input)
			if len(m.shards) != tt.want {
				t.Errorf("shard count = %d, want %d", len(m.shards), tt.want)
			}
		})
	}
}

func TestMap_Basic(t *testing.T) {
	m := New[string, int]()

	m.Set("ptk-a", 1)
	m.Set("ptk-b", 2)
	m.Set("ptk-a", 3)

	if v, ok := m.Get("ptk-a"); !ok || v != 3 {
		t.Errorf("Get(ptk-a) = %d, %v; want 3, true", v, ok)
	}
	if !m.Has("ptk-b") || m.Has("ptk-c") {
		t.Error("Has() mismatch")
	}
	if m.Count() != 2 {
		t.Errorf("Count() = %d, want 2", m.Count())
	}

	m.Delete("ptk-b")
	if m.Has("ptk-b") {
		t.Error("Delete() left the key behind")
	}

	v, ok := m.Pop("ptk-a")
	if !ok || v != 3 || m.Count() != 0 {
		t.Errorf("Pop() = %d, %v; count %d", v, ok, m.Count())
	}
	if _, ok := m.Pop("ptk-a"); ok {
		t.Error("Pop() of a missing key reported ok")
	}
}

func TestMap_GetOrSet(t *testing.T) {
	m := New[int64, string]()

	got, loaded := m.GetOrSet(42, "first")
	if loaded || got != "first" {
		t.Errorf("GetOrSet() = %q, %v; want first, false", got, loaded)
	}
	got, loaded = m.GetOrSet(42, "second")
	if !loaded || got != "first" {
		t.Errorf("GetOrSet() = %q, %v; want first, true", got, loaded)
	}
}

func TestMap_RangeAndValues(t *testing.T) {
	m := NewWithShards[int64, int64](4)
	for i := int64(1); i <= 100; i++ {
		m.Set(i, i*10)
	}

	vals := m.Values()
	if len(vals) != 100 {
		t.Fatalf("Values() len = %d, want 100", len(vals))
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	if vals[0] != 10 || vals[99] != 1000 {
		t.Errorf("Values() range = [%d, %d]", vals[0], vals[99])
	}

	visited := 0
	m.Range(func(int64, int64) bool {
		visited++
		return visited < 5
	})
	if visited != 5 {
		t.Errorf("Range() visited %d entries after stop, want 5", visited)
	}
}

func TestMap_Distribution(t *testing.T) {
	m := NewWithShards[int64, struct{}](8)
	for i := int64(0); i < 800; i++ {
		m.Set(i, struct{}{})
	}
	for i, s := range m.shards {
		if len(s.items) == 0 {
			t.Errorf("shard %d is empty", i)
		}
	}
}

func TestMap_Concurrent(t *testing.T) {
	m := New[string, int]()
	const workers, ops = 32, 500

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < ops; i++ {
				key := fmt.Sprintf("%d-%d", w, i)
				m.Set(key, i)
				m.Get(key)
				m.GetOrSet(key, -1)
			}
		}(w)
	}
	wg.Wait()

	if m.Count() != workers*ops {
		t.Errorf("Count() = %d, want %d", m.Count(), workers*ops)
	}
}
