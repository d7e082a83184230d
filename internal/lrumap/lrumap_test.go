/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package lrumap

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("maxEntries should be greater than 0", func(t *testing.T) {
		for _, n := range []int{0, -1} {
			_, err := New[string, int](n)
			require.Error(t, err)
		}
	})
}

func TestMapEviction(t *testing.T) {
	m, err := New[string, int](3)
	require.NoError(t, err)

	for i, key := range []string{"a", "b", "c"} {
		i, key := i, key
		m.GetOrAdd(key, func() int { return i })
	}
	require.Equal(t, 3, m.Len())

	// "a" becomes the most recently used entry, so "b" is evicted next.
	_, ok := m.Get("a")
	require.True(t, ok)

	m.GetOrAdd("d", func() int { return 3 })
	require.Equal(t, 3, m.Len())
	_, ok = m.Get("b")
	require.False(t, ok)
	_, ok = m.Get("a")
	require.True(t, ok)
	_, ok = m.Get("c")
	require.True(t, ok)
	_, ok = m.Get("d")
	require.True(t, ok)
}

func TestMapGetOrAdd(t *testing.T) {
	m, err := New[string, int](10)
	require.NoError(t, err)

	v, exists := m.GetOrAdd("a", func() int { return 42 })
	require.False(t, exists)
	require.Equal(t, 42, v)

	v, exists = m.GetOrAdd("a", func() int {
		t.Fatal("valueProvider should not be called for an existing entry")
		return 0
	})
	require.True(t, exists)
	require.Equal(t, 42, v)
}

func TestMapAdd(t *testing.T) {
	m, err := New[string, int](2)
	require.NoError(t, err)

	m.Add("a", 1)
	m.Add("a", 2)
	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 2, v)
	require.Equal(t, 1, m.Len())

	m.Add("b", 3)
	m.Add("c", 4)
	require.Equal(t, 2, m.Len())
	_, ok = m.Get("a")
	require.False(t, ok)
}

func TestMapRemove(t *testing.T) {
	m, err := New[string, int](10)
	require.NoError(t, err)

	m.GetOrAdd("a", func() int { return 1 })
	require.True(t, m.Remove("a"))
	require.False(t, m.Remove("a"))
	require.Equal(t, 0, m.Len())

	// A removed key may be added again.
	_, exists := m.GetOrAdd("a", func() int { return 2 })
	require.False(t, exists)
	require.Equal(t, 1, m.Len())
}

func TestMapRemoveIf(t *testing.T) {
	m, err := New[string, int](10)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		i := i
		m.GetOrAdd(fmt.Sprintf("key-%d", i), func() int { return i })
	}

	removed := m.RemoveIf(func(_ string, value int) bool { return value%2 == 0 })
	require.Equal(t, 3, removed)
	require.Equal(t, 3, m.Len())
	_, ok := m.Get("key-0")
	require.False(t, ok)
	_, ok = m.Get("key-1")
	require.True(t, ok)
}

func TestMapRange(t *testing.T) {
	m, err := New[string, int](10)
	require.NoError(t, err)

	sum := 0
	m.Range(func(_ string, value int) bool {
		sum += value
		return true
	})
	require.Equal(t, 0, sum)

	for i := 1; i <= 4; i++ {
		i := i
		m.GetOrAdd(fmt.Sprintf("key-%d", i), func() int { return i })
	}

	sum = 0
	m.Range(func(_ string, value int) bool {
		sum += value
		return true
	})
	require.Equal(t, 10, sum)

	// Early stop.
	visited := 0
	m.Range(func(_ string, _ int) bool {
		visited++
		return false
	})
	require.Equal(t, 1, visited)
}

func TestMapConcurrentAccess(t *testing.T) {
	m, err := New[int, int](100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				i := i
				m.GetOrAdd(i%150, func() int { return i })
				m.Get(i % 150)
				if i%10 == 0 {
					m.Remove(i % 150)
				}
			}
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, m.Len(), 100)
}
