/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package lrumap provides a bounded map with LRU eviction.
// It is used to keep per-actor state (rate-limiting windows, sessions)
// from growing without limit when actor IDs are attacker-controlled.
package lrumap

import (
	"container/list"
	"fmt"
	"sync"
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Map is a mutex-guarded map with LRU eviction.
// When the number of entries exceeds the configured maximum,
// the least recently used entry is silently dropped.
type Map[K comparable, V any] struct {
	maxEntries int

	mu    sync.Mutex
	ll    *list.List
	items map[K]*list.Element
}

// New creates a new Map with the provided maximum number of entries.
func New[K comparable, V any](maxEntries int) (*Map[K, V], error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("maxEntries must be greater than 0")
	}
	return &Map[K, V]{
		maxEntries: maxEntries,
		ll:         list.New(),
		items:      make(map[K]*list.Element),
	}, nil
}

// Get returns a value by the provided key and marks the entry as recently used.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return value, false
	}
	m.ll.MoveToFront(elem)
	return elem.Value.(*entry[K, V]).value, true
}

// GetOrAdd returns an existing value or adds a new one produced by valueProvider.
// The second return value reports whether the entry already existed.
func (m *Map[K, V]) GetOrAdd(key K, valueProvider func() V) (value V, exists bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		m.ll.MoveToFront(elem)
		return elem.Value.(*entry[K, V]).value, true
	}

	value = valueProvider()
	m.items[key] = m.ll.PushFront(&entry[K, V]{key: key, value: value})
	if len(m.items) > m.maxEntries {
		m.removeOldest()
	}
	return value, false
}

// Add adds a new value under the provided key, replacing the value that may already be there.
func (m *Map[K, V]) Add(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.items[key]; ok {
		m.ll.MoveToFront(elem)
		elem.Value.(*entry[K, V]).value = value
		return
	}
	m.items[key] = m.ll.PushFront(&entry[K, V]{key: key, value: value})
	if len(m.items) > m.maxEntries {
		m.removeOldest()
	}
}

// Remove removes a value by the provided key.
func (m *Map[K, V]) Remove(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return false
	}
	m.ll.Remove(elem)
	delete(m.items, key)
	return true
}

// RemoveIf removes all entries for which pred returns true and reports how many were removed.
// pred must not call back into the Map.
func (m *Map[K, V]) RemoveIf(pred func(key K, value V) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, elem := range m.items {
		e := elem.Value.(*entry[K, V])
		if pred(key, e.value) {
			m.ll.Remove(elem)
			delete(m.items, key)
			removed++
		}
	}
	return removed
}

// Range calls fn for every entry until fn returns false.
// Iteration order is unspecified and recency is not affected.
// fn must not call back into the Map.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, elem := range m.items {
		if !fn(key, elem.Value.(*entry[K, V]).value) {
			return
		}
	}
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Map[K, V]) removeOldest() {
	elem := m.ll.Back()
	if elem == nil {
		return
	}
	m.ll.Remove(elem)
	delete(m.items, elem.Value.(*entry[K, V]).key)
}
