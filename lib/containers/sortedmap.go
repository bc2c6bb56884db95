// Copyright (C) 2022-2023  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package containers

import (
	"sort"
)

// SortedMap is a mapping whose Range iterates in key order.  It is
// backed by a sorted slice rather than a balanced tree; Store and
// Delete are O(n), but the maps we put in it (group names, variable
// names) stay small enough that the simplicity wins.
//
// The zero SortedMap is usable.
type SortedMap[K Ordered[K], V any] struct {
	keys []K
	vals []V
}

// search returns the position of key in m.keys, or the position it
// would be inserted at if it is not present.
func (m *SortedMap[K, V]) search(key K) (idx int, exact bool) {
	idx = sort.Search(len(m.keys), func(i int) bool {
		return m.keys[i].Cmp(key) >= 0
	})
	return idx, idx < len(m.keys) && m.keys[idx].Cmp(key) == 0
}

func (m *SortedMap[K, V]) Store(key K, value V) {
	idx, exact := m.search(key)
	if exact {
		m.vals[idx] = value
		return
	}
	m.keys = append(m.keys, key)
	copy(m.keys[idx+1:], m.keys[idx:])
	m.keys[idx] = key
	var zero V
	m.vals = append(m.vals, zero)
	copy(m.vals[idx+1:], m.vals[idx:])
	m.vals[idx] = value
}

func (m *SortedMap[K, V]) Load(key K) (value V, ok bool) {
	idx, exact := m.search(key)
	if !exact {
		var zero V
		return zero, false
	}
	return m.vals[idx], true
}

func (m *SortedMap[K, V]) Has(key K) bool {
	_, exact := m.search(key)
	return exact
}

func (m *SortedMap[K, V]) Delete(key K) {
	idx, exact := m.search(key)
	if !exact {
		return
	}
	m.keys = append(m.keys[:idx], m.keys[idx+1:]...)
	m.vals = append(m.vals[:idx], m.vals[idx+1:]...)
}

func (m *SortedMap[K, V]) Len() int {
	return len(m.keys)
}

// Range calls fn for each entry in ascending key order, stopping
// early if fn returns false.
func (m *SortedMap[K, V]) Range(fn func(K, V) bool) {
	for i := range m.keys {
		if !fn(m.keys[i], m.vals[i]) {
			return
		}
	}
}

// Keys returns the keys in ascending order.  The returned slice is
// shared with the map; callers must not mutate it.
func (m *SortedMap[K, V]) Keys() []K {
	return m.keys
}
