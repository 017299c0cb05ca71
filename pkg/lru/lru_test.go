/*
 * Copyright (C) 2020-2026, IrineSistiana
 *
 * This file is part of llist.
 *
 * llist is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * llist is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LRU(t *testing.T) {
	var evicted []int
	q := NewLRU[int, string](3, func(key int, v string) { evicted = append(evicted, key) })

	q.Add(1, "a")
	q.Add(2, "b")
	q.Add(3, "c")
	require.Equal(t, 3, q.Len())

	// Refresh 1, so 2 is the oldest.
	v, ok := q.Get(1)
	require.True(t, ok)
	require.Equal(t, "a", v)

	q.Add(4, "d")
	require.Equal(t, []int{2}, evicted)
	require.Equal(t, 3, q.Len())
	_, ok = q.Get(2)
	require.False(t, ok)

	// Peek does not refresh.
	v, ok = q.Peek(3)
	require.True(t, ok)
	require.Equal(t, "c", v)
	q.Add(5, "e")
	require.Equal(t, []int{2, 3}, evicted)

	// Update in place.
	q.Add(1, "A")
	v, _ = q.Get(1)
	require.Equal(t, "A", v)

	key, v, ok := q.PopOldest()
	require.True(t, ok)
	assert.Equal(t, 4, key)
	assert.Equal(t, "d", v)
	require.Equal(t, []int{2, 3}, evicted, "PopOldest does not call onEvict")

	q.Del(5)
	require.Equal(t, []int{2, 3, 5}, evicted)
	q.Del(5)
	require.Equal(t, 1, q.Len())

	q.PopOldest()
	_, _, ok = q.PopOldest()
	require.False(t, ok)
}

func Test_LRU_Clean(t *testing.T) {
	q := NewLRU[int, int](16, nil)
	for i := 0; i < 16; i++ {
		q.Add(i, i)
	}
	removed := q.Clean(func(key int, v int) bool { return key%2 == 0 })
	require.Equal(t, 8, removed)
	require.Equal(t, 8, q.Len())
	for i := 0; i < 16; i++ {
		_, ok := q.Peek(i)
		require.Equal(t, i%2 == 1, ok)
	}

	// Removing the back during Clean keeps the list usable.
	removed = q.Clean(func(key int, v int) bool { return key == 15 })
	require.Equal(t, 1, removed)
	q.Add(100, 100)
	key, _, _ := q.PopOldest()
	require.Equal(t, 1, key)
	require.NoError(t, q.l.Verify())
}

func Test_LRU_invalidSize(t *testing.T) {
	require.Panics(t, func() { NewLRU[int, int](0, nil) })
}

func Test_LRU_reusesNodes(t *testing.T) {
	q := NewLRU[int, int](4, nil)
	for i := 0; i < 1000; i++ {
		q.Add(i, i)
	}
	require.Equal(t, 4, q.Len())
	for i := 996; i < 1000; i++ {
		v, ok := q.Get(i)
		require.True(t, ok)
		require.Equal(t, i, v)
	}
}
