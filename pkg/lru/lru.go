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
	"fmt"

	"github.com/pmkol/llist/pkg/list"
	"github.com/pmkol/llist/pkg/llist"
)

// LRU is a fixed size cache. The front of its list is the oldest entry.
// It is not safe for concurrent use.
type LRU[K comparable, V any] struct {
	maxSize int
	onEvict func(key K, v V)

	l *list.List[KV[K, V]]
	m map[K]llist.Handle
}

type KV[K comparable, V any] struct {
	key K
	v   V
}

func NewLRU[K comparable, V any](maxSize int, onEvict func(key K, v V)) *LRU[K, V] {
	if maxSize <= 0 {
		panic(fmt.Sprintf("LRU: invalid max size: %d", maxSize))
	}

	return &LRU[K, V]{
		maxSize: maxSize,
		onEvict: onEvict,
		l:       list.NewWithOpts[KV[K, V]](llist.Opts{Capacity: maxSize}),
		m:       make(map[K]llist.Handle, maxSize),
	}
}

func (q *LRU[K, V]) Add(key K, v V) {
	// Update existing
	if e, ok := q.m[key]; ok {
		q.l.SetValue(e, KV[K, V]{key: key, v: v})
		q.l.MoveToBack(e)
		return
	}

	// Reuse the oldest node in place if full, the arena never grows here.
	if q.l.Len() >= q.maxSize {
		e, _ := q.l.Front()
		old := q.l.Value(e)

		if q.onEvict != nil {
			q.onEvict(old.key, old.v)
		}

		delete(q.m, old.key)
		q.l.SetValue(e, KV[K, V]{key: key, v: v})
		q.m[key] = e
		q.l.MoveToBack(e)
		return
	}

	q.m[key] = q.l.PushBack(KV[K, V]{key: key, v: v})
}

func (q *LRU[K, V]) Get(key K) (v V, ok bool) {
	e, ok := q.m[key]
	if !ok {
		return
	}
	q.l.MoveToBack(e)
	return q.l.Value(e).v, true
}

// Peek is Get without refreshing the entry.
func (q *LRU[K, V]) Peek(key K) (v V, ok bool) {
	e, ok := q.m[key]
	if !ok {
		return
	}
	return q.l.Value(e).v, true
}

func (q *LRU[K, V]) Del(key K) {
	e, ok := q.m[key]
	if !ok {
		return
	}
	q.delElem(e)
}

func (q *LRU[K, V]) PopOldest() (key K, v V, ok bool) {
	e, ok := q.l.Front()
	if !ok {
		return
	}

	kv := q.l.PopElem(e)
	delete(q.m, kv.key)
	return kv.key, kv.v, true
}

func (q *LRU[K, V]) Clean(f func(key K, v V) bool) (removed int) {
	e, ok := q.l.Front()
	for ok {
		next, hasNext := q.l.Next(e)
		kv := q.l.Value(e)

		if f(kv.key, kv.v) {
			q.delElem(e)
			removed++
		}

		e, ok = next, hasNext
	}
	return
}

func (q *LRU[K, V]) Len() int {
	return q.l.Len()
}

func (q *LRU[K, V]) delElem(e llist.Handle) {
	kv := q.l.PopElem(e)
	delete(q.m, kv.key)

	if q.onEvict != nil {
		q.onEvict(kv.key, kv.v)
	}
}
