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

package llist

import "iter"

// Iterator walks a chain forward. It is lazy: the successor of the last
// yielded node is read only when the next node is requested, so nodes
// removed or inserted ahead of the iterator are observed. The node just
// yielded may be removed (but not released) without stopping the walk.
//
// An Iterator stops at the end of the chain, on a released node, or once
// its Tx has ended. Iterating a ring with an Iterator from Tx.Iter never
// stops; use Tx.Ring for that.
type Iterator[T any] struct {
	tx      *Tx[T]
	start   Handle
	stop    Handle // ring sentinel, zero for plain chains
	last    Handle
	started bool
	done    bool
}

// Iter returns an Iterator starting at start itself.
func (tx *Tx[T]) Iter(start Handle) Iterator[T] {
	return Iterator[T]{tx: tx, start: start}
}

// Next returns the next node and true, or false when the walk is over.
func (it *Iterator[T]) Next() (Handle, bool) {
	if it.done {
		return Handle{}, false
	}

	var cur Handle
	if !it.started {
		it.started = true
		cur = it.start
	} else {
		next, _, err := it.tx.Successor(it.last)
		if err != nil {
			it.done = true
			return Handle{}, false
		}
		cur = next
	}

	if cur.IsZero() || cur == it.stop {
		it.done = true
		return Handle{}, false
	}
	a, err := it.tx.arena()
	if err != nil {
		it.done = true
		return Handle{}, false
	}
	if _, err := a.node(cur); err != nil {
		it.done = true
		return Handle{}, false
	}
	it.last = cur
	return cur, true
}

// All returns the nodes from start (included) to the end of its chain.
func (tx *Tx[T]) All(start Handle) iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		it := tx.Iter(start)
		for h, ok := it.Next(); ok; h, ok = it.Next() {
			if !yield(h) {
				return
			}
		}
	}
}

// Chain returns the nodes of the chain anchored at r. The head is read
// when the iteration starts.
func (tx *Tx[T]) Chain(r Root) iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		head, ok, err := tx.Head(r)
		if err != nil || !ok {
			return
		}
		tx.All(head)(yield)
	}
}

// Ring returns the members of the ring of sentinel, sentinel excluded.
// The walk ends when it comes back to the sentinel.
func (tx *Tx[T]) Ring(sentinel Handle) iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		first, ok, err := tx.Successor(sentinel)
		if err != nil || !ok {
			return
		}
		it := Iterator[T]{tx: tx, start: first, stop: sentinel}
		for h, ok := it.Next(); ok; h, ok = it.Next() {
			if !yield(h) {
				return
			}
		}
	}
}

// Values returns the values of the nodes of seq.
func (tx *Tx[T]) Values(seq iter.Seq[Handle]) iter.Seq2[Handle, T] {
	return func(yield func(Handle, T) bool) {
		for h := range seq {
			v, err := tx.Value(h)
			if err != nil {
				return
			}
			if !yield(h, v) {
				return
			}
		}
	}
}
