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

package list

import (
	"fmt"
	"iter"

	"github.com/pmkol/llist/pkg/llist"
)

// List is a queue over a single llist chain. It owns its arena and keeps
// the arena's token for its whole life, so elements are plain handles.
// It is not safe for concurrent use.
type List[V any] struct {
	tx     *llist.Tx[V]
	root   llist.Root
	back   llist.Handle
	length int
}

func New[V any]() *List[V] {
	return NewWithOpts[V](llist.Opts{})
}

func NewWithOpts[V any](opts llist.Opts) *List[V] {
	tx, err := llist.NewArena[V](opts).Begin()
	mustOK(err)
	root, err := tx.NewRoot()
	mustOK(err)
	return &List[V]{tx: tx, root: root}
}

func (l *List[V]) Front() (llist.Handle, bool) {
	h, ok, err := l.tx.Head(l.root)
	mustOK(err)
	return h, ok
}

func (l *List[V]) Back() (llist.Handle, bool) {
	return l.back, !l.back.IsZero()
}

func (l *List[V]) Len() int {
	return l.length
}

func (l *List[V]) PushFront(v V) llist.Handle {
	e := l.alloc(v)
	mustOK(l.tx.PushFront(l.root, e))
	if l.back.IsZero() {
		l.back = e
	}
	l.length++
	return e
}

func (l *List[V]) PushBack(v V) llist.Handle {
	e := l.alloc(v)
	l.linkBack(e)
	l.length++
	return e
}

// MoveToBack moves an existing element to the back in O(1).
// Does not change length.
func (l *List[V]) MoveToBack(e llist.Handle) {
	l.checkElem(e)
	if l.back == e {
		return
	}
	l.unlink(e)
	l.linkBack(e)
}

// PopElem removes e and returns its value. e must not be used afterwards.
func (l *List[V]) PopElem(e llist.Handle) V {
	l.checkElem(e)
	v, err := l.tx.Value(e)
	mustOK(err)
	l.unlink(e)
	mustOK(l.tx.Release(e))
	l.length--
	return v
}

func (l *List[V]) Next(e llist.Handle) (llist.Handle, bool) {
	l.checkElem(e)
	h, ok, err := l.tx.Successor(e)
	mustOK(err)
	return h, ok
}

func (l *List[V]) Value(e llist.Handle) V {
	v, err := l.tx.Value(e)
	mustOK(err)
	return v
}

func (l *List[V]) SetValue(e llist.Handle, v V) {
	mustOK(l.tx.SetValue(e, v))
}

// All yields the elements from front to back.
func (l *List[V]) All() iter.Seq2[llist.Handle, V] {
	return l.tx.Values(l.tx.Chain(l.root))
}

// Verify checks the back-references of the underlying chain.
func (l *List[V]) Verify() error {
	return l.tx.Verify()
}

func (l *List[V]) alloc(v V) llist.Handle {
	e, err := l.tx.Alloc(v)
	mustOK(err)
	return e
}

func (l *List[V]) linkBack(e llist.Handle) {
	at := llist.RootSlot(l.root)
	if !l.back.IsZero() {
		at = llist.SuccessorSlot(l.back)
	}
	mustOK(l.tx.InsertAfter(e, at))
	l.back = e
}

// unlink removes e from the chain. If e was the back, its predecessor
// slot tells the new back without a walk.
func (l *List[V]) unlink(e llist.Handle) {
	prev, err := l.tx.Predecessor(e)
	mustOK(err)
	mustOK(l.tx.Remove(e))
	if l.back == e {
		owner, _ := prev.Owner()
		l.back = owner
	}
}

func (l *List[V]) checkElem(e llist.Handle) {
	if !l.tx.Linked(e) {
		panic("elem does not belong to this list")
	}
}

func mustOK(err error) {
	if err != nil {
		panic(fmt.Sprintf("list: %v", err))
	}
}
