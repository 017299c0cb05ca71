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

import (
	"fmt"

	"go.uber.org/zap"
)

// Insert splices h into a chain right after slot at. next must be the node
// at currently holds (the zero Handle if at is empty); it becomes h's
// successor.
//
// Afterwards at holds h, h records at as its predecessor slot, and next,
// if any, records h's successor slot as its own.
//
// h must not be linked. Its previous link fields are overwritten.
func (tx *Tx[T]) Insert(h Handle, at Slot, next Handle) error {
	a, err := tx.arena()
	if err != nil {
		return err
	}
	if err := a.insert(h, at, next); err != nil {
		return a.reject("insert", err, zap.Stringer("node", h), zap.Stringer("slot", at), zap.Stringer("next", next))
	}
	return nil
}

// InsertAfter is Insert with next read from at.
func (tx *Tx[T]) InsertAfter(h Handle, at Slot) error {
	a, err := tx.arena()
	if err != nil {
		return err
	}
	next, err := a.load(at)
	if err == nil {
		err = a.insert(h, at, next)
	}
	if err != nil {
		return a.reject("insert", err, zap.Stringer("node", h), zap.Stringer("slot", at))
	}
	return nil
}

// PushFront inserts h as the first node of the chain anchored at r.
func (tx *Tx[T]) PushFront(r Root, h Handle) error {
	return tx.InsertAfter(h, RootSlot(r))
}

func (a *Arena[T]) insert(h Handle, at Slot, next Handle) error {
	e, err := a.node(h)
	if err != nil {
		return err
	}
	cur, err := a.load(at)
	if err != nil {
		return err
	}
	if at == SuccessorSlot(h) || next == h {
		return fmt.Errorf("%s: %w", h, ErrSelfLink)
	}
	if a.linked(h, e) {
		return fmt.Errorf("%s: %w", h, ErrLinked)
	}
	if cur != next {
		return fmt.Errorf("%s holds %s, not %s: %w", at, cur, next, ErrSuccessorMismatch)
	}
	if !next.IsZero() {
		ne, err := a.node(next)
		if err != nil {
			return err
		}
		// A slot holding a node that does not point back at it is the
		// stale successor field of a removed node.
		if ne.prev != at {
			return fmt.Errorf("%s is stale, %s follows %s: %w", at, next, ne.prev, ErrSuccessorMismatch)
		}
	}

	e.prev = at
	e.next = next
	a.store(at, h)
	if !next.IsZero() {
		a.nodes[next.idx].prev = SuccessorSlot(h)
	}

	if a.opts.Debug {
		a.mustConsistentAround("insert", at, next)
		a.mustConsistent("insert", SuccessorSlot(h))
	}
	return nil
}

// Remove splices h out of its chain: the slot that pointed at h now holds
// h's former successor, and that successor records the slot as its
// predecessor. h's own link fields are left stale. h must not be walked
// again as a chain member until it is inserted again.
//
// Removing the only node of a root anchored chain empties the root.
func (tx *Tx[T]) Remove(h Handle) error {
	a, err := tx.arena()
	if err != nil {
		return err
	}
	e, err := a.node(h)
	if err != nil {
		return a.reject("remove", err, zap.Stringer("node", h))
	}
	if !a.linked(h, e) {
		return a.reject("remove", fmt.Errorf("%s: %w", h, ErrNotLinked), zap.Stringer("node", h))
	}
	next, prev := e.next, e.prev
	if next == h {
		return a.reject("remove", fmt.Errorf("%s is an empty ring: %w", h, ErrSelfLink), zap.Stringer("node", h))
	}

	a.store(prev, next)
	if !next.IsZero() {
		a.nodes[next.idx].prev = prev
	}

	if a.opts.Debug {
		a.mustConsistentAround("remove", prev, next)
	}
	return nil
}

// InitRing turns the unlinked node sentinel into an empty circular chain:
// its successor is itself. Nodes inserted after the sentinel, or after any
// member, stay on the ring. Use Ring to walk it.
func (tx *Tx[T]) InitRing(sentinel Handle) error {
	a, err := tx.arena()
	if err != nil {
		return err
	}
	e, err := a.node(sentinel)
	if err != nil {
		return a.reject("init ring", err, zap.Stringer("node", sentinel))
	}
	if a.linked(sentinel, e) || a.headsFragment(sentinel, e) {
		return a.reject("init ring", fmt.Errorf("%s: %w", sentinel, ErrLinked), zap.Stringer("node", sentinel))
	}
	e.next = sentinel
	e.prev = SuccessorSlot(sentinel)
	return nil
}
