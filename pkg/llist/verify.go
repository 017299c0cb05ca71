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

import "fmt"

// Verify checks every chain of the arena: each root and each linked node
// must hold a node that records that very slot as its predecessor, and
// no root anchored chain may loop.
//
// The successor field of an unlinked node is not checked, even when a
// chain hangs off it: once a node is removed its fields are stale and
// cannot be told apart from a live anchor. Only the links below such an
// anchor are verified, from their own linked nodes.
func (tx *Tx[T]) Verify() error {
	a, err := tx.arena()
	if err != nil {
		return err
	}

	for i := range a.roots {
		re := &a.roots[i]
		if !re.live {
			continue
		}
		r := Root{aid: a.id, idx: uint32(i), gen: re.gen}
		if err := a.checkSlot(RootSlot(r)); err != nil {
			return err
		}
		if err := a.checkTermination(r); err != nil {
			return err
		}
	}

	for i := range a.nodes {
		e := &a.nodes[i]
		if !e.live {
			continue
		}
		h := Handle{aid: a.id, idx: uint32(i), gen: e.gen}
		if !a.linked(h, e) {
			continue
		}
		if err := a.checkSlot(SuccessorSlot(h)); err != nil {
			return err
		}
	}
	return nil
}

// checkSlot verifies that the node held by s, if any, points back at s.
func (a *Arena[T]) checkSlot(s Slot) error {
	h, err := a.load(s)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrCorrupt)
	}
	if h.IsZero() {
		return nil
	}
	e, err := a.node(h)
	if err != nil {
		return fmt.Errorf("%s holds released %s: %w", s, h, ErrCorrupt)
	}
	if e.prev != s {
		return fmt.Errorf("%s holds %s whose predecessor is %s: %w", s, h, e.prev, ErrCorrupt)
	}
	return nil
}

func (a *Arena[T]) checkTermination(r Root) error {
	h := a.roots[r.idx].head
	for steps := 0; !h.IsZero(); steps++ {
		if steps > a.live {
			return fmt.Errorf("chain of %s does not terminate: %w", r, ErrCorrupt)
		}
		e, err := a.node(h)
		if err != nil {
			return fmt.Errorf("chain of %s reaches released %s: %w", r, h, ErrCorrupt)
		}
		h = e.next
	}
	return nil
}

func (a *Arena[T]) mustConsistent(op string, s Slot) {
	if err := a.checkSlot(s); err != nil {
		panic(fmt.Sprintf("llist: inconsistent chain after %s: %v", op, err))
	}
}

// mustConsistentAround checks s, the predecessor slot of the node owning s
// and the successor slot of next. It catches corruption left next to a
// mutation site by earlier misuse.
func (a *Arena[T]) mustConsistentAround(op string, s Slot, next Handle) {
	a.mustConsistent(op, s)
	if owner, ok := s.Owner(); ok {
		if e, err := a.node(owner); err == nil && a.linked(owner, e) {
			a.mustConsistent(op, e.prev)
		}
	}
	if !next.IsZero() {
		a.mustConsistent(op, SuccessorSlot(next))
	}
}
