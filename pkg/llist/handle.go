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

// Handle identifies a node stored in an Arena.
// The zero Handle is never a valid node and stands for "no node",
// e.g. the successor of the last node of a chain.
// A Handle is only valid in the Arena that allocated it.
type Handle struct {
	aid uint32 // id of the owning arena
	idx uint32
	gen uint32 // 0 for the zero Handle, >= 1 for allocated nodes
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

// Index returns the arena index of h. It is only meaningful for logging.
func (h Handle) Index() int {
	return int(h.idx)
}

func (h Handle) String() string {
	if h.IsZero() {
		return "node(nil)"
	}
	return fmt.Sprintf("node#%d.%d", h.idx, h.gen)
}

// Root identifies an external root slot stored in an Arena.
// A root holds the first node of a chain, or nothing.
type Root struct {
	aid uint32
	idx uint32
	gen uint32
}

// IsZero reports whether r is the zero Root.
func (r Root) IsZero() bool {
	return r.gen == 0
}

func (r Root) String() string {
	if r.IsZero() {
		return "root(nil)"
	}
	return fmt.Sprintf("root#%d.%d", r.idx, r.gen)
}

type slotKind uint8

const (
	slotNone slotKind = iota
	slotRoot
	slotSuccessor
)

// Slot is a storage location that holds an optional Handle. It is either
// an external Root, or the successor field of a node.
//
// A linked node records the Slot that currently points at it. That is
// what makes Remove O(1): the predecessor is never searched for.
type Slot struct {
	kind slotKind
	aid  uint32
	idx  uint32
	gen  uint32
}

// RootSlot returns the Slot of root r.
func RootSlot(r Root) Slot {
	if r.IsZero() {
		return Slot{}
	}
	return Slot{kind: slotRoot, aid: r.aid, idx: r.idx, gen: r.gen}
}

// SuccessorSlot returns the Slot of h's own successor field.
// Inserting into it places a node right after h.
func SuccessorSlot(h Handle) Slot {
	if h.IsZero() {
		return Slot{}
	}
	return Slot{kind: slotSuccessor, aid: h.aid, idx: h.idx, gen: h.gen}
}

// IsZero reports whether s designates nothing.
func (s Slot) IsZero() bool {
	return s.kind == slotNone
}

// Owner returns the node whose successor field s is.
// For a linked node, the owner of its predecessor slot is the previous node.
func (s Slot) Owner() (Handle, bool) {
	if s.kind != slotSuccessor {
		return Handle{}, false
	}
	return Handle{aid: s.aid, idx: s.idx, gen: s.gen}, true
}

// Root returns the root s designates, if s is a root slot.
func (s Slot) Root() (Root, bool) {
	if s.kind != slotRoot {
		return Root{}, false
	}
	return Root{aid: s.aid, idx: s.idx, gen: s.gen}, true
}

func (s Slot) String() string {
	switch s.kind {
	case slotRoot:
		r, _ := s.Root()
		return r.String()
	case slotSuccessor:
		h, _ := s.Owner()
		return h.String() + ".next"
	default:
		return "slot(nil)"
	}
}
