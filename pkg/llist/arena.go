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

// Package llist implements an intrusive singly linked list whose nodes
// carry a back-reference to the slot that points at them, which makes
// insertion and removal O(1) without any traversal.
//
// Nodes live in an Arena and are addressed by stable handles, so the
// storage of a linked node never moves under its neighbours. All access
// goes through a Tx, the single token proving exclusive use of the arena.
// Nothing in this package blocks, and nothing is synchronized beyond that
// token: hosts used from several goroutines must serialize on their own.
package llist

import (
	"fmt"
	"math"
	"sync/atomic"

	"go.uber.org/zap"
)

var nopLogger = zap.NewNop()

// arenaID hands out the ids that tie handles to their arena.
var arenaID atomic.Uint32

type Opts struct {
	// Capacity limits the number of live nodes. Zero means no limit.
	Capacity int

	// Logger optionally logs rejected operations at debug level.
	// A nil Logger disables the logging.
	Logger *zap.Logger

	// Debug re-checks the neighbourhood of every mutated node and panics
	// if the back-references are inconsistent. Meant for tests.
	Debug bool
}

func (opts *Opts) init() {
	if opts.Logger == nil {
		opts.Logger = nopLogger
	}
	if opts.Capacity < 0 {
		opts.Capacity = 0
	}
}

type entry[T any] struct {
	gen  uint32
	live bool
	next Handle
	prev Slot
	v    T
}

type rootEntry struct {
	gen  uint32
	live bool
	head Handle
}

// Arena stores nodes and root slots. Its zero value is not usable,
// use NewArena. Handles and roots carry the id of their arena, and are
// rejected by any other arena.
type Arena[T any] struct {
	id   uint32
	opts Opts
	held atomic.Bool

	nodes     []entry[T]
	freeNodes []uint32
	live      int

	roots     []rootEntry
	freeRoots []uint32
}

func NewArena[T any](opts Opts) *Arena[T] {
	opts.init()
	id := arenaID.Add(1)
	if id == 0 {
		id = arenaID.Add(1)
	}
	return &Arena[T]{id: id, opts: opts}
}

// Begin returns the access token of a. It fails with ErrBusy if another
// token is live. It never blocks.
func (a *Arena[T]) Begin() (*Tx[T], error) {
	if !a.held.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return &Tx[T]{a: a}, nil
}

// Update runs fn with a fresh token and ends it afterwards.
func (a *Arena[T]) Update(fn func(tx *Tx[T]) error) error {
	tx, err := a.Begin()
	if err != nil {
		return err
	}
	defer tx.End()
	return fn(tx)
}

// Tx is the proof of exclusive access to an Arena. Every operation on
// nodes, roots and chains is a method of Tx. A Tx must not be shared
// between goroutines.
type Tx[T any] struct {
	a    *Arena[T]
	done bool
}

// End gives the token back to the arena. Later calls on tx fail with
// ErrTxDone. End is idempotent.
func (tx *Tx[T]) End() {
	if tx.done {
		return
	}
	tx.done = true
	tx.a.held.Store(false)
}

func (tx *Tx[T]) arena() (*Arena[T], error) {
	if tx == nil || tx.done {
		return nil, ErrTxDone
	}
	return tx.a, nil
}

// Len returns the number of live (allocated) nodes, linked or not.
func (tx *Tx[T]) Len() int {
	a, err := tx.arena()
	if err != nil {
		return 0
	}
	return a.live
}

// Alloc allocates the storage of a new node holding v. The node is not
// part of any chain.
func (tx *Tx[T]) Alloc(v T) (Handle, error) {
	a, err := tx.arena()
	if err != nil {
		return Handle{}, err
	}
	if a.opts.Capacity > 0 && a.live >= a.opts.Capacity {
		return Handle{}, a.reject("alloc", ErrArenaFull, zap.Int("capacity", a.opts.Capacity))
	}

	var idx uint32
	if n := len(a.freeNodes); n > 0 {
		idx = a.freeNodes[n-1]
		a.freeNodes = a.freeNodes[:n-1]
	} else {
		a.nodes = append(a.nodes, entry[T]{gen: 1})
		idx = uint32(len(a.nodes) - 1)
	}
	e := &a.nodes[idx]
	e.live = true
	e.next = Handle{}
	e.prev = Slot{}
	e.v = v
	a.live++
	return Handle{aid: a.id, idx: idx, gen: e.gen}, nil
}

// Release frees the storage of h. h must not be linked, and must not
// still be the head of a fragment whose next node points back at it.
// Handles to a released node are rejected with ErrInvalidHandle. An index
// that has been reused 2^32-1 times is never handed out again.
func (tx *Tx[T]) Release(h Handle) error {
	a, err := tx.arena()
	if err != nil {
		return err
	}
	e, err := a.node(h)
	if err != nil {
		return a.reject("release", err, zap.Stringer("node", h))
	}
	if a.linked(h, e) || a.headsFragment(h, e) {
		return a.reject("release", ErrLinked, zap.Stringer("node", h))
	}

	var zero T
	e.v = zero
	e.next = Handle{}
	e.prev = Slot{}
	e.live = false
	a.live--
	// An index whose generation is used up is retired, so that no
	// stale handle can ever match it again.
	if e.gen == math.MaxUint32 {
		return nil
	}
	e.gen++
	a.freeNodes = append(a.freeNodes, h.idx)
	return nil
}

// NewRoot allocates an empty external root slot.
func (tx *Tx[T]) NewRoot() (Root, error) {
	a, err := tx.arena()
	if err != nil {
		return Root{}, err
	}
	var idx uint32
	if n := len(a.freeRoots); n > 0 {
		idx = a.freeRoots[n-1]
		a.freeRoots = a.freeRoots[:n-1]
	} else {
		a.roots = append(a.roots, rootEntry{gen: 1})
		idx = uint32(len(a.roots) - 1)
	}
	re := &a.roots[idx]
	re.live = true
	re.head = Handle{}
	return Root{aid: a.id, idx: idx, gen: re.gen}, nil
}

// ReleaseRoot frees r. The chain r anchors must be empty.
func (tx *Tx[T]) ReleaseRoot(r Root) error {
	a, err := tx.arena()
	if err != nil {
		return err
	}
	re, err := a.root(r)
	if err != nil {
		return a.reject("release root", err, zap.Stringer("root", r))
	}
	if !re.head.IsZero() {
		return a.reject("release root", ErrRootNotEmpty, zap.Stringer("root", r))
	}
	re.live = false
	if re.gen == math.MaxUint32 {
		return nil
	}
	re.gen++
	a.freeRoots = append(a.freeRoots, r.idx)
	return nil
}

// Head returns the first node of the chain anchored at r.
func (tx *Tx[T]) Head(r Root) (Handle, bool, error) {
	h, err := tx.Load(RootSlot(r))
	if err != nil {
		return Handle{}, false, err
	}
	return h, !h.IsZero(), nil
}

// Load returns the node currently held by s, the zero Handle if s is empty.
func (tx *Tx[T]) Load(s Slot) (Handle, error) {
	a, err := tx.arena()
	if err != nil {
		return Handle{}, err
	}
	return a.load(s)
}

// Successor returns the node following h. For a node that was removed
// and not re-inserted the result is stale.
func (tx *Tx[T]) Successor(h Handle) (Handle, bool, error) {
	a, err := tx.arena()
	if err != nil {
		return Handle{}, false, err
	}
	e, err := a.node(h)
	if err != nil {
		return Handle{}, false, err
	}
	return e.next, !e.next.IsZero(), nil
}

// Predecessor returns the slot recorded as pointing at h.
// It is the zero Slot for a node that was never inserted.
func (tx *Tx[T]) Predecessor(h Handle) (Slot, error) {
	a, err := tx.arena()
	if err != nil {
		return Slot{}, err
	}
	e, err := a.node(h)
	if err != nil {
		return Slot{}, err
	}
	return e.prev, nil
}

// Linked reports whether h currently belongs to a chain, that is,
// whether its recorded predecessor slot still holds h.
func (tx *Tx[T]) Linked(h Handle) bool {
	a, err := tx.arena()
	if err != nil {
		return false
	}
	e, err := a.node(h)
	if err != nil {
		return false
	}
	return a.linked(h, e)
}

func (tx *Tx[T]) Value(h Handle) (T, error) {
	var zero T
	a, err := tx.arena()
	if err != nil {
		return zero, err
	}
	e, err := a.node(h)
	if err != nil {
		return zero, err
	}
	return e.v, nil
}

func (tx *Tx[T]) SetValue(h Handle, v T) error {
	return tx.Modify(h, func(p *T) { *p = v })
}

// Modify calls fn with a pointer to h's value. The pointer must not be
// retained after fn returns: the arena may grow and move its storage.
func (tx *Tx[T]) Modify(h Handle, fn func(v *T)) error {
	a, err := tx.arena()
	if err != nil {
		return err
	}
	e, err := a.node(h)
	if err != nil {
		return err
	}
	fn(&e.v)
	return nil
}

func (a *Arena[T]) node(h Handle) (*entry[T], error) {
	if h.IsZero() || h.aid != a.id || int(h.idx) >= len(a.nodes) {
		return nil, fmt.Errorf("%s: %w", h, ErrInvalidHandle)
	}
	e := &a.nodes[h.idx]
	if !e.live || e.gen != h.gen {
		return nil, fmt.Errorf("%s: %w", h, ErrInvalidHandle)
	}
	return e, nil
}

func (a *Arena[T]) root(r Root) (*rootEntry, error) {
	if r.IsZero() || r.aid != a.id || int(r.idx) >= len(a.roots) {
		return nil, fmt.Errorf("%s: %w", r, ErrInvalidRoot)
	}
	re := &a.roots[r.idx]
	if !re.live || re.gen != r.gen {
		return nil, fmt.Errorf("%s: %w", r, ErrInvalidRoot)
	}
	return re, nil
}

func (a *Arena[T]) load(s Slot) (Handle, error) {
	switch s.kind {
	case slotRoot:
		r, _ := s.Root()
		re, err := a.root(r)
		if err != nil {
			return Handle{}, fmt.Errorf("%s: %w", s, ErrInvalidSlot)
		}
		return re.head, nil
	case slotSuccessor:
		h, _ := s.Owner()
		e, err := a.node(h)
		if err != nil {
			return Handle{}, fmt.Errorf("%s: %w", s, ErrInvalidSlot)
		}
		return e.next, nil
	default:
		return Handle{}, fmt.Errorf("%s: %w", s, ErrInvalidSlot)
	}
}

// store writes h into s. s must have been resolved by load before.
func (a *Arena[T]) store(s Slot, h Handle) {
	switch s.kind {
	case slotRoot:
		a.roots[s.idx].head = h
	case slotSuccessor:
		a.nodes[s.idx].next = h
	default:
		panic(fmt.Sprintf("llist: store into %s", s))
	}
}

func (a *Arena[T]) linked(h Handle, e *entry[T]) bool {
	if e.prev.IsZero() {
		return false
	}
	cur, err := a.load(e.prev)
	return err == nil && cur == h
}

// headsFragment reports whether h's successor still records h's successor
// slot as its predecessor. A node used as the anchor of a chain is in that
// state while having no predecessor itself.
func (a *Arena[T]) headsFragment(h Handle, e *entry[T]) bool {
	if e.next.IsZero() {
		return false
	}
	ne, err := a.node(e.next)
	return err == nil && ne.prev == SuccessorSlot(h)
}

func (a *Arena[T]) reject(op string, err error, fields ...zap.Field) error {
	if ce := a.opts.Logger.Check(zap.DebugLevel, op+" rejected"); ce != nil {
		ce.Write(append(fields, zap.Error(err))...)
	}
	return err
}
