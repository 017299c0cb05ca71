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
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func newTx[T any](t *testing.T, opts Opts) *Tx[T] {
	t.Helper()
	opts.Debug = true
	a := NewArena[T](opts)
	tx, err := a.Begin()
	require.NoError(t, err)
	t.Cleanup(tx.End)
	return tx
}

func alloc[T any](t *testing.T, tx *Tx[T], v T) Handle {
	t.Helper()
	h, err := tx.Alloc(v)
	require.NoError(t, err)
	return h
}

func Test_referenceScenario(t *testing.T) {
	tx := newTx[string](t, Opts{})
	x := alloc(t, tx, "x")
	y := alloc(t, tx, "y")
	z := alloc(t, tx, "z")

	require.NoError(t, tx.Insert(y, SuccessorSlot(x), Handle{}))
	require.Equal(t, []Handle{x, y}, slices.Collect(tx.All(x)))

	require.NoError(t, tx.Insert(z, SuccessorSlot(x), y))
	require.Equal(t, []Handle{x, z, y}, slices.Collect(tx.All(x)))
	require.Equal(t, []Handle{y}, slices.Collect(tx.All(y)))
	require.NoError(t, tx.Verify())

	require.NoError(t, tx.Remove(z))
	require.Equal(t, []Handle{x, y}, slices.Collect(tx.All(x)))
	require.NoError(t, tx.Verify())

	require.NoError(t, tx.Insert(z, SuccessorSlot(x), y))
	require.Equal(t, []Handle{x, z, y}, slices.Collect(tx.All(x)))

	require.NoError(t, tx.Remove(z))
	require.NoError(t, tx.Remove(y))
	require.Equal(t, []Handle{x}, slices.Collect(tx.All(x)))
	require.NoError(t, tx.Verify())

	next, ok, err := tx.Successor(x)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, next.IsZero())
}

func Test_orderPreservation(t *testing.T) {
	tx := newTx[int](t, Opts{})
	r, err := tx.NewRoot()
	require.NoError(t, err)

	// Inserting after the root reverses the insertion order.
	var pushed []Handle
	for i := 0; i < 5; i++ {
		h := alloc(t, tx, i)
		require.NoError(t, tx.PushFront(r, h))
		pushed = append(pushed, h)
	}
	slices.Reverse(pushed)
	require.Equal(t, pushed, slices.Collect(tx.Chain(r)))

	// Inserting after the previously inserted node keeps it.
	r2, err := tx.NewRoot()
	require.NoError(t, err)
	at := RootSlot(r2)
	var appended []Handle
	for i := 0; i < 5; i++ {
		h := alloc(t, tx, i)
		require.NoError(t, tx.InsertAfter(h, at))
		at = SuccessorSlot(h)
		appended = append(appended, h)
	}
	require.Equal(t, appended, slices.Collect(tx.Chain(r2)))
	require.NoError(t, tx.Verify())

	var values []int
	for _, v := range tx.Values(tx.Chain(r2)) {
		values = append(values, v)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, values)
}

func Test_singleNode(t *testing.T) {
	tx := newTx[int](t, Opts{})
	r, err := tx.NewRoot()
	require.NoError(t, err)
	require.Empty(t, slices.Collect(tx.Chain(r)))

	h := alloc(t, tx, 1)
	require.NoError(t, tx.PushFront(r, h))
	require.True(t, tx.Linked(h))
	p, err := tx.Predecessor(h)
	require.NoError(t, err)
	require.Equal(t, RootSlot(r), p)

	require.NoError(t, tx.Remove(h))
	head, ok, err := tx.Head(r)
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, head.IsZero())
	require.False(t, tx.Linked(h))
	require.Empty(t, slices.Collect(tx.Chain(r)))

	require.NoError(t, tx.Release(h))
	require.NoError(t, tx.ReleaseRoot(r))
	require.Equal(t, 0, tx.Len())
}

type linkState struct {
	h    Handle
	prev Slot
	next Handle
}

func snapshot[T any](t *testing.T, tx *Tx[T], r Root) []linkState {
	t.Helper()
	var s []linkState
	for h := range tx.Chain(r) {
		prev, err := tx.Predecessor(h)
		require.NoError(t, err)
		next, _, err := tx.Successor(h)
		require.NoError(t, err)
		s = append(s, linkState{h: h, prev: prev, next: next})
	}
	return s
}

func Test_insertRemoveInverse(t *testing.T) {
	rng := newRand(1)
	for round := 0; round < 50; round++ {
		tx := newTx[int](t, Opts{})
		r, err := tx.NewRoot()
		require.NoError(t, err)

		slots := []Slot{RootSlot(r)}
		n := rng.IntN(8)
		for i := 0; i < n; i++ {
			h := alloc(t, tx, i)
			require.NoError(t, tx.InsertAfter(h, slots[rng.IntN(len(slots))]))
			slots = append(slots, SuccessorSlot(h))
		}

		before := snapshot(t, tx, r)
		for _, at := range slots {
			w := alloc(t, tx, -1)
			require.NoError(t, tx.InsertAfter(w, at))
			require.NoError(t, tx.Remove(w))
			require.NoError(t, tx.Release(w))
			require.Equal(t, before, snapshot(t, tx, r))
			require.NoError(t, tx.Verify())
		}
	}
}

// Test_randomOps runs random inserts, removes and releases over several
// roots and compares every chain against a plain slice model.
func Test_randomOps(t *testing.T) {
	rng := newRand(2)
	tx := newTx[int](t, Opts{})

	const numRoots = 3
	var roots [numRoots]Root
	var model [numRoots][]Handle
	for i := range roots {
		r, err := tx.NewRoot()
		require.NoError(t, err)
		roots[i] = r
	}
	var unlinked []Handle

	for step := 0; step < 5000; step++ {
		switch op := rng.IntN(10); {
		case op < 2 || len(unlinked) == 0:
			unlinked = append(unlinked, alloc(t, tx, step))
		case op < 6:
			h := unlinked[len(unlinked)-1]
			unlinked = unlinked[:len(unlinked)-1]
			ri := rng.IntN(numRoots)
			pos := rng.IntN(len(model[ri]) + 1)
			at := RootSlot(roots[ri])
			if pos > 0 {
				at = SuccessorSlot(model[ri][pos-1])
			}
			require.NoError(t, tx.InsertAfter(h, at))
			model[ri] = slices.Insert(model[ri], pos, h)
		case op < 9:
			ri := rng.IntN(numRoots)
			if len(model[ri]) == 0 {
				continue
			}
			pos := rng.IntN(len(model[ri]))
			h := model[ri][pos]
			require.NoError(t, tx.Remove(h))
			model[ri] = slices.Delete(model[ri], pos, pos+1)
			unlinked = append(unlinked, h)
		default:
			i := rng.IntN(len(unlinked))
			require.NoError(t, tx.Release(unlinked[i]))
			unlinked = slices.Delete(unlinked, i, i+1)
		}

		require.NoError(t, tx.Verify())
		for i := range roots {
			got := slices.Collect(tx.Chain(roots[i]))
			if len(model[i]) == 0 {
				require.Empty(t, got)
				continue
			}
			require.Equal(t, model[i], got, "step %d root %d", step, i)
		}
	}
}

func Test_errors(t *testing.T) {
	tx := newTx[string](t, Opts{})
	x := alloc(t, tx, "x")
	y := alloc(t, tx, "y")
	z := alloc(t, tx, "z")
	w := alloc(t, tx, "w")
	require.NoError(t, tx.InsertAfter(y, SuccessorSlot(x)))
	require.NoError(t, tx.InsertAfter(z, SuccessorSlot(x)))

	// x -> z -> y
	assert.ErrorIs(t, tx.InsertAfter(z, SuccessorSlot(y)), ErrLinked)
	assert.ErrorIs(t, tx.Insert(w, SuccessorSlot(x), y), ErrSuccessorMismatch)
	assert.ErrorIs(t, tx.InsertAfter(w, SuccessorSlot(w)), ErrSelfLink)
	assert.ErrorIs(t, tx.Remove(w), ErrNotLinked)
	assert.ErrorIs(t, tx.Remove(x), ErrNotLinked)
	assert.ErrorIs(t, tx.Release(z), ErrLinked)
	assert.ErrorIs(t, tx.Release(x), ErrLinked, "x still anchors z")
	assert.ErrorIs(t, tx.InsertAfter(Handle{}, SuccessorSlot(x)), ErrInvalidHandle)
	assert.ErrorIs(t, tx.InsertAfter(w, Slot{}), ErrInvalidSlot)

	// The successor field of a removed node is stale.
	require.NoError(t, tx.Remove(z))
	assert.ErrorIs(t, tx.Remove(z), ErrNotLinked)
	assert.ErrorIs(t, tx.InsertAfter(w, SuccessorSlot(z)), ErrSuccessorMismatch)

	require.NoError(t, tx.Release(z))
	_, err := tx.Value(z)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.ErrorIs(t, tx.InsertAfter(z, SuccessorSlot(x)), ErrInvalidHandle)
	assert.ErrorIs(t, tx.InsertAfter(w, SuccessorSlot(z)), ErrInvalidSlot)
	assert.ErrorIs(t, tx.Release(z), ErrInvalidHandle)

	// A reused index does not revive the old handle.
	v := alloc(t, tx, "v")
	require.Equal(t, z.Index(), v.Index())
	_, err = tx.Value(z)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	r, err := tx.NewRoot()
	require.NoError(t, err)
	require.NoError(t, tx.PushFront(r, w))
	assert.ErrorIs(t, tx.ReleaseRoot(r), ErrRootNotEmpty)
	require.NoError(t, tx.Remove(w))
	require.NoError(t, tx.ReleaseRoot(r))
	assert.ErrorIs(t, tx.ReleaseRoot(r), ErrInvalidRoot)
	_, _, err = tx.Head(r)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	assert.ErrorIs(t, tx.PushFront(r, w), ErrInvalidSlot)

	require.NoError(t, tx.Verify())
}

func Test_values(t *testing.T) {
	tx := newTx[string](t, Opts{})
	h := alloc(t, tx, "a")
	require.NoError(t, tx.SetValue(h, "b"))
	require.NoError(t, tx.Modify(h, func(v *string) { *v += "c" }))
	v, err := tx.Value(h)
	require.NoError(t, err)
	require.Equal(t, "bc", v)
}

func Test_capacity(t *testing.T) {
	tx := newTx[int](t, Opts{Capacity: 2})
	a := alloc(t, tx, 1)
	alloc(t, tx, 2)
	_, err := tx.Alloc(3)
	require.ErrorIs(t, err, ErrArenaFull)
	require.NoError(t, tx.Release(a))
	alloc(t, tx, 3)
	require.Equal(t, 2, tx.Len())
}

func Test_foreignArena(t *testing.T) {
	txA := newTx[string](t, Opts{})
	txB := newTx[string](t, Opts{})
	ha := alloc(t, txA, "a-node")
	hb := alloc(t, txB, "b-node")
	require.Equal(t, ha.Index(), hb.Index())
	ra, err := txA.NewRoot()
	require.NoError(t, err)
	rb, err := txB.NewRoot()
	require.NoError(t, err)

	require.ErrorIs(t, txB.PushFront(rb, ha), ErrInvalidHandle)
	require.ErrorIs(t, txB.PushFront(ra, hb), ErrInvalidSlot)
	require.ErrorIs(t, txB.InsertAfter(hb, SuccessorSlot(ha)), ErrInvalidSlot)
	_, err = txB.Value(ha)
	require.ErrorIs(t, err, ErrInvalidHandle)
	_, _, err = txB.Head(ra)
	require.ErrorIs(t, err, ErrInvalidSlot)
	require.ErrorIs(t, txB.ReleaseRoot(ra), ErrInvalidRoot)
	require.ErrorIs(t, txB.Release(ha), ErrInvalidHandle)
	require.False(t, txB.Linked(ha))

	v, err := txB.Value(hb)
	require.NoError(t, err)
	require.Equal(t, "b-node", v)
	require.Equal(t, 1, txA.Len())
	require.Equal(t, 1, txB.Len())
}

func Test_generationRetired(t *testing.T) {
	tx := newTx[int](t, Opts{})
	h := alloc(t, tx, 0)
	tx.a.nodes[h.idx].gen = math.MaxUint32
	h.gen = math.MaxUint32
	require.NoError(t, tx.Release(h))

	n := alloc(t, tx, 1)
	require.NotEqual(t, h.Index(), n.Index(), "a used up index is not reused")
	_, err := tx.Value(h)
	require.ErrorIs(t, err, ErrInvalidHandle)
	require.Equal(t, 1, tx.Len())

	r, err := tx.NewRoot()
	require.NoError(t, err)
	tx.a.roots[r.idx].gen = math.MaxUint32
	r.gen = math.MaxUint32
	require.NoError(t, tx.ReleaseRoot(r))
	r2, err := tx.NewRoot()
	require.NoError(t, err)
	require.NotEqual(t, r.idx, r2.idx)
	require.NoError(t, tx.Verify())
}

func Test_exclusiveAccess(t *testing.T) {
	a := NewArena[int](Opts{})
	tx, err := a.Begin()
	require.NoError(t, err)

	_, err = a.Begin()
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, a.Update(func(*Tx[int]) error { return nil }), ErrBusy)

	h := alloc(t, tx, 1)
	tx.End()
	tx.End()

	_, err = tx.Alloc(2)
	require.ErrorIs(t, err, ErrTxDone)
	_, err = tx.Value(h)
	require.ErrorIs(t, err, ErrTxDone)
	require.False(t, tx.Linked(h))
	require.Equal(t, 0, tx.Len())

	err = a.Update(func(tx *Tx[int]) error {
		v, err := tx.Value(h)
		require.NoError(t, err)
		require.Equal(t, 1, v)
		return ErrCorrupt
	})
	require.ErrorIs(t, err, ErrCorrupt)

	tx2, err := a.Begin()
	require.NoError(t, err)
	tx2.End()
}

func Test_iteratorLaziness(t *testing.T) {
	tx := newTx[string](t, Opts{})
	r, err := tx.NewRoot()
	require.NoError(t, err)
	build := func(names ...string) []Handle {
		hs := make([]Handle, len(names))
		at := RootSlot(r)
		for i, n := range names {
			hs[i] = alloc(t, tx, n)
			require.NoError(t, tx.InsertAfter(hs[i], at))
			at = SuccessorSlot(hs[i])
		}
		return hs
	}
	drain := func() {
		for _, h := range slices.Collect(tx.Chain(r)) {
			require.NoError(t, tx.Remove(h))
			require.NoError(t, tx.Release(h))
		}
	}
	next := func(it *Iterator[string]) Handle {
		h, ok := it.Next()
		require.True(t, ok)
		return h
	}

	t.Run("remove ahead", func(t *testing.T) {
		hs := build("a", "b", "c")
		it := tx.Iter(hs[0])
		require.Equal(t, hs[0], next(&it))
		require.NoError(t, tx.Remove(hs[1]))
		require.Equal(t, hs[2], next(&it))
		_, ok := it.Next()
		require.False(t, ok)
		require.NoError(t, tx.Release(hs[1]))
		drain()
	})

	t.Run("insert ahead", func(t *testing.T) {
		hs := build("a", "b")
		it := tx.Iter(hs[0])
		require.Equal(t, hs[0], next(&it))
		d := alloc(t, tx, "d")
		require.NoError(t, tx.InsertAfter(d, SuccessorSlot(hs[0])))
		require.Equal(t, d, next(&it))
		require.Equal(t, hs[1], next(&it))
		drain()
	})

	t.Run("remove yielded", func(t *testing.T) {
		hs := build("a", "b", "c")
		var seen []Handle
		for h := range tx.Chain(r) {
			seen = append(seen, h)
			require.NoError(t, tx.Remove(h))
		}
		require.Equal(t, hs, seen)
		require.Empty(t, slices.Collect(tx.Chain(r)))
		for _, h := range hs {
			require.NoError(t, tx.Release(h))
		}
	})

	t.Run("release yielded", func(t *testing.T) {
		hs := build("a", "b")
		it := tx.Iter(hs[0])
		require.Equal(t, hs[0], next(&it))
		require.NoError(t, tx.Remove(hs[0]))
		require.NoError(t, tx.Release(hs[0]))
		_, ok := it.Next()
		require.False(t, ok)
		drain()
	})

	t.Run("restart", func(t *testing.T) {
		hs := build("a", "b")
		it := tx.Iter(hs[0])
		copied := it
		require.Equal(t, hs[0], next(&it))
		require.Equal(t, hs[1], next(&it))
		require.Equal(t, hs[0], next(&copied))
		drain()
	})

	t.Run("early break", func(t *testing.T) {
		hs := build("a", "b", "c")
		var seen []Handle
		for h := range tx.All(hs[0]) {
			seen = append(seen, h)
			if len(seen) == 2 {
				break
			}
		}
		require.Equal(t, hs[:2], seen)
		drain()
	})
}

func Test_iteratorStopsOnEndedTx(t *testing.T) {
	a := NewArena[int](Opts{})
	tx, err := a.Begin()
	require.NoError(t, err)
	x := alloc(t, tx, 0)
	y := alloc(t, tx, 1)
	require.NoError(t, tx.InsertAfter(y, SuccessorSlot(x)))

	it := tx.Iter(x)
	_, ok := it.Next()
	require.True(t, ok)
	tx.End()
	_, ok = it.Next()
	require.False(t, ok)
}

func Test_ring(t *testing.T) {
	tx := newTx[string](t, Opts{})
	s := alloc(t, tx, "sentinel")
	require.NoError(t, tx.InitRing(s))
	require.Empty(t, slices.Collect(tx.Ring(s)))
	require.ErrorIs(t, tx.Remove(s), ErrSelfLink)
	require.ErrorIs(t, tx.InitRing(s), ErrLinked)

	a := alloc(t, tx, "a")
	b := alloc(t, tx, "b")
	require.NoError(t, tx.InsertAfter(a, SuccessorSlot(s)))
	require.NoError(t, tx.InsertAfter(b, SuccessorSlot(a)))
	require.Equal(t, []Handle{a, b}, slices.Collect(tx.Ring(s)))
	require.NoError(t, tx.Verify())

	// A plain walk of a ring never ends.
	var walked []Handle
	for h := range tx.All(a) {
		walked = append(walked, h)
		if len(walked) == 5 {
			break
		}
	}
	require.Equal(t, []Handle{a, b, s, a, b}, walked)

	require.NoError(t, tx.Remove(a))
	require.Equal(t, []Handle{b}, slices.Collect(tx.Ring(s)))
	require.NoError(t, tx.Remove(b))
	require.Empty(t, slices.Collect(tx.Ring(s)))
	require.NoError(t, tx.Verify())
	require.NoError(t, tx.InitRing(a))
}

func Test_slotAccessors(t *testing.T) {
	tx := newTx[int](t, Opts{})
	h := alloc(t, tx, 0)
	r, err := tx.NewRoot()
	require.NoError(t, err)

	owner, ok := SuccessorSlot(h).Owner()
	require.True(t, ok)
	require.Equal(t, h, owner)
	_, ok = SuccessorSlot(h).Root()
	require.False(t, ok)

	root, ok := RootSlot(r).Root()
	require.True(t, ok)
	require.Equal(t, r, root)
	_, ok = RootSlot(r).Owner()
	require.False(t, ok)

	require.True(t, SuccessorSlot(Handle{}).IsZero())
	require.True(t, RootSlot(Root{}).IsZero())
	require.Equal(t, "node(nil)", Handle{}.String())
	require.Equal(t, h.String()+".next", SuccessorSlot(h).String())
}

func Test_rejectionsAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tx := newTx[int](t, Opts{Logger: zap.New(core)})
	h := alloc(t, tx, 0)
	require.ErrorIs(t, tx.Remove(h), ErrNotLinked)

	entries := logs.FilterMessage("remove rejected").All()
	require.Len(t, entries, 1)
	require.Equal(t, h.String(), entries[0].ContextMap()["node"])
}

func Test_debugAssertion(t *testing.T) {
	tx := newTx[int](t, Opts{})
	x := alloc(t, tx, 0)
	y := alloc(t, tx, 1)
	require.NoError(t, tx.InsertAfter(y, SuccessorSlot(x)))

	// Corrupt the back-reference behind the arena's back.
	tx.a.nodes[y.idx].prev = Slot{}
	require.NoError(t, tx.Verify(), "y is no longer linked, so nothing to check")

	r, err := tx.NewRoot()
	require.NoError(t, err)
	z := alloc(t, tx, 2)
	require.NoError(t, tx.PushFront(r, z))
	tx.a.nodes[z.idx].prev = SuccessorSlot(x)
	require.ErrorIs(t, tx.Verify(), ErrCorrupt)

	// The debug check looks past the mutated slots.
	tx.a.nodes[z.idx].prev = RootSlot(r)
	q := alloc(t, tx, 3)
	require.NoError(t, tx.InsertAfter(q, SuccessorSlot(z)))
	tx.a.nodes[q.idx].prev = RootSlot(r)
	w := alloc(t, tx, 4)
	require.Panics(t, func() {
		_ = tx.InsertAfter(w, RootSlot(r))
	})
}
