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

// Package freelist is a size class block allocator over one byte region.
// Each size class keeps its free blocks on an llist chain, so freeing and
// reusing a block never walks anything.
package freelist

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/constraints"

	"github.com/pmkol/llist/pkg/llist"
)

const (
	defaultMinBlock = 16
	defaultMaxBlock = 4096
)

var (
	ErrDoubleFree   = errors.New("block is already free")
	ErrInvalidBlock = errors.New("block does not belong to this allocator")
	ErrOutOfMemory  = errors.New("region is exhausted")
	ErrTooLarge     = errors.New("size exceeds the largest block class")
)

type Opts struct {
	// Size is the region size in bytes. Required.
	Size int

	// MinBlock and MaxBlock bound the size classes. Both must be powers
	// of two. Default 16 and 4096.
	MinBlock int
	MaxBlock int

	Logger *zap.Logger
}

func (opts *Opts) init() error {
	if opts.MinBlock <= 0 {
		opts.MinBlock = defaultMinBlock
	}
	if opts.MaxBlock <= 0 {
		opts.MaxBlock = defaultMaxBlock
	}
	if !isPow2(opts.MinBlock) || !isPow2(opts.MaxBlock) {
		return fmt.Errorf("block sizes must be powers of two, got %d and %d", opts.MinBlock, opts.MaxBlock)
	}
	if opts.MinBlock > opts.MaxBlock {
		return fmt.Errorf("min block %d is larger than max block %d", opts.MinBlock, opts.MaxBlock)
	}
	if opts.Size <= 0 {
		return fmt.Errorf("invalid region size %d", opts.Size)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return nil
}

// Block is an allocated piece of the region. Its Size is the size of its
// class, which may exceed the requested size.
type Block struct {
	Offset uint64
	Size   uint64
	h      llist.Handle
	epoch  uint64
}

type blockInfo struct {
	off   uint64
	class int
	epoch uint64 // bumped each time the block is handed out again
}

// Allocator is safe for concurrent use.
type Allocator struct {
	opts     Opts
	minShift int
	logger   *zap.Logger
	m        *metrics

	mu      sync.Mutex
	region  []byte
	arena   *llist.Arena[blockInfo]
	classes []llist.Root
	free    []int          // free blocks per class
	carved  []llist.Handle // every block ever carved
	next    uint64         // first uncarved byte
	inUse   int
}

func New(opts Opts) (*Allocator, error) {
	if err := opts.init(); err != nil {
		return nil, err
	}
	minShift := bits.TrailingZeros(uint(opts.MinBlock))
	nClass := bits.TrailingZeros(uint(opts.MaxBlock)) - minShift + 1

	a := &Allocator{
		opts:     opts,
		minShift: minShift,
		logger:   opts.Logger,
		m:        newMetrics(),
		region:   make([]byte, opts.Size),
		arena:    llist.NewArena[blockInfo](llist.Opts{Logger: opts.Logger}),
		classes:  make([]llist.Root, nClass),
		free:     make([]int, nClass),
	}
	err := a.arena.Update(func(tx *llist.Tx[blockInfo]) error {
		for i := range a.classes {
			r, err := tx.NewRoot()
			if err != nil {
				return err
			}
			a.classes[i] = r
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init size classes, %w", err)
	}
	return a, nil
}

func (a *Allocator) classOf(size int) (int, error) {
	if size <= 0 {
		size = 1
	}
	if size > a.opts.MaxBlock {
		return 0, fmt.Errorf("%d bytes: %w", size, ErrTooLarge)
	}
	shift := bits.Len(uint(size - 1))
	if shift < a.minShift {
		shift = a.minShift
	}
	return shift - a.minShift, nil
}

func (a *Allocator) classSize(class int) uint64 {
	return 1 << (a.minShift + class)
}

// Alloc returns a block of at least size bytes. The most recently freed
// block of the class is reused first. A fresh block is carved from the
// region, aligned to its own size, only if the class has none free.
func (a *Allocator) Alloc(size int) (Block, error) {
	class, err := a.classOf(size)
	if err != nil {
		return Block{}, err
	}
	bs := a.classSize(class)

	a.mu.Lock()
	defer a.mu.Unlock()

	var b Block
	err = a.arena.Update(func(tx *llist.Tx[blockInfo]) error {
		h, ok, err := tx.Head(a.classes[class])
		if err != nil {
			return err
		}
		if ok {
			if err := tx.Remove(h); err != nil {
				return err
			}
			var info blockInfo
			err := tx.Modify(h, func(v *blockInfo) {
				v.epoch++
				info = *v
			})
			if err != nil {
				return err
			}
			a.free[class]--
			b = Block{Offset: info.off, Size: bs, h: h, epoch: info.epoch}
			return nil
		}

		off := alignUp(a.next, bs)
		if off+bs > uint64(len(a.region)) {
			return fmt.Errorf("%d bytes of class %d: %w", size, bs, ErrOutOfMemory)
		}
		h, err = tx.Alloc(blockInfo{off: off, class: class})
		if err != nil {
			return err
		}
		a.carved = append(a.carved, h)
		a.next = off + bs
		a.m.carvedBytes.Set(float64(a.next))
		b = Block{Offset: off, Size: bs, h: h}
		return nil
	})
	if err != nil {
		a.logger.Debug("alloc failed", zap.Int("size", size), zap.Error(err))
		return Block{}, err
	}
	a.inUse++
	a.m.allocs.Inc()
	a.m.freeBlocks.WithLabelValues(strconv.FormatUint(bs, 10)).Set(float64(a.free[class]))
	return b, nil
}

// Free gives b back to its class. Freeing a block twice fails with
// ErrDoubleFree, also when the block has been handed out again since.
// A block from before a Reset fails with ErrInvalidBlock.
func (a *Allocator) Free(b Block) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var class int
	err := a.arena.Update(func(tx *llist.Tx[blockInfo]) error {
		info, err := tx.Value(b.h)
		if err != nil {
			return err
		}
		if info.off != b.Offset || a.classSize(info.class) != b.Size {
			return fmt.Errorf("block %d: %w", b.Offset, ErrInvalidBlock)
		}
		if info.epoch != b.epoch {
			return fmt.Errorf("block %d was reallocated: %w", b.Offset, ErrDoubleFree)
		}
		class = info.class
		return tx.PushFront(a.classes[class], b.h)
	})
	switch {
	case err == nil:
	case errors.Is(err, llist.ErrLinked):
		err = fmt.Errorf("block %d: %w", b.Offset, ErrDoubleFree)
	case errors.Is(err, llist.ErrInvalidHandle):
		err = fmt.Errorf("block %d: %w", b.Offset, ErrInvalidBlock)
	}
	if err != nil {
		a.logger.Debug("free rejected", zap.Uint64("offset", b.Offset), zap.Error(err))
		return err
	}
	a.free[class]++
	a.inUse--
	a.m.frees.Inc()
	a.m.freeBlocks.WithLabelValues(strconv.FormatUint(b.Size, 10)).Set(float64(a.free[class]))
	return nil
}

// Bytes returns the region memory of b.
func (a *Allocator) Bytes(b Block) []byte {
	return a.region[b.Offset : b.Offset+b.Size : b.Offset+b.Size]
}

type ClassStats struct {
	BlockSize int
	Free      int
}

type Stats struct {
	RegionSize int
	Carved     int
	InUse      int
	Classes    []ClassStats
}

func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := Stats{
		RegionSize: len(a.region),
		Carved:     int(a.next),
		InUse:      a.inUse,
		Classes:    make([]ClassStats, len(a.classes)),
	}
	for i := range a.classes {
		s.Classes[i] = ClassStats{BlockSize: int(a.classSize(i)), Free: a.free[i]}
	}
	return s
}

// Reset forgets every block. Blocks handed out before are invalid
// afterwards.
func (a *Allocator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.arena.Update(func(tx *llist.Tx[blockInfo]) error {
		for _, h := range a.carved {
			if tx.Linked(h) {
				if err := tx.Remove(h); err != nil {
					return err
				}
			}
			if err := tx.Release(h); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset allocator, %w", err)
	}
	a.carved = a.carved[:0]
	clear(a.free)
	a.next = 0
	a.inUse = 0
	a.m.carvedBytes.Set(0)
	a.m.freeBlocks.Reset()
	return nil
}

func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// alignUp rounds n up to a multiple of align, which must be a power of two.
func alignUp[T constraints.Unsigned](n, align T) T {
	return (n + align - 1) &^ (align - 1)
}
