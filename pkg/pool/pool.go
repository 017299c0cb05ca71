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

package pool

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pmkol/llist/pkg/llist"
)

const defaultMaxIdle = 16

var (
	ErrPoolClosed    = errors.New("pool is closed")
	ErrDoubleRelease = errors.New("lease was already returned")
	ErrInvalidLease  = errors.New("lease does not belong to this pool")
)

type Opts[V any] struct {
	// New creates an object when no idle one is available. Required.
	New func() (V, error)

	// Destroy, if not nil, is called for every object the pool drops.
	Destroy func(v V)

	// MaxIdle caps the idle chain. Objects returned beyond it are
	// destroyed. Default 16.
	MaxIdle int

	// IdleTimeout is how long an object may sit idle before Clean drops it.
	// Zero keeps idle objects forever.
	IdleTimeout time.Duration

	// CleanerInterval starts a goroutine calling Clean periodically.
	// Zero disables it.
	CleanerInterval time.Duration

	Logger *zap.Logger
}

type object[V any] struct {
	v     V
	since time.Time
	epoch uint64 // bumped each time the object is leased again
}

// Lease is an object taken from a Pool. It must be given back with Put
// exactly once.
type Lease[V any] struct {
	p     *Pool[V]
	h     llist.Handle
	v     V
	epoch uint64
}

func (l Lease[V]) Value() V {
	return l.v
}

// Pool keeps idle objects on an llist chain, most recently returned
// first. It is safe for concurrent use.
type Pool[V any] struct {
	opts   Opts[V]
	logger *zap.Logger
	m      *metrics

	mu     sync.Mutex
	arena  *llist.Arena[object[V]]
	idle   llist.Root
	nIdle  int
	closed bool

	closeCleanerChan chan struct{}
	cleanerDone      chan struct{}
}

func New[V any](opts Opts[V]) (*Pool[V], error) {
	if opts.New == nil {
		return nil, errors.New("missing object constructor")
	}
	if opts.MaxIdle <= 0 {
		opts.MaxIdle = defaultMaxIdle
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	p := &Pool[V]{
		opts:             opts,
		logger:           opts.Logger,
		m:                newMetrics(),
		arena:            llist.NewArena[object[V]](llist.Opts{Logger: opts.Logger}),
		closeCleanerChan: make(chan struct{}),
	}
	err := p.arena.Update(func(tx *llist.Tx[object[V]]) error {
		r, err := tx.NewRoot()
		p.idle = r
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init idle chain, %w", err)
	}

	if opts.CleanerInterval > 0 {
		p.cleanerDone = make(chan struct{})
		go p.startCleaner(opts.CleanerInterval)
	}
	return p, nil
}

// Get returns the most recently returned idle object, or a new one.
func (p *Pool[V]) Get() (Lease[V], error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Lease[V]{}, ErrPoolClosed
	}
	var l Lease[V]
	var hit bool
	err := p.arena.Update(func(tx *llist.Tx[object[V]]) error {
		h, ok, err := tx.Head(p.idle)
		if err != nil || !ok {
			return err
		}
		if err := tx.Remove(h); err != nil {
			return err
		}
		var o object[V]
		err = tx.Modify(h, func(v *object[V]) {
			v.epoch++
			o = *v
		})
		if err != nil {
			return err
		}
		l = Lease[V]{p: p, h: h, v: o.v, epoch: o.epoch}
		hit = true
		return nil
	})
	if hit {
		p.nIdle--
		p.m.idle.Set(float64(p.nIdle))
	}
	p.mu.Unlock()

	if err != nil {
		return Lease[V]{}, err
	}
	p.m.gets.Inc()
	if hit {
		p.m.hits.Inc()
		return l, nil
	}

	v, err := p.opts.New()
	if err != nil {
		return Lease[V]{}, fmt.Errorf("failed to create object, %w", err)
	}
	p.m.created.Inc()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.destroy(v)
		return Lease[V]{}, ErrPoolClosed
	}
	err = p.arena.Update(func(tx *llist.Tx[object[V]]) error {
		h, err := tx.Alloc(object[V]{v: v})
		l = Lease[V]{p: p, h: h, v: v}
		return err
	})
	p.mu.Unlock()
	if err != nil {
		p.destroy(v)
		return Lease[V]{}, err
	}
	return l, nil
}

// Put gives l back. The object is kept idle unless the pool is closed or
// already holds MaxIdle idle objects, in which case it is destroyed.
// Putting a lease again fails with ErrDoubleRelease, also after its object
// has been leased to someone else.
func (p *Pool[V]) Put(l Lease[V]) error {
	if l.p != p {
		return ErrInvalidLease
	}

	p.mu.Lock()
	var drop bool
	err := p.arena.Update(func(tx *llist.Tx[object[V]]) error {
		o, err := tx.Value(l.h)
		if err != nil {
			return err
		}
		// A stale copy of a lease whose object was handed out again.
		if tx.Linked(l.h) || o.epoch != l.epoch {
			return llist.ErrLinked
		}
		if p.closed || p.nIdle >= p.opts.MaxIdle {
			drop = true
			return tx.Release(l.h)
		}
		if err := tx.SetValue(l.h, object[V]{v: l.v, since: time.Now(), epoch: l.epoch}); err != nil {
			return err
		}
		return tx.PushFront(p.idle, l.h)
	})
	if err == nil && !drop {
		p.nIdle++
		p.m.idle.Set(float64(p.nIdle))
	}
	p.mu.Unlock()

	switch {
	case err == nil:
	case errors.Is(err, llist.ErrLinked), errors.Is(err, llist.ErrInvalidHandle):
		p.logger.Debug("double release", zap.Stringer("object", l.h))
		return ErrDoubleRelease
	default:
		return err
	}
	if drop {
		p.destroy(l.v)
	}
	return nil
}

// Clean destroys objects that have been idle for IdleTimeout or longer
// at now. It returns the number of destroyed objects.
func (p *Pool[V]) Clean(now time.Time) int {
	if p.opts.IdleTimeout <= 0 {
		return 0
	}
	p.mu.Lock()
	victims, err := p.takeIdle(func(o object[V]) bool {
		return now.Sub(o.since) >= p.opts.IdleTimeout
	})
	p.mu.Unlock()
	if err != nil {
		p.logger.Error("failed to clean idle objects", zap.Error(err))
	}
	for _, v := range victims {
		p.destroy(v)
	}
	return len(victims)
}

// takeIdle unlinks and frees every idle object matching f.
// Caller must hold mu.
func (p *Pool[V]) takeIdle(f func(o object[V]) bool) ([]V, error) {
	var victims []V
	err := p.arena.Update(func(tx *llist.Tx[object[V]]) error {
		var hs []llist.Handle
		for h, o := range tx.Values(tx.Chain(p.idle)) {
			if f(o) {
				hs = append(hs, h)
				victims = append(victims, o.v)
			}
		}
		for _, h := range hs {
			if err := tx.Remove(h); err != nil {
				return err
			}
			if err := tx.Release(h); err != nil {
				return err
			}
		}
		return nil
	})
	p.nIdle -= len(victims)
	p.m.idle.Set(float64(p.nIdle))
	return victims, err
}

// Idle returns the number of idle objects.
func (p *Pool[V]) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nIdle
}

// Close stops the cleaner and destroys all idle objects. Leased objects
// are destroyed when they are returned. Close is idempotent.
func (p *Pool[V]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.closeCleanerChan)
	victims, err := p.takeIdle(func(object[V]) bool { return true })
	p.mu.Unlock()

	if p.cleanerDone != nil {
		<-p.cleanerDone
	}
	for _, v := range victims {
		p.destroy(v)
	}
	return err
}

func (p *Pool[V]) destroy(v V) {
	p.m.destroyed.Inc()
	if p.opts.Destroy != nil {
		p.opts.Destroy(v)
	}
}

func (p *Pool[V]) startCleaner(interval time.Duration) {
	defer close(p.cleanerDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.closeCleanerChan:
			return
		case now := <-ticker.C:
			if n := p.Clean(now); n > 0 {
				p.logger.Debug("idle objects cleaned", zap.Int("n", n))
			}
		}
	}
}
