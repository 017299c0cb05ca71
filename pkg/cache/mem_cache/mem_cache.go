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

package mem_cache

import (
	"sync/atomic"
	"time"

	"github.com/pmkol/llist/pkg/cache"
	"github.com/pmkol/llist/pkg/concurrent_lru"
)

const (
	shardSize              = 64
	defaultCleanerInterval = time.Minute
)

var _ cache.Backend[string, int] = (*MemCache[string, int])(nil)

// MemCache is a sharded in memory cache. Each shard is an LRU over its own
// llist arena.
type MemCache[K comparable, V any] struct {
	closed           atomic.Bool
	closeCleanerChan chan struct{}
	lru              *concurrent_lru.ShardedLRU[K, *elem[V]]
}

type elem[V any] struct {
	v          V
	expire     int64 // Unix nano
	lazyExpire int64 // Unix nano
}

// NewMemCache creates a cache of about size entries. A cleanerInterval
// <= 0 disables the background cleaner.
func NewMemCache[K comparable, V any](size int, cleanerInterval time.Duration) *MemCache[K, V] {
	sizePerShard := size / shardSize
	if sizePerShard < 16 {
		sizePerShard = 16
	}
	c := &MemCache[K, V]{
		closeCleanerChan: make(chan struct{}),
		lru:              concurrent_lru.NewShardedLRU[K, *elem[V]](shardSize, sizePerShard, nil),
	}

	if cleanerInterval > 0 {
		go c.startCleaner(cleanerInterval)
	}
	return c
}

func (c *MemCache[K, V]) isClosed() bool {
	return c.closed.Load()
}

func (c *MemCache[K, V]) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.closeCleanerChan)
	}
	return nil
}

func (c *MemCache[K, V]) Get(key K) (v V, lazyHit bool, ok bool) {
	if c.isClosed() {
		return
	}

	e, found := c.lru.Get(key)
	if !found {
		return
	}

	now := time.Now().UnixNano()
	if now > e.lazyExpire {
		return
	}
	return e.v, now > e.expire, true
}

func (c *MemCache[K, V]) Store(key K, v V, expire, lazyExpire time.Time) {
	if c.isClosed() {
		return
	}
	if lazyExpire.Before(expire) {
		lazyExpire = expire
	}
	c.lru.Add(key, &elem[V]{
		v:          v,
		expire:     expire.UnixNano(),
		lazyExpire: lazyExpire.UnixNano(),
	})
}

// Clean evicts every entry past its lazy window at now.
func (c *MemCache[K, V]) Clean(now time.Time) int {
	n := now.UnixNano()
	return c.lru.Clean(func(_ K, e *elem[V]) bool {
		return e.lazyExpire <= n
	})
}

func (c *MemCache[K, V]) startCleaner(interval time.Duration) {
	if interval <= 0 {
		interval = defaultCleanerInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeCleanerChan:
			return
		case now := <-ticker.C:
			c.Clean(now)
		}
	}
}

func (c *MemCache[K, V]) Len() int {
	return c.lru.Len()
}
