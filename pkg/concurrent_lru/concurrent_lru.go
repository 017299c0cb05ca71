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

package concurrent_lru

import (
	"hash/maphash"
	"sync"

	"github.com/pmkol/llist/pkg/lru"
)

// ShardedLRU spreads keys over independent ConcurrentLRU shards. Each shard
// owns one arena, so shards never contend on a list token.
type ShardedLRU[K comparable, V any] struct {
	seed maphash.Seed
	l    []*ConcurrentLRU[K, V]
	mask uint64 // shardNum - 1 (shardNum must be power of 2)
}

func NewShardedLRU[K comparable, V any](
	shardNum, maxSizePerShard int,
	onEvict func(key K, v V),
) *ShardedLRU[K, V] {

	if shardNum <= 0 || shardNum&(shardNum-1) != 0 {
		panic("shardNum must be a power of 2 and > 0")
	}

	cl := &ShardedLRU[K, V]{
		seed: maphash.MakeSeed(),
		l:    make([]*ConcurrentLRU[K, V], shardNum),
		mask: uint64(shardNum - 1),
	}

	for i := range cl.l {
		cl.l[i] = NewConcurrentLRU[K, V](maxSizePerShard, onEvict)
	}

	return cl
}

func (c *ShardedLRU[K, V]) getShard(key K) *ConcurrentLRU[K, V] {
	h := maphash.Comparable(c.seed, key)
	return c.l[int(h&c.mask)]
}

func (c *ShardedLRU[K, V]) Add(key K, v V) {
	c.getShard(key).Add(key, v)
}

func (c *ShardedLRU[K, V]) Del(key K) {
	c.getShard(key).Del(key)
}

func (c *ShardedLRU[K, V]) Get(key K) (v V, ok bool) {
	return c.getShard(key).Get(key)
}

func (c *ShardedLRU[K, V]) Peek(key K) (v V, ok bool) {
	return c.getShard(key).Peek(key)
}

func (c *ShardedLRU[K, V]) Clean(f func(key K, v V) bool) (removed int) {
	for _, shard := range c.l {
		removed += shard.Clean(f)
	}
	return
}

func (c *ShardedLRU[K, V]) Len() int {
	sum := 0
	for _, shard := range c.l {
		sum += shard.Len()
	}
	return sum
}

// -----------------------------

type ConcurrentLRU[K comparable, V any] struct {
	sync.Mutex
	lru *lru.LRU[K, V]
}

func NewConcurrentLRU[K comparable, V any](
	maxSize int,
	onEvict func(key K, v V),
) *ConcurrentLRU[K, V] {
	return &ConcurrentLRU[K, V]{
		lru: lru.NewLRU[K, V](maxSize, onEvict),
	}
}

func (c *ConcurrentLRU[K, V]) Add(key K, v V) {
	c.Lock()
	c.lru.Add(key, v)
	c.Unlock()
}

func (c *ConcurrentLRU[K, V]) Del(key K) {
	c.Lock()
	c.lru.Del(key)
	c.Unlock()
}

func (c *ConcurrentLRU[K, V]) Get(key K) (v V, ok bool) {
	c.Lock()
	v, ok = c.lru.Get(key)
	c.Unlock()
	return
}

func (c *ConcurrentLRU[K, V]) Peek(key K) (v V, ok bool) {
	c.Lock()
	v, ok = c.lru.Peek(key)
	c.Unlock()
	return
}

func (c *ConcurrentLRU[K, V]) PopOldest() (key K, v V, ok bool) {
	c.Lock()
	key, v, ok = c.lru.PopOldest()
	c.Unlock()
	return
}

func (c *ConcurrentLRU[K, V]) Clean(f func(key K, v V) bool) (removed int) {
	c.Lock()
	removed = c.lru.Clean(f)
	c.Unlock()
	return
}

func (c *ConcurrentLRU[K, V]) Len() int {
	c.Lock()
	n := c.lru.Len()
	c.Unlock()
	return n
}
