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

package cache

import (
	"io"
	"time"
)

// Backend is an expiring key value store.
type Backend[K comparable, V any] interface {
	// Get returns the cached value.
	// Returns:
	//   lazyHit: true if expired but still within the lazy window
	//   ok: false if not found or past the lazy window
	Get(key K) (v V, lazyHit bool, ok bool)

	// Store caches v with dual expiration. The entry stops being fresh at
	// expire and is evicted at lazyExpire. A zero lazyExpire means expire.
	Store(key K, v V, expire, lazyExpire time.Time)

	Len() int

	io.Closer
}
