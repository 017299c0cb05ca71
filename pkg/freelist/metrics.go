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

package freelist

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	allocs      prometheus.Counter
	frees       prometheus.Counter
	carvedBytes prometheus.Gauge
	freeBlocks  *prometheus.GaugeVec
}

func newMetrics() *metrics {
	return &metrics{
		allocs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "freelist_allocs_total",
			Help: "The total number of successful block allocations",
		}),
		frees: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "freelist_frees_total",
			Help: "The total number of blocks returned",
		}),
		carvedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freelist_carved_bytes",
			Help: "Bytes of the region handed out to blocks so far",
		}),
		freeBlocks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "freelist_free_blocks",
			Help: "Free blocks waiting in each size class",
		}, []string{"block_size"}),
	}
}

// Collectors returns the metrics of a for registration.
func (a *Allocator) Collectors() []prometheus.Collector {
	return []prometheus.Collector{a.m.allocs, a.m.frees, a.m.carvedBytes, a.m.freeBlocks}
}
