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

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	gets      prometheus.Counter
	hits      prometheus.Counter
	created   prometheus.Counter
	destroyed prometheus.Counter
	idle      prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		gets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pool_gets_total",
			Help: "The total number of Get calls",
		}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pool_hits_total",
			Help: "Get calls served from the idle chain",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pool_created_total",
			Help: "Objects created by the constructor",
		}),
		destroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pool_destroyed_total",
			Help: "Objects dropped by the pool",
		}),
		idle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pool_idle_objects",
			Help: "Objects currently idle",
		}),
	}
}

// Collectors returns the metrics of p for registration.
func (p *Pool[V]) Collectors() []prometheus.Collector {
	return []prometheus.Collector{p.m.gets, p.m.hits, p.m.created, p.m.destroyed, p.m.idle}
}
