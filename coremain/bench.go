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

package coremain

import (
	"context"
	"fmt"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pmkol/llist/pkg/cache"
	"github.com/pmkol/llist/pkg/cache/mem_cache"
	"github.com/pmkol/llist/pkg/concurrent_lru"
	"github.com/pmkol/llist/pkg/freelist"
	"github.com/pmkol/llist/pkg/pool"
)

const (
	defaultBenchOps      = 100000
	defaultBenchCapacity = 1024
)

type benchFlags struct {
	c   string
	cpu int
	BenchConfig
}

func newBenchCmd() *cobra.Command {
	bf := new(benchFlags)
	c := &cobra.Command{
		Use:   "bench [--workload lru|cache|freelist|pool|all] [--shards n] [--ops n] [--metrics addr] [-c config_file]",
		Short: "Run the list based structures from concurrent shards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			bc := BenchConfig{}
			var cfg *Config
			if len(bf.c) > 0 {
				var err error
				cfg, _, err = loadConfig(bf.c)
				if err != nil {
					return fmt.Errorf("fail to load config, %w", err)
				}
				bc = cfg.Bench
			} else {
				cfg = new(Config)
			}
			fs := cmd.Flags()
			if fs.Changed("workload") || len(bc.Workload) == 0 {
				bc.Workload = bf.Workload
			}
			if fs.Changed("shards") || bc.Shards <= 0 {
				bc.Shards = bf.Shards
			}
			if fs.Changed("ops") || bc.Ops <= 0 {
				bc.Ops = bf.Ops
			}
			if fs.Changed("capacity") || bc.Capacity <= 0 {
				bc.Capacity = bf.Capacity
			}
			if fs.Changed("metrics") {
				bc.Metrics = bf.Metrics
			}
			if bf.cpu > 0 {
				runtime.GOMAXPROCS(bf.cpu)
			}

			lg, err := initLogger(cfg.Log)
			if err != nil {
				return err
			}
			return runBench(cmd.Context(), bc, lg)
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	fs := c.Flags()
	fs.StringVarP(&bf.c, "config", "c", "", "config file")
	fs.IntVar(&bf.cpu, "cpu", 0, "set runtime.GOMAXPROCS")
	fs.StringVar(&bf.Workload, "workload", "all", "lru, cache, freelist, pool or all")
	fs.IntVar(&bf.Shards, "shards", runtime.NumCPU(), "concurrent goroutines")
	fs.IntVar(&bf.Ops, "ops", defaultBenchOps, "operations per shard")
	fs.IntVar(&bf.Capacity, "capacity", defaultBenchCapacity, "lru entries, pool idle objects, freelist blocks per shard")
	fs.StringVar(&bf.Metrics, "metrics", "", "serve /metrics and pprof on this address, until interrupted")
	return c
}

type benchResult struct {
	workload string
	ops      int64
	elapsed  time.Duration
}

// workload runs the operations of one shard and returns how many it did.
type workload func(ctx context.Context, bc BenchConfig, shard int) (int64, error)

type workloadSetup func(bc BenchConfig, reg prometheus.Registerer) (w workload, closeFn func(), err error)

var workloads = map[string]workloadSetup{
	"lru":      setupLRUBench,
	"cache":    setupCacheBench,
	"freelist": setupFreelistBench,
	"pool":     setupPoolBench,
}

var workloadOrder = []string{"lru", "cache", "freelist", "pool"}

func runBench(ctx context.Context, bc BenchConfig, lg *zap.Logger) error {
	var names []string
	if bc.Workload == "all" || len(bc.Workload) == 0 {
		names = workloadOrder
	} else {
		if _, ok := workloads[bc.Workload]; !ok {
			return fmt.Errorf("unknown workload %s", bc.Workload)
		}
		names = []string{bc.Workload}
	}
	if bc.Shards <= 0 {
		bc.Shards = 1
	}
	if bc.Ops <= 0 {
		bc.Ops = defaultBenchOps
	}
	if bc.Capacity <= 0 {
		bc.Capacity = defaultBenchCapacity
	}

	reg := newMetricsReg()
	g, gCtx := errgroup.WithContext(ctx)
	if len(bc.Metrics) > 0 {
		mux := newMetricsMux(reg)
		g.Go(func() error {
			return serveMetrics(gCtx, bc.Metrics, mux, lg)
		})
	}

	g.Go(func() error {
		for _, name := range names {
			res, err := benchOne(gCtx, name, bc, registerer(reg))
			if err != nil {
				return fmt.Errorf("workload %s failed, %w", name, err)
			}
			lg.Info("workload done",
				zap.String("workload", res.workload),
				zap.Int("shards", bc.Shards),
				zap.Int64("ops", res.ops),
				zap.Duration("elapsed", res.elapsed),
				zap.Float64("ops_per_sec", float64(res.ops)/res.elapsed.Seconds()),
			)
		}
		if len(bc.Metrics) > 0 {
			lg.Info("bench done, serving metrics until interrupted")
		}
		return nil
	})
	return g.Wait()
}

func benchOne(ctx context.Context, name string, bc BenchConfig, reg prometheus.Registerer) (*benchResult, error) {
	reg = prometheus.WrapRegistererWith(prometheus.Labels{"workload": name}, reg)
	w, closeFn, err := workloads[name](bc, reg)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	var total atomic.Int64
	start := time.Now()
	g, gCtx := errgroup.WithContext(ctx)
	for shard := 0; shard < bc.Shards; shard++ {
		g.Go(func() error {
			n, err := w(gCtx, bc, shard)
			total.Add(n)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &benchResult{workload: name, ops: total.Load(), elapsed: time.Since(start)}, nil
}

func newRand(shard int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(shard), 0x9e3779b97f4a7c15))
}

// checkEvery is how often workloads look at their context.
const checkEvery = 1024

func setupLRUBench(bc BenchConfig, reg prometheus.Registerer) (workload, func(), error) {
	shards := 1
	for shards < bc.Shards {
		shards <<= 1
	}
	c := concurrent_lru.NewShardedLRU[uint64, uint64](shards, bc.Capacity, nil)
	hits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lru_hits_total",
		Help: "LRU Get calls that found their key",
	})
	if err := reg.Register(hits); err != nil {
		return nil, nil, err
	}

	w := func(ctx context.Context, bc BenchConfig, shard int) (int64, error) {
		rng := newRand(shard)
		keySpace := uint64(bc.Capacity * 2)
		for i := 0; i < bc.Ops; i++ {
			if i%checkEvery == 0 && ctx.Err() != nil {
				return int64(i), ctx.Err()
			}
			k := rng.Uint64N(keySpace)
			if _, ok := c.Get(k); ok {
				hits.Inc()
			} else {
				c.Add(k, k)
			}
		}
		return int64(bc.Ops), nil
	}
	return w, func() {}, nil
}

func setupCacheBench(bc BenchConfig, reg prometheus.Registerer) (workload, func(), error) {
	var c cache.Backend[uint64, uint64] = mem_cache.NewMemCache[uint64, uint64](bc.Shards*bc.Capacity, 0)
	lazyHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_lazy_hits_total",
		Help: "Cache Get calls that found an expired entry within its lazy window",
	})
	if err := reg.Register(lazyHits); err != nil {
		c.Close()
		return nil, nil, err
	}

	w := func(ctx context.Context, bc BenchConfig, shard int) (int64, error) {
		rng := newRand(shard)
		keySpace := uint64(bc.Capacity * 2)
		for i := 0; i < bc.Ops; i++ {
			if i%checkEvery == 0 && ctx.Err() != nil {
				return int64(i), ctx.Err()
			}
			k := rng.Uint64N(keySpace)
			_, lazyHit, ok := c.Get(k)
			if lazyHit {
				lazyHits.Inc()
			}
			if !ok || lazyHit {
				now := time.Now()
				ttl := time.Duration(rng.IntN(1000)) * time.Microsecond
				c.Store(k, k, now.Add(ttl), now.Add(2*ttl))
			}
		}
		return int64(bc.Ops), nil
	}
	return w, func() { c.Close() }, nil
}

func setupFreelistBench(bc BenchConfig, reg prometheus.Registerer) (workload, func(), error) {
	const maxBlock = 256
	// Each class may peak at every shard holding only its blocks, and
	// carving aligns to the block size. Four times the worst total covers both.
	a, err := freelist.New(freelist.Opts{
		Size:     4 * bc.Shards * bc.Capacity * maxBlock,
		MaxBlock: maxBlock,
	})
	if err != nil {
		return nil, nil, err
	}
	for _, c := range a.Collectors() {
		if err := reg.Register(c); err != nil {
			return nil, nil, err
		}
	}

	w := func(ctx context.Context, bc BenchConfig, shard int) (int64, error) {
		rng := newRand(shard)
		held := make([]freelist.Block, 0, bc.Capacity)
		defer func() {
			for _, b := range held {
				_ = a.Free(b)
			}
		}()
		for i := 0; i < bc.Ops; i++ {
			if i%checkEvery == 0 && ctx.Err() != nil {
				return int64(i), ctx.Err()
			}
			if len(held) == bc.Capacity || (len(held) > 0 && rng.IntN(2) == 0) {
				j := rng.IntN(len(held))
				if err := a.Free(held[j]); err != nil {
					return int64(i), err
				}
				held[j] = held[len(held)-1]
				held = held[:len(held)-1]
				continue
			}
			b, err := a.Alloc(1 + rng.IntN(maxBlock))
			if err != nil {
				return int64(i), err
			}
			held = append(held, b)
		}
		return int64(bc.Ops), nil
	}
	return w, func() {}, nil
}

func setupPoolBench(bc BenchConfig, reg prometheus.Registerer) (workload, func(), error) {
	p, err := pool.New(pool.Opts[[]byte]{
		New:     func() ([]byte, error) { return make([]byte, 0, 512), nil },
		MaxIdle: bc.Capacity,
	})
	if err != nil {
		return nil, nil, err
	}
	for _, c := range p.Collectors() {
		if err := reg.Register(c); err != nil {
			p.Close()
			return nil, nil, err
		}
	}

	w := func(ctx context.Context, bc BenchConfig, shard int) (int64, error) {
		rng := newRand(shard)
		var held []pool.Lease[[]byte]
		defer func() {
			for _, l := range held {
				_ = p.Put(l)
			}
		}()
		for i := 0; i < bc.Ops; i++ {
			if i%checkEvery == 0 && ctx.Err() != nil {
				return int64(i), ctx.Err()
			}
			if len(held) > 0 && (len(held) >= 8 || rng.IntN(2) == 0) {
				l := held[len(held)-1]
				held = held[:len(held)-1]
				if err := p.Put(l); err != nil {
					return int64(i), err
				}
				continue
			}
			l, err := p.Get()
			if err != nil {
				return int64(i), err
			}
			held = append(held, l)
		}
		return int64(bc.Ops), nil
	}
	return w, func() { p.Close() }, nil
}
