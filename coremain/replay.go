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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const watchDelay = time.Millisecond * 500

type replayFlags struct {
	c     []string
	watch bool
	dump  bool
}

func newReplayCmd() *cobra.Command {
	rf := new(replayFlags)
	c := &cobra.Command{
		Use:   "replay [-c scenario_file]... [--watch] [--dump]",
		Short: "Run scenario files against fresh arenas.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd.Context(), rf, cmd.OutOrStdout())
		},
		DisableFlagsInUseLine: true,
		SilenceUsage:          true,
	}
	fs := c.Flags()
	fs.StringSliceVarP(&rf.c, "config", "c", nil, "scenario file, may be repeated")
	fs.BoolVar(&rf.watch, "watch", false, "re-run when a scenario file changes")
	fs.BoolVar(&rf.dump, "dump", false, "print the final chains as yaml")
	return c
}

func runReplay(ctx context.Context, rf *replayFlags, out io.Writer) error {
	cfg, used, err := loadConfigs(rf.c)
	if err != nil {
		return err
	}
	lg, err := initLogger(cfg.Log)
	if err != nil {
		return err
	}

	err = replayOnce(cfg, lg, rf.dump, out)
	if !rf.watch {
		return err
	}
	if err != nil {
		lg.Error("replay failed", zap.Error(err))
	}

	return watchFiles(ctx, used, lg, func() {
		cfg, _, err := loadConfigs(rf.c)
		if err == nil {
			err = replayOnce(cfg, lg, rf.dump, out)
		}
		if err != nil {
			lg.Error("replay failed", zap.Error(err))
		}
	})
}

func replayOnce(cfg *Config, lg *zap.Logger, dump bool, out io.Writer) error {
	if len(cfg.Scenarios) == 0 {
		return errors.New("no scenario is configured")
	}
	snaps := make([]*Snapshot, 0, len(cfg.Scenarios))
	for i := range cfg.Scenarios {
		sc := &cfg.Scenarios[i]
		snap, err := runScenario(sc, lg)
		if err != nil {
			return fmt.Errorf("scenario %s failed, %w", sc.Name, err)
		}
		lg.Info("scenario passed", zap.String("scenario", sc.Name), zap.Int("steps", len(sc.Steps)))
		snaps = append(snaps, snap)
	}

	if dump {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(snaps); err != nil {
			return fmt.Errorf("failed to dump snapshots, %w", err)
		}
		return enc.Close()
	}
	return nil
}

// watchFiles calls f once the files settle after a change, until ctx is
// done. Removed or renamed files are watched again by path.
func watchFiles(ctx context.Context, files []string, lg *zap.Logger, f func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher, %w", err)
	}
	defer watcher.Close()

	addAll := func() {
		for _, file := range files {
			_ = watcher.Remove(file)
			if err := watcher.Add(file); err != nil {
				lg.Warn("failed to watch file", zap.String("file", file), zap.Error(err))
			}
		}
	}
	addAll()

	timer := time.NewTimer(0)
	resetTimer(timer, 0)
	needReWatch := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case e, ok := <-watcher.Events:
			if !ok {
				timer.Stop()
				return nil
			}
			if e.Has(fsnotify.Chmod) {
				continue
			}
			if e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename) {
				needReWatch = true
			}
			resetTimer(timer, watchDelay)
		case err, ok := <-watcher.Errors:
			if !ok {
				timer.Stop()
				return nil
			}
			lg.Warn("file watcher error", zap.Error(err))
		case <-timer.C:
			if needReWatch {
				needReWatch = false
				addAll()
			}
			lg.Info("scenario files changed, replaying")
			f()
		}
	}
}

// resetTimer stops t, drains its channel and, if d > 0, starts it again.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	if d > 0 {
		t.Reset(d)
	}
}
