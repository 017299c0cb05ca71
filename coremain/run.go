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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pmkol/llist/mlog"
)

type globalFlags struct {
	logLevel string
	logFile  string
}

var gf = new(globalFlags)

var rootCmd = &cobra.Command{
	Use:   "llist",
	Short: "Replay and benchmark back-referenced linked lists.",
}

func init() {
	pfs := rootCmd.PersistentFlags()
	pfs.StringVar(&gf.logLevel, "log-level", "", "log level, overrides the config file")
	pfs.StringVar(&gf.logFile, "log-file", "", "log file, overrides the config file")

	AddSubCmd(newReplayCmd())
	AddSubCmd(newBenchCmd())
}

// AddSubCmd registers c under the root command. It must be called before Run.
func AddSubCmd(c *cobra.Command) {
	rootCmd.AddCommand(c)
}

// Run executes the command line. SIGINT and SIGTERM cancel the context
// handed to sub commands.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// initLogger builds the logger from lc with the global flags applied on
// top, and installs it as the global logger.
func initLogger(lc mlog.LogConfig) (*zap.Logger, error) {
	if len(gf.logLevel) > 0 {
		lc.Level = gf.logLevel
	}
	if len(gf.logFile) > 0 {
		lc.File = gf.logFile
	}
	lg, err := mlog.NewLogger(&lc)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	mlog.SetLogger(lg)
	return lg, nil
}
