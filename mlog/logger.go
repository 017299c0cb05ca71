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

package mlog

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	// Level, See also zapcore.ParseLevel.
	Level string `yaml:"level"`

	// File that logger will be writen into.
	// Default is stderr.
	File string `yaml:"file"`

	// Production enables json output.
	Production bool `yaml:"production"`
}

var l atomic.Pointer[zap.Logger]

func init() {
	lg, err := NewLogger(&LogConfig{Level: "info"})
	if err != nil {
		panic(fmt.Sprintf("failed to init default logger, %s", err))
	}
	l.Store(lg)
}

// NewLogger builds a logger from lc.
func NewLogger(lc *LogConfig) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if len(lc.Level) > 0 {
		var err error
		lvl, err = zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level, %w", err)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encoding := "console"
	if lc.Production {
		encoding = "json"
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	out := []string{"stderr"}
	if len(lc.File) > 0 {
		out = []string{lc.File}
	}

	return zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         encoding,
		OutputPaths:      out,
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    encoderCfg,
	}.Build()
}

// L is a global logger.
func L() *zap.Logger {
	return l.Load()
}

// S is the sugared form of L.
func S() *zap.SugaredLogger {
	return l.Load().Sugar()
}

// SetLogger replaces the global logger.
func SetLogger(lg *zap.Logger) {
	l.Store(lg)
}
