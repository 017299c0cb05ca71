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
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pmkol/llist/mlog"
)

const maxIncludeDepth = 8

type Config struct {
	Log       mlog.LogConfig   `yaml:"log"`
	Include   []string         `yaml:"include"`
	Scenarios []ScenarioConfig `yaml:"scenarios"`
	Bench     BenchConfig      `yaml:"bench"`
}

// ScenarioConfig declares the named roots and nodes of one arena and the
// steps run against them.
type ScenarioConfig struct {
	Name     string   `yaml:"name"`
	Capacity int      `yaml:"capacity"`
	Roots    []string `yaml:"roots"`
	Nodes    []string `yaml:"nodes"`
	Steps    []Step   `yaml:"steps"`
}

// Step is one action. Exactly one action field must be set.
type Step struct {
	Insert  *InsertStep `yaml:"insert"`
	Remove  string      `yaml:"remove"`
	Release string      `yaml:"release"`
	Ring    string      `yaml:"ring"`
	Expect  *ExpectStep `yaml:"expect"`
	Verify  bool        `yaml:"verify"`

	// ExpectErr names the error the action must fail with, see
	// llist.ErrorByName.
	ExpectErr string `yaml:"expect_err"`
}

type InsertStep struct {
	Node string `yaml:"node"`

	// After names a root, or a node whose successor slot is used.
	After string `yaml:"after"`

	// Next, if set, is passed as the expected current content of After.
	// "nil" means an empty slot. If unset it is read from After.
	Next string `yaml:"next"`
}

// ExpectStep walks from a root (the whole chain), a node (itself
// included) or a ring sentinel (excluded) and compares the node names.
type ExpectStep struct {
	From string   `yaml:"from"`
	Ring string   `yaml:"ring"`
	Want []string `yaml:"want"`
}

type BenchConfig struct {
	Workload string `yaml:"workload"`
	Shards   int    `yaml:"shards"`
	Ops      int    `yaml:"ops"`
	Capacity int    `yaml:"capacity"`
	Metrics  string `yaml:"metrics"`
}

// loadConfig load a config from a file. If filePath is empty, it will
// automatically search and load a file which name start with "config".
func loadConfig(filePath string) (*Config, string, error) {
	v := viper.New()

	if len(filePath) > 0 {
		v.SetConfigFile(filePath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	decoderOpt := func(cfg *mapstructure.DecoderConfig) {
		cfg.ErrorUnused = true
		cfg.TagName = "yaml"
		cfg.WeaklyTypedInput = true
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg, decoderOpt); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, v.ConfigFileUsed(), nil
}

// mergeInclude prepends the scenarios of included files, recursively.
// It returns every file it loaded, nested includes too.
func mergeInclude(cfg *Config, depth int, paths []string) ([]string, error) {
	depth++
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("maximum include depth reached, include path is %s", strings.Join(paths, " -> "))
	}

	var included []ScenarioConfig
	var files []string
	for _, subCfgFile := range cfg.Include {
		subPaths := append(paths[:len(paths):len(paths)], subCfgFile)
		mlog.L().Info("reading sub config", zap.String("file", subCfgFile))
		subCfg, fileUsed, err := loadConfig(subCfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load sub config, %w", err)
		}
		subFiles, err := mergeInclude(subCfg, depth, subPaths)
		if err != nil {
			return nil, err
		}
		files = append(files, fileUsed)
		files = append(files, subFiles...)
		included = append(included, subCfg.Scenarios...)
	}

	cfg.Scenarios = append(included, cfg.Scenarios...)
	return files, nil
}

// loadConfigs loads and merges every file in files, in order. It also
// returns the paths of all loaded files, includes among them.
func loadConfigs(files []string) (*Config, []string, error) {
	if len(files) == 0 {
		files = []string{""}
	}
	merged := new(Config)
	var used []string
	for i, f := range files {
		cfg, fileUsed, err := loadConfig(f)
		if err != nil {
			return nil, nil, fmt.Errorf("fail to load config, %w", err)
		}
		included, err := mergeInclude(cfg, 0, []string{fileUsed})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load sub config file, %w", err)
		}
		used = append(used, fileUsed)
		used = append(used, included...)
		if i == 0 {
			merged.Log = cfg.Log
			merged.Bench = cfg.Bench
		}
		merged.Scenarios = append(merged.Scenarios, cfg.Scenarios...)
	}
	return merged, used, nil
}
