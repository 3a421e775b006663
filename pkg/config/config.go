// Copyright 2021 - 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"github.com/BurntSushi/toml"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/logutil"
)

const (
	defaultBatchSize                = 8192
	defaultWorkers                  = 4
	defaultDedupHashIndexThreshold  = 1024
	defaultStreamingPreAggThreshold = 0.9
	defaultMemoryLimit              = 4 << 30
)

// Config is the configuration of an aggregation run.
type Config struct {
	Log       logutil.LogConfig `toml:"log"`
	Memory    MemoryParameters  `toml:"memory"`
	Aggregate AggParameters     `toml:"aggregate"`
}

type MemoryParameters struct {
	// Limit caps the bytes one query may hold, 0 means unlimited.
	Limit int64 `toml:"limit"`
}

// AggParameters tune the group-by pipeline.
type AggParameters struct {
	//the count of rows in one input batch. default: 8192
	BatchSize int `toml:"batch-size"`

	//the count of go routines doing partial aggregation. default: 4
	Workers int `toml:"workers"`

	//groups with more elements use a hash index to remove duplicates in
	//ARRAY_AGG(DISTINCT ... ORDER BY ...). default: 1024
	DedupHashIndexThreshold int `toml:"dedup-hash-index-threshold"`

	//ratio of distinct groups to rows above which a partial worker stops
	//aggregating and streams rows in intermediate format. 1 disables it.
	//default: 0.9
	StreamingPreAggThreshold float64 `toml:"streaming-preagg-threshold"`
}

// Load decodes the toml file at path and fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, moerr.NewBadConfigNoCtx("decode %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes toml text and fills defaults.
func Parse(data string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, moerr.NewBadConfigNoCtx("decode config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a config with every default filled.
func Default() *Config {
	cfg := &Config{}
	cfg.fill()
	return cfg
}

func (c *Config) fill() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Memory.Limit == 0 {
		c.Memory.Limit = defaultMemoryLimit
	}
	if c.Aggregate.BatchSize == 0 {
		c.Aggregate.BatchSize = defaultBatchSize
	}
	if c.Aggregate.Workers == 0 {
		c.Aggregate.Workers = defaultWorkers
	}
	if c.Aggregate.DedupHashIndexThreshold == 0 {
		c.Aggregate.DedupHashIndexThreshold = defaultDedupHashIndexThreshold
	}
	if c.Aggregate.StreamingPreAggThreshold == 0 {
		c.Aggregate.StreamingPreAggThreshold = defaultStreamingPreAggThreshold
	}
}

// Validate fills defaults and rejects values that cannot work.
func (c *Config) Validate() error {
	c.fill()
	switch c.Log.Format {
	case "console", "json":
	default:
		return moerr.NewBadConfigNoCtx("log format %q", c.Log.Format)
	}
	if c.Memory.Limit < 0 {
		return moerr.NewBadConfigNoCtx("memory limit %d", c.Memory.Limit)
	}
	if c.Aggregate.BatchSize < 0 {
		return moerr.NewBadConfigNoCtx("batch-size %d", c.Aggregate.BatchSize)
	}
	if c.Aggregate.Workers < 0 {
		return moerr.NewBadConfigNoCtx("workers %d", c.Aggregate.Workers)
	}
	if c.Aggregate.DedupHashIndexThreshold < 0 {
		return moerr.NewBadConfigNoCtx("dedup-hash-index-threshold %d", c.Aggregate.DedupHashIndexThreshold)
	}
	if c.Aggregate.StreamingPreAggThreshold < 0 || c.Aggregate.StreamingPreAggThreshold > 1 {
		return moerr.NewBadConfigNoCtx("streaming-preagg-threshold %v", c.Aggregate.StreamingPreAggThreshold)
	}
	return nil
}
