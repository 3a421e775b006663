// Copyright 2022 Matrix Origin
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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/config"
	"github.com/matrixorigin/arrayagg/pkg/logutil"
	"github.com/matrixorigin/arrayagg/pkg/sql/colexec/aggexec"
	"github.com/matrixorigin/arrayagg/pkg/sql/colexec/group"
	"github.com/matrixorigin/arrayagg/pkg/vm/process"
)

var (
	configFile = flag.String("cfg", "", "toml configuration, defaults are used when empty")
	inputFile  = flag.String("input", "", "csv file to aggregate")
	keyCol     = flag.Int("key", 0, "column of the int64 group by key")
	valueCol   = flag.Int("value", 1, "column aggregated by ARRAY_AGG")
	orderBy    = flag.String("order", "", "order by columns, as col[:asc|desc][:nullsfirst|nullslast],...")
	distinct   = flag.Bool("distinct", false, "remove duplicated values")
	header     = flag.Bool("header", false, "skip the first line of the input")
)

// options is one ARRAY_AGG(value ORDER BY ...) GROUP BY key query.
type options struct {
	input    string
	header   bool
	key      int
	value    int
	orders   []orderKey
	distinct bool
}

type orderKey struct {
	col        int
	asc        bool
	nullsFirst bool
}

func main() {
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config from %s, error: %s", *configFile, err.Error()))
	}
	setupLogger(cfg)

	orders, err := parseOrderBy(*orderBy)
	if err != nil {
		logutil.Fatal("bad order by", zap.String("order", *orderBy), zap.Error(err))
	}
	opts := options{
		input:    *inputFile,
		header:   *header,
		key:      *keyCol,
		value:    *valueCol,
		orders:   orders,
		distinct: *distinct,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err = run(ctx, cfg, opts, os.Stdout); err != nil {
		logutil.Error("array_agg failed", zap.Error(err))
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func setupLogger(cfg *config.Config) {
	logutil.SetupMOLogger(&cfg.Log)
}

// parseOrderBy parses "2:desc:nullsfirst,3".
func parseOrderBy(s string) ([]orderKey, error) {
	if s == "" {
		return nil, nil
	}
	var keys []orderKey
	for _, item := range strings.Split(s, ",") {
		parts := strings.Split(strings.TrimSpace(item), ":")
		col, err := strconv.Atoi(parts[0])
		if err != nil || col < 0 {
			return nil, moerr.NewInvalidInputNoCtx("order by column %q", parts[0])
		}
		key := orderKey{col: col, asc: true}
		for _, opt := range parts[1:] {
			switch strings.ToLower(opt) {
			case "asc":
				key.asc = true
			case "desc":
				key.asc = false
			case "nullsfirst":
				key.nullsFirst = true
			case "nullslast":
				key.nullsFirst = false
			default:
				return nil, moerr.NewInvalidInputNoCtx("order by option %q", opt)
			}
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func run(ctx context.Context, cfg *config.Config, opts options, out io.Writer) error {
	mp, err := mpool.NewMPool("mo-arrayagg", cfg.Memory.Limit, mpool.NoFixed)
	if err != nil {
		return err
	}
	defer mpool.DeleteMPool(mp)

	proc := process.New(ctx, "mo-arrayagg", mp)
	defer proc.Cancel()

	in, err := readInput(proc, opts, cfg.Aggregate.BatchSize)
	if err != nil {
		return err
	}
	defer in.free(mp)

	spec := group.Spec{
		KeyTypes:                 in.keyTypes(),
		Aggs:                     []aggexec.AggSpec{in.aggSpec(opts, cfg.Aggregate.DedupHashIndexThreshold)},
		Workers:                  cfg.Aggregate.Workers,
		BatchSize:                cfg.Aggregate.BatchSize,
		StreamingPreAggThreshold: cfg.Aggregate.StreamingPreAggThreshold,
	}
	res, err := group.Run(proc, spec, in.batches)
	if err != nil {
		return err
	}
	defer res.Clean(mp)

	proc.Info("array_agg done",
		zap.Int("rows", in.rows),
		zap.Int("groups", res.RowCount()),
		zap.Int64("high-water-mark", mp.Stats().HighWaterMark.Load()))

	for i := 0; i < res.RowCount(); i++ {
		if _, err = fmt.Fprintf(out, "%s -> %s\n", res.Vecs[0].RowString(i), res.Vecs[1].RowString(i)); err != nil {
			return err
		}
	}
	return nil
}
