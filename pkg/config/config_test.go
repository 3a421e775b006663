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
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixorigin/arrayagg/pkg/common/moerr"
)

func TestParse(t *testing.T) {
	cfg, err := Parse(`
[log]
level = "debug"
format = "json"

[memory]
limit = 1048576

[aggregate]
batch-size = 100
workers = 2
dedup-hash-index-threshold = 16
streaming-preagg-threshold = 0.5
`)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, int64(1048576), cfg.Memory.Limit)
	require.Equal(t, 100, cfg.Aggregate.BatchSize)
	require.Equal(t, 2, cfg.Aggregate.Workers)
	require.Equal(t, 16, cfg.Aggregate.DedupHashIndexThreshold)
	require.Equal(t, 0.5, cfg.Aggregate.StreamingPreAggThreshold)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, defaultBatchSize, cfg.Aggregate.BatchSize)
	require.Equal(t, defaultWorkers, cfg.Aggregate.Workers)
	require.Equal(t, defaultDedupHashIndexThreshold, cfg.Aggregate.DedupHashIndexThreshold)
	require.Equal(t, "console", cfg.Log.Format)
}

func TestBadConfig(t *testing.T) {
	kases := []string{
		`[log]
format = "xml"`,
		`[aggregate]
workers = -1`,
		`[aggregate]
streaming-preagg-threshold = 1.5`,
		`[memory]
limit = -3`,
		`[aggregate
workers = 1`,
	}
	for _, k := range kases {
		_, err := Parse(k)
		require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig), k)
	}
}

func TestLoad(t *testing.T) {
	p := path.Join(t.TempDir(), "agg.toml")
	require.NoError(t, os.WriteFile(p, []byte("[aggregate]\nworkers = 8\n"), 0644))
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Aggregate.Workers)

	_, err = Load(path.Join(t.TempDir(), "missing.toml"))
	require.True(t, moerr.IsMoErrCode(err, moerr.ErrBadConfig))
}
