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

package process

import (
	"context"

	"go.uber.org/zap"

	"github.com/matrixorigin/arrayagg/pkg/common/mpool"
	"github.com/matrixorigin/arrayagg/pkg/logutil"
)

// Process carries the per-query state shared by every operator: the
// memory pool and the cancellation context.
type Process struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	id string
	mp *mpool.MPool
}

// New creates a process bound to ctx; cancelling the process cancels only
// the derived context.
func New(ctx context.Context, id string, m *mpool.MPool) *Process {
	proc := &Process{id: id, mp: m}
	proc.Ctx, proc.Cancel = context.WithCancel(ctx)
	return proc
}

// NewFromProc derives a child process that shares the parent's pool and
// is cancelled with it.
func NewFromProc(p *Process) *Process {
	proc := &Process{id: p.id, mp: p.mp}
	proc.Ctx, proc.Cancel = context.WithCancel(p.Ctx)
	return proc
}

func (proc *Process) QueryId() string {
	return proc.id
}

// Some tests call operators without a proc, hack in a fall back mpool.
// This is a zero-cap pool so that it never limits anything.
var xxxProcMp = mpool.MustNewZero()

func (proc *Process) GetMPool() *mpool.MPool {
	if proc == nil || proc.mp == nil {
		return xxxProcMp
	}
	return proc.mp
}

func (proc *Process) Mp() *mpool.MPool {
	return proc.GetMPool()
}

// Context returns the query context, never nil.
func (proc *Process) Context() context.Context {
	if proc == nil || proc.Ctx == nil {
		return context.Background()
	}
	return proc.Ctx
}

// Cancelled reports whether the query has been interrupted.
func (proc *Process) Cancelled() bool {
	return proc.Context().Err() != nil
}

func (proc *Process) Info(msg string, fields ...zap.Field) {
	logutil.Info(msg, proc.appendQueryField(fields)...)
}

func (proc *Process) Warn(msg string, fields ...zap.Field) {
	logutil.Warn(msg, proc.appendQueryField(fields)...)
}

func (proc *Process) Error(msg string, fields ...zap.Field) {
	logutil.Error(msg, proc.appendQueryField(fields)...)
}

func (proc *Process) Debug(msg string, fields ...zap.Field) {
	logutil.Debug(msg, proc.appendQueryField(fields)...)
}

func (proc *Process) appendQueryField(fields []zap.Field) []zap.Field {
	if proc != nil && proc.id != "" {
		fields = append(fields, zap.String("query-id", proc.id))
	}
	return fields
}
