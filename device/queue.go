// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package device executes recordings of data-parallel kernels.
//
// A Queue plays the role of a GPU queue: commands run in program order, every
// dispatch is a full barrier, and the host only observes results once Run has
// returned. Kernels run on a pool of goroutines.
package device

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"honnef.co/go/safeish"
	"honnef.co/go/splat/jmath"
	"honnef.co/go/splat/profiler"
)

// DefaultWorkgroupSize is the number of logical threads a worker runs in one
// go.
const DefaultWorkgroupSize = 256

var (
	// ErrInvalidDispatch is returned for dispatches with a negative thread
	// count or without a kernel.
	ErrInvalidDispatch = errors.New("device: invalid dispatch")

	// ErrCopySize is returned when source and destination of a copy differ in
	// length.
	ErrCopySize = errors.New("device: copy size mismatch")

	// ErrQueueClosed is returned when running a recording on a closed queue.
	ErrQueueClosed = errors.New("device: queue closed")
)

// KernelError reports a kernel that panicked.
type KernelError struct {
	Label  string
	Thread int
	Value  any
}

func (err *KernelError) Error() string {
	return fmt.Sprintf("device: kernel %q failed in thread %d: %v", err.Label, err.Thread, err.Value)
}

type QueueOptions struct {
	// Workers is the number of goroutines executing kernels. Zero or negative
	// means GOMAXPROCS.
	Workers int
	// WorkgroupSize is the number of threads per scheduled work item. Zero
	// means DefaultWorkgroupSize.
	WorkgroupSize int
	// Debug logs every executed command.
	Debug bool
}

type Queue struct {
	pool          *workerPool
	workgroupSize int
	debug         bool
	closed        atomic.Bool
}

func NewQueue(opts *QueueOptions) *Queue {
	if opts == nil {
		opts = &QueueOptions{}
	}
	wg := opts.WorkgroupSize
	if wg <= 0 {
		wg = DefaultWorkgroupSize
	}
	return &Queue{
		pool:          newWorkerPool(opts.Workers),
		workgroupSize: wg,
		debug:         opts.Debug,
	}
}

// Close stops the queue's workers.
func (q *Queue) Close() {
	q.closed.Store(true)
	q.pool.close()
}

// Workers returns the number of goroutines executing kernels.
func (q *Queue) Workers() int {
	return q.pool.workers
}

// Run executes all commands of rec in order. The first failing command aborts
// the run; buffers written by earlier commands are left as they are.
func (q *Queue) Run(rec *Recording, pgroup profiler.ProfilerGroup) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if pgroup == nil {
		pgroup = profiler.Nop{}
	}
	for _, cmd := range rec.Commands {
		var start time.Time
		if q.debug {
			start = time.Now()
		}
		var label string
		switch cmd := cmd.(type) {
		case *Dispatch:
			label = cmd.Label
			g := pgroup.Start(cmd.Label)
			err := q.dispatch(cmd)
			g.End()
			if err != nil {
				Logger().Warn("device: dispatch failed", "kernel", cmd.Label, "err", err)
				return err
			}
		case *Clear:
			label = cmd.Label
			clear(cmd.Data)
		case *Copy:
			label = cmd.Label
			if len(cmd.Dst) != len(cmd.Src) {
				return fmt.Errorf("%w: %q copies %d bytes into %d bytes",
					ErrCopySize, cmd.Label, len(cmd.Src), len(cmd.Dst))
			}
			copy(cmd.Dst, cmd.Src)
		default:
			panic(fmt.Sprintf("unhandled command %T", cmd))
		}
		if q.debug {
			Logger().Debug("device: command done", "command", label, "elapsed", time.Since(start))
		}
	}
	return nil
}

// MaterializeCount runs rec and then reads src[index] back to the host. It is
// a blocking synchronization point: nothing recorded after it can be sized
// before it returns. An empty src yields zero.
func (q *Queue) MaterializeCount(rec *Recording, src []uint32, index int, pgroup profiler.ProfilerGroup) (int, error) {
	var host uint32
	if len(src) > 0 {
		rec.Copy("materialize count", safeish.AsBytes(&host), safeish.SliceCast[[]byte](src[index:index+1]))
	}
	err := q.Run(rec, pgroup)
	rec.Reset()
	if err != nil {
		return 0, err
	}
	return int(host), nil
}

func (q *Queue) dispatch(cmd *Dispatch) error {
	if cmd.Threads < 0 || cmd.Kernel == nil {
		return fmt.Errorf("%w: %q with %d threads", ErrInvalidDispatch, cmd.Label, cmd.Threads)
	}
	if cmd.Threads == 0 {
		return nil
	}

	var failure atomic.Pointer[KernelError]
	runGroup := func(start, end int) {
		thread := start
		defer func() {
			if r := recover(); r != nil {
				failure.CompareAndSwap(nil, &KernelError{Label: cmd.Label, Thread: thread, Value: r})
			}
		}()
		for ; thread < end; thread++ {
			cmd.Kernel(thread)
		}
	}

	wg := q.workgroupSize
	q.pool.run(jmath.DivCeil(cmd.Threads, wg), func(group int) {
		start := group * wg
		runGroup(start, min(start+wg, cmd.Threads))
	})

	if err := failure.Load(); err != nil {
		return err
	}
	return nil
}
