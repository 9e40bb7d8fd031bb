// Copyright 2024 Dominik Honnef and contributors
// SPDX-License-Identifier: Apache-2.0 OR MIT

package device

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// job is one dispatch split into workgroups. Every participant claims the
// next unclaimed group until none are left, so uneven workgroups, such as
// tiles covered by many instances, balance out.
type job struct {
	groups int
	next   atomic.Int64
	fn     func(group int)
	done   sync.WaitGroup
}

func (j *job) drain() {
	for {
		g := int(j.next.Add(1) - 1)
		if g >= j.groups {
			return
		}
		j.fn(g)
	}
}

// workerPool runs the workgroups of a dispatch on a fixed set of goroutines
// and the dispatching goroutine.
type workerPool struct {
	workers int
	jobs    chan *job
	wg      sync.WaitGroup

	// mu guards handing jobs to workers against close.
	mu     sync.RWMutex
	closed bool
}

// newWorkerPool starts a pool with the given number of workers. If workers is
// 0 or negative, GOMAXPROCS is used.
func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	p := &workerPool{
		workers: workers,
		jobs:    make(chan *job),
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

func (p *workerPool) worker() {
	defer p.wg.Done()
	for j := range p.jobs {
		j.drain()
		j.done.Done()
	}
}

// run calls fn once for every group in [0, groups) and returns after all
// calls have returned. Only idle workers join; the calling goroutine always
// participates, so run makes progress even if every worker is busy or the
// pool is closed.
func (p *workerPool) run(groups int, fn func(group int)) {
	if groups <= 0 {
		return
	}
	j := &job{groups: groups, fn: fn}
	if groups > 1 {
		p.mu.RLock()
		if !p.closed {
		handOff:
			for range min(p.workers, groups-1) {
				j.done.Add(1)
				select {
				case p.jobs <- j:
				default:
					j.done.Done()
					break handOff
				}
			}
		}
		p.mu.RUnlock()
	}
	j.drain()
	j.done.Wait()
}

// close stops the workers after they finished their current jobs. It is safe
// to call multiple times.
func (p *workerPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}
