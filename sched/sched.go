/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package sched multiplexes every outbound producer onto the single
// paced stream: ad-hoc responses and acks, the periodic beacon, the
// bulletin cycle, and the reference refresh jobs. The loop is
// single-threaded and cooperative; blocking work (downloads, provider
// calls) runs in worker goroutines that hand their commit step back
// to the loop.
package sched

import (
	"context"
	"time"

	"github.com/gravwell/gravwell/v3/ingest/log"

	"github.com/joergschultzelutter/mpad/aprs"
)

// Writer is the session's outbound surface; the scheduler is its only
// caller.
type Writer interface {
	Write(ctx context.Context, cat aprs.Category, payload string) error
}

// Group is one atomic unit of outbound work: its payloads are written
// back to back with no interleaving from other categories.
type Group struct {
	Cat      aprs.Category
	Payloads []string
}

// Job is a typed ticker task. RunAtStart injects an immediate first
// run before the interval cadence begins.
type Job struct {
	Name       string
	Interval   time.Duration
	RunAtStart bool
	Fn         func(ctx context.Context)
}

// Scheduler owns the outbound queue and the job tickers.
type Scheduler struct {
	w  Writer
	lg *log.Logger

	queue   chan Group
	commits chan func()
	jobs    []Job
}

func New(w Writer, lg *log.Logger) *Scheduler {
	return &Scheduler{
		w:       w,
		lg:      lg,
		queue:   make(chan Group, 256),
		commits: make(chan func(), 32),
	}
}

// AddJob registers a ticker task; call before Run.
func (s *Scheduler) AddJob(j Job) {
	s.jobs = append(s.jobs, j)
}

// Enqueue schedules an atomic group of payloads. It never blocks the
// caller; on a saturated queue the group is dropped with a log entry
// (the protocol has no delivery guarantee and the sender retransmits).
func (s *Scheduler) Enqueue(g Group) {
	if len(g.Payloads) == 0 {
		return
	}
	select {
	case s.queue <- g:
	default:
		s.lg.Warn("outbound queue saturated, dropping", log.KV("category", g.Cat), log.KV("payloads", len(g.Payloads)))
	}
}

// Commit hands a closure to the scheduler loop; refresh workers use
// it to swap indexes from the single-threaded context.
func (s *Scheduler) Commit(fn func()) {
	select {
	case s.commits <- fn:
	default:
		//the commit queue is effectively unbounded in practice; if it
		//ever fills, run inline rather than lose the commit
		fn()
	}
}

// Run drives the loop until the context is canceled. Jobs run in
// their own goroutines; writes and commits happen here.
func (s *Scheduler) Run(ctx context.Context) {
	for _, j := range s.jobs {
		go s.runJob(ctx, j)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.commits:
			fn()
		case g := <-s.queue:
			s.writeGroup(ctx, g)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, j Job) {
	if j.RunAtStart {
		j.Fn(ctx)
	}
	if j.Interval <= 0 {
		return
	}
	tckr := time.NewTicker(j.Interval)
	defer tckr.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tckr.C:
			j.Fn(ctx)
		}
	}
}

// writeGroup emits one atomic group; a write failure abandons the
// remainder of the group (no retransmit by design).
func (s *Scheduler) writeGroup(ctx context.Context, g Group) {
	for _, p := range g.Payloads {
		if err := s.w.Write(ctx, g.Cat, p); err != nil {
			s.lg.Warn("outbound write failed", log.KV("category", g.Cat), log.KVErr(err))
			return
		}
	}
}
