/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package sched

import (
	"context"
	"time"

	"github.com/gravwell/gravwell/v3/ingest/log"

	"github.com/joergschultzelutter/mpad/aprs"
	"github.com/joergschultzelutter/mpad/refdata"
)

const (
	DefaultBeaconInterval   = 30 * time.Minute
	DefaultBulletinInterval = 4 * time.Hour
)

// BeaconJob emits the station's position beacon on its duty cycle.
func BeaconJob(s *Scheduler, pos aprs.Position, interval time.Duration) Job {
	if interval <= 0 {
		interval = DefaultBeaconInterval
	}
	payload := pos.Beacon()
	return Job{
		Name:       `beacon`,
		Interval:   interval,
		RunAtStart: true,
		Fn: func(ctx context.Context) {
			s.Enqueue(Group{Cat: aprs.CatBeacon, Payloads: []string{payload}})
		},
	}
}

// BulletinJob emits the configured bulletin lines as BLN0..BLNn, in
// order and atomically.
func BulletinJob(s *Scheduler, lines []string, interval time.Duration) Job {
	if interval <= 0 {
		interval = DefaultBulletinInterval
	}
	var payloads []string
	for i, l := range lines {
		if l == `` {
			continue
		}
		payloads = append(payloads, aprs.Bulletin(i, l))
	}
	return Job{
		Name:       `bulletin`,
		Interval:   interval,
		RunAtStart: true,
		Fn: func(ctx context.Context) {
			s.Enqueue(Group{Cat: aprs.CatBulletin, Payloads: payloads})
		},
	}
}

// RefreshJob keeps one reference dataset current: the download runs
// in the job's goroutine, the index swap is committed from the
// scheduler loop so there is never more than one writer. On startup
// the dataset is fetched only when missing or stale; the reload
// always runs so the index comes up from the existing file.
func RefreshJob(s *Scheduler, lg *log.Logger, name, url, path string, interval time.Duration, reload func() error) Job {
	refresh := func(ctx context.Context, force bool) {
		if url != `` && (force || refdata.NeedsRefresh(path, interval)) {
			if err := refdata.Fetch(ctx, url, path); err != nil {
				lg.Error("reference refresh failed", log.KV("dataset", name), log.KVErr(err))
				//a stale copy on disk is still usable
			}
		}
		s.Commit(func() {
			if err := reload(); err != nil {
				lg.Error("reference reload failed", log.KV("dataset", name), log.KVErr(err))
				return
			}
			lg.Info("reference dataset loaded", log.KV("dataset", name))
		})
	}
	first := true
	return Job{
		Name:       name,
		Interval:   interval,
		RunAtStart: true,
		Fn: func(ctx context.Context) {
			force := !first
			if first {
				first = false
			}
			refresh(ctx, force)
		},
	}
}

// HousekeepingJob wraps a periodic maintenance call such as the mail
// Sent-folder pruning.
func HousekeepingJob(lg *log.Logger, name string, interval time.Duration, fn func(ctx context.Context) error) Job {
	return Job{
		Name:     name,
		Interval: interval,
		Fn: func(ctx context.Context) {
			if err := fn(ctx); err != nil {
				lg.Warn("housekeeping task failed", log.KV("task", name), log.KVErr(err))
			}
		},
	}
}
