/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package refdata manages the on-disk reference datasets: the airport
// catalog, the repeater directory, and the satellite TLE and frequency
// tables. Each dataset is handled by a fetcher (HTTP, retry, atomic
// replace), a format-specific parser, and an in-memory indexer; the
// dispatcher only ever talks to the indexers.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dchest/safefile"
	"github.com/klauspost/compress/gzip"
)

const (
	fetchTimeout = 60 * time.Second

	//refresh cadence per dataset
	SatelliteInterval = 2 * 24 * time.Hour
	RepeaterInterval  = 7 * 24 * time.Hour
	AirportInterval   = 30 * 24 * time.Hour
)

var ErrFetchFailed = errors.New("reference download failed")

// Fetch downloads url into path atomically: the payload lands in a
// temp file in the same directory and is renamed over the target only
// on success, so readers never observe a torn file. A failed request
// is retried once. Gzip payloads are decompressed transparently. On
// success the sidecar timestamp is updated.
func Fetch(ctx context.Context, url, path string) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if lastErr = fetchOnce(ctx, url, path); lastErr == nil {
			return stampSidecar(path, time.Now())
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return fmt.Errorf("%w: %v", ErrFetchFailed, lastErr)
}

func fetchOnce(ctx context.Context, url, path string) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set(`Accept-Encoding`, `gzip`)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body io.Reader = resp.Body
	if resp.Header.Get(`Content-Encoding`) == `gzip` {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gz.Close()
		body = gz
	}
	fout, err := safefile.Create(path, 0644)
	if err != nil {
		return err
	}
	defer fout.Close()
	if _, err = io.Copy(fout, body); err != nil {
		return err
	}
	return fout.Commit()
}

func sidecarPath(path string) string {
	return path + `.ts`
}

func stampSidecar(path string, ts time.Time) error {
	fout, err := safefile.Create(sidecarPath(path), 0644)
	if err != nil {
		return err
	}
	defer fout.Close()
	if _, err = fmt.Fprintln(fout, ts.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return fout.Commit()
}

// LastRefresh reads the sidecar timestamp; a missing or unreadable
// sidecar reports the zero time so the dataset refreshes.
func LastRefresh(path string) time.Time {
	data, err := os.ReadFile(sidecarPath(path))
	if err != nil {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, string(trimNewline(data)))
	if err != nil {
		return time.Time{}
	}
	return ts
}

// NeedsRefresh reports whether the dataset file is missing or its last
// refresh is older than the interval.
func NeedsRefresh(path string, interval time.Duration) bool {
	if _, err := os.Stat(path); err != nil {
		return true
	}
	last := LastRefresh(path)
	return last.IsZero() || time.Since(last) >= interval
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
