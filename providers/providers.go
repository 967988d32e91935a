/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package providers contains the thin typed clients for the external
// data services the dispatcher consults: weather, geocoding, aviation
// weather, CWOP, OSM search, position lookup, the pager gateway,
// celestial and orbital calculations, and mail transport. Every call
// takes a context with an individual timeout and returns either a
// structured record or one of the typed errors below.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gravwell/gravwell/v3/ingest/log"
)

var (
	//ErrNotFound means the target could not be resolved upstream.
	ErrNotFound = errors.New("not found")
	//ErrUnavailable means the service failed or timed out.
	ErrUnavailable = errors.New("service unavailable")
	//ErrDisabled means the feature is switched off by its
	//configuration sentinel.
	ErrDisabled = errors.New("feature disabled")
)

const defaultCallTimeout = 10 * time.Second

// httpJSON performs a GET with the per-call timeout and decodes the
// JSON answer into out. Non-2xx answers map onto the error taxonomy:
// 404 is ErrNotFound, everything else ErrUnavailable.
func httpJSON(ctx context.Context, lg *log.Logger, url string, hdr map[string]string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, defaultCallTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	callID := uuid.New().String()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		lg.Warn("provider call failed", log.KV("call", callID), log.KV("url", url), log.KVErr(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		lg.Warn("provider call rejected", log.KV("call", callID), log.KV("url", url), log.KV("status", resp.StatusCode))
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8*1024*1024))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err = json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
