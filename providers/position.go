/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gravwell/gravwell/v3/ingest/log"
)

const (
	defaultPositionURL  = `https://api.aprs.fi/api/get`
	positionCacheBucket = `position`
	positionCacheTTL    = 5 * time.Minute
)

// PosReport is the last known position of a station.
type PosReport struct {
	Callsign  string    `json:"callsign"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Comment   string    `json:"comment"`
	LastHeard time.Time `json:"last_heard"`
}

// PositionClient looks up station positions on the aprs.fi style API.
// An empty key disables the provider.
type PositionClient struct {
	BaseURL string
	APIKey  string
	Agent   string
	lg      *log.Logger
	cache   *ResultCache
}

func NewPositionClient(baseURL, apiKey, agent string, cache *ResultCache, lg *log.Logger) *PositionClient {
	if baseURL == `` {
		baseURL = defaultPositionURL
	}
	return &PositionClient{BaseURL: baseURL, APIKey: apiKey, Agent: agent, lg: lg, cache: cache}
}

type aprsfiResponse struct {
	Result  string `json:"result"`
	Found   int    `json:"found"`
	Entries []struct {
		Name     string `json:"name"`
		Lat      string `json:"lat"`
		Lng      string `json:"lng"`
		Comment  string `json:"comment"`
		LastTime string `json:"lasttime"`
	} `json:"entries"`
}

// Lookup resolves a callsign to its last beaconed position.
func (c *PositionClient) Lookup(ctx context.Context, callsign string) (PosReport, error) {
	var rep PosReport
	if c.APIKey == `` {
		return rep, ErrDisabled
	}
	callsign = strings.ToUpper(callsign)
	if c.cache.Get(positionCacheBucket, callsign, &rep) {
		return rep, nil
	}
	v := url.Values{}
	v.Set(`name`, callsign)
	v.Set(`what`, `loc`)
	v.Set(`apikey`, c.APIKey)
	v.Set(`format`, `json`)
	var raw aprsfiResponse
	hdr := map[string]string{`User-Agent`: c.Agent}
	if err := httpJSON(ctx, c.lg, c.BaseURL+`?`+v.Encode(), hdr, &raw); err != nil {
		return rep, err
	}
	if raw.Result != `ok` {
		return rep, fmt.Errorf("%w: result %s", ErrUnavailable, raw.Result)
	}
	if raw.Found == 0 || len(raw.Entries) == 0 {
		return rep, ErrNotFound
	}
	e := raw.Entries[0]
	lat, err1 := strconv.ParseFloat(e.Lat, 64)
	lon, err2 := strconv.ParseFloat(e.Lng, 64)
	if err1 != nil || err2 != nil {
		return rep, fmt.Errorf("%w: bad coordinates", ErrUnavailable)
	}
	rep = PosReport{
		Callsign: e.Name,
		Lat:      lat,
		Lon:      lon,
		Comment:  e.Comment,
	}
	if secs, err := strconv.ParseInt(e.LastTime, 10, 64); err == nil {
		rep.LastHeard = time.Unix(secs, 0).UTC()
	}
	c.cache.Put(positionCacheBucket, callsign, rep, positionCacheTTL)
	return rep, nil
}
