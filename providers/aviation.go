/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package providers

import (
	"context"
	"net/url"
	"strings"

	"github.com/gravwell/gravwell/v3/ingest/log"
)

const defaultAvwxURL = `https://aviationweather.gov/api/data`

// AviationClient fetches METAR observations and TAF forecasts by ICAO
// code. The report text is opaque to the daemon and forwarded as-is.
type AviationClient struct {
	BaseURL string
	lg      *log.Logger
}

func NewAviationClient(baseURL string, lg *log.Logger) *AviationClient {
	if baseURL == `` {
		baseURL = defaultAvwxURL
	}
	return &AviationClient{BaseURL: baseURL, lg: lg}
}

type avwxReport struct {
	RawOb  string `json:"rawOb"`
	RawTAF string `json:"rawTAF"`
}

// Metar returns the current observation text for the airport.
func (c *AviationClient) Metar(ctx context.Context, icao string) (string, error) {
	reports, err := c.fetch(ctx, `metar`, icao, `true`)
	if err != nil {
		return ``, err
	}
	if reports[0].RawOb == `` {
		return ``, ErrNotFound
	}
	return reports[0].RawOb, nil
}

// Taf returns the current forecast text for the airport.
func (c *AviationClient) Taf(ctx context.Context, icao string) (string, error) {
	reports, err := c.fetch(ctx, `metar`, icao, `true`)
	if err != nil {
		return ``, err
	}
	if reports[0].RawTAF == `` {
		return ``, ErrNotFound
	}
	return reports[0].RawTAF, nil
}

func (c *AviationClient) fetch(ctx context.Context, kind, icao, taf string) ([]avwxReport, error) {
	v := url.Values{}
	v.Set(`ids`, strings.ToUpper(icao))
	v.Set(`format`, `json`)
	v.Set(`taf`, taf)
	var reports []avwxReport
	if err := httpJSON(ctx, c.lg, c.BaseURL+`/`+kind+`?`+v.Encode(), nil, &reports); err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, ErrNotFound
	}
	return reports, nil
}
