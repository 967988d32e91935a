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
	"strings"
	"time"

	"github.com/gravwell/gravwell/v3/ingest/log"
)

// CwopReport is one citizen weather station observation.
type CwopReport struct {
	ID          string
	Time        time.Time
	TempC       float64
	WindDeg     int
	WindKmh     float64
	GustKmh     float64
	HumidityPct int
	PressureHpa float64
	Rain1hMm    float64
}

// CwopClient queries the citizen weather observation feed either by
// station id or by nearest-to-position.
type CwopClient struct {
	BaseURL string
	lg      *log.Logger
}

func NewCwopClient(baseURL string, lg *log.Logger) *CwopClient {
	return &CwopClient{BaseURL: baseURL, lg: lg}
}

type cwopRecord struct {
	ID       string  `json:"id"`
	Time     int64   `json:"time"`
	TempC    float64 `json:"temp_c"`
	WindDeg  int     `json:"wind_deg"`
	WindKmh  float64 `json:"wind_kmh"`
	GustKmh  float64 `json:"gust_kmh"`
	Humidity int     `json:"humidity"`
	Pressure float64 `json:"pressure_hpa"`
	Rain1h   float64 `json:"rain_1h_mm"`
}

// ByStation fetches the latest observation of a known station id.
func (c *CwopClient) ByStation(ctx context.Context, id string) (CwopReport, error) {
	v := url.Values{}
	v.Set(`id`, strings.ToUpper(id))
	return c.fetch(ctx, v)
}

// Nearest fetches the latest observation of the station closest to
// the position.
func (c *CwopClient) Nearest(ctx context.Context, lat, lon float64) (CwopReport, error) {
	v := url.Values{}
	v.Set(`lat`, fmt.Sprintf("%f", lat))
	v.Set(`lon`, fmt.Sprintf("%f", lon))
	return c.fetch(ctx, v)
}

func (c *CwopClient) fetch(ctx context.Context, v url.Values) (CwopReport, error) {
	var rep CwopReport
	if c.BaseURL == `` {
		return rep, ErrDisabled
	}
	var recs []cwopRecord
	if err := httpJSON(ctx, c.lg, c.BaseURL+`?`+v.Encode(), nil, &recs); err != nil {
		return rep, err
	}
	if len(recs) == 0 {
		return rep, ErrNotFound
	}
	r := recs[0]
	return CwopReport{
		ID:          r.ID,
		Time:        time.Unix(r.Time, 0).UTC(),
		TempC:       r.TempC,
		WindDeg:     r.WindDeg,
		WindKmh:     r.WindKmh,
		GustKmh:     r.GustKmh,
		HumidityPct: r.Humidity,
		PressureHpa: r.Pressure,
		Rain1hMm:    r.Rain1h,
	}, nil
}
