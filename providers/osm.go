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
	"sort"
	"strings"

	"github.com/gravwell/gravwell/v3/ingest/log"

	"github.com/joergschultzelutter/mpad/geo"
)

// OsmPlace is one point of interest near a position.
type OsmPlace struct {
	Name       string
	Lat        float64
	Lon        float64
	DistanceKm float64
	BearingDeg float64
}

// OsmClient performs nearby category searches on the Nominatim-style
// amenity interface; it shares the geocoder's pacing obligations and
// therefore rides on a Geocoder instance.
type OsmClient struct {
	geo *Geocoder
	lg  *log.Logger
}

func NewOsmClient(g *Geocoder, lg *log.Logger) *OsmClient {
	return &OsmClient{geo: g, lg: lg}
}

// Nearby returns up to topN category matches around the position,
// closest first.
func (c *OsmClient) Nearby(ctx context.Context, lat, lon float64, category string, topN int) ([]OsmPlace, error) {
	if topN < 1 {
		topN = 1
	}
	if err := c.geo.lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	//a small bounding box around the position keeps the search local
	const box = 0.5
	v := url.Values{}
	v.Set(`format`, `json`)
	v.Set(`limit`, `25`)
	v.Set(`q`, `[`+strings.ToLower(category)+`]`)
	v.Set(`viewbox`, fmt.Sprintf("%f,%f,%f,%f", lon-box, lat+box, lon+box, lat-box))
	v.Set(`bounded`, `1`)
	var results []nominatimResult
	hdr := map[string]string{`User-Agent`: c.geo.Agent}
	if err := httpJSON(ctx, c.lg, c.geo.BaseURL+`/search?`+v.Encode(), hdr, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	places := make([]OsmPlace, 0, len(results))
	for _, r := range results {
		pl := placeFrom(r)
		name := pl.DisplayName
		if i := strings.Index(name, `,`); i > 0 {
			name = name[:i]
		}
		places = append(places, OsmPlace{
			Name:       name,
			Lat:        pl.Lat,
			Lon:        pl.Lon,
			DistanceKm: geo.DistanceKm(lat, lon, pl.Lat, pl.Lon),
			BearingDeg: geo.BearingDeg(lat, lon, pl.Lat, pl.Lon),
		})
	}
	sort.Slice(places, func(i, j int) bool {
		return places[i].DistanceKm < places[j].DistanceKm
	})
	if len(places) > topN {
		places = places[:topN]
	}
	return places, nil
}
