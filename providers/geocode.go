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
	"golang.org/x/time/rate"
)

const (
	defaultNominatimURL = `https://nominatim.openstreetmap.org`
	geocodeCacheBucket  = `geocode`
	geocodeCacheTTL     = 7 * 24 * time.Hour
)

// Place is a resolved location.
type Place struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	DisplayName string  `json:"display_name"`
	City        string  `json:"city"`
	Zip         string  `json:"zip"`
	CountryCode string  `json:"country_code"`
}

// Geocoder is the Nominatim-style forward/reverse client. The public
// instance mandates one request per second; the limiter enforces it
// across all callers.
type Geocoder struct {
	BaseURL string
	Agent   string
	lg      *log.Logger
	cache   *ResultCache
	lim     *rate.Limiter
}

func NewGeocoder(baseURL, agent string, cache *ResultCache, lg *log.Logger) *Geocoder {
	if baseURL == `` {
		baseURL = defaultNominatimURL
	}
	return &Geocoder{
		BaseURL: baseURL,
		Agent:   agent,
		lg:      lg,
		cache:   cache,
		lim:     rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Address     struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		Postcode    string `json:"postcode"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

func (g *Geocoder) query(ctx context.Context, cacheKey, u string) (Place, error) {
	var pl Place
	if g.cache.Get(geocodeCacheBucket, cacheKey, &pl) {
		return pl, nil
	}
	if err := g.lim.Wait(ctx); err != nil {
		return pl, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var results []nominatimResult
	hdr := map[string]string{`User-Agent`: g.Agent}
	if err := httpJSON(ctx, g.lg, u, hdr, &results); err != nil {
		return pl, err
	}
	if len(results) == 0 {
		return pl, ErrNotFound
	}
	pl = placeFrom(results[0])
	g.cache.Put(geocodeCacheBucket, cacheKey, pl, geocodeCacheTTL)
	return pl, nil
}

func placeFrom(r nominatimResult) Place {
	city := r.Address.City
	if city == `` {
		city = r.Address.Town
	}
	if city == `` {
		city = r.Address.Village
	}
	var lat, lon float64
	fmt.Sscanf(r.Lat, "%f", &lat)
	fmt.Sscanf(r.Lon, "%f", &lon)
	return Place{
		Lat:         lat,
		Lon:         lon,
		DisplayName: r.DisplayName,
		City:        city,
		Zip:         r.Address.Postcode,
		CountryCode: strings.ToUpper(r.Address.CountryCode),
	}
}

// Forward resolves a city (with optional state and country) to a
// position.
func (g *Geocoder) Forward(ctx context.Context, city, state, country string) (Place, error) {
	v := url.Values{}
	v.Set(`format`, `json`)
	v.Set(`addressdetails`, `1`)
	v.Set(`limit`, `1`)
	v.Set(`city`, city)
	if state != `` {
		v.Set(`state`, state)
	}
	if country != `` {
		v.Set(`country`, country)
	}
	key := strings.ToLower(fmt.Sprintf("city:%s:%s:%s", city, state, country))
	return g.query(ctx, key, g.BaseURL+`/search?`+v.Encode())
}

// ForwardZip resolves a postal code within a country.
func (g *Geocoder) ForwardZip(ctx context.Context, zip, country string) (Place, error) {
	v := url.Values{}
	v.Set(`format`, `json`)
	v.Set(`addressdetails`, `1`)
	v.Set(`limit`, `1`)
	v.Set(`postalcode`, zip)
	v.Set(`country`, country)
	key := strings.ToLower(fmt.Sprintf("zip:%s:%s", zip, country))
	return g.query(ctx, key, g.BaseURL+`/search?`+v.Encode())
}

// Reverse resolves a position to the closest address.
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (Place, error) {
	var pl Place
	key := fmt.Sprintf("rev:%.4f:%.4f", lat, lon)
	if g.cache.Get(geocodeCacheBucket, key, &pl) {
		return pl, nil
	}
	if err := g.lim.Wait(ctx); err != nil {
		return pl, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	v := url.Values{}
	v.Set(`format`, `json`)
	v.Set(`addressdetails`, `1`)
	v.Set(`lat`, fmt.Sprintf("%f", lat))
	v.Set(`lon`, fmt.Sprintf("%f", lon))
	var result nominatimResult
	hdr := map[string]string{`User-Agent`: g.Agent}
	if err := httpJSON(ctx, g.lg, g.BaseURL+`/reverse?`+v.Encode(), hdr, &result); err != nil {
		return pl, err
	}
	if result.Lat == `` && result.DisplayName == `` {
		return pl, ErrNotFound
	}
	pl = placeFrom(result)
	g.cache.Put(geocodeCacheBucket, key, pl, geocodeCacheTTL)
	return pl, nil
}
