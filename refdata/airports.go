/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package refdata

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joergschultzelutter/mpad/geo"
)

var ErrAirportNotFound = errors.New("airport not found")

// Airport is one entry of the airport catalog. Only fields the METAR
// and TAF paths need are retained.
type Airport struct {
	ICAO string
	IATA string
	Name string
	Lat  float64
	Lon  float64
	//METAR availability; catalog rows without weather reporting are
	//indexed but skipped by nearest-with-weather lookups
	HasMetar bool
}

// AirportIndex answers ICAO/IATA lookups and nearest-airport scans.
type AirportIndex struct {
	byICAO map[string]*Airport
	byIATA map[string]*Airport
	all    []*Airport
}

// LoadAirports parses the on-disk airport catalog. The format is the
// CSV dump of the public airport database: ident, type, name, lat,
// lon, iata, and a metar flag column.
func LoadAirports(path string) (*AirportIndex, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fin.Close()
	return parseAirports(fin)
}

func parseAirports(r io.Reader) (*AirportIndex, error) {
	idx := &AirportIndex{
		byICAO: make(map[string]*Airport),
		byIATA: make(map[string]*Airport),
	}
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1
	first := true
	for {
		rec, err := rdr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(rec[0], `icao`) {
				continue //header row
			}
		}
		if len(rec) < 6 {
			continue
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		ap := &Airport{
			ICAO:     strings.ToUpper(strings.TrimSpace(rec[0])),
			Name:     strings.TrimSpace(rec[2]),
			IATA:     strings.ToUpper(strings.TrimSpace(rec[5])),
			Lat:      lat,
			Lon:      lon,
			HasMetar: len(rec) > 6 && strings.TrimSpace(rec[6]) == `1`,
		}
		if ap.ICAO == `` {
			continue
		}
		idx.all = append(idx.all, ap)
		idx.byICAO[ap.ICAO] = ap
		if ap.IATA != `` {
			idx.byIATA[ap.IATA] = ap
		}
	}
	return idx, nil
}

// ByICAO resolves a four letter code.
func (idx *AirportIndex) ByICAO(code string) (*Airport, error) {
	if ap, ok := idx.byICAO[strings.ToUpper(code)]; ok {
		return ap, nil
	}
	return nil, ErrAirportNotFound
}

// ByIATA resolves a three letter code.
func (idx *AirportIndex) ByIATA(code string) (*Airport, error) {
	if ap, ok := idx.byIATA[strings.ToUpper(code)]; ok {
		return ap, nil
	}
	return nil, ErrAirportNotFound
}

// Nearest returns the closest airport to the position; when
// requireMetar is set airports without weather reporting are skipped.
func (idx *AirportIndex) Nearest(lat, lon float64, requireMetar bool) (*Airport, error) {
	var best *Airport
	bestDist := 0.0
	for _, ap := range idx.all {
		if requireMetar && !ap.HasMetar {
			continue
		}
		d := geo.DistanceKm(lat, lon, ap.Lat, ap.Lon)
		if best == nil || d < bestDist {
			best = ap
			bestDist = d
		}
	}
	if best == nil {
		return nil, ErrAirportNotFound
	}
	return best, nil
}

// Len reports the number of indexed airports.
func (idx *AirportIndex) Len() int {
	return len(idx.all)
}
