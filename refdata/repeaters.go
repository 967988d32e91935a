/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package refdata

import (
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/joergschultzelutter/mpad/geo"
)

var ErrNoRepeater = errors.New("no repeater matches")

// Repeater is one entry of the repeater directory dump.
type Repeater struct {
	Callsign    string  `json:"repeater"`
	Band        string  `json:"band"`
	Mode        string  `json:"mode"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	FreqMHz     float64 `json:"frequency"`
	ShiftMHz    float64 `json:"shift"`
	Locator     string  `json:"locator"`
	Town        string  `json:"town"`
	DistanceKm  float64 `json:"-"`
	BearingDeg  float64 `json:"-"`
}

// RepeaterIndex answers filtered nearest-repeater queries.
type RepeaterIndex struct {
	all []Repeater
}

// LoadRepeaters parses the JSON repeater directory.
func LoadRepeaters(path string) (*RepeaterIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseRepeaters(data)
}

func parseRepeaters(data []byte) (*RepeaterIndex, error) {
	var doc struct {
		Repeaters []Repeater `json:"repeaters"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		//the dump comes in both wrapped and bare-array flavors
		var bare []Repeater
		if err2 := json.Unmarshal(data, &bare); err2 != nil {
			return nil, err
		}
		doc.Repeaters = bare
	}
	idx := &RepeaterIndex{all: doc.Repeaters}
	for i := range idx.all {
		idx.all[i].Band = strings.ToLower(idx.all[i].Band)
		idx.all[i].Mode = strings.ToLower(idx.all[i].Mode)
	}
	return idx, nil
}

// Nearest returns up to topN repeaters around the position, closest
// first, optionally restricted by band and mode. Distance and bearing
// are filled in on the returned copies.
func (idx *RepeaterIndex) Nearest(lat, lon float64, band, mode string, topN int) ([]Repeater, error) {
	if topN < 1 {
		topN = 1
	}
	band = strings.ToLower(band)
	mode = strings.ToLower(mode)
	var matches []Repeater
	for _, r := range idx.all {
		if band != `` && r.Band != band {
			continue
		}
		if mode != `` && r.Mode != mode {
			continue
		}
		r.DistanceKm = geo.DistanceKm(lat, lon, r.Lat, r.Lon)
		r.BearingDeg = geo.BearingDeg(lat, lon, r.Lat, r.Lon)
		matches = append(matches, r)
	}
	if len(matches) == 0 {
		return nil, ErrNoRepeater
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})
	if len(matches) > topN {
		matches = matches[:topN]
	}
	return matches, nil
}

// Len reports the number of indexed repeaters.
func (idx *RepeaterIndex) Len() int {
	return len(idx.all)
}
