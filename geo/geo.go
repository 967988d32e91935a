/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package geo provides the geodesic primitives used when rendering
// position answers: great-circle distance and bearing, Maidenhead
// locators, UTM/MGRS references, and degrees-minutes-seconds output.
// Everything in here is a pure function of its inputs.
package geo

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/im7mortal/UTM"
	geolib "github.com/kellydunn/golang-geo"
)

var (
	ErrInvalidLocator = errors.New("invalid maidenhead locator")
	ErrOutOfRange     = errors.New("coordinate out of range")
)

// DistanceKm returns the great-circle distance between two points in
// kilometers.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	return geolib.NewPoint(lat1, lon1).GreatCircleDistance(geolib.NewPoint(lat2, lon2))
}

// BearingDeg returns the initial bearing from the first point to the
// second, normalized to [0,360).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	b := geolib.NewPoint(lat1, lon1).BearingTo(geolib.NewPoint(lat2, lon2))
	for b < 0 {
		b += 360.0
	}
	for b >= 360.0 {
		b -= 360.0
	}
	return b
}

var compassDirs = []string{
	`N`, `NNE`, `NE`, `ENE`, `E`, `ESE`, `SE`, `SSE`,
	`S`, `SSW`, `SW`, `WSW`, `W`, `WNW`, `NW`, `NNW`,
}

// CompassDir maps a bearing in degrees to one of sixteen compass points.
func CompassDir(deg float64) string {
	idx := int(math.Mod(deg+11.25, 360.0) / 22.5)
	return compassDirs[idx%16]
}

// Maidenhead encodes a position as a grid locator. Precision is the
// number of characters and must be 4 or 6.
func Maidenhead(lat, lon float64, precision int) (string, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ``, ErrOutOfRange
	}
	if precision != 4 && precision != 6 {
		return ``, fmt.Errorf("unsupported precision %d", precision)
	}
	adjLon := lon + 180.0
	adjLat := lat + 90.0
	field := string(rune('A'+int(adjLon/20))) + string(rune('A'+int(adjLat/10)))
	square := string(rune('0'+int(math.Mod(adjLon, 20)/2))) + string(rune('0'+int(math.Mod(adjLat, 10))))
	if precision == 4 {
		return field + square, nil
	}
	sub := string(rune('a'+int(math.Mod(adjLon, 2)*60/5))) + string(rune('a'+int(math.Mod(adjLat, 1)*60/2.5)))
	return field + square + sub, nil
}

// MaidenheadToLatLon decodes a 4 or 6 character locator to the center of
// its cell.
func MaidenheadToLatLon(locator string) (lat, lon float64, err error) {
	l := strings.ToUpper(strings.TrimSpace(locator))
	if len(l) != 4 && len(l) != 6 {
		err = ErrInvalidLocator
		return
	}
	if l[0] < 'A' || l[0] > 'R' || l[1] < 'A' || l[1] > 'R' ||
		l[2] < '0' || l[2] > '9' || l[3] < '0' || l[3] > '9' {
		err = ErrInvalidLocator
		return
	}
	lon = float64(l[0]-'A')*20 + float64(l[2]-'0')*2 - 180
	lat = float64(l[1]-'A')*10 + float64(l[3]-'0') - 90
	if len(l) == 6 {
		if l[4] < 'A' || l[4] > 'X' || l[5] < 'A' || l[5] > 'X' {
			err = ErrInvalidLocator
			return
		}
		lon += float64(l[4]-'A') * 5.0 / 60.0
		lat += float64(l[5]-'A') * 2.5 / 60.0
		//center of the subsquare
		lon += 5.0 / 120.0
		lat += 2.5 / 120.0
	} else {
		lon += 1.0
		lat += 0.5
	}
	return
}

// ValidLocator reports whether the string looks like a 4 or 6 character
// Maidenhead locator.
func ValidLocator(s string) bool {
	_, _, err := MaidenheadToLatLon(s)
	return err == nil
}

// ToUTM converts a position to a UTM reference string, e.g.
// "32U 478156 5739871".
func ToUTM(lat, lon float64) (string, error) {
	easting, northing, zoneNumber, zoneLetter, err := UTM.FromLatLon(lat, lon, lat >= 0)
	if err != nil {
		return ``, err
	}
	return fmt.Sprintf("%d%s %d %d", zoneNumber, zoneLetter, int(math.Round(easting)), int(math.Round(northing))), nil
}

const mgrsColumns = `ABCDEFGHJKLMNPQRSTUVWXYZ`

// ToMGRS converts a position to a 1-meter MGRS reference derived from
// the UTM grid, e.g. "32UMC7815639871".
func ToMGRS(lat, lon float64) (string, error) {
	easting, northing, zoneNumber, zoneLetter, err := UTM.FromLatLon(lat, lon, lat >= 0)
	if err != nil {
		return ``, err
	}
	//100km square column letters cycle in sets of eight per zone
	colIdx := (zoneNumber-1)%3*8 + int(easting)/100000 - 1
	col := mgrsColumns[colIdx%24]
	//row letters cycle through twenty, offset by five for even zones
	rowIdx := int(northing) / 100000 % 20
	if zoneNumber%2 == 0 {
		rowIdx = (rowIdx + 5) % 20
	}
	row := "ABCDEFGHJKLMNPQRSTUV"[rowIdx]
	e := int(easting) % 100000
	n := int(northing) % 100000
	return fmt.Sprintf("%d%s%c%c%05d%05d", zoneNumber, zoneLetter, col, row, e, n), nil
}

// DMS renders a position in degrees-minutes-seconds, e.g.
// "51-53-18N/008-42-02E". Hyphenated form keeps the token 7-bit clean.
func DMS(lat, lon float64) string {
	return dmsOne(lat, `N`, `S`, 2) + `/` + dmsOne(lon, `E`, `W`, 3)
}

func dmsOne(v float64, pos, neg string, degWidth int) string {
	hemi := pos
	if v < 0 {
		hemi = neg
		v = -v
	}
	d := int(v)
	mf := (v - float64(d)) * 60.0
	m := int(mf)
	s := int(math.Round((mf - float64(m)) * 60.0))
	if s == 60 {
		s = 0
		m++
	}
	if m == 60 {
		m = 0
		d++
	}
	return fmt.Sprintf("%0*d-%02d-%02d%s", degWidth, d, m, s, hemi)
}

// imperialCountries lists the countries that have not adopted metric
// units; senders located there default to imperial output.
var imperialCountries = map[string]bool{
	`US`: true,
	`LR`: true,
	`MM`: true,
}

// ImperialCountry reports whether the ISO-3166 alpha-2 country code
// defaults to imperial units.
func ImperialCountry(cc string) bool {
	return imperialCountries[strings.ToUpper(cc)]
}
