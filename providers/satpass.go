/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package providers

import (
	"errors"
	"math"
	"time"

	satlib "github.com/joshuaferrara/go-satellite"

	"github.com/joergschultzelutter/mpad/refdata"
)

// DefaultMinElevation is the pass elevation threshold in degrees; a
// pass peaking below it is not reported.
const DefaultMinElevation = 10.0

var ErrNoPass = errors.New("no pass within the search window")

// Pass is one predicted overflight.
type Pass struct {
	AOS      time.Time //acquisition of signal
	LOS      time.Time //loss of signal
	MaxEl    float64   //degrees
	AosAzDeg float64
	LosAzDeg float64
}

// PassPredictor propagates cached TLE element sets with SGP4.
type PassPredictor struct {
	MinElevation float64 //degrees, DefaultMinElevation when zero
}

// NextPass returns the first pass over the observer that starts after
// from. With visibleOnly set, only passes during local darkness count
// (the naive check: the pass must begin between local sunset and
// sunrise as computed from sun elevation).
func (p PassPredictor) NextPass(sat *refdata.Satellite, lat, lon, altM float64, from time.Time, visibleOnly bool) (Pass, error) {
	minEl := p.MinElevation
	if minEl <= 0 {
		minEl = DefaultMinElevation
	}
	s := satlib.TLEToSat(sat.Line1, sat.Line2, satlib.GravityWGS84)
	obs := satlib.LatLong{
		Latitude:  lat * math.Pi / 180.0,
		Longitude: lon * math.Pi / 180.0,
	}
	//step the propagation over three days in 30 second increments,
	//tracking rise and fall through the elevation threshold
	const (
		step   = 30 * time.Second
		window = 3 * 24 * time.Hour
	)
	var cur Pass
	inPass := false
	for t := from.UTC(); t.Before(from.Add(window)); t = t.Add(step) {
		el, az := lookAngle(s, obs, altM, t)
		if el >= 0 && !inPass {
			inPass = true
			cur = Pass{AOS: t, AosAzDeg: az, MaxEl: el}
		}
		if inPass {
			if el > cur.MaxEl {
				cur.MaxEl = el
			}
			if el < 0 {
				cur.LOS = t
				cur.LosAzDeg = az
				inPass = false
				if cur.MaxEl >= minEl && (!visibleOnly || darkAt(cur.AOS, lat, lon)) {
					return cur, nil
				}
			}
		}
	}
	return Pass{}, ErrNoPass
}

// lookAngle returns elevation and azimuth in degrees for the observer
// at the instant.
func lookAngle(s satlib.Satellite, obs satlib.LatLong, altM float64, t time.Time) (el, az float64) {
	y, mo, d := t.Date()
	h, mi, sec := t.Clock()
	pos, _ := satlib.Propagate(s, y, int(mo), d, h, mi, sec)
	jday := satlib.JDay(y, int(mo), d, h, mi, sec)
	angles := satlib.ECIToLookAngles(pos, obs, altM/1000.0, jday)
	return angles.El * 180.0 / math.Pi, math.Mod(angles.Az*180.0/math.Pi+360.0, 360.0)
}

// darkAt reports whether the sun is below the horizon at the instant;
// visible pass prediction only counts passes in darkness.
func darkAt(t time.Time, lat, lon float64) bool {
	sm := RiseSet(t, lat, lon)
	if sm.Sunrise.IsZero() || sm.Sunset.IsZero() {
		return false
	}
	return t.Before(sm.Sunrise) || t.After(sm.Sunset)
}
