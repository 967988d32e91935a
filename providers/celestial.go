/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package providers

import (
	"time"

	"github.com/sixdouglas/suncalc"
)

// SunMoon carries the rise and set instants for one date and
// position. All times are Zulu; zero times mean the event does not
// occur on that date (polar day/night, moon below horizon).
type SunMoon struct {
	Sunrise  time.Time
	Sunset   time.Time
	Moonrise time.Time
	Moonset  time.Time
}

// RiseSet computes sun and moon rise/set for the given date at the
// position. Pure function of its inputs.
func RiseSet(date time.Time, lat, lon float64) SunMoon {
	var out SunMoon
	times := suncalc.GetTimes(date, lat, lon)
	if t, ok := times[suncalc.Sunrise]; ok {
		out.Sunrise = t.Value.UTC()
	}
	if t, ok := times[suncalc.Sunset]; ok {
		out.Sunset = t.Value.UTC()
	}
	moon := suncalc.GetMoonTimes(date, lat, lon, true)
	if !moon.Rise.IsZero() {
		out.Moonrise = moon.Rise.UTC()
	}
	if !moon.Set.IsZero() {
		out.Moonset = moon.Set.UTC()
	}
	return out
}
