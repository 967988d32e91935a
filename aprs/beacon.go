/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package aprs

import (
	"fmt"
	"math"
)

// Position holds the station particulars that go out in the periodic
// beacon.
type Position struct {
	Lat        float64
	Lon        float64
	SymbolTab  byte //primary or alternate symbol table identifier
	SymbolCode byte
	AltFeet    int //appended as /A=nnnnnn when > 0
	Comment    string
}

// Beacon renders an uncompressed position report payload. Latitude is
// encoded ddmm.ssN, longitude dddmm.ssE per the APRS spec.
func (p Position) Beacon() string {
	lat, latHemi := degMin(p.Lat, `N`, `S`)
	lon, lonHemi := degMin(p.Lon, `E`, `W`)
	tab := p.SymbolTab
	if tab == 0 {
		tab = '/'
	}
	code := p.SymbolCode
	if code == 0 {
		code = '#'
	}
	out := fmt.Sprintf("!%s%s%c%s%s%c%s",
		fmt.Sprintf("%07.2f", lat), latHemi, tab,
		fmt.Sprintf("%08.2f", lon), lonHemi, code,
		p.Comment)
	if p.AltFeet > 0 {
		out += fmt.Sprintf("/A=%06d", p.AltFeet)
	}
	return out
}

// degMin converts decimal degrees to the APRS ddmm.ss form and the
// hemisphere letter.
func degMin(v float64, pos, neg string) (float64, string) {
	hemi := pos
	if v < 0 {
		hemi = neg
		v = -v
	}
	deg := math.Floor(v)
	min := (v - deg) * 60.0
	return deg*100 + min, hemi
}
