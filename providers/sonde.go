/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package providers

import (
	"context"
	"regexp"
	"strconv"
)

// SondeReport couples the radiosonde's last known track point with a
// crude landing estimate.
type SondeReport struct {
	Pos       PosReport
	AltM      float64
	Climbing  bool
	DescentMS float64 //positive when descending
}

var sondeAltRe = regexp.MustCompile(`(?i)alt[ =]?([0-9]+)m?`)
var sondeClbRe = regexp.MustCompile(`(?i)clb[ =]?(-?[0-9]+(?:\.[0-9]+)?)`)

// SondeClient predicts radiosonde landings from the position lookup
// feed; sonde trackers beacon altitude and climb rate in the comment
// field.
type SondeClient struct {
	pos *PositionClient
}

func NewSondeClient(pos *PositionClient) *SondeClient {
	return &SondeClient{pos: pos}
}

// Track fetches the sonde's last track point and parses altitude and
// climb from the beacon comment.
func (c *SondeClient) Track(ctx context.Context, callsign string) (SondeReport, error) {
	var rep SondeReport
	pos, err := c.pos.Lookup(ctx, callsign)
	if err != nil {
		return rep, err
	}
	rep.Pos = pos
	if m := sondeAltRe.FindStringSubmatch(pos.Comment); m != nil {
		rep.AltM, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := sondeClbRe.FindStringSubmatch(pos.Comment); m != nil {
		clb, _ := strconv.ParseFloat(m[1], 64)
		if clb >= 0 {
			rep.Climbing = true
		} else {
			rep.DescentMS = -clb
		}
	}
	return rep, nil
}
