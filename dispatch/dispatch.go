/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package dispatch maps a parsed command onto the provider
// collaborators and renders the answer as a semantic response. It is
// the only component that resolves symbolic targets into coordinates
// and the only place the failure taxonomy is translated into
// user-visible text.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gravwell/gravwell/v3/ingest/log"

	"github.com/joergschultzelutter/mpad/cmdparse"
	"github.com/joergschultzelutter/mpad/geo"
	"github.com/joergschultzelutter/mpad/providers"
	"github.com/joergschultzelutter/mpad/refdata"
	"github.com/joergschultzelutter/mpad/response"
)

// Collaborator interfaces; the concrete clients in the providers
// package satisfy them, tests plug in fakes.
type (
	WxProvider interface {
		Get(ctx context.Context, lat, lon float64, units, lang string) (*providers.WxReport, error)
	}
	GeoProvider interface {
		Forward(ctx context.Context, city, state, country string) (providers.Place, error)
		ForwardZip(ctx context.Context, zip, country string) (providers.Place, error)
		Reverse(ctx context.Context, lat, lon float64) (providers.Place, error)
	}
	AviationProvider interface {
		Metar(ctx context.Context, icao string) (string, error)
		Taf(ctx context.Context, icao string) (string, error)
	}
	CwopProvider interface {
		ByStation(ctx context.Context, id string) (providers.CwopReport, error)
		Nearest(ctx context.Context, lat, lon float64) (providers.CwopReport, error)
	}
	OsmProvider interface {
		Nearby(ctx context.Context, lat, lon float64, category string, topN int) ([]providers.OsmPlace, error)
	}
	PositionProvider interface {
		Lookup(ctx context.Context, callsign string) (providers.PosReport, error)
	}
	PagerProvider interface {
		Enabled() bool
		Send(ctx context.Context, user, text string, highPri bool) error
	}
	MailProvider interface {
		Enabled() bool
		SendPosition(ctx context.Context, to, subject, body string) error
	}
	SondeProvider interface {
		Track(ctx context.Context, callsign string) (providers.SondeReport, error)
	}
	PassProvider interface {
		NextPass(sat *refdata.Satellite, lat, lon, altM float64, from time.Time, visibleOnly bool) (providers.Pass, error)
	}
	//RefData hands out the current reference indexes; the scheduler
	//swaps them after a refresh commit.
	RefData interface {
		Airports() *refdata.AirportIndex
		Satellites() *refdata.SatelliteIndex
		Repeaters() *refdata.RepeaterIndex
	}
)

// Config is the dispatcher's own station context.
type Config struct {
	OwnLat float64
	OwnLon float64
}

// Dispatcher wires the collaborators together.
type Dispatcher struct {
	Wx       WxProvider
	Geo      GeoProvider
	Aviation AviationProvider
	Cwop     CwopProvider
	Osm      OsmProvider
	Position PositionProvider
	Pager    PagerProvider
	Mail     MailProvider
	Sonde    SondeProvider
	Passes   PassProvider
	Ref      RefData
	RiseSet  func(date time.Time, lat, lon float64) providers.SunMoon

	Cfg Config
	Lg  *log.Logger

	now func() time.Time
}

func New(lg *log.Logger) *Dispatcher {
	return &Dispatcher{
		Lg:      lg,
		RiseSet: providers.RiseSet,
		now:     time.Now,
	}
}

// location is a resolved target with a render label.
type location struct {
	lat     float64
	lon     float64
	label   string //compact echo form, e.g. "Holzminden;DE"
	country string //ISO alpha-2 when known
}

// Handle produces the response for one admitted request. It never
// returns an error: every failure maps to a canned text answer that
// flows through the normal fragmenter pipeline.
func (d *Dispatcher) Handle(ctx context.Context, sender string, cmd cmdparse.Command) (resp response.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.Lg.Error("dispatch panic", log.KV("sender", sender), log.KV("panic", fmt.Sprintf("%v", r)))
			resp = response.Text(`Request failed, please try again later`)
		}
	}()
	switch cmd.Action {
	case cmdparse.Wx:
		return d.handleWx(ctx, sender, cmd)
	case cmdparse.Metar, cmdparse.Taf, cmdparse.MetarTafFull:
		return d.handleMetarTaf(ctx, sender, cmd)
	case cmdparse.Cwop:
		return d.handleCwop(ctx, sender, cmd)
	case cmdparse.WhereIs, cmdparse.WhereAmI:
		return d.handleWhereIs(ctx, sender, cmd)
	case cmdparse.RiseSet:
		return d.handleRiseSet(ctx, sender, cmd)
	case cmdparse.SatPass, cmdparse.VisPass:
		return d.handleSatPass(ctx, sender, cmd)
	case cmdparse.SatFreq:
		return d.handleSatFreq(cmd)
	case cmdparse.Repeater:
		return d.handleRepeater(ctx, sender, cmd)
	case cmdparse.OsmCategory:
		return d.handleOsm(ctx, sender, cmd)
	case cmdparse.Dapnet, cmdparse.DapnetHighPri:
		return d.handleDapnet(ctx, sender, cmd)
	case cmdparse.PosMsg:
		return d.handlePosMsg(ctx, sender, cmd)
	case cmdparse.Fortune:
		return response.Text(providers.Fortune())
	case cmdparse.Sonde:
		return d.handleSonde(ctx, cmd)
	case cmdparse.Help:
		return helpResponse()
	}
	return unknownResponse()
}

func helpResponse() response.Response {
	return response.Text(`commands: wx metar taf cwop whereis whereami riseset satpass`,
		`satfreq repeater osm dapnet posmsg sonde - see mpad docs for details`)
}

func unknownResponse() response.Response {
	return response.Text(`Sorry, did not understand your request. Send 'help' for usage`)
}

// failText maps a provider error onto the taxonomy's user-visible
// answer.
func failText(err error) response.Response {
	switch {
	case errors.Is(err, providers.ErrNotFound),
		errors.Is(err, refdata.ErrAirportNotFound),
		errors.Is(err, refdata.ErrSatelliteNotFound),
		errors.Is(err, geo.ErrInvalidLocator):
		return response.Text(`Location not found`)
	case errors.Is(err, providers.ErrDisabled):
		return response.Text(`This feature is disabled by configuration`)
	case errors.Is(err, refdata.ErrNoRepeater),
		errors.Is(err, providers.ErrNoPass):
		return response.Text(`No match for your request`)
	default:
		return response.Text(`Service unavailable, please try again later`)
	}
}

// retryOnce re-runs a provider call a single time when it failed with
// the unavailable kind; every other error is final.
func retryOnce[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if err != nil && errors.Is(err, providers.ErrUnavailable) && ctx.Err() == nil {
		v, err = fn(ctx)
	}
	return v, err
}

// senderLocation resolves the sender's own last known position. With
// the position provider disabled by configuration, the station's own
// coordinates stand in so position-relative answers keep working.
func (d *Dispatcher) senderLocation(ctx context.Context, sender string) (location, error) {
	pos, err := retryOnce(ctx, func(ctx context.Context) (providers.PosReport, error) {
		return d.Position.Lookup(ctx, sender)
	})
	if err != nil {
		if errors.Is(err, providers.ErrDisabled) {
			return location{lat: d.Cfg.OwnLat, lon: d.Cfg.OwnLon, label: strings.ToUpper(sender)}, nil
		}
		return location{}, err
	}
	return location{lat: pos.Lat, lon: pos.Lon, label: strings.ToUpper(sender)}, nil
}

// resolveTarget turns the symbolic target into coordinates. The
// parser never resolves targets itself because resolution may require
// provider calls.
func (d *Dispatcher) resolveTarget(ctx context.Context, sender string, cmd cmdparse.Command) (location, error) {
	switch t := cmd.Target.(type) {
	case nil, cmdparse.UserPosition:
		return d.senderLocation(ctx, sender)
	case cmdparse.OtherCallsign:
		pos, err := retryOnce(ctx, func(ctx context.Context) (providers.PosReport, error) {
			return d.Position.Lookup(ctx, t.Callsign)
		})
		if err != nil {
			return location{}, err
		}
		return location{lat: pos.Lat, lon: pos.Lon, label: strings.ToUpper(t.Callsign)}, nil
	case cmdparse.LatLon:
		return location{lat: t.Lat, lon: t.Lon, label: fmt.Sprintf("%g/%g", t.Lat, t.Lon)}, nil
	case cmdparse.Grid:
		lat, lon, err := geo.MaidenheadToLatLon(t.Locator)
		if err != nil {
			return location{}, err
		}
		return location{lat: lat, lon: lon, label: t.Locator}, nil
	case cmdparse.Zip:
		pl, err := retryOnce(ctx, func(ctx context.Context) (providers.Place, error) {
			return d.Geo.ForwardZip(ctx, t.Code, t.Country)
		})
		if err != nil {
			return location{}, err
		}
		label := fmt.Sprintf("%s,%s;%s", pl.City, t.Code, t.Country)
		return location{lat: pl.Lat, lon: pl.Lon, label: label, country: pl.CountryCode}, nil
	case cmdparse.CityCountry:
		pl, err := retryOnce(ctx, func(ctx context.Context) (providers.Place, error) {
			return d.Geo.Forward(ctx, t.City, t.State, t.Country)
		})
		if err != nil {
			return location{}, err
		}
		return location{lat: pl.Lat, lon: pl.Lon, label: t.City + `;` + t.Country, country: t.Country}, nil
	case cmdparse.IcaoCode:
		ap, err := d.Ref.Airports().ByICAO(t.Code)
		if err != nil {
			return location{}, err
		}
		return location{lat: ap.Lat, lon: ap.Lon, label: ap.ICAO}, nil
	case cmdparse.IataCode:
		ap, err := d.Ref.Airports().ByIATA(t.Code)
		if err != nil {
			return location{}, err
		}
		return location{lat: ap.Lat, lon: ap.Lon, label: ap.ICAO}, nil
	}
	//targets that carry no coordinates fall back to the sender
	return d.senderLocation(ctx, sender)
}

// deriveUnits applies the keyword override or falls back to the
// country rule: US, LR and MM default to imperial.
func (d *Dispatcher) deriveUnits(ctx context.Context, cmd cmdparse.Command, loc location) cmdparse.Units {
	if cmd.UnitsSet {
		return cmd.Units
	}
	cc := loc.country
	if cc == `` {
		if pl, err := d.Geo.Reverse(ctx, loc.lat, loc.lon); err == nil {
			cc = pl.CountryCode
		}
	}
	if geo.ImperialCountry(cc) {
		return cmdparse.Imperial
	}
	return cmdparse.Metric
}

// targetDate projects the date offset onto a concrete local date at
// the target.
func (d *Dispatcher) targetDate(cmd cmdparse.Command, tz time.Duration) time.Time {
	now := d.now().UTC().Add(tz)
	if cmd.Date.Hours > 0 {
		return now.Add(time.Duration(cmd.Date.Hours) * time.Hour)
	}
	return now.AddDate(0, 0, cmd.Date.Days)
}
