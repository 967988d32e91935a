/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/joergschultzelutter/mpad/cmdparse"
	"github.com/joergschultzelutter/mpad/geo"
	"github.com/joergschultzelutter/mpad/providers"
	"github.com/joergschultzelutter/mpad/response"
)

const wxDateFormat = `02-Jan-06`

func tempSuffix(u cmdparse.Units) string {
	if u == cmdparse.Imperial {
		return `f`
	}
	return `c`
}

func speedUnit(u cmdparse.Units) string {
	if u == cmdparse.Imperial {
		return `mph`
	}
	return `m/s`
}

func distToken(u cmdparse.Units, km float64) string {
	if u == cmdparse.Imperial {
		return fmt.Sprintf("%.0f mi", km*0.621371)
	}
	return fmt.Sprintf("%.0f km", km)
}

func hhmm(t time.Time) string {
	return t.Format(`15:04`)
}

// handleWx renders the forecast for the resolved target. The daytime
// window projects onto the provider's local 00/06/12/18 grid; full
// aggregates all four windows of the chosen date.
func (d *Dispatcher) handleWx(ctx context.Context, sender string, cmd cmdparse.Command) response.Response {
	loc, err := d.resolveTarget(ctx, sender, cmd)
	if err != nil {
		return failText(err)
	}
	units := d.deriveUnits(ctx, cmd, loc)
	rep, err := retryOnce(ctx, func(ctx context.Context) (*providers.WxReport, error) {
		return d.Wx.Get(ctx, loc.lat, loc.lon, units.String(), cmd.Lang)
	})
	if err != nil {
		return failText(err)
	}
	if cmd.Date.Hours > 0 {
		return d.wxHourly(cmd, loc, rep, units)
	}
	return d.wxDaily(cmd, loc, rep, units)
}

func (d *Dispatcher) wxDaily(cmd cmdparse.Command, loc location, rep *providers.WxReport, units cmdparse.Units) response.Response {
	if len(rep.Days) == 0 {
		return failText(providers.ErrNotFound)
	}
	tz := rep.Days[0].TZOffset
	want := d.targetDate(cmd, tz)
	var day *providers.WxDay
	for i := range rep.Days {
		dd := rep.Days[i].Date.Add(tz)
		if dd.Year() == want.Year() && dd.YearDay() == want.YearDay() {
			day = &rep.Days[i]
			break
		}
	}
	if day == nil {
		return response.Text(`No forecast for the requested date`)
	}
	ts := tempSuffix(units)
	var r response.Response
	var head response.Line
	head.Tokens = append(head.Tokens,
		response.Token{Text: want.Format(wxDateFormat), NoSplit: true},
		response.Token{Text: loc.label, NoSplit: true},
		response.Token{Text: day.Summary},
	)
	temp := func(name string, v float64) response.Token {
		return response.Token{Text: fmt.Sprintf("%s:%.0f%s", name, v, ts), NoSplit: true}
	}
	switch cmd.Daytime {
	case cmdparse.Morning:
		head.Tokens = append(head.Tokens, temp(`morn`, day.Temp.Morning))
	case cmdparse.Day:
		head.Tokens = append(head.Tokens, temp(`day`, day.Temp.Day))
	case cmdparse.Evening:
		head.Tokens = append(head.Tokens, temp(`eve`, day.Temp.Evening))
	case cmdparse.Night:
		head.Tokens = append(head.Tokens, temp(`nite`, day.Temp.Night))
	default:
		head.Tokens = append(head.Tokens,
			temp(`morn`, day.Temp.Morning),
			temp(`day`, day.Temp.Day),
			temp(`eve`, day.Temp.Evening),
			temp(`nite`, day.Temp.Night))
	}
	r.Lines = append(r.Lines, head)
	r.AddAtomic(
		fmt.Sprintf("sunrise/set %s/%sZ", hhmm(day.Sunrise), hhmm(day.Sunset)),
		fmt.Sprintf("clouds:%d%%", day.CloudsPct),
		fmt.Sprintf("uvi:%.1f", day.UVI),
		fmt.Sprintf("hPa:%d", day.PressureHpa),
		fmt.Sprintf("hum:%d%%", day.HumidityPct),
		fmt.Sprintf("dew:%.0f%s", day.DewPoint, ts),
		fmt.Sprintf("wndspd:%.0f%s", day.WindSpeed, speedUnit(units)),
		fmt.Sprintf("wnddeg:%d", day.WindDeg),
	)
	return r
}

func (d *Dispatcher) wxHourly(cmd cmdparse.Command, loc location, rep *providers.WxReport, units cmdparse.Units) response.Response {
	if len(rep.Hours) == 0 {
		return response.Text(`No hourly forecast available`)
	}
	want := d.now().UTC().Add(time.Duration(cmd.Date.Hours) * time.Hour)
	best := rep.Hours[0]
	for _, h := range rep.Hours[1:] {
		if h.Time.Sub(want).Abs() < best.Time.Sub(want).Abs() {
			best = h
		}
	}
	ts := tempSuffix(units)
	var r response.Response
	var head response.Line
	head.Tokens = append(head.Tokens,
		response.Token{Text: best.Time.Format(`02-Jan-06 15:04Z`), NoSplit: true},
		response.Token{Text: loc.label, NoSplit: true},
		response.Token{Text: best.Summary},
		response.Token{Text: fmt.Sprintf("temp:%.0f%s", best.Temp, ts), NoSplit: true},
	)
	r.Lines = append(r.Lines, head)
	r.AddAtomic(
		fmt.Sprintf("clouds:%d%%", best.CloudsPct),
		fmt.Sprintf("hPa:%d", best.PressureHpa),
		fmt.Sprintf("hum:%d%%", best.HumidityPct),
		fmt.Sprintf("wndspd:%.0f%s", best.WindSpeed, speedUnit(units)),
		fmt.Sprintf("wnddeg:%d", best.WindDeg),
	)
	return r
}

// handleMetarTaf fetches the observation and forecast text. Date and
// daytime modifiers are discarded by contract.
func (d *Dispatcher) handleMetarTaf(ctx context.Context, sender string, cmd cmdparse.Command) response.Response {
	icao, err := d.resolveAirport(ctx, sender, cmd)
	if err != nil {
		return failText(err)
	}
	var r response.Response
	switch cmd.Action {
	case cmdparse.Taf:
		taf, err := retryOnce(ctx, func(ctx context.Context) (string, error) {
			return d.Aviation.Taf(ctx, icao)
		})
		if err != nil {
			return failText(err)
		}
		r.Add(taf)
	case cmdparse.MetarTafFull:
		metar, err := retryOnce(ctx, func(ctx context.Context) (string, error) {
			return d.Aviation.Metar(ctx, icao)
		})
		if err != nil {
			return failText(err)
		}
		taf, err := retryOnce(ctx, func(ctx context.Context) (string, error) {
			return d.Aviation.Taf(ctx, icao)
		})
		if err != nil {
			return failText(err)
		}
		r.Add(metar)
		r.Add(`##`)
		r.Add(taf)
	default:
		metar, err := retryOnce(ctx, func(ctx context.Context) (string, error) {
			return d.Aviation.Metar(ctx, icao)
		})
		if err != nil {
			return failText(err)
		}
		r.Add(metar)
	}
	return r
}

// resolveAirport picks the ICAO code for the request: explicit code,
// or the airport with weather reporting nearest to the target.
func (d *Dispatcher) resolveAirport(ctx context.Context, sender string, cmd cmdparse.Command) (string, error) {
	switch t := cmd.Target.(type) {
	case cmdparse.IcaoCode:
		ap, err := d.Ref.Airports().ByICAO(t.Code)
		if err != nil {
			return ``, err
		}
		return ap.ICAO, nil
	case cmdparse.IataCode:
		ap, err := d.Ref.Airports().ByIATA(t.Code)
		if err != nil {
			return ``, err
		}
		return ap.ICAO, nil
	}
	loc, err := d.resolveTarget(ctx, sender, cmd)
	if err != nil {
		return ``, err
	}
	ap, err := d.Ref.Airports().Nearest(loc.lat, loc.lon, true)
	if err != nil {
		return ``, err
	}
	return ap.ICAO, nil
}

func (d *Dispatcher) handleCwop(ctx context.Context, sender string, cmd cmdparse.Command) response.Response {
	var rep providers.CwopReport
	var err error
	if st, ok := cmd.Target.(cmdparse.CwopStation); ok {
		rep, err = retryOnce(ctx, func(ctx context.Context) (providers.CwopReport, error) {
			return d.Cwop.ByStation(ctx, st.ID)
		})
	} else {
		var loc location
		if loc, err = d.resolveTarget(ctx, sender, cmd); err == nil {
			rep, err = retryOnce(ctx, func(ctx context.Context) (providers.CwopReport, error) {
				return d.Cwop.Nearest(ctx, loc.lat, loc.lon)
			})
		}
	}
	if err != nil {
		return failText(err)
	}
	var r response.Response
	r.AddAtomic(
		`CWOP `+rep.ID,
		rep.Time.Format(`02-Jan-06 15:04Z`),
		fmt.Sprintf("%.0fc", rep.TempC),
		fmt.Sprintf("hum:%d%%", rep.HumidityPct),
		fmt.Sprintf("hPa:%.0f", rep.PressureHpa),
		fmt.Sprintf("wnd %ddeg %.0fkm/h", rep.WindDeg, rep.WindKmh),
		fmt.Sprintf("gst:%.0fkm/h", rep.GustKmh),
		fmt.Sprintf("rain1h %.1fmm", rep.Rain1hMm),
	)
	return r
}

// handleWhereIs renders the full position breakdown of the target:
// grid, DMS, distance and bearing from the sender, UTM, MGRS,
// coordinates, address, and the last-heard timestamp.
func (d *Dispatcher) handleWhereIs(ctx context.Context, sender string, cmd cmdparse.Command) response.Response {
	target := sender
	if oc, ok := cmd.Target.(cmdparse.OtherCallsign); ok && cmd.Action == cmdparse.WhereIs {
		target = oc.Callsign
	}
	pos, err := retryOnce(ctx, func(ctx context.Context) (providers.PosReport, error) {
		return d.Position.Lookup(ctx, target)
	})
	if err != nil {
		return failText(err)
	}
	units := d.deriveUnits(ctx, cmd, location{lat: pos.Lat, lon: pos.Lon})

	var r response.Response
	r.AddAtomic(strings.ToUpper(target))
	if grid, err := geo.Maidenhead(pos.Lat, pos.Lon, 6); err == nil {
		r.AddAtomic(`Grid ` + grid)
	}
	r.AddAtomic(`DMS ` + geo.DMS(pos.Lat, pos.Lon))
	//distance and bearing only make sense relative to the sender's
	//own position, so they are skipped for whereami
	if !strings.EqualFold(target, sender) {
		if own, err := d.senderLocation(ctx, sender); err == nil {
			dist := geo.DistanceKm(own.lat, own.lon, pos.Lat, pos.Lon)
			brg := geo.BearingDeg(own.lat, own.lon, pos.Lat, pos.Lon)
			r.AddAtomic(
				`Dst `+distToken(units, dist),
				fmt.Sprintf("Brg %.0f deg %s", brg, geo.CompassDir(brg)),
			)
		}
	}
	if utm, err := geo.ToUTM(pos.Lat, pos.Lon); err == nil {
		r.AddAtomic(`UTM ` + utm)
	}
	if mgrs, err := geo.ToMGRS(pos.Lat, pos.Lon); err == nil {
		r.AddAtomic(`MGRS ` + mgrs)
	}
	r.AddAtomic(fmt.Sprintf("LatLon %.4f/%.4f", pos.Lat, pos.Lon))
	if pl, err := d.Geo.Reverse(ctx, pos.Lat, pos.Lon); err == nil && pl.DisplayName != `` {
		r.Add(pl.DisplayName)
	}
	if !pos.LastHeard.IsZero() {
		r.AddAtomic(`Last heard ` + pos.LastHeard.UTC().Format(time.RFC3339))
		r.Add(`(` + humanize.Time(pos.LastHeard) + `)`)
	}
	return r
}

func (d *Dispatcher) handleRiseSet(ctx context.Context, sender string, cmd cmdparse.Command) response.Response {
	loc, err := d.resolveTarget(ctx, sender, cmd)
	if err != nil {
		return failText(err)
	}
	date := d.targetDate(cmd, 0)
	sm := d.RiseSet(date, loc.lat, loc.lon)
	var r response.Response
	r.AddAtomic(
		date.Format(wxDateFormat),
		loc.label,
		fmt.Sprintf("sunrise/set %s/%sZ", hhmm(sm.Sunrise), hhmm(sm.Sunset)),
		fmt.Sprintf("moonrise/set %s/%sZ", hhmm(sm.Moonrise), hhmm(sm.Moonset)),
	)
	return r
}

// handleSatPass predicts the next pass. The date and daytime window
// is the calculation's starting instant, not a filter: the first pass
// after that instant wins.
func (d *Dispatcher) handleSatPass(ctx context.Context, sender string, cmd cmdparse.Command) response.Response {
	name := `ISS`
	if sn, ok := cmd.Target.(cmdparse.SatelliteName); ok {
		name = sn.Name
	}
	sat, err := d.Ref.Satellites().ByName(name)
	if err != nil {
		return failText(err)
	}
	loc, err := d.senderLocation(ctx, sender)
	if err != nil {
		return failText(err)
	}
	from := d.targetDate(cmd, 0)
	switch cmd.Daytime {
	case cmdparse.Morning:
		from = time.Date(from.Year(), from.Month(), from.Day(), 6, 0, 0, 0, time.UTC)
	case cmdparse.Day:
		from = time.Date(from.Year(), from.Month(), from.Day(), 12, 0, 0, 0, time.UTC)
	case cmdparse.Evening:
		from = time.Date(from.Year(), from.Month(), from.Day(), 18, 0, 0, 0, time.UTC)
	case cmdparse.Night:
		from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	}
	if now := d.now().UTC(); from.Before(now) {
		from = now
	}
	pass, err := d.Passes.NextPass(sat, loc.lat, loc.lon, 0, from, cmd.Action == cmdparse.VisPass)
	if err != nil {
		return failText(err)
	}
	var r response.Response
	r.AddAtomic(
		sat.Name,
		`AOS `+pass.AOS.Format(`02-Jan-06 15:04Z`),
		fmt.Sprintf("az %.0f", pass.AosAzDeg),
		fmt.Sprintf("maxel %.0f", pass.MaxEl),
		`LOS `+pass.LOS.Format(`15:04Z`),
		fmt.Sprintf("az %.0f", pass.LosAzDeg),
	)
	return r
}

func (d *Dispatcher) handleSatFreq(cmd cmdparse.Command) response.Response {
	name := `ISS`
	if sn, ok := cmd.Target.(cmdparse.SatelliteName); ok {
		name = sn.Name
	}
	sat, err := d.Ref.Satellites().ByName(name)
	if err != nil {
		return failText(err)
	}
	if len(sat.Freqs) == 0 {
		return response.Text(`No frequency data for ` + sat.Name)
	}
	topN := cmd.TopN
	if topN < 1 {
		topN = 1
	}
	if topN > len(sat.Freqs) {
		topN = len(sat.Freqs)
	}
	var r response.Response
	r.AddAtomic(sat.Name)
	for i := 0; i < topN; i++ {
		f := sat.Freqs[i]
		tok := fmt.Sprintf("#%d dn:%.3f", i+1, f.DownlinkMHz)
		if f.UplinkMHz > 0 {
			tok += fmt.Sprintf(" up:%.3f", f.UplinkMHz)
		}
		if f.Mode != `` {
			tok += ` ` + f.Mode
		}
		r.AddAtomic(tok)
		if i == 0 && f.Description != `` {
			r.Add(f.Description)
		}
	}
	return r
}

// handleRepeater lists the nearest repeaters. Supplied filters are
// echo-suppressed: the answer repeats band and mode tokens only when
// the request did not constrain them.
func (d *Dispatcher) handleRepeater(ctx context.Context, sender string, cmd cmdparse.Command) response.Response {
	filt, _ := cmd.Target.(cmdparse.RepeaterFilter)
	loc, err := d.senderLocation(ctx, sender)
	if err != nil {
		return failText(err)
	}
	units := d.deriveUnits(ctx, cmd, loc)
	reps, err := d.Ref.Repeaters().Nearest(loc.lat, loc.lon, filt.Band, filt.Mode, cmd.TopN)
	if err != nil {
		return failText(err)
	}
	var r response.Response
	for i, rep := range reps {
		tok := fmt.Sprintf("#%d %s %.4f", i+1, rep.Callsign, rep.FreqMHz)
		if rep.ShiftMHz != 0 {
			tok += fmt.Sprintf(" %+.1f", rep.ShiftMHz)
		}
		tok += fmt.Sprintf(" %s %.0fdeg", distToken(units, rep.DistanceKm), rep.BearingDeg)
		r.AddAtomic(tok)
		if filt.Band == `` && filt.Mode == `` {
			r.AddAtomic(rep.Band, rep.Mode)
		}
		//detail text only for the closest hit
		if i == 0 && rep.Town != `` {
			r.Add(rep.Town)
		}
	}
	return r
}

func (d *Dispatcher) handleOsm(ctx context.Context, sender string, cmd cmdparse.Command) response.Response {
	cat := ``
	if op, ok := cmd.Target.(cmdparse.OsmPhrase); ok {
		cat = op.Category
	}
	if cat == `` {
		return unknownResponse()
	}
	loc, err := d.senderLocation(ctx, sender)
	if err != nil {
		return failText(err)
	}
	units := d.deriveUnits(ctx, cmd, loc)
	places, err := retryOnce(ctx, func(ctx context.Context) ([]providers.OsmPlace, error) {
		return d.Osm.Nearby(ctx, loc.lat, loc.lon, cat, cmd.TopN)
	})
	if err != nil {
		return failText(err)
	}
	var r response.Response
	for i, pl := range places {
		r.AddAtomic(fmt.Sprintf("#%d", i+1))
		if i == 0 {
			r.Add(pl.Name)
		} else if short := firstWord(pl.Name); short != `` {
			r.Add(short)
		}
		r.AddAtomic(fmt.Sprintf("%s %.0fdeg %s",
			distToken(units, pl.DistanceKm), pl.BearingDeg, geo.CompassDir(pl.BearingDeg)))
	}
	return r
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ``
}

func (d *Dispatcher) handleDapnet(ctx context.Context, sender string, cmd cmdparse.Command) response.Response {
	du, ok := cmd.Target.(cmdparse.DapnetUser)
	if !ok {
		return unknownResponse()
	}
	text := cmd.Message
	if text == `` {
		text = strings.ToUpper(sender) + `: ping`
	} else {
		text = strings.ToUpper(sender) + `: ` + text
	}
	err := retryOnceErr(ctx, func(ctx context.Context) error {
		return d.Pager.Send(ctx, du.User, text, cmd.Action == cmdparse.DapnetHighPri)
	})
	if err != nil {
		return failText(err)
	}
	return response.Text(`DAPNET message sent to ` + du.User)
}

func (d *Dispatcher) handlePosMsg(ctx context.Context, sender string, cmd cmdparse.Command) response.Response {
	ea, ok := cmd.Target.(cmdparse.EmailAddress)
	if !ok {
		return unknownResponse()
	}
	loc, err := d.senderLocation(ctx, sender)
	if err != nil {
		return failText(err)
	}
	var addr string
	if pl, err := d.Geo.Reverse(ctx, loc.lat, loc.lon); err == nil {
		addr = pl.DisplayName
	}
	grid, _ := geo.Maidenhead(loc.lat, loc.lon, 6)
	body := fmt.Sprintf("Position report for %s\n\nLatLon: %.4f/%.4f\nGrid: %s\nAddress: %s\nTime: %s\n",
		strings.ToUpper(sender), loc.lat, loc.lon, grid, addr,
		d.now().UTC().Format(time.RFC3339))
	subject := `APRS position report ` + strings.ToUpper(sender)
	err = retryOnceErr(ctx, func(ctx context.Context) error {
		return d.Mail.SendPosition(ctx, ea.Addr, subject, body)
	})
	if err != nil {
		return failText(err)
	}
	return response.Text(`Position report sent to ` + ea.Addr)
}

func (d *Dispatcher) handleSonde(ctx context.Context, cmd cmdparse.Command) response.Response {
	oc, ok := cmd.Target.(cmdparse.OtherCallsign)
	if !ok {
		return unknownResponse()
	}
	rep, err := retryOnce(ctx, func(ctx context.Context) (providers.SondeReport, error) {
		return d.Sonde.Track(ctx, oc.Callsign)
	})
	if err != nil {
		return failText(err)
	}
	var r response.Response
	r.AddAtomic(
		strings.ToUpper(oc.Callsign),
		fmt.Sprintf("LatLon %.4f/%.4f", rep.Pos.Lat, rep.Pos.Lon),
	)
	if rep.AltM > 0 {
		r.AddAtomic(fmt.Sprintf("alt %.0fm", rep.AltM))
	}
	if rep.Climbing {
		r.AddAtomic(`ascending`)
	} else if rep.DescentMS > 0 {
		r.AddAtomic(fmt.Sprintf("descending %.1fm/s", rep.DescentMS))
		if rep.AltM > 0 {
			eta := time.Duration(rep.AltM/rep.DescentMS) * time.Second
			r.AddAtomic(fmt.Sprintf("touchdown in ~%dmin", int(math.Round(eta.Minutes()))))
		}
	}
	if !rep.Pos.LastHeard.IsZero() {
		r.AddAtomic(`Last heard ` + rep.Pos.LastHeard.UTC().Format(time.RFC3339))
	}
	return r
}

// retryOnceErr mirrors retryOnce for error-only calls.
func retryOnceErr(ctx context.Context, fn func(context.Context) error) error {
	err := fn(ctx)
	if err != nil && ctxLive(ctx) && isUnavailable(err) {
		err = fn(ctx)
	}
	return err
}

func ctxLive(ctx context.Context) bool {
	return ctx.Err() == nil
}

func isUnavailable(err error) bool {
	return err != nil && errors.Is(err, providers.ErrUnavailable)
}
