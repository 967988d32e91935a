/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gravwell/gravwell/v3/ingest/log"

	"github.com/joergschultzelutter/mpad/cmdparse"
	"github.com/joergschultzelutter/mpad/providers"
	"github.com/joergschultzelutter/mpad/refdata"
	"github.com/joergschultzelutter/mpad/response"
)

var testNow = time.Date(2021, 1, 15, 10, 0, 0, 0, time.UTC)

type fakeWx struct {
	rep  *providers.WxReport
	err  error
	call int
}

func (f *fakeWx) Get(ctx context.Context, lat, lon float64, units, lang string) (*providers.WxReport, error) {
	f.call++
	return f.rep, f.err
}

type fakeGeo struct{}

func (fakeGeo) Forward(ctx context.Context, city, state, country string) (providers.Place, error) {
	return providers.Place{Lat: 51.83, Lon: 9.45, City: city, CountryCode: strings.ToUpper(country), DisplayName: city}, nil
}

func (fakeGeo) ForwardZip(ctx context.Context, zip, country string) (providers.Place, error) {
	return providers.Place{Lat: 37.42, Lon: -122.08, City: `Mountain View`, Zip: zip, CountryCode: strings.ToUpper(country)}, nil
}

func (fakeGeo) Reverse(ctx context.Context, lat, lon float64) (providers.Place, error) {
	cc := `DE`
	if lon < -30 {
		cc = `US`
	}
	return providers.Place{Lat: lat, Lon: lon, CountryCode: cc, DisplayName: `Schlossstrasse 1, 37603 Holzminden, Deutschland`}, nil
}

type fakeAviation struct{}

func (fakeAviation) Metar(ctx context.Context, icao string) (string, error) {
	return icao + ` 151020Z 24008KT 9999 FEW030 02/M01 Q1026`, nil
}

func (fakeAviation) Taf(ctx context.Context, icao string) (string, error) {
	return `TAF ` + icao + ` 151100Z 1512/1618 23010KT 9999 SCT030`, nil
}

type fakePosition struct {
	reports map[string]providers.PosReport
}

func (f *fakePosition) Lookup(ctx context.Context, callsign string) (providers.PosReport, error) {
	if rep, ok := f.reports[strings.ToUpper(callsign)]; ok {
		return rep, nil
	}
	return providers.PosReport{}, providers.ErrNotFound
}

type fakePager struct{ sent []string }

func (f *fakePager) Enabled() bool { return true }
func (f *fakePager) Send(ctx context.Context, user, text string, highPri bool) error {
	f.sent = append(f.sent, user+`|`+text)
	return nil
}

type disabledPager struct{}

func (disabledPager) Enabled() bool { return false }
func (disabledPager) Send(ctx context.Context, user, text string, highPri bool) error {
	return providers.ErrDisabled
}

type fakeRef struct {
	airports   *refdata.AirportIndex
	satellites *refdata.SatelliteIndex
	repeaters  *refdata.RepeaterIndex
}

func (f *fakeRef) Airports() *refdata.AirportIndex     { return f.airports }
func (f *fakeRef) Satellites() *refdata.SatelliteIndex { return f.satellites }
func (f *fakeRef) Repeaters() *refdata.RepeaterIndex   { return f.repeaters }

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testRef(t *testing.T) *fakeRef {
	t.Helper()
	airports, err := refdata.LoadAirports(writeTemp(t, `airports.csv`,
		"icao,type,name,lat,lon,iata,metar\n"+
			"EDDF,large_airport,Frankfurt am Main Airport,50.0264,8.5431,FRA,1\n"+
			"KSFO,large_airport,San Francisco Intl,37.6188,-122.3754,SFO,1\n"))
	if err != nil {
		t.Fatal(err)
	}
	sats, err := refdata.LoadSatellites(writeTemp(t, `tle.txt`,
		"ISS\n"+
			"1 25544U 98067A   21016.23437500  .00001366  00000-0  32758-4 0  9996\n"+
			"2 25544  51.6457  14.1113 0000235 231.6058 276.1845 15.49297436265203\n"), ``)
	if err != nil {
		t.Fatal(err)
	}
	reps, err := refdata.LoadRepeaters(writeTemp(t, `repeaters.json`,
		`{"repeaters":[
		 {"repeater":"DB0ABC","band":"70cm","mode":"c4fm","lat":51.9,"lon":9.5,"frequency":438.525,"shift":-7.6,"town":"Hameln"},
		 {"repeater":"DB0XYZ","band":"2m","mode":"fm","lat":51.8,"lon":9.4,"frequency":145.700,"shift":-0.6,"town":"Holzminden"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	return &fakeRef{airports: airports, satellites: sats, repeaters: reps}
}

func testDispatcher(t *testing.T) (*Dispatcher, *fakeWx, *fakePager) {
	t.Helper()
	wx := &fakeWx{rep: testWxReport()}
	pager := &fakePager{}
	d := New(log.NewDiscardLogger())
	d.Wx = wx
	d.Geo = fakeGeo{}
	d.Aviation = fakeAviation{}
	d.Position = &fakePosition{reports: map[string]providers.PosReport{
		`DF1JSL-1`: {Callsign: `DF1JSL-1`, Lat: 51.83, Lon: 9.45, LastHeard: testNow.Add(-5 * time.Minute)},
		`DF1JSL-8`: {Callsign: `DF1JSL-8`, Lat: 52.38, Lon: 9.75, LastHeard: testNow.Add(-30 * time.Minute)},
	}}
	d.Pager = pager
	d.Ref = testRef(t)
	d.now = func() time.Time { return testNow }
	return d, wx, pager
}

func testWxReport() *providers.WxReport {
	day := func(offset int) providers.WxDay {
		date := time.Date(2021, 1, 15+offset, 12, 0, 0, 0, time.UTC)
		return providers.WxDay{
			Date:        date,
			Summary:     `Bedeckt`,
			Temp:        providers.WxWindow{Night: -2, Morning: -3, Day: -1, Evening: -2},
			Sunrise:     time.Date(2021, 1, 15+offset, 7, 31, 0, 0, time.UTC),
			Sunset:      time.Date(2021, 1, 15+offset, 16, 36, 0, 0, time.UTC),
			CloudsPct:   90,
			UVI:         0.3,
			PressureHpa: 1026,
			HumidityPct: 92,
			DewPoint:    -3,
			WindSpeed:   2,
			WindDeg:     220,
			TZOffset:    time.Hour,
		}
	}
	return &providers.WxReport{Days: []providers.WxDay{day(0), day(1), day(2)}}
}

func frags(r response.Response) []string {
	return response.Fragment(r, false)
}

func TestWxByCityTomorrow(t *testing.T) {
	d, _, _ := testDispatcher(t)
	cmd := cmdparse.Parse(`Holzminden;de tomorrow lang de`, cmdparse.Options{Now: testNow})
	out := frags(d.Handle(context.Background(), `DF1JSL-1`, cmd))
	if len(out) < 2 {
		t.Fatalf("expected multiple fragments, got %v", out)
	}
	want := `16-Jan-21 Holzminden;DE Bedeckt morn:-3c day:-1c eve:-2c nite:-2c`
	if out[0] != want {
		t.Fatalf("first fragment\n got %q\nwant %q", out[0], want)
	}
	//detail tokens must survive intact somewhere in the remainder
	rest := strings.Join(out[1:], ` `)
	for _, tok := range []string{`sunrise/set 07:31/16:36Z`, `clouds:90%`, `uvi:0.3`, `hPa:1026`, `hum:92%`, `dew:-3c`, `wndspd:2m/s`, `wnddeg:220`} {
		if !strings.Contains(rest, tok) {
			t.Fatalf("token %q missing or torn in %v", tok, out)
		}
	}
	for _, f := range out {
		if len(f) > response.MaxFragment {
			t.Fatalf("fragment over ceiling: %q", f)
		}
	}
}

func TestWxByZipLabel(t *testing.T) {
	d, _, _ := testDispatcher(t)
	cmd := cmdparse.Parse(`94043`, cmdparse.Options{Now: testNow})
	out := frags(d.Handle(context.Background(), `DF1JSL-1`, cmd))
	if len(out) == 0 {
		t.Fatal("no output")
	}
	if !strings.Contains(out[0], `Mountain View,94043;US`) {
		t.Fatalf("zip label missing: %q", out[0])
	}
	if !strings.HasPrefix(out[0], `15-Jan-21`) {
		t.Fatalf("unexpected date in %q", out[0])
	}
}

func TestWhereIsOrdering(t *testing.T) {
	d, _, _ := testDispatcher(t)
	cmd := cmdparse.Parse(`whereis df1jsl-8`, cmdparse.Options{Now: testNow})
	out := frags(d.Handle(context.Background(), `DF1JSL-1`, cmd))
	joined := strings.Join(out, ` `)
	order := []string{`Grid `, `DMS `, `Dst `, `Brg `, `UTM `, `MGRS `, `LatLon `, `Last heard `}
	last := -1
	for _, marker := range order {
		idx := strings.Index(joined, marker)
		if idx < 0 {
			t.Fatalf("marker %q missing in %q", marker, joined)
		}
		if idx < last {
			t.Fatalf("marker %q out of order in %q", marker, joined)
		}
		last = idx
	}
	if !strings.Contains(joined, `km`) {
		t.Fatalf("distance not metric: %q", joined)
	}
	if !strings.Contains(joined, `2021-01-15T09:30:00Z`) {
		t.Fatalf("last heard timestamp missing: %q", joined)
	}
	//no marker token may be torn across a fragment boundary
	for _, f := range out {
		for _, marker := range []string{`Dst`, `Brg`, `UTM`, `MGRS`} {
			if strings.HasSuffix(f, marker) {
				t.Fatalf("marker %q torn at fragment end %q", marker, f)
			}
		}
	}
}

func TestRepeaterEchoSuppression(t *testing.T) {
	d, _, _ := testDispatcher(t)
	//filters supplied: the tokens are not echoed
	cmd := cmdparse.Parse(`repeater c4fm 70cm`, cmdparse.Options{Now: testNow})
	out := strings.Join(frags(d.Handle(context.Background(), `DF1JSL-1`, cmd)), ` `)
	if strings.Contains(out, `c4fm`) || strings.Contains(out, `70cm`) {
		t.Fatalf("filters echoed: %q", out)
	}
	if !strings.Contains(out, `DB0ABC`) {
		t.Fatalf("expected DB0ABC in %q", out)
	}
	//no filters: band and mode included
	cmd = cmdparse.Parse(`repeater`, cmdparse.Options{Now: testNow})
	out = strings.Join(frags(d.Handle(context.Background(), `DF1JSL-1`, cmd)), ` `)
	if !strings.Contains(out, `2m`) || !strings.Contains(out, `fm`) {
		t.Fatalf("band/mode missing: %q", out)
	}
}

func TestMetarTafCombined(t *testing.T) {
	d, _, _ := testDispatcher(t)
	cmd := cmdparse.Parse(`metar eddf full tomorrow evening`, cmdparse.Options{Now: testNow})
	if cmd.Action != cmdparse.MetarTafFull {
		t.Fatalf("invalid action %v", cmd.Action)
	}
	out := strings.Join(frags(d.Handle(context.Background(), `DF1JSL-1`, cmd)), ` `)
	sep := strings.Index(out, ` ## `)
	if sep < 0 {
		t.Fatalf("separator missing in %q", out)
	}
	if !strings.Contains(out[:sep], `EDDF 151020Z`) {
		t.Fatalf("metar missing before separator: %q", out)
	}
	if !strings.Contains(out[sep:], `TAF EDDF`) {
		t.Fatalf("taf missing after separator: %q", out)
	}
}

func TestMetarByNearestAirport(t *testing.T) {
	d, _, _ := testDispatcher(t)
	cmd := cmdparse.Parse(`metar`, cmdparse.Options{Now: testNow})
	out := strings.Join(frags(d.Handle(context.Background(), `DF1JSL-1`, cmd)), ` `)
	//the sender sits in Germany, EDDF is the nearest reporting field
	if !strings.Contains(out, `EDDF`) {
		t.Fatalf("nearest airport not used: %q", out)
	}
}

func TestProviderRetryOnce(t *testing.T) {
	d, wx, _ := testDispatcher(t)
	wx.err = providers.ErrUnavailable
	cmd := cmdparse.Parse(`94043`, cmdparse.Options{Now: testNow})
	out := frags(d.Handle(context.Background(), `DF1JSL-1`, cmd))
	if wx.call != 2 {
		t.Fatalf("expected one retry, got %d calls", wx.call)
	}
	if !strings.Contains(strings.Join(out, ` `), `unavailable`) {
		t.Fatalf("unavailable text missing: %v", out)
	}
}

func TestUnresolvableTarget(t *testing.T) {
	d, _, _ := testDispatcher(t)
	cmd := cmdparse.Parse(`whereis xx9xxx`, cmdparse.Options{Now: testNow})
	out := strings.Join(frags(d.Handle(context.Background(), `DF1JSL-1`, cmd)), ` `)
	if !strings.Contains(out, `not found`) {
		t.Fatalf("not-found text missing: %q", out)
	}
}

func TestDapnetDisabled(t *testing.T) {
	d, _, _ := testDispatcher(t)
	d.Pager = disabledPager{}
	cmd := cmdparse.Parse(`dapnet df1jsl hello`, cmdparse.Options{Now: testNow})
	out := strings.Join(frags(d.Handle(context.Background(), `DF1JSL-1`, cmd)), ` `)
	if !strings.Contains(out, `disabled`) {
		t.Fatalf("disabled text missing: %q", out)
	}
}

func TestDapnetSend(t *testing.T) {
	d, _, pager := testDispatcher(t)
	cmd := cmdparse.Parse(`dapnet df1jsl Hello There`, cmdparse.Options{Now: testNow})
	out := strings.Join(frags(d.Handle(context.Background(), `DF1JSL-1`, cmd)), ` `)
	if len(pager.sent) != 1 {
		t.Fatalf("no page sent")
	}
	if pager.sent[0] != `df1jsl|DF1JSL-1: Hello There` {
		t.Fatalf("invalid page %q", pager.sent[0])
	}
	if !strings.Contains(out, `sent to df1jsl`) {
		t.Fatalf("confirmation missing: %q", out)
	}
}

func TestUnknownAction(t *testing.T) {
	d, _, _ := testDispatcher(t)
	cmd := cmdparse.Parse(`xyzzy gibberish`, cmdparse.Options{Now: testNow})
	out := strings.Join(frags(d.Handle(context.Background(), `DF1JSL-1`, cmd)), ` `)
	if !strings.Contains(out, `help`) {
		t.Fatalf("help pointer missing: %q", out)
	}
}
