/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gravwell/gravwell/v3/ingest/log"
	"github.com/stretchr/testify/require"
)

const oneCallFixture = `{
 "timezone_offset": 3600,
 "daily": [
  {"dt": 1610794800, "sunrise": 1610778660, "sunset": 1610811360,
   "temp": {"morn": -3.2, "day": -1.1, "eve": -2.0, "night": -2.4},
   "pressure": 1026, "humidity": 92, "dew_point": -3.4, "uvi": 0.3,
   "clouds": 90, "wind_speed": 2.1, "wind_deg": 220,
   "weather": [{"description": "Bedeckt"}]}
 ],
 "hourly": [
  {"dt": 1610712000, "temp": -2.5, "pressure": 1025, "humidity": 90,
   "clouds": 75, "wind_speed": 3.0, "wind_deg": 200,
   "weather": [{"description": "bedeckt"}]}
 ]
}`

func TestWxClientDecode(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(oneCallFixture))
	}))
	defer srv.Close()

	c := NewWxClient(srv.URL, `testkey`, log.NewDiscardLogger())
	rep, err := c.Get(context.Background(), 51.83, 9.45, `metric`, `de`)
	require.NoError(t, err)
	require.Len(t, rep.Days, 1)
	require.Len(t, rep.Hours, 1)

	day := rep.Days[0]
	require.Equal(t, `Bedeckt`, day.Summary)
	require.Equal(t, -3.2, day.Temp.Morning)
	require.Equal(t, -2.4, day.Temp.Night)
	require.Equal(t, 1026, day.PressureHpa)
	require.Equal(t, 92, day.HumidityPct)
	require.EqualValues(t, 3600, day.TZOffset.Seconds())

	//unit system and language are delegated upstream
	require.Contains(t, gotQuery, `units=metric`)
	require.Contains(t, gotQuery, `lang=de`)
	require.Contains(t, gotQuery, `appid=testkey`)
}

func TestWxClientDisabled(t *testing.T) {
	c := NewWxClient(``, ``, log.NewDiscardLogger())
	_, err := c.Get(context.Background(), 0, 0, `metric`, `en`)
	require.ErrorIs(t, err, ErrDisabled)
}

func TestWxClientUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := NewWxClient(srv.URL, `k`, log.NewDiscardLogger())
	_, err := c.Get(context.Background(), 0, 0, `metric`, `en`)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestPositionClientDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"ok","found":1,"entries":[
		 {"name":"DF1JSL-8","lat":"52.3800","lng":"9.7500","comment":"mobile","lasttime":"1610700000"}]}`))
	}))
	defer srv.Close()
	c := NewPositionClient(srv.URL, `key`, `mpad/test`, nil, log.NewDiscardLogger())
	rep, err := c.Lookup(context.Background(), `df1jsl-8`)
	require.NoError(t, err)
	require.Equal(t, `DF1JSL-8`, rep.Callsign)
	require.Equal(t, 52.38, rep.Lat)
	require.Equal(t, 9.75, rep.Lon)
	require.False(t, rep.LastHeard.IsZero())
}

func TestPositionClientNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"ok","found":0,"entries":[]}`))
	}))
	defer srv.Close()
	c := NewPositionClient(srv.URL, `key`, `mpad/test`, nil, log.NewDiscardLogger())
	_, err := c.Lookup(context.Background(), `nocall`)
	require.ErrorIs(t, err, ErrNotFound)

	//missing API key means the feature is off, not a lookup failure
	c = NewPositionClient(srv.URL, ``, `mpad/test`, nil, log.NewDiscardLogger())
	_, err = c.Lookup(context.Background(), `df1jsl`)
	require.ErrorIs(t, err, ErrDisabled)
}
