/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package providers

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/gravwell/gravwell/v3/ingest/log"
)

const defaultWxURL = `https://api.openweathermap.org/data/3.0/onecall`

// WxWindow is one forecast window of a day: the temperature at the
// local 00/06/12/18 grid points.
type WxWindow struct {
	Night   float64
	Morning float64
	Day     float64
	Evening float64
}

// WxDay is one day of forecast, values already in the requested unit
// system and description text in the requested language.
type WxDay struct {
	Date        time.Time
	Summary     string
	Temp        WxWindow
	Sunrise     time.Time
	Sunset      time.Time
	CloudsPct   int
	UVI         float64
	PressureHpa int
	HumidityPct int
	DewPoint    float64
	WindSpeed   float64
	WindDeg     int
	TZOffset    time.Duration //local offset at the target coordinates
}

// WxHour is one hour of forecast for the Nh offsets.
type WxHour struct {
	Time        time.Time
	Summary     string
	Temp        float64
	CloudsPct   int
	PressureHpa int
	HumidityPct int
	WindSpeed   float64
	WindDeg     int
}

// WxReport is the provider answer for one position.
type WxReport struct {
	Days  []WxDay
	Hours []WxHour
}

// WxClient queries the One Call style forecast endpoint. A key of
// empty string disables the provider.
type WxClient struct {
	BaseURL string
	APIKey  string
	lg      *log.Logger
}

func NewWxClient(baseURL, apiKey string, lg *log.Logger) *WxClient {
	if baseURL == `` {
		baseURL = defaultWxURL
	}
	return &WxClient{BaseURL: baseURL, APIKey: apiKey, lg: lg}
}

type oneCallResponse struct {
	TimezoneOffset int `json:"timezone_offset"`
	Daily          []struct {
		Dt      int64 `json:"dt"`
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
		Temp    struct {
			Morn  float64 `json:"morn"`
			Day   float64 `json:"day"`
			Eve   float64 `json:"eve"`
			Night float64 `json:"night"`
		} `json:"temp"`
		Pressure int     `json:"pressure"`
		Humidity int     `json:"humidity"`
		DewPoint float64 `json:"dew_point"`
		UVI      float64 `json:"uvi"`
		Clouds   int     `json:"clouds"`
		WindSpd  float64 `json:"wind_speed"`
		WindDeg  int     `json:"wind_deg"`
		Weather  []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"daily"`
	Hourly []struct {
		Dt       int64   `json:"dt"`
		Temp     float64 `json:"temp"`
		Pressure int     `json:"pressure"`
		Humidity int     `json:"humidity"`
		Clouds   int     `json:"clouds"`
		WindSpd  float64 `json:"wind_speed"`
		WindDeg  int     `json:"wind_deg"`
		Weather  []struct {
			Description string `json:"description"`
		} `json:"weather"`
	} `json:"hourly"`
}

// Get fetches the forecast. units is the provider string ("metric" or
// "imperial"); lang the ISO-639-1 code. Unit conversion is delegated
// to the provider.
func (c *WxClient) Get(ctx context.Context, lat, lon float64, units, lang string) (*WxReport, error) {
	if c.APIKey == `` {
		return nil, ErrDisabled
	}
	v := url.Values{}
	v.Set(`lat`, fmt.Sprintf("%f", lat))
	v.Set(`lon`, fmt.Sprintf("%f", lon))
	v.Set(`appid`, c.APIKey)
	v.Set(`units`, units)
	v.Set(`lang`, lang)
	v.Set(`exclude`, `minutely,alerts`)
	var raw oneCallResponse
	if err := httpJSON(ctx, c.lg, c.BaseURL+`?`+v.Encode(), nil, &raw); err != nil {
		return nil, err
	}
	tz := time.Duration(raw.TimezoneOffset) * time.Second
	rep := &WxReport{}
	for _, d := range raw.Daily {
		day := WxDay{
			Date:        time.Unix(d.Dt, 0).UTC(),
			Sunrise:     time.Unix(d.Sunrise, 0).UTC(),
			Sunset:      time.Unix(d.Sunset, 0).UTC(),
			CloudsPct:   d.Clouds,
			UVI:         d.UVI,
			PressureHpa: d.Pressure,
			HumidityPct: d.Humidity,
			DewPoint:    d.DewPoint,
			WindSpeed:   d.WindSpd,
			WindDeg:     d.WindDeg,
			TZOffset:    tz,
			Temp: WxWindow{
				Night:   d.Temp.Night,
				Morning: d.Temp.Morn,
				Day:     d.Temp.Day,
				Evening: d.Temp.Eve,
			},
		}
		if len(d.Weather) > 0 {
			day.Summary = d.Weather[0].Description
		}
		rep.Days = append(rep.Days, day)
	}
	for _, h := range raw.Hourly {
		hour := WxHour{
			Time:        time.Unix(h.Dt, 0).UTC(),
			Temp:        h.Temp,
			CloudsPct:   h.Clouds,
			PressureHpa: h.Pressure,
			HumidityPct: h.Humidity,
			WindSpeed:   h.WindSpd,
			WindDeg:     h.WindDeg,
		}
		if len(h.Weather) > 0 {
			hour.Summary = h.Weather[0].Description
		}
		rep.Hours = append(rep.Hours, hour)
	}
	if len(rep.Days) == 0 && len(rep.Hours) == 0 {
		return nil, ErrNotFound
	}
	return rep, nil
}
