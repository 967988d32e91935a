/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gravwell/gcfg"
	gwconfig "github.com/gravwell/gravwell/v3/ingest/config"

	"github.com/joergschultzelutter/mpad/aprs"
)

const (
	maxConfigSize int64 = 1024 * 1024 //1MB of INI is already absurd

	envPasscode       = `MPAD_PASSCODE`
	envWxAPIKey       = `MPAD_WX_API_KEY`
	envPositionAPIKey = `MPAD_POSITION_API_KEY`
	envDapnetPassword = `MPAD_DAPNET_PASSWORD`
	envMailPassword   = `MPAD_MAIL_PASSWORD`

	defaultServer = `euro.aprs2.net:14580`
)

type bulletin struct {
	Text string
}

type cfgReadType struct {
	Global   global
	Bulletin map[string]*bulletin
	DAPNET   dapnetCfg
	Mail     mailCfg
}

type global struct {
	Callsign         string
	Passcode         string
	Server           string
	Filter           string
	Addressee_Filter []string

	Latitude      string //native fixed-width form, e.g. 5149.62N
	Longitude     string //e.g. 00942.03E
	Altitude_Feet int
	Alias         string
	Symbol_Table  string
	Symbol_Code   string

	Data_Dir  string
	Log_File  string
	Log_Level string

	Dedup_TTL         string
	Dedup_Max_Entries int

	Beacon_Interval   string
	Bulletin_Interval string
	Message_Delay     string
	Ack_Delay         string

	Force_Unicode bool
	Min_Elevation float64
	Osm_Category  []string

	Wx_API_Key       string
	Position_API_Key string

	TLE_URL      string
	Sat_Freq_URL string
	Airport_URL  string
	Repeater_URL string
}

type dapnetCfg struct {
	Callsign          string
	Password          string
	Transmitter_Group string
}

type mailCfg struct {
	SMTP_Host      string
	SMTP_Port      int
	IMAP_Host      string
	IMAP_Port      int
	Address        string
	Password       string
	Sent_Folder    string
	Sent_Retention string
}

// cfgType is the verified runtime configuration.
type cfgType struct {
	cfgReadType

	lat float64
	lon float64

	dedupTTL         time.Duration
	beaconInterval   time.Duration
	bulletinInterval time.Duration
	messageDelay     time.Duration
	ackDelay         time.Duration
	sentRetention    time.Duration
}

// GetConfig loads and verifies the configuration file. Secrets may
// come from the environment instead of the file.
func GetConfig(path string) (*cfgType, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := fin.Stat()
	if err != nil {
		fin.Close()
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		fin.Close()
		return nil, errors.New("config file far too large")
	}
	content := make([]byte, fi.Size())
	n, err := fin.Read(content)
	fin.Close()
	if err != nil || int64(n) != fi.Size() {
		return nil, errors.New("failed to read config file")
	}
	var cr cfgReadType
	if err := gcfg.ReadStringInto(&cr, string(content)); err != nil {
		return nil, err
	}
	c := &cfgType{cfgReadType: cr}
	if err := verifyConfig(c); err != nil {
		return nil, err
	}
	return c, nil
}

func verifyConfig(c *cfgType) error {
	g := &c.Global
	if err := gwconfig.LoadEnvVar(&g.Passcode, envPasscode, `-1`); err != nil {
		return err
	}
	if err := gwconfig.LoadEnvVar(&g.Wx_API_Key, envWxAPIKey, ``); err != nil {
		return err
	}
	if err := gwconfig.LoadEnvVar(&g.Position_API_Key, envPositionAPIKey, ``); err != nil {
		return err
	}
	if err := gwconfig.LoadEnvVar(&c.DAPNET.Password, envDapnetPassword, ``); err != nil {
		return err
	}
	if err := gwconfig.LoadEnvVar(&c.Mail.Password, envMailPassword, ``); err != nil {
		return err
	}

	if g.Callsign == `` {
		return errors.New("no callsign specified")
	}
	if !aprs.ValidCallsign(g.Callsign) && !strings.EqualFold(g.Callsign, aprs.NoCall) {
		return fmt.Errorf("invalid callsign %q", g.Callsign)
	}
	if g.Server == `` {
		g.Server = defaultServer
	}
	if g.Alias == `` {
		g.Alias = strings.ToUpper(aprs.BaseCallsign(g.Callsign))
	}
	if len(g.Addressee_Filter) == 0 {
		g.Addressee_Filter = []string{g.Alias}
	}
	if g.Filter == `` {
		g.Filter = `g/` + strings.Join(g.Addressee_Filter, `/`)
	}

	var err error
	if c.lat, err = parseFixedCoord(g.Latitude, `N`, `S`, 2); err != nil {
		return fmt.Errorf("invalid Latitude: %w", err)
	}
	if c.lon, err = parseFixedCoord(g.Longitude, `E`, `W`, 3); err != nil {
		return fmt.Errorf("invalid Longitude: %w", err)
	}

	if c.dedupTTL, err = optDuration(g.Dedup_TTL, time.Hour); err != nil {
		return fmt.Errorf("invalid Dedup-TTL: %w", err)
	}
	if c.beaconInterval, err = optDuration(g.Beacon_Interval, 30*time.Minute); err != nil {
		return fmt.Errorf("invalid Beacon-Interval: %w", err)
	}
	if c.bulletinInterval, err = optDuration(g.Bulletin_Interval, 4*time.Hour); err != nil {
		return fmt.Errorf("invalid Bulletin-Interval: %w", err)
	}
	if c.messageDelay, err = optDuration(g.Message_Delay, aprs.DefaultMessageDelay); err != nil {
		return fmt.Errorf("invalid Message-Delay: %w", err)
	}
	if c.ackDelay, err = optDuration(g.Ack_Delay, aprs.DefaultAckDelay); err != nil {
		return fmt.Errorf("invalid Ack-Delay: %w", err)
	}
	if g.Dedup_Max_Entries < 0 {
		return errors.New("invalid Dedup-Max-Entries")
	}
	if g.Min_Elevation < 0 || g.Min_Elevation >= 90 {
		return errors.New("invalid Min-Elevation")
	}
	if g.Data_Dir == `` {
		g.Data_Dir = `.`
	}

	//bulletin sections must be named BLN<n>; bulletinLines stops at the
	//first missing index, so sections after a gap are not sent
	for name := range c.Bulletin {
		if !strings.HasPrefix(name, `BLN`) {
			return fmt.Errorf("invalid bulletin section %q", name)
		}
	}

	//the Sent retention is deliberately mandatory when mail is on:
	//pruning is destructive and a silent default would be worse
	if c.Mail.SMTP_Host != `` || c.Mail.Address != `` {
		if c.Mail.Sent_Retention == `` {
			return errors.New("Sent-Retention is mandatory when mail is configured")
		}
		if c.sentRetention, err = time.ParseDuration(c.Mail.Sent_Retention); err != nil {
			return fmt.Errorf("invalid Sent-Retention: %w", err)
		}
		if c.sentRetention <= 0 {
			return errors.New("Sent-Retention must be positive")
		}
	}
	return nil
}

// parseFixedCoord parses the native APRS fixed-width coordinate form
// (ddmm.ssN / dddmm.ssE) into decimal degrees.
func parseFixedCoord(s, pos, neg string, degDigits int) (float64, error) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if len(s) < degDigits+5 {
		return 0, errors.New("truncated coordinate")
	}
	hemi := s[len(s)-1:]
	if hemi != pos && hemi != neg {
		return 0, fmt.Errorf("bad hemisphere %q", hemi)
	}
	body := s[:len(s)-1]
	deg, err := strconv.ParseFloat(body[:degDigits], 64)
	if err != nil {
		return 0, err
	}
	min, err := strconv.ParseFloat(body[degDigits:], 64)
	if err != nil {
		return 0, err
	}
	if min >= 60 {
		return 0, errors.New("minutes out of range")
	}
	v := deg + min/60.0
	if hemi == neg {
		v = -v
	}
	return v, nil
}

func optDuration(s string, def time.Duration) (time.Duration, error) {
	if s == `` {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

// bulletinLines flattens the bulletin sections into the ordered
// BLN0..BLNn list.
func (c *cfgType) bulletinLines() []string {
	var lines []string
	for i := 0; i < 10; i++ {
		b, ok := c.Bulletin[fmt.Sprintf("BLN%d", i)]
		if !ok {
			break
		}
		lines = append(lines, b.Text)
	}
	return lines
}

func (c *cfgType) symbolTable() byte {
	if c.Global.Symbol_Table != `` {
		return c.Global.Symbol_Table[0]
	}
	return '/'
}

func (c *cfgType) symbolCode() byte {
	if c.Global.Symbol_Code != `` {
		return c.Global.Symbol_Code[0]
	}
	return '#'
}
