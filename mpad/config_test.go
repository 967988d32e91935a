/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testConfig = `
[Global]
	Callsign=DF1JSL-15
	Passcode=12345
	Server=euro.aprs2.net:14580
	Addressee-Filter=MPAD
	Addressee-Filter=WXBOT
	Latitude=5149.62N
	Longitude=00942.03E
	Altitude-Feet=377
	Alias=MPAD
	Data-Dir=/tmp/mpad-test
	Dedup-TTL=45m
	Dedup-Max-Entries=1000
	Beacon-Interval=30m
	Bulletin-Interval=4h
	Force-Unicode=false
	Min-Elevation=10
	Osm-Category=pub
	Osm-Category=pharmacy
	Wx-API-Key=abc123

[Bulletin "BLN0"]
	Text=mpad is on the air

[Bulletin "BLN1"]
	Text=send help for command list

[DAPNET]
	Callsign=N0CALL
	Password=secret

[Mail]
	SMTP-Host=smtp.example.com
	SMTP-Port=587
	Address=mpad@example.com
	Password=hunter2
	Sent-Retention=24h
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), `mpad.conf`)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGetConfig(t *testing.T) {
	cfg, err := GetConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Global.Callsign != `DF1JSL-15` {
		t.Fatalf("invalid callsign %s", cfg.Global.Callsign)
	}
	if len(cfg.Global.Addressee_Filter) != 2 {
		t.Fatalf("invalid filter set %v", cfg.Global.Addressee_Filter)
	}
	//5149.62N is 51 degrees 49.62 minutes
	if math.Abs(cfg.lat-51.827) > 0.001 {
		t.Fatalf("invalid latitude %f", cfg.lat)
	}
	if math.Abs(cfg.lon-9.7005) > 0.001 {
		t.Fatalf("invalid longitude %f", cfg.lon)
	}
	if cfg.dedupTTL != 45*time.Minute {
		t.Fatalf("invalid dedup TTL %v", cfg.dedupTTL)
	}
	if cfg.sentRetention != 24*time.Hour {
		t.Fatalf("invalid retention %v", cfg.sentRetention)
	}
	lines := cfg.bulletinLines()
	if len(lines) != 2 || lines[0] != `mpad is on the air` {
		t.Fatalf("invalid bulletins %v", lines)
	}
	//derived server filter expression
	if cfg.Global.Filter != `g/MPAD/WXBOT` {
		t.Fatalf("invalid filter %s", cfg.Global.Filter)
	}
}

func TestConfigRejectsBadCallsign(t *testing.T) {
	bad := "[Global]\n\tCallsign=NOT A CALL\n\tLatitude=5149.62N\n\tLongitude=00942.03E\n"
	if _, err := GetConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("invalid callsign accepted")
	}
}

func TestConfigRejectsMissingRetention(t *testing.T) {
	bad := "[Global]\n\tCallsign=DF1JSL-15\n\tLatitude=5149.62N\n\tLongitude=00942.03E\n" +
		"[Mail]\n\tSMTP-Host=smtp.example.com\n\tAddress=a@b.c\n\tPassword=x\n"
	if _, err := GetConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("missing Sent-Retention accepted")
	}
	//zero retention is just as unacceptable: pruning is destructive
	bad += "\tSent-Retention=0s\n"
	if _, err := GetConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("zero Sent-Retention accepted")
	}
}

func TestConfigRejectsBadCoordinate(t *testing.T) {
	bad := "[Global]\n\tCallsign=DF1JSL-15\n\tLatitude=91.5\n\tLongitude=00942.03E\n"
	if _, err := GetConfig(writeConfig(t, bad)); err == nil {
		t.Fatal("invalid coordinate accepted")
	}
}

func TestParseFixedCoord(t *testing.T) {
	tests := []struct {
		in        string
		pos, neg  string
		degDigits int
		want      float64
		wantErr   bool
	}{
		{`5149.62N`, `N`, `S`, 2, 51.827, false},
		{`5149.62S`, `N`, `S`, 2, -51.827, false},
		{`00942.03E`, `E`, `W`, 3, 9.70050, false},
		{`07040.16W`, `E`, `W`, 3, -70.6693, false},
		{`5149.62X`, `N`, `S`, 2, 0, true},
		{`49.62N`, `N`, `S`, 2, 0, true},
		{`5199.00N`, `N`, `S`, 2, 0, true},
	}
	for _, tt := range tests {
		got, err := parseFixedCoord(tt.in, tt.pos, tt.neg, tt.degDigits)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if math.Abs(got-tt.want) > 0.001 {
			t.Fatalf("%s: %f != %f", tt.in, got, tt.want)
		}
	}
}

func TestDefaultsApplied(t *testing.T) {
	minimal := "[Global]\n\tCallsign=DF1JSL-15\n\tLatitude=5149.62N\n\tLongitude=00942.03E\n"
	cfg, err := GetConfig(writeConfig(t, minimal))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Global.Server != defaultServer {
		t.Fatalf("default server not applied: %s", cfg.Global.Server)
	}
	if cfg.Global.Alias != `DF1JSL` {
		t.Fatalf("default alias not applied: %s", cfg.Global.Alias)
	}
	if len(cfg.Global.Addressee_Filter) != 1 || cfg.Global.Addressee_Filter[0] != `DF1JSL` {
		t.Fatalf("default addressee filter not applied: %v", cfg.Global.Addressee_Filter)
	}
	if cfg.dedupTTL != time.Hour {
		t.Fatalf("default dedup TTL not applied: %v", cfg.dedupTTL)
	}
	if cfg.beaconInterval != 30*time.Minute || cfg.bulletinInterval != 4*time.Hour {
		t.Fatal("default intervals not applied")
	}
}
