/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package aprs

import (
	"testing"
)

func TestParseFrameMessage(t *testing.T) {
	f, err := ParseFrame("DF1JSL-8>APRS,TCPIP*,qAC,T2SYDNEY::MPAD     :wx tomorrow{AB123\r\n")
	if err != nil {
		t.Fatal(err)
	}
	if f.Format != FormatMessage {
		t.Fatalf("invalid format %d", f.Format)
	}
	if f.Source != `DF1JSL-8` || f.Addressee != `MPAD` {
		t.Fatalf("invalid endpoints %s -> %s", f.Source, f.Addressee)
	}
	if f.Body != `wx tomorrow` || f.MsgID != `AB123` {
		t.Fatalf("invalid body %q msgid %q", f.Body, f.MsgID)
	}
}

func TestParseFrameNoMsgID(t *testing.T) {
	f, err := ParseFrame("KB3HNZ>APOSB,WIDE1-1,qAR,X::MPAD     :94043")
	if err != nil {
		t.Fatal(err)
	}
	if f.MsgID != `` || f.Body != `94043` {
		t.Fatalf("invalid parse %q %q", f.Body, f.MsgID)
	}
}

func TestParseFrameReplyAck(t *testing.T) {
	f, err := ParseFrame("DF1JSL-8>APRS::MPAD     :metar eddf{AB}01")
	if err != nil {
		t.Fatal(err)
	}
	if f.MsgID != `AB` || f.AckID != `01` {
		t.Fatalf("invalid reply-ack parse msgid %q ackid %q", f.MsgID, f.AckID)
	}
	if f.Body != `metar eddf` {
		t.Fatalf("invalid body %q", f.Body)
	}
}

func TestParseFrameAckReject(t *testing.T) {
	f, err := ParseFrame("DF1JSL-8>APRS::MPAD     :ack123")
	if err != nil {
		t.Fatal(err)
	}
	if f.Format != FormatAck || f.AckID != `123` {
		t.Fatalf("invalid ack parse %d %q", f.Format, f.AckID)
	}
	f, err = ParseFrame("DF1JSL-8>APRS::MPAD     :rej99")
	if err != nil {
		t.Fatal(err)
	}
	if f.Format != FormatReject || f.AckID != `99` {
		t.Fatalf("invalid rej parse %d %q", f.Format, f.AckID)
	}
}

func TestParseFrameNonMessage(t *testing.T) {
	f, err := ParseFrame("DF1JSL-8>APRS,qAR,X:!5149.62N/00942.03E#beacon")
	if err != nil {
		t.Fatal(err)
	}
	if f.Format != FormatOther {
		t.Fatalf("position report classified as %d", f.Format)
	}
	if _, err = ParseFrame("# aprsc 2.1.10-gd72a17c"); err != ErrNotAFrame {
		t.Fatal("server comment accepted as frame")
	}
	if _, err = ParseFrame(""); err != ErrNotAFrame {
		t.Fatal("empty line accepted as frame")
	}
}

func TestRepairMsgID(t *testing.T) {
	tests := []struct {
		in     string
		body   string
		id     string
		wantOK bool
	}{
		{`wx tomorrow{AB1 `, `wx tomorrow`, `AB1`, true},
		{`whereis df1jsl-8 {17}`, `whereis df1jsl-8`, `17`, true},
		{`no marker here`, `no marker here`, ``, false},
		{`dangling brace{`, `dangling brace{`, ``, false},
	}
	for i, tt := range tests {
		body, id, ok := RepairMsgID(tt.in)
		if ok != tt.wantOK {
			t.Fatalf("case %d: ok = %v", i, ok)
		}
		if !ok {
			continue
		}
		if body != tt.body || id != tt.id {
			t.Fatalf("case %d: got %q %q", i, body, id)
		}
	}
}

func TestMessageRender(t *testing.T) {
	if got := Message(`DF1JSL-8`, `hello`, ``, ``); got != `:DF1JSL-8 :hello` {
		t.Fatalf("invalid render %q", got)
	}
	if got := Message(`DF1JSL-8`, `hello`, `17`, ``); got != `:DF1JSL-8 :hello{17` {
		t.Fatalf("invalid render %q", got)
	}
	if got := Message(`N0CALL`, `hi`, `17`, `AB`); got != `:N0CALL   :hi{17}AB` {
		t.Fatalf("invalid reply-ack render %q", got)
	}
	if got := Ack(`DF1JSL-8`, `123`); got != `:DF1JSL-8 :ack123` {
		t.Fatalf("invalid ack render %q", got)
	}
	if got := Bulletin(0, `hi there`); got != `:BLN0     :hi there` {
		t.Fatalf("invalid bulletin render %q", got)
	}
}

func TestCallsignHelpers(t *testing.T) {
	for _, c := range []string{`DF1JSL`, `DF1JSL-8`, `N0CALL`, `W1AW`, `2E0XYZ-15`} {
		if !ValidCallsign(c) {
			t.Fatalf("rejected valid callsign %s", c)
		}
	}
	for _, c := range []string{``, `-8`, `TOOLONGCALL1`, `DF1JSL-`, `a;b`} {
		if ValidCallsign(c) {
			t.Fatalf("accepted invalid callsign %s", c)
		}
	}
	if BaseCallsign(`DF1JSL-8`) != `DF1JSL` || BaseCallsign(`DF1JSL`) != `DF1JSL` {
		t.Fatal("invalid base callsign")
	}
}

func TestBeacon(t *testing.T) {
	p := Position{
		Lat:        51.8269,
		Lon:        9.4503,
		AltFeet:    377,
		Comment:    `mpad 0.1`,
		SymbolTab:  '/',
		SymbolCode: '#',
	}
	got := p.Beacon()
	want := `!5149.61N/00927.02E#mpad 0.1/A=000377`
	if got != want {
		t.Fatalf("invalid beacon\n got %q\nwant %q", got, want)
	}
	//southern and western hemispheres flip the letters
	p = Position{Lat: -33.8688, Lon: -70.6693}
	got = p.Beacon()
	want = `!3352.13S/07040.16W#`
	if got != want {
		t.Fatalf("invalid beacon %q", got)
	}
}
