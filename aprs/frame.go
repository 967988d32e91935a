/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package aprs implements the APRS-IS side of the daemon: the line
// protocol (frames, message-ids, acknowledgements, beacons) and the
// single paced client session.
package aprs

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Format tags an inbound frame by payload type.
type Format int

const (
	FormatOther   Format = iota //anything we do not react to
	FormatMessage               //addressed text message
	FormatAck                   //legacy ack<id>
	FormatReject                //legacy rej<id>
)

// MaxPayload is the APRS message text ceiling in bytes.
const MaxPayload = 67

var (
	ErrNotAFrame   = errors.New("line is not an APRS frame")
	ErrBadCallsign = errors.New("invalid callsign")
)

// Frame is one decoded APRS-IS line.
type Frame struct {
	Source    string //sender callsign, may carry an SSID suffix
	Addressee string //message destination callsign
	Body      string //message text with the message-id stripped
	MsgID     string //empty when the sender did not number the message
	AckID     string //set on FormatAck/FormatReject, and for reply-ack trailers
	Format    Format
}

var (
	//message-ids are 1-5 alphanumerics per spec; reply-ack piggybacks
	//a second id after "}".
	msgIDRe    = regexp.MustCompile(`\{([A-Za-z0-9]{1,5})(?:\}([A-Za-z0-9]{1,5}))?\s*$`)
	ackRe      = regexp.MustCompile(`^(ack|rej)([A-Za-z0-9]{1,5})\s*$`)
	callsignRe = regexp.MustCompile(`^[A-Za-z0-9]{1,3}[0-9][A-Za-z0-9]{0,4}(-[0-9]{1,2})?$`)
)

// ParseFrame decodes one APRS-IS line. Empty lines and server comment
// lines (leading '#') return ErrNotAFrame; non-message payloads yield
// a FormatOther frame. Callers drop both silently.
func ParseFrame(line string) (f Frame, err error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) == 0 || strings.HasPrefix(line, `#`) {
		err = ErrNotAFrame
		return
	}
	gt := strings.Index(line, `>`)
	if gt <= 0 {
		err = ErrNotAFrame
		return
	}
	f.Source = line[:gt]
	rest := line[gt+1:]
	colon := strings.Index(rest, `:`)
	if colon < 0 {
		err = ErrNotAFrame
		return
	}
	payload := rest[colon+1:]
	//a message payload is ":ADDRESSEE:text", addressee space padded to 9
	if len(payload) < 11 || payload[0] != ':' || payload[10] != ':' {
		f.Format = FormatOther
		return
	}
	f.Addressee = strings.TrimRight(payload[1:10], ` `)
	text := payload[11:]

	if m := ackRe.FindStringSubmatch(text); m != nil {
		if m[1] == `ack` {
			f.Format = FormatAck
		} else {
			f.Format = FormatReject
		}
		f.AckID = m[2]
		return
	}

	f.Format = FormatMessage
	if m := msgIDRe.FindStringSubmatch(text); m != nil {
		f.MsgID = m[1]
		f.AckID = m[2] //non-empty only for the reply-ack trailer form
		text = text[:len(text)-len(m[0])]
	}
	f.Body = text
	return
}

// RepairMsgID is the best-effort second pass for trailing message-ids
// whose framing the standard parse missed, e.g. "body{ab" followed by
// garbage or an id longer than five characters that was truncated by
// the igate. It returns the stripped body and the recovered id.
var repairRe = regexp.MustCompile(`\{\s*([A-Za-z0-9]{1,5})[^A-Za-z0-9]*$`)

func RepairMsgID(body string) (string, string, bool) {
	if !strings.Contains(body, `{`) {
		return body, ``, false
	}
	m := repairRe.FindStringSubmatchIndex(body)
	if m == nil {
		return body, ``, false
	}
	id := body[m[2]:m[3]]
	return strings.TrimRight(body[:m[0]], ` `), id, true
}

// ValidCallsign reports whether s looks like an amateur callsign with
// an optional numeric SSID suffix.
func ValidCallsign(s string) bool {
	return callsignRe.MatchString(s)
}

// BaseCallsign strips the SSID suffix.
func BaseCallsign(s string) string {
	if i := strings.Index(s, `-`); i > 0 {
		return s[:i]
	}
	return s
}

// Message renders an addressed message payload. The addressee is space
// padded to nine characters; msgID and replyAckID are optional.
func Message(dest, text, msgID, replyAckID string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, ":%-9s:%s", dest, text)
	if msgID != `` {
		sb.WriteString(`{` + msgID)
		if replyAckID != `` {
			sb.WriteString(`}` + replyAckID)
		}
	}
	return sb.String()
}

// Ack renders a legacy acknowledgement for the given message-id.
func Ack(dest, id string) string {
	return Message(dest, `ack`+id, ``, ``)
}

// Reject renders a legacy rejection for the given message-id.
func Reject(dest, id string) string {
	return Message(dest, `rej`+id, ``, ``)
}

// Bulletin renders a bulletin payload addressed to BLNn.
func Bulletin(n int, text string) string {
	return Message(fmt.Sprintf("BLN%d", n), text, ``, ``)
}
