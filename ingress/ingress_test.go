/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package ingress

import (
	"testing"
	"time"

	"github.com/gravwell/gravwell/v3/ingest/log"

	"github.com/joergschultzelutter/mpad/aprs"
	"github.com/joergschultzelutter/mpad/decay"
)

type capture struct {
	acks     []string
	requests []Request
	events   []string //interleaving record
}

func newTestHandler() (*Handler, *capture) {
	cap := &capture{}
	h := NewHandler([]string{`MPAD`, `WXBOT`}, decay.New(time.Hour, 64), NewAckTracker(), log.NewDiscardLogger())
	h.OnAck = func(dest, id string) {
		cap.acks = append(cap.acks, dest+`|`+id)
		cap.events = append(cap.events, `ack`)
	}
	h.OnRequest = func(req Request) {
		cap.requests = append(cap.requests, req)
		cap.events = append(cap.events, `req`)
	}
	return h, cap
}

func msgFrame(src, dest, body, msgid string) aprs.Frame {
	return aprs.Frame{
		Source:    src,
		Addressee: dest,
		Body:      body,
		MsgID:     msgid,
		Format:    aprs.FormatMessage,
	}
}

func TestAdmission(t *testing.T) {
	h, cap := newTestHandler()
	h.handle(msgFrame(`DF1JSL-8`, `MPAD`, `wx`, `17`))
	if len(cap.requests) != 1 {
		t.Fatalf("request not admitted")
	}
	if len(cap.acks) != 1 || cap.acks[0] != `DF1JSL-8|17` {
		t.Fatalf("invalid acks %v", cap.acks)
	}
	//ack strictly precedes the request hand-off
	if cap.events[0] != `ack` || cap.events[1] != `req` {
		t.Fatalf("invalid ordering %v", cap.events)
	}
}

func TestNoAckWithoutMsgID(t *testing.T) {
	h, cap := newTestHandler()
	h.handle(msgFrame(`DF1JSL-8`, `MPAD`, `94043`, ``))
	if len(cap.requests) != 1 {
		t.Fatal("request not admitted")
	}
	if len(cap.acks) != 0 {
		t.Fatalf("ack for unnumbered frame: %v", cap.acks)
	}
}

func TestAddresseeFilter(t *testing.T) {
	h, cap := newTestHandler()
	h.handle(msgFrame(`DF1JSL-8`, `SOMEONE`, `wx`, `1`))
	if len(cap.requests) != 0 || len(cap.acks) != 0 {
		t.Fatal("filtered addressee was admitted")
	}
	//filter is case-insensitive exact match
	h.handle(msgFrame(`DF1JSL-8`, `wxbot`, `wx`, `2`))
	if len(cap.requests) != 1 {
		t.Fatal("secondary filter entry rejected")
	}
}

func TestNonMessageDropped(t *testing.T) {
	h, cap := newTestHandler()
	h.handle(aprs.Frame{Source: `DF1JSL-8`, Addressee: `MPAD`, Format: aprs.FormatOther})
	if len(cap.requests) != 0 || len(cap.acks) != 0 {
		t.Fatal("non-message frame admitted")
	}
}

func TestDuplicateSuppression(t *testing.T) {
	h, cap := newTestHandler()
	//identical body without message-id inside the TTL: second frame
	//produces zero outbound work
	h.handle(msgFrame(`DF1JSL-8`, `MPAD`, `94043`, ``))
	h.handle(msgFrame(`DF1JSL-8`, `MPAD`, `94043`, ``))
	if len(cap.requests) != 1 {
		t.Fatalf("duplicate admitted: %d requests", len(cap.requests))
	}
	if len(cap.acks) != 0 {
		t.Fatalf("duplicate acked: %v", cap.acks)
	}
	//the same payload under a fresh message-id is a new request
	h.handle(msgFrame(`DF1JSL-8`, `MPAD`, `94043`, `AB`))
	if len(cap.requests) != 2 {
		t.Fatal("fresh message-id treated as duplicate")
	}
	//replaying that id is a duplicate again and gets no second ack
	h.handle(msgFrame(`DF1JSL-8`, `MPAD`, `94043`, `AB`))
	if len(cap.requests) != 2 || len(cap.acks) != 1 {
		t.Fatalf("replay admitted: %d requests %d acks", len(cap.requests), len(cap.acks))
	}
}

func TestMsgIDRepair(t *testing.T) {
	h, cap := newTestHandler()
	h.handle(msgFrame(`DF1JSL-8`, `MPAD`, `wx tomorrow{AB1 `, ``))
	if len(cap.requests) != 1 {
		t.Fatal("repaired frame not admitted")
	}
	req := cap.requests[0]
	if req.Frame.MsgID != `AB1` {
		t.Fatalf("message-id not recovered: %q", req.Frame.MsgID)
	}
	if req.Frame.Body != `wx tomorrow` {
		t.Fatalf("body not stripped: %q", req.Frame.Body)
	}
	if len(cap.acks) != 1 {
		t.Fatal("repaired frame not acked")
	}
}

func TestAckTrackerLegacy(t *testing.T) {
	a := NewAckTracker()
	id := a.NextMsgID()
	if len(id) < 2 || len(id) > 5 {
		t.Fatalf("invalid msgid %q", id)
	}
	if id2 := a.NextMsgID(); id2 == id {
		t.Fatal("msgids not unique")
	}
	a.Register(id, `DF1JSL-8`)
	if a.Pending() != 1 {
		t.Fatalf("invalid pending %d", a.Pending())
	}
	if !a.Confirm(id) {
		t.Fatal("confirmation failed")
	}
	if a.Confirm(id) {
		t.Fatal("double confirmation")
	}
	if a.Confirm(``) {
		t.Fatal("empty id confirmed")
	}
}

func TestAckTrackerReplyAck(t *testing.T) {
	a := NewAckTracker()
	a.Register(`7J`, `DF1JSL-8`)
	//an inbound message carrying {id}ackid confirms in-band and marks
	//the peer as reply-ack capable
	f := msgFrame(`DF1JSL-8`, `MPAD`, `wx`, `AB`)
	f.AckID = `7J`
	a.NoteInbound(f)
	if a.Pending() != 0 {
		t.Fatal("reply-ack trailer did not confirm")
	}
	if !a.UsesReplyAck(`df1jsl-8`) {
		t.Fatal("peer not marked reply-ack capable")
	}
	if a.UsesReplyAck(`KB3HNZ`) {
		t.Fatal("unrelated peer marked")
	}
}

func TestLegacyAckFrameConfirms(t *testing.T) {
	h, cap := newTestHandler()
	h.acks.Register(`3F`, `DF1JSL-8`)
	h.handle(aprs.Frame{Source: `DF1JSL-8`, Addressee: `MPAD`, Format: aprs.FormatAck, AckID: `3F`})
	if h.acks.Pending() != 0 {
		t.Fatal("legacy ack did not confirm")
	}
	if len(cap.requests) != 0 {
		t.Fatal("ack frame admitted as request")
	}
}
