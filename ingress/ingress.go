/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package ingress admits inbound frames: format and addressee
// filtering, message-id repair, duplicate suppression, and the
// acknowledgement bookkeeping. Admitted requests leave in FIFO order.
package ingress

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/gravwell/gravwell/v3/ingest/log"

	"github.com/joergschultzelutter/mpad/aprs"
	"github.com/joergschultzelutter/mpad/decay"
)

// Request is one admitted inbound message.
type Request struct {
	Frame aprs.Frame
}

// Handler owns the dedup cache and the ack state; it is the single
// mutator of both.
type Handler struct {
	filters map[string]bool
	dedup   *decay.Cache
	acks    *AckTracker
	lg      *log.Logger

	//OnAck enqueues a legacy acknowledgement for the sender; it must
	//be scheduled before any response fragment of the same request.
	OnAck func(dest, id string)
	//OnRequest hands the admitted request to the dispatch worker.
	OnRequest func(req Request)
}

// NewHandler builds the admission pipeline. filters is the secondary
// addressee set, matched exactly (case-insensitive).
func NewHandler(filters []string, dedup *decay.Cache, acks *AckTracker, lg *log.Logger) *Handler {
	h := &Handler{
		filters: make(map[string]bool, len(filters)),
		dedup:   dedup,
		acks:    acks,
		lg:      lg,
	}
	for _, f := range filters {
		h.filters[strings.ToUpper(strings.TrimSpace(f))] = true
	}
	return h
}

// Run consumes the session's frame stream until the context ends or
// the stream closes.
func (h *Handler) Run(ctx context.Context, frames <-chan aprs.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			h.handle(f)
		}
	}
}

// handle runs the admission pipeline for one frame. Format errors
// drop silently with no ack.
func (h *Handler) handle(f aprs.Frame) {
	switch f.Format {
	case aprs.FormatAck, aprs.FormatReject:
		//legacy confirmation of our own outbound
		if h.acks.Confirm(f.AckID) {
			h.lg.Debug("outbound confirmed", log.KV("source", f.Source), log.KV("id", f.AckID))
		}
		return
	case aprs.FormatMessage:
	default:
		return
	}
	if !h.filters[strings.ToUpper(f.Addressee)] {
		return
	}
	//second-chance recovery of a defective trailing message-id
	if f.MsgID == `` {
		if body, id, ok := aprs.RepairMsgID(f.Body); ok {
			f.Body = body
			f.MsgID = id
			h.lg.Debug("repaired message-id", log.KV("source", f.Source), log.KV("id", id))
		}
	}
	h.acks.NoteInbound(f)
	if !h.dedup.InsertIfAbsent(DedupKey(f)) {
		h.lg.Debug("duplicate dropped", log.KV("source", f.Source), log.KV("id", f.MsgID))
		return
	}
	//ack first: the ack for a message-id-bearing frame precedes any
	//response fragment derived from it
	if f.MsgID != `` && h.OnAck != nil {
		h.OnAck(f.Source, f.MsgID)
	}
	if h.OnRequest != nil {
		h.OnRequest(Request{Frame: f})
	}
}

// DedupKey builds the retention key: sender, message-id (empty when
// absent), and a digest over the raw body. A repeated payload under a
// fresh message-id is a new request; the same payload without an id
// inside the TTL is a duplicate.
func DedupKey(f aprs.Frame) string {
	hash := fnv.New64a()
	hash.Write([]byte(f.Body))
	return fmt.Sprintf("%s|%s|%016x", strings.ToUpper(f.Source), f.MsgID, hash.Sum64())
}
