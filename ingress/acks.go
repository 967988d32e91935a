/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package ingress

import (
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/joergschultzelutter/mpad/aprs"
)

// AckTracker implements both acknowledgement variants. Legacy:
// inbound ack<id>/rej<id> bodies confirm our outbound by id. Reply-ack:
// an inbound message whose id trailer is {id}ackid confirms in-band,
// and marks the sender as reply-ack capable so our answers to them
// carry the trailer form. There is no retransmit of unconfirmed
// outbound; the tracker only bounds its own memory.
type AckTracker struct {
	mtx          sync.Mutex
	pending      map[string]string //outbound msgid -> destination
	replyAckPeer map[string]bool   //senders seen using the reply-ack form
	ctr          uint64
}

const maxPendingAcks = 512

func NewAckTracker() *AckTracker {
	return &AckTracker{
		pending:      make(map[string]string, maxPendingAcks),
		replyAckPeer: make(map[string]bool),
	}
}

// NextMsgID produces a fresh outbound message id: a base-36 counter
// bounded to the protocol's two-to-five alphanumerics.
func (a *AckTracker) NextMsgID() string {
	n := atomic.AddUint64(&a.ctr, 1) % (36 * 36 * 36)
	id := strings.ToUpper(strconv.FormatUint(n, 36))
	for len(id) < 2 {
		id = `0` + id
	}
	return id
}

// Register records an outbound id awaiting confirmation.
func (a *AckTracker) Register(msgid, dest string) {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if len(a.pending) >= maxPendingAcks {
		//drop the table rather than grow without bound; confirmations
		//for dropped ids are simply ignored
		a.pending = make(map[string]string, maxPendingAcks)
	}
	a.pending[msgid] = strings.ToUpper(dest)
}

// Confirm resolves a pending outbound id; it reports whether the id
// was known.
func (a *AckTracker) Confirm(id string) bool {
	if id == `` {
		return false
	}
	a.mtx.Lock()
	defer a.mtx.Unlock()
	if _, ok := a.pending[id]; ok {
		delete(a.pending, id)
		return true
	}
	return false
}

// NoteInbound inspects an admitted frame for reply-ack usage: a
// trailer id confirms the referenced outbound, and the sender is
// remembered as reply-ack capable.
func (a *AckTracker) NoteInbound(f aprs.Frame) {
	if f.Format != aprs.FormatMessage || f.AckID == `` {
		return
	}
	a.Confirm(f.AckID)
	a.mtx.Lock()
	a.replyAckPeer[strings.ToUpper(f.Source)] = true
	a.mtx.Unlock()
}

// UsesReplyAck reports whether the peer has used the reply-ack form;
// answers to such peers carry the in-band trailer instead of relying
// on a separate ack from their side.
func (a *AckTracker) UsesReplyAck(callsign string) bool {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return a.replyAckPeer[strings.ToUpper(callsign)]
}

// Pending reports the number of unconfirmed outbound ids.
func (a *AckTracker) Pending() int {
	a.mtx.Lock()
	defer a.mtx.Unlock()
	return len(a.pending)
}
