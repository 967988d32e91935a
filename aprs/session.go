/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package aprs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gravwell/gravwell/v3/ingest/log"
)

// NoCall is the sentinel station identifier; a session configured with
// it never transmits, outbound frames are diverted to the log.
const NoCall = `N0CALL`

// Category classifies outbound traffic for pacing purposes.
type Category int

const (
	CatMessage Category = iota
	CatAck
	CatBeacon
	CatBulletin
)

func (c Category) String() string {
	switch c {
	case CatMessage:
		return `message`
	case CatAck:
		return `ack`
	case CatBeacon:
		return `beacon`
	case CatBulletin:
		return `bulletin`
	}
	return `unknown`
}

const (
	DefaultMessageDelay = 6 * time.Second
	DefaultAckDelay     = 6 * time.Second

	minReconnectDelay = time.Second
	maxReconnectDelay = 5 * time.Minute

	defaultToCall = `APMPAD` //tocall identifying this client software
)

var ErrNotConnected = errors.New("session is not connected")

// SessionConfig carries everything needed to hold the upstream
// connection.
type SessionConfig struct {
	Server       string //host:port of the APRS-IS core
	Callsign     string //our station identifier, NoCall disables TX
	Passcode     string //numeric APRS-IS passcode, -1 for receive only
	Filter       string //server side filter expression
	Agent        string
	Version      string
	MessageDelay time.Duration //pacing for message payloads
	AckDelay     time.Duration //pacing for ack/beacon/bulletin payloads
}

// Session owns the single TCP text connection. It is the only component
// that writes to the socket; every write obeys the inter-packet pacing
// measured from the last completed write regardless of category.
type Session struct {
	cfg SessionConfig
	lg  *log.Logger

	frames chan Frame

	mtx       sync.Mutex
	conn      net.Conn
	lastWrite time.Time
	readOnly  bool
}

func NewSession(cfg SessionConfig, lg *log.Logger) (*Session, error) {
	if cfg.Server == `` {
		return nil, errors.New("no server specified")
	}
	if cfg.Callsign == `` {
		return nil, ErrBadCallsign
	}
	if cfg.MessageDelay <= 0 {
		cfg.MessageDelay = DefaultMessageDelay
	}
	if cfg.AckDelay <= 0 {
		cfg.AckDelay = DefaultAckDelay
	}
	return &Session{
		cfg:      cfg,
		lg:       lg,
		frames:   make(chan Frame, 128),
		readOnly: strings.EqualFold(cfg.Callsign, NoCall),
	}, nil
}

// Frames is the stream of decoded inbound frames. The channel closes
// when Run returns.
func (s *Session) Frames() <-chan Frame {
	return s.frames
}

// ReadOnly reports whether outbound traffic is diverted to the log.
func (s *Session) ReadOnly() bool {
	return s.readOnly
}

// Run dials, logs in, and pumps inbound lines until the context is
// canceled. Connection loss triggers a reconnect with exponential
// backoff; caller state (dedup cache, ack bookkeeping) is untouched
// across reconnects.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.frames)
	delay := minReconnectDelay
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		conn, err := s.connect(ctx)
		if err != nil {
			s.lg.Error("APRS-IS connect failed", log.KV("server", s.cfg.Server), log.KVErr(err))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			if delay *= 2; delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}
		delay = minReconnectDelay
		s.setConn(conn)
		err = s.readLoop(ctx, conn)
		s.setConn(nil)
		conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		s.lg.Warn("APRS-IS connection lost, reconnecting", log.KVErr(err))
	}
}

func (s *Session) connect(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, `tcp`, s.cfg.Server)
	if err != nil {
		return nil, err
	}
	login := fmt.Sprintf("user %s pass %s vers %s %s filter %s\r\n",
		s.cfg.Callsign, s.cfg.Passcode, s.cfg.Agent, s.cfg.Version, s.cfg.Filter)
	if _, err = conn.Write([]byte(login)); err != nil {
		conn.Close()
		return nil, err
	}
	s.lg.Info("APRS-IS session established",
		log.KV("server", s.cfg.Server),
		log.KV("callsign", s.cfg.Callsign),
		log.KV("filter", s.cfg.Filter),
		log.KV("readonly", s.readOnly))
	return conn, nil
}

func (s *Session) readLoop(ctx context.Context, conn net.Conn) error {
	rdr := bufio.NewReader(conn)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		//bounded read so a canceled context is noticed even on an
		//idle stream
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		line, err := rdr.ReadString('\n')
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
		if strings.HasPrefix(line, `# logresp`) {
			if strings.Contains(line, `unverified`) && !s.readOnly {
				s.lg.Warn("APRS-IS login unverified, transmissions will be rejected upstream")
			}
			continue
		}
		f, err := ParseFrame(line)
		if err != nil {
			continue //server chatter
		}
		select {
		case s.frames <- f:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) setConn(conn net.Conn) {
	s.mtx.Lock()
	s.conn = conn
	s.mtx.Unlock()
}

// delayFor returns the mandated minimum delay since the previous
// completed write for the given category.
func (s *Session) delayFor(cat Category) time.Duration {
	if cat == CatMessage {
		return s.cfg.MessageDelay
	}
	return s.cfg.AckDelay
}

// Write emits one fully rendered payload. It blocks for the pacing
// window, then prepends the station header and writes the line. In
// read-only mode the line goes to the log instead of the socket.
func (s *Session) Write(ctx context.Context, cat Category, payload string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if wait := s.delayFor(cat) - time.Since(s.lastWrite); wait > 0 {
		s.mtx.Unlock()
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			s.mtx.Lock()
			return ctx.Err()
		}
		s.mtx.Lock()
	}
	line := fmt.Sprintf("%s>%s,TCPIP*:%s\r\n", s.cfg.Callsign, defaultToCall, payload)
	if s.readOnly {
		s.lg.Info("readonly TX suppressed", log.KV("category", cat), log.KV("line", strings.TrimSpace(line)))
		s.lastWrite = time.Now()
		return nil
	}
	if s.conn == nil {
		return ErrNotConnected
	}
	if _, err := s.conn.Write([]byte(line)); err != nil {
		return err
	}
	s.lastWrite = time.Now()
	s.lg.Debug("TX", log.KV("category", cat), log.KV("payload", payload))
	return nil
}
