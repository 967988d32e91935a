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
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/gravwell/gravwell/v3/ingest/log"
	gomail "github.com/wneessen/go-mail"
)

// MailConfig carries the SMTP/IMAP account. Empty credentials disable
// the mail features. SentRetention is mandatory when mail is enabled;
// the config loader rejects zero.
type MailConfig struct {
	SMTPHost      string
	SMTPPort      int
	IMAPHost      string
	IMAPPort      int
	Address       string
	Password      string
	SentFolder    string
	SentRetention time.Duration
}

// MailClient sends position reports over SMTP and prunes the Sent
// folder over IMAP.
type MailClient struct {
	cfg MailConfig
	lg  *log.Logger
}

func NewMailClient(cfg MailConfig, lg *log.Logger) *MailClient {
	if cfg.SentFolder == `` {
		cfg.SentFolder = `Sent`
	}
	return &MailClient{cfg: cfg, lg: lg}
}

// Enabled reports whether the account is configured.
func (m *MailClient) Enabled() bool {
	return m.cfg.SMTPHost != `` && m.cfg.Address != `` && m.cfg.Password != ``
}

// SendPosition mails a position report to the recipient.
func (m *MailClient) SendPosition(ctx context.Context, to, subject, body string) error {
	if !m.Enabled() {
		return ErrDisabled
	}
	msg := gomail.NewMsg()
	if err := msg.From(m.cfg.Address); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := msg.To(to); err != nil {
		return ErrNotFound
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)
	opts := []gomail.Option{
		gomail.WithPort(m.cfg.SMTPPort),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.Address),
		gomail.WithPassword(m.cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
	}
	client, err := gomail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err = client.DialAndSendWithContext(ctx, msg); err != nil {
		m.lg.Warn("mail send failed", log.KV("to", to), log.KVErr(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// PruneSent deletes messages in the Sent folder older than the
// retention window. The scheduler runs it as a housekeeping job.
func (m *MailClient) PruneSent(ctx context.Context) error {
	if !m.Enabled() || m.cfg.IMAPHost == `` {
		return ErrDisabled
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.IMAPHost, m.cfg.IMAPPort)
	c, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer c.Logout()
	if err = c.Login(m.cfg.Address, m.cfg.Password); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if _, err = c.Select(m.cfg.SentFolder, false); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	criteria := imap.NewSearchCriteria()
	criteria.Before = time.Now().Add(-m.cfg.SentRetention)
	ids, err := c.Search(criteria)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(ids) == 0 {
		return nil
	}
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.DeletedFlag}
	if err = c.Store(seqset, item, flags, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err = c.Expunge(nil); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	m.lg.Info("pruned sent folder", log.KV("count", len(ids)))
	return nil
}
