/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package providers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gravwell/gravwell/v3/ingest/log"
)

const defaultDapnetURL = `https://hampager.de/api/calls`

// dapnetMaxLen is the pager display ceiling; longer texts are
// truncated upstream anyway, so we cut cleanly here.
const dapnetMaxLen = 80

// DapnetClient posts pager calls to the hampager gateway. A callsign
// of N0CALL (or empty credentials) disables the feature.
type DapnetClient struct {
	BaseURL  string
	Callsign string
	Password string
	TxGroup  string
	lg       *log.Logger
}

func NewDapnetClient(baseURL, callsign, password, txGroup string, lg *log.Logger) *DapnetClient {
	if baseURL == `` {
		baseURL = defaultDapnetURL
	}
	if txGroup == `` {
		txGroup = `dl-all`
	}
	return &DapnetClient{
		BaseURL:  baseURL,
		Callsign: callsign,
		Password: password,
		TxGroup:  txGroup,
		lg:       lg,
	}
}

// Enabled reports whether credentials are usable.
func (c *DapnetClient) Enabled() bool {
	return c.Callsign != `` && c.Password != `` && !strings.EqualFold(c.Callsign, `N0CALL`)
}

type dapnetCall struct {
	Text                  string   `json:"text"`
	CallSignNames         []string `json:"callSignNames"`
	TransmitterGroupNames []string `json:"transmitterGroupNames"`
	Emergency             bool     `json:"emergency"`
}

// Send pages the user with the given text. highPri flags the call as
// emergency traffic.
func (c *DapnetClient) Send(ctx context.Context, user, text string, highPri bool) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	if len(text) > dapnetMaxLen {
		text = text[:dapnetMaxLen]
	}
	body, err := json.Marshal(dapnetCall{
		Text:                  text,
		CallSignNames:         []string{strings.ToLower(user)},
		TransmitterGroupNames: []string{c.TxGroup},
		Emergency:             highPri,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set(`Content-Type`, `application/json`)
	req.SetBasicAuth(c.Callsign, c.Password)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		c.lg.Warn("DAPNET call failed", log.KV("user", user), log.KVErr(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
