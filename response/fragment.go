/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package response

import (
	"strings"

	"github.com/gosimple/unidecode"
)

// MaxFragment is the APRS message payload ceiling in bytes.
const MaxFragment = 67

// Fragment renders a response as ordered payloads of at most
// MaxFragment bytes. Tokens are appended while they fit, a token that
// does not fit opens a new fragment, and a token longer than a whole
// fragment is split on word boundaries first and hard-chopped as a
// last resort. When forceUnicode is false every token is transliterated
// to 7-bit ASCII first.
func Fragment(r Response, forceUnicode bool) []string {
	var frags []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			frags = append(frags, cur.String())
			cur.Reset()
		}
	}
	place := func(tok string) {
		need := len(tok)
		if cur.Len() > 0 {
			need++ //separating space
		}
		if cur.Len()+need <= MaxFragment {
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(tok)
			return
		}
		flush()
		for len(tok) > MaxFragment {
			cut := strings.LastIndexByte(tok[:MaxFragment], ' ')
			if cut <= 0 {
				cut = MaxFragment
			}
			frags = append(frags, strings.TrimRight(tok[:cut], ` `))
			tok = strings.TrimLeft(tok[cut:], ` `)
		}
		cur.WriteString(tok)
	}
	for _, line := range r.Lines {
		for _, tok := range line.Tokens {
			text := tok.Text
			if !forceUnicode {
				text = Transliterate(text)
			}
			if text == `` {
				continue
			}
			if tok.NoSplit {
				place(text)
				continue
			}
			//unmarked text flows word by word so fragments fill up
			for _, w := range strings.Fields(text) {
				place(w)
			}
		}
	}
	flush()
	return frags
}

// Transliterate reduces a token to printable 7-bit ASCII. Characters
// with no latin mapping are dropped rather than replaced, so payloads
// stay within [0x20,0x7E].
func Transliterate(s string) string {
	s = unidecode.Unidecode(s)
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= 0x20 && c <= 0x7e {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
