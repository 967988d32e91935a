/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package cmdparse

import (
	"strconv"
	"strings"
	"time"
)

// Options feeds the parser the pieces that live outside the grammar:
// the clock, the configured unicode default, the OSM category
// allow-list, and the satellite catalog membership test.
type Options struct {
	Now            time.Time
	DefaultUnicode bool
	OsmCategories  []string
	IsSatellite    func(name string) bool
}

type token struct {
	lower string
	orig  string
	used  bool
}

type parser struct {
	toks  []token
	opts  Options
	osm   map[string]bool
	cmd   Command
	duty  bool //an action keyword matched
	dated bool //an explicit date modifier matched
}

// Parse resolves a free-text message body into a Command. It never
// fails; an unparseable body yields Action == Unknown.
func Parse(body string, opts Options) Command {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	cats := opts.OsmCategories
	if cats == nil {
		cats = DefaultOsmCategories
	}
	p := parser{
		opts: opts,
		osm:  make(map[string]bool, len(cats)),
		cmd: Command{
			Lang:         DefaultLang,
			TopN:         1,
			ForceUnicode: opts.DefaultUnicode,
		},
	}
	for _, c := range cats {
		p.osm[c] = true
	}
	for _, f := range strings.Fields(body) {
		p.toks = append(p.toks, token{lower: strings.ToLower(f), orig: f})
	}

	p.scanActions()
	p.scanBareTargets()
	p.scanModifiers()
	p.resolve()
	return p.cmd
}

// find returns the index of the first unused token equal to any of the
// given keywords, or -1.
func (p *parser) find(kws ...string) int {
	for i := range p.toks {
		if p.toks[i].used {
			continue
		}
		for _, kw := range kws {
			if p.toks[i].lower == kw {
				return i
			}
		}
	}
	return -1
}

// take consumes token i and returns its lowered text.
func (p *parser) take(i int) string {
	p.toks[i].used = true
	return p.toks[i].lower
}

// next returns the index of the first unused token after i, or -1.
func (p *parser) next(i int) int {
	for j := i + 1; j < len(p.toks); j++ {
		if !p.toks[j].used {
			return j
		}
	}
	return -1
}

// rest consumes every remaining unused token after i and returns the
// original-case join; the pager actions forward it verbatim.
func (p *parser) rest(i int) string {
	var parts []string
	for j := i + 1; j < len(p.toks); j++ {
		if p.toks[j].used {
			continue
		}
		parts = append(parts, p.toks[j].orig)
		p.toks[j].used = true
	}
	return strings.Join(parts, ` `)
}

// scanActions walks the explicit action keywords in priority order;
// the first hit wins the duty.
func (p *parser) scanActions() {
	type handler struct {
		kws []string
		fn  func(i int)
	}
	handlers := []handler{
		{[]string{`dapnethp`}, func(i int) { p.actDapnet(i, DapnetHighPri) }},
		{[]string{`dapnet`}, func(i int) { p.actDapnet(i, Dapnet) }},
		{[]string{`posmsg`, `posrpt`}, p.actPosMsg},
		{[]string{`sonde`}, p.actSonde},
		{[]string{`satpass`}, func(i int) { p.actSatellite(i, SatPass) }},
		{[]string{`vispass`}, func(i int) { p.actSatellite(i, VisPass) }},
		{[]string{`satfreq`}, func(i int) { p.actSatellite(i, SatFreq) }},
		{[]string{`cwop`}, p.actCwop},
		{[]string{`metar`}, func(i int) { p.actAirport(i, Metar) }},
		{[]string{`taf`}, func(i int) { p.actAirport(i, Taf) }},
		{[]string{`icao`}, p.actIcao},
		{[]string{`iata`}, p.actIata},
		{[]string{`whereis`}, p.actWhereIs},
		{[]string{`whereami`}, func(i int) { p.take(i); p.setDuty(WhereAmI) }},
		{[]string{`riseset`}, func(i int) { p.take(i); p.setDuty(RiseSet) }},
		{[]string{`repeater`}, p.actRepeater},
		{[]string{`osm`}, p.actOsm},
		{[]string{`fortuneteller`, `magic8ball`, `magic8`, `m8b`}, func(i int) { p.take(i); p.setDuty(Fortune) }},
		{[]string{`help`, `info`}, func(i int) { p.take(i); p.setDuty(Help) }},
		{[]string{`grid`, `mh`}, p.actGrid},
		{[]string{`zip`}, p.actZip},
		{[]string{`wx`}, func(i int) { p.take(i); p.setDuty(Wx) }},
	}
	for _, h := range handlers {
		if p.duty {
			return
		}
		if i := p.find(h.kws...); i >= 0 {
			h.fn(i)
		}
	}
}

func (p *parser) setDuty(a Action) {
	p.cmd.Action = a
	p.duty = true
}

func (p *parser) actDapnet(i int, a Action) {
	p.take(i)
	j := p.next(i)
	if j < 0 {
		return //keyword without a user stays unresolved
	}
	p.cmd.Target = DapnetUser{User: p.take(j)}
	p.cmd.Message = p.rest(j)
	p.setDuty(a)
}

func (p *parser) actPosMsg(i int) {
	p.take(i)
	j := p.next(i)
	if j < 0 {
		return
	}
	if !emailRe.MatchString(p.toks[j].lower) {
		return
	}
	p.cmd.Target = EmailAddress{Addr: p.take(j)}
	p.setDuty(PosMsg)
}

func (p *parser) actSonde(i int) {
	p.take(i)
	j := p.next(i)
	if j < 0 {
		return
	}
	p.cmd.Target = OtherCallsign{Callsign: strings.ToUpper(p.take(j))}
	p.setDuty(Sonde)
}

// actSatellite consumes the run of tokens after the keyword up to the
// next recognized modifier; multi-word names are dash-joined.
func (p *parser) actSatellite(i int, a Action) {
	p.take(i)
	var parts []string
	for j := p.next(i); j >= 0; j = p.next(j) {
		if isModifier(p.toks[j].lower) {
			break
		}
		parts = append(parts, p.take(j))
	}
	name := strings.Join(parts, `-`)
	if canon, ok := satAliases[name]; ok {
		name = canon
	}
	if name == `` {
		name = satAliases[`iss`]
	}
	p.cmd.Target = SatelliteName{Name: strings.ToUpper(name)}
	p.setDuty(a)
}

func (p *parser) actCwop(i int) {
	p.take(i)
	if j := p.next(i); j >= 0 && cwopIDRe.MatchString(p.toks[j].lower) {
		p.cmd.Target = CwopStation{ID: strings.ToUpper(p.take(j))}
	}
	p.setDuty(Cwop)
}

func (p *parser) actAirport(i int, a Action) {
	p.take(i)
	if j := p.next(i); j >= 0 && !isModifier(p.toks[j].lower) {
		switch {
		case icaoRe.MatchString(p.toks[j].lower):
			p.cmd.Target = IcaoCode{Code: strings.ToUpper(p.take(j))}
		case iataRe.MatchString(p.toks[j].lower):
			p.cmd.Target = IataCode{Code: strings.ToUpper(p.take(j))}
		}
	}
	p.setDuty(a)
}

func (p *parser) actIcao(i int) {
	p.take(i)
	j := p.next(i)
	if j < 0 {
		return
	}
	p.cmd.Target = IcaoCode{Code: strings.ToUpper(p.take(j))}
	p.setDuty(Metar)
}

func (p *parser) actIata(i int) {
	p.take(i)
	j := p.next(i)
	if j < 0 {
		return
	}
	p.cmd.Target = IataCode{Code: strings.ToUpper(p.take(j))}
	p.setDuty(Metar)
}

func (p *parser) actWhereIs(i int) {
	p.take(i)
	j := p.next(i)
	if j < 0 {
		return
	}
	p.cmd.Target = OtherCallsign{Callsign: strings.ToUpper(p.take(j))}
	p.setDuty(WhereIs)
}

// actRepeater accepts band and mode after the keyword in either order.
func (p *parser) actRepeater(i int) {
	p.take(i)
	var filt RepeaterFilter
	for n := 0; n < 2; n++ {
		j := p.next(i)
		if j < 0 {
			break
		}
		tok := p.toks[j].lower
		if filt.Band == `` && repeaterBands[tok] {
			filt.Band = p.take(j)
			continue
		}
		if m, ok := repeaterModes[tok]; ok && filt.Mode == `` {
			p.take(j)
			filt.Mode = m
			continue
		}
		break
	}
	p.cmd.Target = filt
	p.setDuty(Repeater)
}

func (p *parser) actOsm(i int) {
	p.take(i)
	j := p.next(i)
	if j < 0 {
		return
	}
	p.cmd.Target = OsmPhrase{Category: p.take(j)}
	p.setDuty(OsmCategory)
}

func (p *parser) actGrid(i int) {
	p.take(i)
	j := p.next(i)
	if j < 0 {
		return
	}
	if validLocatorToken(p.toks[j].lower) {
		p.cmd.Target = Grid{Locator: strings.ToUpper(p.take(j))}
		p.setDuty(Wx)
	}
}

func (p *parser) actZip(i int) {
	p.take(i)
	j := p.next(i)
	if j < 0 {
		return
	}
	if m := zipRe.FindStringSubmatch(p.toks[j].lower); m != nil {
		p.take(j)
		p.cmd.Target = zipTarget(m)
		p.setDuty(Wx)
	}
}

func zipTarget(m []string) Zip {
	z := Zip{Code: m[1], Country: strings.ToUpper(m[2])}
	if z.Country == `` {
		z.Country = `US`
	}
	return z
}

// scanBareTargets recognizes priority-ordered bare forms when no
// target was set by an action keyword. Modifier keywords never match
// as bare targets.
func (p *parser) scanBareTargets() {
	if p.cmd.Target != nil {
		return
	}
	//zip
	for i := range p.toks {
		if p.toks[i].used || p.skipBare(i) {
			continue
		}
		if m := zipRe.FindStringSubmatch(p.toks[i].lower); m != nil {
			p.take(i)
			p.cmd.Target = zipTarget(m)
			return
		}
	}
	//icao
	for i := range p.toks {
		if p.toks[i].used || p.skipBare(i) {
			continue
		}
		if icaoRe.MatchString(p.toks[i].lower) && !p.satName(p.toks[i].lower) {
			p.cmd.Target = IcaoCode{Code: strings.ToUpper(p.take(i))}
			return
		}
	}
	//iata
	for i := range p.toks {
		if p.toks[i].used || p.skipBare(i) {
			continue
		}
		if iataRe.MatchString(p.toks[i].lower) && !p.satName(p.toks[i].lower) {
			p.cmd.Target = IataCode{Code: strings.ToUpper(p.take(i))}
			return
		}
	}
	//maidenhead grid
	for i := range p.toks {
		if p.toks[i].used || p.skipBare(i) {
			continue
		}
		if validLocatorToken(p.toks[i].lower) {
			p.cmd.Target = Grid{Locator: strings.ToUpper(p.take(i))}
			return
		}
	}
	//lat/lon pair
	for i := range p.toks {
		if p.toks[i].used {
			continue
		}
		if m := latLonRe.FindStringSubmatch(p.toks[i].lower); m != nil {
			lat, err1 := strconv.ParseFloat(m[1], 64)
			lon, err2 := strconv.ParseFloat(m[2], 64)
			if err1 == nil && err2 == nil && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180 {
				p.take(i)
				p.cmd.Target = LatLon{Lat: lat, Lon: lon}
				return
			}
		}
	}
	//city;country, allowing the city to span up to three tokens
	for i := range p.toks {
		if p.toks[i].used || !strings.Contains(p.toks[i].lower, `;`) {
			continue
		}
		lo := i - 2
		if lo < 0 {
			lo = 0
		}
		for j := lo; j <= i; j++ {
			if p.anyUsed(j, i) {
				continue
			}
			joined := p.joinLower(j, i)
			if m := cityRe.FindStringSubmatch(joined); m != nil {
				for k := j; k <= i; k++ {
					p.take(k)
				}
				p.cmd.Target = CityCountry{
					City:    titleCase(m[1]),
					State:   strings.ToUpper(m[2]),
					Country: strings.ToUpper(m[3]),
				}
				return
			}
		}
	}
	//bare OSM category from the allow-list
	for i := range p.toks {
		if p.toks[i].used || p.skipBare(i) {
			continue
		}
		if p.osm[p.toks[i].lower] {
			p.cmd.Target = OsmPhrase{Category: p.take(i)}
			if !p.duty {
				p.setDuty(OsmCategory)
			}
			return
		}
	}
	//bare satellite name
	for i := range p.toks {
		if p.toks[i].used || p.skipBare(i) {
			continue
		}
		if p.satName(p.toks[i].lower) {
			name := p.take(i)
			if canon, ok := satAliases[name]; ok {
				name = canon
			}
			p.cmd.Target = SatelliteName{Name: strings.ToUpper(name)}
			if !p.duty {
				p.setDuty(SatPass)
			}
			return
		}
	}
}

// skipBare reports whether token i must not be consumed as a bare
// target: reserved modifier keywords and the argument position right
// after a language keyword.
func (p *parser) skipBare(i int) bool {
	if isModifier(p.toks[i].lower) {
		return true
	}
	if i > 0 && (p.toks[i-1].lower == `lang` || p.toks[i-1].lower == `lng`) {
		return true
	}
	return false
}

func (p *parser) anyUsed(lo, hi int) bool {
	for k := lo; k <= hi; k++ {
		if p.toks[k].used {
			return true
		}
	}
	return false
}

func (p *parser) joinLower(lo, hi int) string {
	parts := make([]string, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		parts = append(parts, p.toks[k].lower)
	}
	return strings.Join(parts, ` `)
}

func (p *parser) satName(tok string) bool {
	if _, ok := satAliases[tok]; ok {
		return true
	}
	if p.opts.IsSatellite != nil {
		return p.opts.IsSatellite(tok)
	}
	return false
}

// scanModifiers picks up date, daytime, unit, language, top-N, and
// unicode tokens in any position.
func (p *parser) scanModifiers() {
	for i := 0; i < len(p.toks); i++ {
		if p.toks[i].used {
			continue
		}
		tok := p.toks[i].lower
		switch {
		case tok == `today`:
			p.take(i)
			p.cmd.Date = DateOffset{}
			p.dated = true
		case tok == `tomorrow`:
			p.take(i)
			p.cmd.Date = DateOffset{Days: 1}
			p.dated = true
		case weekdayOffset(tok, p.opts.Now) > 0:
			p.take(i)
			p.cmd.Date = DateOffset{Days: weekdayOffset(tok, p.opts.Now)}
			p.dated = true
		case hourRe.MatchString(tok):
			m := hourRe.FindStringSubmatch(tok)
			if n, _ := strconv.Atoi(m[1]); n >= 1 && n <= 47 {
				p.take(i)
				p.cmd.Date = DateOffset{Hours: n}
				p.dated = true
			}
		case dayRe.MatchString(tok):
			m := dayRe.FindStringSubmatch(tok)
			n, _ := strconv.Atoi(m[1])
			p.take(i)
			p.cmd.Date = DateOffset{Days: n}
			p.dated = true
		case tok == `tonite` || tok == `tonight`:
			p.take(i)
			if !p.dated {
				p.cmd.Date = DateOffset{}
			}
			p.cmd.Daytime = Night
		default:
			if dt, ok := daytimes[tok]; ok {
				p.take(i)
				p.cmd.Daytime = dt
				continue
			}
			if u, ok := unitKeywords[tok]; ok {
				p.take(i)
				p.cmd.Units = u
				p.cmd.UnitsSet = true
				continue
			}
			if tok == `lang` || tok == `lng` {
				p.take(i)
				if j := p.next(i); j >= 0 && langArgRe.MatchString(p.toks[j].lower) {
					code := p.take(j)
					if iso639[code] {
						p.cmd.Lang = code
					}
				}
				continue
			}
			if m := topRe.FindStringSubmatch(tok); m != nil {
				p.take(i)
				p.cmd.TopN, _ = strconv.Atoi(m[1])
				continue
			}
			if tok == `unicode` {
				p.take(i)
				p.cmd.ForceUnicode = true
				continue
			}
			if tok == `full` {
				p.take(i)
				if p.cmd.Action == Metar || p.cmd.Action == Taf {
					p.cmd.Action = MetarTafFull
				} else {
					p.cmd.Daytime = Full
				}
				continue
			}
		}
	}
}

// weekdayOffset returns the day count to the next occurrence of the
// named weekday; the same weekday as today rolls a full week forward.
func weekdayOffset(tok string, now time.Time) int {
	wd, ok := weekdays[tok]
	if !ok {
		return 0
	}
	off := (int(wd) - int(now.Weekday()) + 7) % 7
	if off == 0 {
		off = 7
	}
	return off
}

func (p *parser) resolve() {
	//nothing recognized at all on a non-empty body is a failed parse
	if !p.duty {
		consumed := false
		for i := range p.toks {
			if p.toks[i].used {
				consumed = true
				break
			}
		}
		if !consumed {
			p.cmd.Action = Unknown
			return
		}
		p.cmd.Action = Wx
	}
	if p.cmd.Target == nil {
		p.cmd.Target = UserPosition{}
	}
}

// titleCase capitalizes the first letter of each word; city names
// echo back in that form regardless of how the sender typed them.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, ` `)
}

// isModifier reports whether the token is a reserved modifier keyword
// that must never be consumed as a bare target or satellite name.
func isModifier(tok string) bool {
	if _, ok := daytimes[tok]; ok {
		return true
	}
	if _, ok := unitKeywords[tok]; ok {
		return true
	}
	if _, ok := weekdays[tok]; ok {
		return true
	}
	switch tok {
	case `today`, `tomorrow`, `lang`, `lng`, `unicode`, `full`:
		return true
	}
	return hourRe.MatchString(tok) || dayRe.MatchString(tok) || topRe.MatchString(tok)
}

// validLocatorToken is a purely lexical Maidenhead check; the geo
// package performs the authoritative validation.
func validLocatorToken(tok string) bool {
	if len(tok) != 4 && len(tok) != 6 {
		return false
	}
	if tok[0] < 'a' || tok[0] > 'r' || tok[1] < 'a' || tok[1] > 'r' {
		return false
	}
	if tok[2] < '0' || tok[2] > '9' || tok[3] < '0' || tok[3] > '9' {
		return false
	}
	if len(tok) == 6 {
		if tok[4] < 'a' || tok[4] > 'x' || tok[5] < 'a' || tok[5] > 'x' {
			return false
		}
	}
	return true
}
