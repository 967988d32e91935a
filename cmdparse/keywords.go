/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package cmdparse

import (
	"regexp"
	"time"
)

// DefaultLang is used when no language keyword is given or the given
// code is unknown.
const DefaultLang = `en`

// iso639 holds the language codes the upstream weather provider
// accepts; everything else silently falls back to DefaultLang.
var iso639 = map[string]bool{
	`af`: true, `ar`: true, `bg`: true, `ca`: true, `cs`: true, `da`: true,
	`de`: true, `el`: true, `en`: true, `es`: true, `fa`: true, `fi`: true,
	`fr`: true, `gl`: true, `he`: true, `hi`: true, `hr`: true, `hu`: true,
	`id`: true, `it`: true, `ja`: true, `ko`: true, `la`: true, `lt`: true,
	`nl`: true, `no`: true, `pl`: true, `pt`: true, `ro`: true, `ru`: true,
	`sk`: true, `sl`: true, `sr`: true, `sv`: true, `th`: true, `tr`: true,
	`uk`: true, `vi`: true, `zh`: true,
}

var weekdays = map[string]time.Weekday{
	`monday`: time.Monday, `mon`: time.Monday,
	`tuesday`: time.Tuesday, `tue`: time.Tuesday,
	`wednesday`: time.Wednesday, `wed`: time.Wednesday,
	`thursday`: time.Thursday, `thu`: time.Thursday,
	`friday`: time.Friday, `fri`: time.Friday,
	`saturday`: time.Saturday, `sat`: time.Saturday,
	`sunday`: time.Sunday, `sun`: time.Sunday,
}

// daytime keywords; tonite/tonight additionally force the date to
// today unless a specific day was already chosen.
var daytimes = map[string]Daytime{
	`morn`: Morning, `morning`: Morning,
	`day`: Day, `daytime`: Day, `noon`: Day,
	`eve`: Evening, `evening`: Evening,
	`nite`: Night, `night`: Night, `tonite`: Night, `tonight`: Night,
}

var unitKeywords = map[string]Units{
	`mtr`: Metric, `metric`: Metric,
	`imp`: Imperial, `imperial`: Imperial,
}

// repeater bands in common directory use
var repeaterBands = map[string]bool{
	`10m`: true, `6m`: true, `4m`: true, `2m`: true,
	`70cm`: true, `23cm`: true, `13cm`: true, `3cm`: true,
}

// repeater modes; ysf and d-star are alias spellings
var repeaterModes = map[string]string{
	`fm`: `fm`, `c4fm`: `c4fm`, `ysf`: `c4fm`,
	`dstar`: `dstar`, `d-star`: `dstar`,
	`dmr`: `dmr`, `nxdn`: `nxdn`, `p25`: `p25`, `tetra`: `tetra`,
}

// DefaultOsmCategories is the allow-list of bare OSM category tokens.
// The list is configurable; bare matching only ever consults the
// configured set.
var DefaultOsmCategories = []string{
	`atm`, `bakery`, `bank`, `butcher`, `cafe`, `charging_station`,
	`chemist`, `clinic`, `dentist`, `doctor`, `drinking_water`, `fuel`,
	`hairdresser`, `hospital`, `hostel`, `hotel`, `pharmacy`, `police`,
	`post_box`, `post_office`, `pub`, `restaurant`, `supermarket`,
}

// satAliases folds alias spellings of well-known satellites onto their
// catalog name; iss and zarya are the same body.
var satAliases = map[string]string{
	`iss`: `ISS`, `zarya`: `ISS`, `ariss`: `ISS`,
}

var (
	zipRe     = regexp.MustCompile(`^([0-9]{5})(?:;([a-z]{2}))?$`)
	icaoRe    = regexp.MustCompile(`^[a-z]{4}$`)
	iataRe    = regexp.MustCompile(`^[a-z]{3}$`)
	latLonRe  = regexp.MustCompile(`^(-?[0-9]{1,2}(?:\.[0-9]+)?)/(-?[0-9]{1,3}(?:\.[0-9]+)?)$`)
	cityRe    = regexp.MustCompile(`^([a-z][a-z .'-]*?)(?:,([a-z]{2,}))?;([a-z]{2})$`)
	hourRe    = regexp.MustCompile(`^([0-9]{1,2})h$`)
	dayRe     = regexp.MustCompile(`^([1-7])d$`)
	topRe     = regexp.MustCompile(`^top([2-5])$`)
	emailRe   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[a-z]{2,}$`)
	cwopIDRe  = regexp.MustCompile(`^[a-z]{1,2}[0-9]{3,5}$|^cw[0-9]{4}$`)
	langArgRe = regexp.MustCompile(`^[a-z]{2}$`)
)
