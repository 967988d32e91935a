/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package refdata

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
)

var ErrSatelliteNotFound = errors.New("satellite not found")

// Satellite couples a TLE element set with the known downlink and
// uplink frequencies of the body.
type Satellite struct {
	Name  string //catalog name, spaces dash-joined and uppercased
	Line1 string
	Line2 string
	Freqs []SatFrequency
}

// SatFrequency is one transponder or beacon entry.
type SatFrequency struct {
	Description string
	UplinkMHz   float64
	DownlinkMHz float64
	Mode        string
}

// SatelliteIndex answers name lookups over the merged TLE and
// frequency tables.
type SatelliteIndex struct {
	byName map[string]*Satellite
}

// NormalizeSatName folds a user-supplied satellite name onto the
// catalog key form: uppercase with interior whitespace dash-joined.
func NormalizeSatName(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(name, `-`, ` `)), `-`))
}

// LoadSatellites parses a three-line-element file and, when freqPath
// is non-empty, overlays the frequency table.
func LoadSatellites(tlePath, freqPath string) (*SatelliteIndex, error) {
	fin, err := os.Open(tlePath)
	if err != nil {
		return nil, err
	}
	idx, err := parseTLE(fin)
	fin.Close()
	if err != nil {
		return nil, err
	}
	if freqPath != `` {
		ffin, err := os.Open(freqPath)
		if err == nil {
			err = idx.overlayFrequencies(ffin)
			ffin.Close()
		}
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	return idx, nil
}

// parseTLE reads three-line groups: a name line followed by the two
// element lines. Stray lines are skipped.
func parseTLE(r io.Reader) (*SatelliteIndex, error) {
	idx := &SatelliteIndex{byName: make(map[string]*Satellite)}
	scanner := bufio.NewScanner(r)
	var name string
	var line1 string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \r")
		switch {
		case strings.HasPrefix(line, `1 `):
			line1 = line
		case strings.HasPrefix(line, `2 `):
			if name != `` && line1 != `` {
				key := NormalizeSatName(name)
				idx.byName[key] = &Satellite{Name: key, Line1: line1, Line2: line}
			}
			name = ``
			line1 = ``
		default:
			if line != `` {
				name = line
				line1 = ``
			}
		}
	}
	return idx, scanner.Err()
}

// overlayFrequencies merges the frequency CSV: name, description,
// uplink MHz, downlink MHz, mode. Rows for unknown satellites are
// dropped.
func (idx *SatelliteIndex) overlayFrequencies(r io.Reader) error {
	rdr := csv.NewReader(r)
	rdr.FieldsPerRecord = -1
	for {
		rec, err := rdr.Read()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if len(rec) < 5 {
			continue
		}
		sat, ok := idx.byName[NormalizeSatName(rec[0])]
		if !ok {
			continue
		}
		sat.Freqs = append(sat.Freqs, SatFrequency{
			Description: strings.TrimSpace(rec[1]),
			UplinkMHz:   parseMHz(rec[2]),
			DownlinkMHz: parseMHz(rec[3]),
			Mode:        strings.TrimSpace(rec[4]),
		})
	}
}

func parseMHz(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// ByName resolves a satellite by its normalized name.
func (idx *SatelliteIndex) ByName(name string) (*Satellite, error) {
	if sat, ok := idx.byName[NormalizeSatName(name)]; ok {
		return sat, nil
	}
	return nil, ErrSatelliteNotFound
}

// Has reports catalog membership; the parser uses it to recognize
// bare satellite names.
func (idx *SatelliteIndex) Has(name string) bool {
	_, ok := idx.byName[NormalizeSatName(name)]
	return ok
}

// Len reports the number of indexed satellites.
func (idx *SatelliteIndex) Len() int {
	return len(idx.byName)
}
