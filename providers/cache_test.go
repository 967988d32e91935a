/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package providers

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResultCacheRoundTrip(t *testing.T) {
	cache, err := OpenResultCache(filepath.Join(t.TempDir(), `results.db`))
	require.NoError(t, err)
	defer cache.Close()

	in := Place{Lat: 51.83, Lon: 9.45, City: `Holzminden`, CountryCode: `DE`}
	require.NoError(t, cache.Put(`geocode`, `city:holzminden`, in, time.Hour))

	var out Place
	require.True(t, cache.Get(`geocode`, `city:holzminden`, &out))
	require.Equal(t, in, out)

	//unknown keys and buckets miss cleanly
	require.False(t, cache.Get(`geocode`, `city:nowhere`, &out))
	require.False(t, cache.Get(`nosuchbucket`, `k`, &out))
}

func TestResultCacheExpiry(t *testing.T) {
	cache, err := OpenResultCache(filepath.Join(t.TempDir(), `results.db`))
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Put(`position`, `DF1JSL`, PosReport{Callsign: `DF1JSL`}, -time.Second))
	var out PosReport
	require.False(t, cache.Get(`position`, `DF1JSL`, &out), "expired entry served")
}

func TestResultCacheNilSafe(t *testing.T) {
	var cache *ResultCache
	var out Place
	require.False(t, cache.Get(`b`, `k`, &out))
	require.NoError(t, cache.Put(`b`, `k`, out, time.Hour))
	require.NoError(t, cache.Close())
}
