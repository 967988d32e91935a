/*************************************************************************
 * Copyright 2023 Gravwell, Inc. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package providers

import (
	"time"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"
)

// ResultCache is a bbolt-backed read-through cache for geocoding and
// position lookups. Slow-moving answers (a city's coordinates) are
// cached for days, volatile ones (a station's position) for minutes;
// the caller picks the TTL per bucket use.
type ResultCache struct {
	db *bolt.DB
}

type cacheEnvelope struct {
	Expires time.Time       `json:"expires"`
	Value   json.RawMessage `json:"value"`
}

// OpenResultCache opens (or creates) the cache file under the data
// directory.
func OpenResultCache(path string) (*ResultCache, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &ResultCache{db: db}, nil
}

func (c *ResultCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get unmarshals the cached value for bucket/key into out and reports
// whether a live entry was found. A nil cache is a valid no-op.
func (c *ResultCache) Get(bucket, key string, out interface{}) bool {
	if c == nil || c.db == nil {
		return false
	}
	var env cacheEnvelope
	found := false
	c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return nil
		}
		found = true
		return nil
	})
	if !found || time.Now().After(env.Expires) {
		return false
	}
	return json.Unmarshal(env.Value, out) == nil
}

// Put stores value for bucket/key with the given TTL.
func (c *ResultCache) Put(bucket, key string, value interface{}, ttl time.Duration) error {
	if c == nil || c.db == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	data, err := json.Marshal(cacheEnvelope{
		Expires: time.Now().Add(ttl),
		Value:   raw,
	})
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}
