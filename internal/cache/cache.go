package cache

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type entry struct {
	value   interface{}
	expires time.Time
}

// TTL is a bounded in-memory cache with per-entry expiry. Keys are expected
// to be prefixed with the event id so writes can invalidate everything the
// event touches.
type TTL struct {
	lru *lru.Cache
	ttl time.Duration
}

func New(maxEntries int, ttl time.Duration) (*TTL, error) {
	l, err := lru.New(maxEntries)
	if err != nil {
		return nil, err
	}
	return &TTL{lru: l, ttl: ttl}, nil
}

// Key builds a cache key scoped by event.
func Key(eventID string, parts ...string) string {
	return eventID + ":" + strings.Join(parts, ":")
}

func (c *TTL) Get(key string) (interface{}, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(entry)
	if time.Now().After(e.expires) {
		c.lru.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *TTL) Set(key string, value interface{}) {
	c.lru.Add(key, entry{value: value, expires: time.Now().Add(c.ttl)})
}

// InvalidateEvent drops every entry belonging to the event.
func (c *TTL) InvalidateEvent(eventID string) {
	prefix := eventID + ":"
	for _, k := range c.lru.Keys() {
		if key, ok := k.(string); ok && strings.HasPrefix(key, prefix) {
			c.lru.Remove(k)
		}
	}
}

func (c *TTL) Purge() {
	c.lru.Purge()
}
