package database

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// NewMemcached creates the client backing the shared endpoint search cache.
func NewMemcached(server string) *memcache.Client {
	mc := memcache.New(server)
	mc.Timeout = 500 * time.Millisecond
	return mc
}
