/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package tlsutil

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/acidburn0zzz/bind9/hashmap"
)

// CacheTransport identifies the DNS transport a cached TLS context
// serves.
type CacheTransport uint8

const (
	cacheTransportNone CacheTransport = iota
	CacheTransportTLS
	CacheTransportHTTPS
	CacheTransportQUIC
	cacheTransportCount
)

var CacheTransportToString = map[CacheTransport]string{
	CacheTransportTLS:   "dot",
	CacheTransportHTTPS: "doh",
	CacheTransportQUIC:  "doq",
}

// Family selects the IP protocol family a context is bound to.
type Family uint8

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
	familyCount
)

var FamilyToString = map[Family]string{
	FamilyIPv4: "IPv4",
	FamilyIPv6: "IPv6",
}

// cacheEntry keeps one TLS context per transport on both IPv4 and
// IPv6, so that transports do not clutter each other's
// session-resumption caches. Most slots of the matrix stay nil.
type cacheEntry struct {
	ctx [cacheTransportCount - 1][familyCount]*Context
}

// Cache is a reference-counted container of TLS contexts keyed by a
// logical listener name plus (transport, family). Contexts inserted
// into the cache are owned by it and remain valid, and immutable,
// until the last reference is detached.
type Cache struct {
	refs atomic.Int32
	mu   sync.RWMutex
	data *hashmap.Map[*cacheEntry]
}

const cacheInitialBits = 5

// NewCache creates a cache with a single reference.
func NewCache() *Cache {
	c := &Cache{
		data: hashmap.New[*cacheEntry](cacheInitialBits),
	}
	c.refs.Store(1)
	return c
}

// Attach adds a reference and returns the same cache.
func (c *Cache) Attach() *Cache {
	if c == nil || c.data == nil {
		panic("tlsutil: attach to invalid cache")
	}
	if c.refs.Add(1) <= 1 {
		panic("tlsutil: attach to destroyed cache")
	}
	return c
}

// Detach drops a reference. The last detach destroys every entry and
// the contexts they own.
func (c *Cache) Detach() {
	if c == nil || c.data == nil {
		panic("tlsutil: detach from invalid cache")
	}
	n := c.refs.Add(-1)
	if n < 0 {
		panic("tlsutil: cache reference underflow")
	}
	if n == 0 {
		c.destroy()
	}
}

func (c *Cache) destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	it := c.data.Iterate()
	for err := it.First(); err == nil; err = it.DelcurrentNext() {
		entry := it.Current()
		for i := range entry.ctx {
			for k := range entry.ctx[i] {
				entry.ctx[i][k] = nil
			}
		}
	}
	c.data.Destroy()
	c.data = nil
}

func cacheOffsets(name string, transport CacheTransport, family Family) (int, int) {
	if name == "" {
		panic("tlsutil: empty TLS context cache name")
	}
	if strings.IndexByte(name, 0) >= 0 {
		panic("tlsutil: NUL byte in TLS context cache name")
	}
	if transport <= cacheTransportNone || transport >= cacheTransportCount {
		panic("tlsutil: invalid TLS context cache transport")
	}
	if family >= familyCount {
		panic("tlsutil: invalid TLS context cache family")
	}
	return int(transport - 1), int(family)
}

// Add publishes ctx under (name, transport, family), transferring
// ownership to the cache. When that exact slot is already occupied the
// cache is left unchanged and the occupant is returned along with
// ErrExists, so the caller can dispose of its duplicate. A
// pre-existing name whose slot is empty has the slot filled.
func (c *Cache) Add(name string, transport CacheTransport, family Family, ctx *Context) (*Context, error) {
	if c == nil || c.data == nil {
		panic("tlsutil: invalid cache")
	}
	if ctx == nil {
		panic("tlsutil: nil context")
	}
	troff, fam := cacheOffsets(name, transport, family)

	c.mu.Lock()
	defer c.mu.Unlock()

	key := []byte(name)
	entry, err := c.data.Find(key)
	switch {
	case err == nil && entry.ctx[troff][fam] != nil:
		return entry.ctx[troff][fam], ErrExists
	case err == nil:
		entry.ctx[troff][fam] = ctx
	default:
		entry = &cacheEntry{}
		entry.ctx[troff][fam] = ctx
		if err := c.data.Add(key, entry); err != nil {
			panic("tlsutil: TLS context cache map inconsistent")
		}
	}

	return nil, nil
}

// Find returns the context published under (name, transport, family),
// or ErrNotFound. Concurrent finds are allowed; the returned context
// is immutable and safe to use without further locking.
func (c *Cache) Find(name string, transport CacheTransport, family Family) (*Context, error) {
	if c == nil || c.data == nil {
		panic("tlsutil: invalid cache")
	}
	troff, fam := cacheOffsets(name, transport, family)

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, err := c.data.Find([]byte(name))
	if err != nil {
		return nil, ErrNotFound
	}
	if entry.ctx[troff][fam] == nil {
		return nil, ErrNotFound
	}
	return entry.ctx[troff][fam], nil
}
