/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package tlsutil

import (
	"sync"
	"testing"
)

func TestCacheAddAndFind(t *testing.T) {
	cache := NewCache()
	defer cache.Detach()

	ctxA := testServerContext(t)
	ctxB := testServerContext(t)

	found, err := cache.Add("ns1", CacheTransportTLS, FamilyIPv4, ctxA)
	if err != nil || found != nil {
		t.Fatalf("first Add: %v, found %p", err, found)
	}

	// Same slot again: the occupant is handed back so the caller can
	// free its duplicate.
	found, err = cache.Add("ns1", CacheTransportTLS, FamilyIPv4, ctxB)
	if err != ErrExists {
		t.Fatalf("duplicate Add: %v, want ErrExists", err)
	}
	if found != ctxA {
		t.Errorf("duplicate Add handed back %p, want the original context", found)
	}

	got, err := cache.Find("ns1", CacheTransportTLS, FamilyIPv4)
	if err != nil || got != ctxA {
		t.Errorf("Find = %p, %v; want the original context", got, err)
	}

	if _, err := cache.Find("ns1", CacheTransportTLS, FamilyIPv6); err != ErrNotFound {
		t.Errorf("Find(v6) = %v, want ErrNotFound", err)
	}
	if _, err := cache.Find("ns2", CacheTransportTLS, FamilyIPv4); err != ErrNotFound {
		t.Errorf("Find(ns2) = %v, want ErrNotFound", err)
	}
}

// A name that already has an entry but an empty slot for the given
// transport/family gets the new context installed, and nothing is
// handed back.
func TestCacheAddSlotFill(t *testing.T) {
	cache := NewCache()
	defer cache.Detach()

	ctxA := testServerContext(t)
	ctxB := testServerContext(t)

	if _, err := cache.Add("ns1", CacheTransportTLS, FamilyIPv4, ctxA); err != nil {
		t.Fatalf("Add(v4): %v", err)
	}
	found, err := cache.Add("ns1", CacheTransportTLS, FamilyIPv6, ctxB)
	if err != nil {
		t.Fatalf("Add(v6) on existing name: %v", err)
	}
	if found != nil {
		t.Errorf("Add(v6) handed back %p for an empty slot", found)
	}

	if got, _ := cache.Find("ns1", CacheTransportTLS, FamilyIPv4); got != ctxA {
		t.Errorf("v4 slot = %p, want ctxA", got)
	}
	if got, _ := cache.Find("ns1", CacheTransportTLS, FamilyIPv6); got != ctxB {
		t.Errorf("v6 slot = %p, want ctxB", got)
	}
}

func TestCacheTransportsIndependent(t *testing.T) {
	cache := NewCache()
	defer cache.Detach()

	ctxDoT := testServerContext(t)
	ctxDoH := testServerContext(t)
	ctxDoQ := testServerContext(t)

	cache.Add("ns1", CacheTransportTLS, FamilyIPv4, ctxDoT)
	cache.Add("ns1", CacheTransportHTTPS, FamilyIPv4, ctxDoH)
	cache.Add("ns1", CacheTransportQUIC, FamilyIPv4, ctxDoQ)

	if got, _ := cache.Find("ns1", CacheTransportHTTPS, FamilyIPv4); got != ctxDoH {
		t.Errorf("DoH slot = %p, want ctxDoH", got)
	}
	if got, _ := cache.Find("ns1", CacheTransportQUIC, FamilyIPv4); got != ctxDoQ {
		t.Errorf("DoQ slot = %p, want ctxDoQ", got)
	}
}

func TestCacheRefcounting(t *testing.T) {
	cache := NewCache()
	ctx := testServerContext(t)
	cache.Add("ns1", CacheTransportTLS, FamilyIPv4, ctx)

	ref := cache.Attach()
	cache.Detach()

	// The second reference keeps the cache alive.
	if got, err := ref.Find("ns1", CacheTransportTLS, FamilyIPv4); err != nil || got != ctx {
		t.Fatalf("Find after first detach: %p, %v", got, err)
	}

	ref.Detach()

	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on use after final detach")
		}
	}()
	ref.Find("ns1", CacheTransportTLS, FamilyIPv4)
}

func TestCacheConcurrentReaders(t *testing.T) {
	cache := NewCache()
	defer cache.Detach()

	ctx := testServerContext(t)
	cache.Add("ns1", CacheTransportTLS, FamilyIPv4, ctx)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				got, err := cache.Find("ns1", CacheTransportTLS, FamilyIPv4)
				if err != nil || got != ctx {
					t.Errorf("concurrent Find = %p, %v", got, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestCacheContract(t *testing.T) {
	cache := NewCache()
	defer cache.Detach()
	ctx := testServerContext(t)

	mustPanic := func(name string, f func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Errorf("%s: expected panic", name)
			}
		}()
		f()
	}

	mustPanic("empty name", func() { cache.Add("", CacheTransportTLS, FamilyIPv4, ctx) })
	mustPanic("NUL in name", func() { cache.Add("ns\x001", CacheTransportTLS, FamilyIPv4, ctx) })
	mustPanic("bad transport", func() { cache.Add("ns1", cacheTransportNone, FamilyIPv4, ctx) })
	mustPanic("nil context", func() { cache.Add("ns1", CacheTransportTLS, FamilyIPv4, nil) })
}
