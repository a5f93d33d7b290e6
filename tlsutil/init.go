/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package tlsutil

import (
	"crypto/rand"
	"log"
	"sync"
	"sync/atomic"
)

var (
	initOnce sync.Once
	shutOnce sync.Once
	initDone atomic.Bool
	shutDone atomic.Bool
)

// Initialize brings up the crypto provider. It must be called before
// any TLS context is put into service and may be called from multiple
// goroutines; only the first call does any work. Calling it after
// Shutdown is a contract violation.
func Initialize() {
	if shutDone.Load() {
		panic("tlsutil: Initialize after Shutdown")
	}

	initOnce.Do(func() {
		// Protect ourselves against an unseeded PRNG.
		var probe [16]byte
		if _, err := rand.Read(probe[:]); err != nil {
			log.Fatalf("tlsutil: system random number generator cannot be initialized: %v", err)
		}

		if !initDone.CompareAndSwap(false, true) {
			panic("tlsutil: inconsistent initialization state")
		}
	})

	if !initDone.Load() {
		panic("tlsutil: initialization did not complete")
	}
}

// Shutdown tears down the crypto provider. Initialize must have
// happened first; repeated calls are no-ops.
func Shutdown() {
	shutOnce.Do(func() {
		if !initDone.Load() {
			panic("tlsutil: Shutdown before Initialize")
		}
		if !shutDone.CompareAndSwap(false, true) {
			panic("tlsutil: inconsistent shutdown state")
		}
	})

	if !shutDone.Load() {
		panic("tlsutil: shutdown did not complete")
	}
}
