/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

// Package tlsutil configures TLS state for the DNS transports: it
// builds client and server TLS contexts, synthesizes ephemeral server
// identities, negotiates ALPN for DoT and HTTP/2, and caches the
// resulting contexts per logical listener name. It only configures TLS
// state; the serving engines drive the actual I/O.
package tlsutil

import (
	"errors"

	"github.com/acidburn0zzz/bind9/hashmap"
)

var (
	// ErrTLS wraps failures reported by the TLS provider (bad
	// certificate or key material, rejected parameters).
	ErrTLS = errors.New("TLS error")

	ErrNotFound = hashmap.ErrNotFound
	ErrExists   = hashmap.ErrExists
)
