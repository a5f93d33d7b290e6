/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package tlsutil

import (
	"encoding/asn1"
	"encoding/pem"
	"math/big"
	"os"
)

// dhParams holds finite-field Diffie-Hellman group parameters in the
// PKCS#3 shape.
type dhParams struct {
	P *big.Int
	G *big.Int
}

// LoadDHParams reads PEM DH parameters from path, checks them, and
// installs them on the context. The TLS 1.3 key exchange groups remain
// provider-chosen; the parameters are kept for configurations that pin
// a finite-field group. Returns false when the file cannot be read or
// the parameters do not check out.
func (c *Context) LoadDHParams(path string) bool {
	if c == nil {
		panic("tlsutil: nil context")
	}
	if path == "" {
		panic("tlsutil: empty DH parameter path")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	var block *pem.Block
	for {
		block, data = pem.Decode(data)
		if block == nil {
			return false
		}
		if block.Type == "DH PARAMETERS" || block.Type == "X9.42 DH PARAMETERS" {
			break
		}
	}

	var dh dhParams
	if rest, err := asn1.Unmarshal(block.Bytes, &dh); err != nil || len(rest) != 0 {
		return false
	}
	if !dhCheck(&dh) {
		return false
	}

	c.dhParams = &dh
	return true
}

// dhCheck performs the parameter sanity checks: the modulus must be an
// odd prime and the generator must fall in (1, p-1).
func dhCheck(dh *dhParams) bool {
	if dh.P == nil || dh.G == nil {
		return false
	}
	if dh.P.Bit(0) == 0 || !dh.P.ProbablyPrime(20) {
		return false
	}
	one := big.NewInt(1)
	pm1 := new(big.Int).Sub(dh.P, one)
	if dh.G.Cmp(one) <= 0 || dh.G.Cmp(pm1) >= 0 {
		return false
	}
	return true
}
