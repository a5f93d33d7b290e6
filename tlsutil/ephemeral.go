/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"
)

// The ephemeral certificate is only a protocol-required shell; a
// deployment that relies on it authenticates peers by other means.
const (
	ephemeralCommonName   = "bind9.local"
	ephemeralOrganization = "BIND9 ephemeral certificate"
	ephemeralCountry      = "AQ"
	ephemeralValidity     = 3650 * 24 * time.Hour // 10 years
)

// ephemeralCertificate generates an in-memory P-256 key pair and a
// matching self-signed certificate for servers that are configured
// without on-disk key material.
func ephemeralCertificate() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	now := time.Now()
	name := pkix.Name{
		Country:      []string{ephemeralCountry},
		Organization: []string{ephemeralOrganization},
		CommonName:   ephemeralCommonName,
	}
	template := &x509.Certificate{
		SerialNumber:       big.NewInt(1),
		NotBefore:          now,
		NotAfter:           now.Add(ephemeralValidity),
		Subject:            name,
		Issuer:             name,
		SignatureAlgorithm: x509.ECDSAWithSHA256,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}
