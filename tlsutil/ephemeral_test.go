/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"testing"
	"time"
)

func TestEphemeralCertificate(t *testing.T) {
	ctx, err := NewServerContext("", "")
	if err != nil {
		t.Fatalf("NewServerContext: %v", err)
	}

	certs := ctx.Config().Certificates
	if len(certs) != 1 || certs[0].Leaf == nil {
		t.Fatalf("no parsed certificate on ephemeral server context")
	}
	leaf := certs[0].Leaf

	if leaf.Subject.CommonName != "bind9.local" {
		t.Errorf("CN = %q, want bind9.local", leaf.Subject.CommonName)
	}
	if len(leaf.Subject.Country) != 1 || leaf.Subject.Country[0] != "AQ" {
		t.Errorf("C = %v, want [AQ]", leaf.Subject.Country)
	}
	if leaf.SerialNumber.Int64() != 1 {
		t.Errorf("serial = %v, want 1", leaf.SerialNumber)
	}
	if leaf.Subject.CommonName != leaf.Issuer.CommonName {
		t.Errorf("certificate is not self-issued")
	}

	nineYears := time.Now().Add(9 * 365 * 24 * time.Hour)
	if leaf.NotAfter.Before(nineYears) {
		t.Errorf("NotAfter = %v, want at least 9 years out", leaf.NotAfter)
	}
	if leaf.NotBefore.After(time.Now()) {
		t.Errorf("NotBefore = %v is in the future", leaf.NotBefore)
	}

	pub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		t.Fatalf("public key is %T, want *ecdsa.PublicKey", leaf.PublicKey)
	}
	if pub.Curve != elliptic.P256() {
		t.Errorf("curve = %v, want P-256", pub.Curve.Params().Name)
	}

	// Self-signed: the certificate must verify under its own key.
	if err := leaf.CheckSignature(leaf.SignatureAlgorithm, leaf.RawTBSCertificate, leaf.Signature); err != nil {
		t.Errorf("self-signature does not verify: %v", err)
	}
}

func TestEphemeralHandshake(t *testing.T) {
	server := testServerContext(t)
	client := testClientContext(t)

	cconn, _, err := handshakePair(t, client, server)
	if err != nil {
		t.Fatalf("handshake with ephemeral identity: %v", err)
	}
	state := cconn.ConnectionState()
	if len(state.PeerCertificates) == 0 ||
		state.PeerCertificates[0].Subject.CommonName != "bind9.local" {
		t.Errorf("peer did not present the ephemeral certificate")
	}
}
