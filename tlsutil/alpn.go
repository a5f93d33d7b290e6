/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package tlsutil

import (
	"bytes"
	"crypto/tls"
)

// ALPN protocol identifiers as they appear on the wire (without the
// length prefix).
const (
	ALPNProtoH2  = "h2"
	ALPNProtoDoT = "dot"
	ALPNProtoDoQ = "doq"
)

// alpnWire encodes a protocol list into the wire form: a sequence of
// (length, bytes) records.
func alpnWire(protos ...string) []byte {
	var out []byte
	for _, p := range protos {
		out = append(out, byte(len(p)))
		out = append(out, p...)
	}
	return out
}

// selectALPNProtocol scans a wire-format protocol list for key (a
// single length-prefixed protocol, including its length byte) and
// returns the matching record's payload. Records are walked linearly:
// the record at offset i occupies in[i .. i+1+in[i]].
func selectALPNProtocol(in, key []byte) ([]byte, bool) {
	for i := 0; i+len(key) <= len(in); i += int(in[i]) + 1 {
		if bytes.Equal(in[i:i+len(key)], key) {
			return in[i+1 : i+1+int(in[i])], true
		}
	}
	return nil, false
}

// EnableHTTP2ClientALPN makes a client context advertise "h2".
func (c *Context) EnableHTTP2ClientALPN() {
	c.conf.NextProtos = []string{ALPNProtoH2}
}

// EnableHTTP2ServerALPN makes a server context advertise and select
// "h2".
func (c *Context) EnableHTTP2ServerALPN() {
	c.conf.NextProtos = []string{ALPNProtoH2}
}

// EnableDoTClientALPN makes a client context advertise the "dot"
// protocol (sent on the wire as the length byte 0x03 followed by the
// identifier).
func (c *Context) EnableDoTClientALPN() {
	c.conf.NextProtos = []string{ALPNProtoDoT}
}

// EnableDoTServerALPN installs a selector that picks "dot" from the
// client's advertised list using the linear length-prefixed scan. A
// client that offers ALPN without "dot" gets no acknowledgement: the
// handshake proceeds with no negotiated protocol.
func (c *Context) EnableDoTServerALPN() {
	c.conf.NextProtos = []string{ALPNProtoDoT}
	c.conf.GetConfigForClient = func(chi *tls.ClientHelloInfo) (*tls.Config, error) {
		if len(chi.SupportedProtos) == 0 {
			// No ALPN extension at all; nothing to select.
			return nil, nil
		}
		wire := alpnWire(chi.SupportedProtos...)
		if _, ok := selectALPNProtocol(wire, alpnWire(ALPNProtoDoT)); !ok {
			// NOACK: serve the connection without ALPN
			// rather than failing the handshake.
			noack := c.conf.Clone()
			noack.NextProtos = nil
			noack.GetConfigForClient = nil
			return noack, nil
		}
		return nil, nil
	}
}

// SelectedALPN returns the application protocol negotiated on a
// handshaken session, if any.
func SelectedALPN(conn *tls.Conn) (string, bool) {
	if conn == nil {
		panic("tlsutil: nil TLS session")
	}
	proto := conn.ConnectionState().NegotiatedProtocol
	return proto, proto != ""
}
