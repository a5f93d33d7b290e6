/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package tlsutil

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"strings"
)

// ProtocolVersion is a bitmask member identifying a TLS protocol
// version. Versions are powers of two so they can be combined into the
// mask taken by SetProtocols.
type ProtocolVersion uint32

const (
	ProtoTLSv12 ProtocolVersion = 1 << iota
	ProtoTLSv13

	protoVerUndefined ProtocolVersion = 1 << iota
)

var ProtocolVersionToString = map[ProtocolVersion]string{
	ProtoTLSv12: "TLSv1.2",
	ProtoTLSv13: "TLSv1.3",
}

type role uint8

const (
	roleClient role = iota
	roleServer
)

// Context is a reusable TLS configuration for one listener or client,
// together with the policy applied to it. A Context is mutable until
// it is published through a Cache; from then on it must be treated as
// immutable.
type Context struct {
	role     role
	conf     *tls.Config
	versions ProtocolVersion
	dhParams *dhParams
}

// commonOptions applies the policy shared by client and server
// contexts: compression stays off (the provider never negotiates it),
// renegotiation is refused, and nothing older than TLS 1.2 is
// accepted.
func commonOptions(conf *tls.Config) {
	conf.Renegotiation = tls.RenegotiateNever
	conf.MinVersion = tls.VersionTLS12
}

// NewClientContext creates a TLS context for the client role. If the
// SSLKEYLOGFILE environment variable is set at creation time,
// pre-master secrets are forwarded to the log.
func NewClientContext() (*Context, error) {
	conf := &tls.Config{}
	commonOptions(conf)
	sslKeyLogInit(conf)

	return &Context{
		role:     roleClient,
		conf:     conf,
		versions: ProtoTLSv12 | ProtoTLSv13,
	}, nil
}

// NewServerContext creates a TLS context for the server role. Either
// both keyfile and certfile are given (PEM certificate chain plus PEM
// private key) or both are empty, in which case an ephemeral P-256
// identity is generated in memory.
func NewServerContext(keyfile, certfile string) (*Context, error) {
	if (keyfile == "") != (certfile == "") {
		panic("tlsutil: keyfile and certfile must both be set or both be empty")
	}
	ephemeral := keyfile == "" && certfile == ""

	conf := &tls.Config{}
	commonOptions(conf)

	var cert tls.Certificate
	var err error
	if ephemeral {
		cert, err = ephemeralCertificate()
	} else {
		cert, err = tls.LoadX509KeyPair(certfile, keyfile)
	}
	if err != nil {
		log.Printf("Error initializing TLS context: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrTLS, err)
	}
	conf.Certificates = []tls.Certificate{cert}

	sslKeyLogInit(conf)

	return &Context{
		role:     roleServer,
		conf:     conf,
		versions: ProtoTLSv12 | ProtoTLSv13,
	}, nil
}

// ProtocolSupported reports whether this build of the provider can
// disable and enable the given protocol version.
func ProtocolSupported(ver ProtocolVersion) bool {
	return ver == ProtoTLSv12 || ver == ProtoTLSv13
}

// ProtocolNameToVersion maps a configuration string such as "TLSv1.2"
// to its version bit, or returns 0 for an unknown name.
func ProtocolNameToVersion(name string) ProtocolVersion {
	for ver, vname := range ProtocolVersionToString {
		if strings.EqualFold(name, vname) {
			return ver
		}
	}
	return 0
}

// SetProtocols restricts the context to the protocol versions in the
// mask. The provider works in terms of per-version disable flags, so
// a version absent from the mask has its disable flag raised and a
// version present has it cleared; the resulting enabled range is then
// projected onto the configuration. The mask must be non-zero and must
// contain only supported versions.
func (c *Context) SetProtocols(versions ProtocolVersion) {
	if c == nil {
		panic("tlsutil: nil context")
	}
	if versions == 0 {
		panic("tlsutil: empty TLS protocol version mask")
	}

	var disabled ProtocolVersion
	left := versions
	for ver := ProtoTLSv12; ver < protoVerUndefined; ver <<= 1 {
		if versions&ver == 0 {
			disabled |= ver
		} else if !ProtocolSupported(ver) {
			panic(fmt.Sprintf("tlsutil: unsupported TLS protocol version %#x", uint32(ver)))
		}
		left &^= ver
	}
	if left != 0 {
		panic(fmt.Sprintf("tlsutil: unknown bits %#x in TLS protocol version mask", uint32(left)))
	}

	c.versions = versions

	if disabled&ProtoTLSv12 != 0 {
		c.conf.MinVersion = tls.VersionTLS13
	} else {
		c.conf.MinVersion = tls.VersionTLS12
	}
	if disabled&ProtoTLSv13 != 0 {
		c.conf.MaxVersion = tls.VersionTLS12
	} else {
		c.conf.MaxVersion = 0
	}
}

// Protocols returns the currently enabled protocol version mask.
func (c *Context) Protocols() ProtocolVersion {
	return c.versions
}

// parseCipherlist resolves a colon- or comma-separated list of cipher
// suite names to suite IDs.
func parseCipherlist(cipherlist string) ([]uint16, error) {
	known := make(map[string]uint16)
	for _, cs := range tls.CipherSuites() {
		known[cs.Name] = cs.ID
	}
	for _, cs := range tls.InsecureCipherSuites() {
		known[cs.Name] = cs.ID
	}

	var suites []uint16
	for _, name := range strings.FieldsFunc(cipherlist, func(r rune) bool {
		return r == ':' || r == ','
	}) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		id, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("unknown cipher suite %q", name)
		}
		suites = append(suites, id)
	}
	if len(suites) == 0 {
		return nil, fmt.Errorf("empty cipher suite list")
	}
	return suites, nil
}

// ValidCipherlist checks a cipher list string against a throwaway
// server context, without touching any live configuration.
func ValidCipherlist(cipherlist string) bool {
	if cipherlist == "" {
		return false
	}

	tmp := &tls.Config{}
	commonOptions(tmp)

	suites, err := parseCipherlist(cipherlist)
	if err != nil {
		return false
	}
	tmp.CipherSuites = suites

	return true
}

// SetCipherlist installs a cipher list that has already been checked
// with ValidCipherlist. Provider rejection at this point means the
// configuration was never validated and is fatal.
func (c *Context) SetCipherlist(cipherlist string) {
	if c == nil {
		panic("tlsutil: nil context")
	}
	if cipherlist == "" {
		panic("tlsutil: empty cipher list")
	}

	suites, err := parseCipherlist(cipherlist)
	if err != nil {
		log.Fatalf("tlsutil: cipher list %q rejected after validation: %v", cipherlist, err)
	}
	c.conf.CipherSuites = suites
}

// PreferServerCiphers makes the server's cipher suite preference order
// win over the client's.
func (c *Context) PreferServerCiphers(prefer bool) {
	c.conf.PreferServerCipherSuites = prefer
}

// SessionTickets enables or disables session ticket issuance.
func (c *Context) SessionTickets(use bool) {
	c.conf.SessionTicketsDisabled = !use
}

// Config exposes the underlying TLS configuration for handing to a
// listener. Callers must not mutate it once the context has been
// published.
func (c *Context) Config() *tls.Config {
	return c.conf
}

// NewSession spawns a per-connection TLS state object attached to this
// context.
func (c *Context) NewSession(conn net.Conn) *tls.Conn {
	if c == nil {
		panic("tlsutil: nil context")
	}
	if c.role == roleServer {
		return tls.Server(conn, c.conf)
	}
	return tls.Client(conn, c.conf)
}
