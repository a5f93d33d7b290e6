/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package bind9

import (
	"fmt"
	"log"
	"strings"

	"github.com/acidburn0zzz/bind9/tlsutil"
)

// ProtocolMask translates configured protocol names into the version
// mask taken by tlsutil. An empty list enables everything this build
// supports.
func ProtocolMask(names []string) (tlsutil.ProtocolVersion, error) {
	if len(names) == 0 {
		return tlsutil.ProtoTLSv12 | tlsutil.ProtoTLSv13, nil
	}
	var mask tlsutil.ProtocolVersion
	for _, name := range names {
		ver := tlsutil.ProtocolNameToVersion(name)
		if ver == 0 {
			return 0, fmt.Errorf("unknown TLS protocol version %q", name)
		}
		mask |= ver
	}
	return mask, nil
}

func transportTlsConf(conf *Config, transport tlsutil.CacheTransport) *TlsConf {
	switch transport {
	case tlsutil.CacheTransportTLS:
		return &conf.DnsEngine.Dot
	case tlsutil.CacheTransportHTTPS:
		return &conf.DnsEngine.Doh
	case tlsutil.CacheTransportQUIC:
		return &conf.DnsEngine.Doq
	}
	return nil
}

// buildListenerContext assembles a server TLS context from the
// per-transport configuration. The config has been validated, so
// provider rejections here indicate real breakage.
func buildListenerContext(tconf *TlsConf, transport tlsutil.CacheTransport) (*tlsutil.Context, error) {
	ctx, err := tlsutil.NewServerContext(tconf.KeyFile, tconf.CertFile)
	if err != nil {
		return nil, err
	}

	mask, err := ProtocolMask(tconf.Protocols)
	if err != nil {
		return nil, err
	}
	ctx.SetProtocols(mask)

	if tconf.CipherList != "" {
		ctx.SetCipherlist(tconf.CipherList)
	}
	if tconf.DhParamFile != "" {
		if !ctx.LoadDHParams(tconf.DhParamFile) {
			return nil, fmt.Errorf("%w: bad DH parameters in %s", tlsutil.ErrTLS, tconf.DhParamFile)
		}
	}
	ctx.SessionTickets(tconf.SessionTickets)
	ctx.PreferServerCiphers(tconf.PreferServerCiphers)

	switch transport {
	case tlsutil.CacheTransportTLS:
		ctx.EnableDoTServerALPN()
	case tlsutil.CacheTransportHTTPS:
		ctx.EnableHTTP2ServerALPN()
	case tlsutil.CacheTransportQUIC:
		ctx.Config().NextProtos = []string{tlsutil.ALPNProtoDoQ}
	}

	return ctx, nil
}

// ListenerContext returns the shared TLS context for (name, transport,
// family), building and publishing it on first use. Losing a publish
// race is fine; the previously published context wins and the fresh
// one is discarded.
func ListenerContext(conf *Config, name string, transport tlsutil.CacheTransport, family tlsutil.Family) (*tlsutil.Context, error) {
	cache := conf.Internal.TlsCtxCache

	if ctx, err := cache.Find(name, transport, family); err == nil {
		return ctx, nil
	}

	tconf := transportTlsConf(conf, transport)
	if tconf == nil {
		return nil, fmt.Errorf("no TLS configuration for transport %s",
			tlsutil.CacheTransportToString[transport])
	}

	ctx, err := buildListenerContext(tconf, transport)
	if err != nil {
		return nil, err
	}

	found, err := cache.Add(name, transport, family, ctx)
	if err == tlsutil.ErrExists {
		return found, nil
	}
	if Globals.Debug {
		log.Printf("ListenerContext: published TLS context %s/%s/%s", name,
			tlsutil.CacheTransportToString[transport], tlsutil.FamilyToString[family])
	}
	return ctx, nil
}

// AddrFamily classifies a listener address string.
func AddrFamily(addr string) tlsutil.Family {
	if strings.Contains(addr, ":") {
		return tlsutil.FamilyIPv6
	}
	return tlsutil.FamilyIPv4
}
