/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package bind9

import (
	"log"
	"net"

	"github.com/miekg/dns"
	"github.com/spf13/viper"

	"github.com/acidburn0zzz/bind9/tlsutil"
)

func DnsDoTEngine(conf *Config, dotaddrs []string,
	ourDNSHandler func(w dns.ResponseWriter, r *dns.Msg)) error {

	log.Printf("DnsEngine: DoT addresses: %v", dotaddrs)

	// Wrap the DNS handler to add logging
	loggingHandler := func(w dns.ResponseWriter, r *dns.Msg) {
		if Globals.Debug {
			log.Printf("*** DoT received message opcode: %s qname: %s rrtype: %s",
				dns.OpcodeToString[r.Opcode],
				r.Question[0].Name,
				dns.TypeToString[r.Question[0].Qtype])
		}
		ourDNSHandler(w, r)
	}

	ports := viper.GetStringSlice("dnsengine.ports.dot")
	if len(ports) == 0 {
		ports = []string{"853"}
	}
	for _, addr := range dotaddrs {
		tlsctx, err := ListenerContext(conf, conf.Service.Name,
			tlsutil.CacheTransportTLS, AddrFamily(addr))
		if err != nil {
			return err
		}
		for _, port := range ports {
			hostport := net.JoinHostPort(addr, port)
			server := &dns.Server{
				Addr:      hostport,
				Net:       "tcp-tls",
				TLSConfig: tlsctx.Config(),
				Handler:   dns.HandlerFunc(loggingHandler),
			}
			DnsServers.Set(hostport, server)
			go func() {
				log.Printf("DnsEngine: serving on %s (DoT)\n", hostport)
				if err := server.ListenAndServe(); err != nil {
					log.Printf("Failed to setup the DoT server on %s: %s", hostport, err.Error())
					DnsServers.Remove(hostport)
				}
			}()
		}
	}
	return nil
}
