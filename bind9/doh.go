/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package bind9

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"log"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/miekg/dns"
	"github.com/spf13/viper"

	"github.com/acidburn0zzz/bind9/tlsutil"
)

func DnsDoHEngine(conf *Config, dohaddrs []string,
	ourDNSHandler func(w dns.ResponseWriter, r *dns.Msg)) error {

	log.Printf("DnsEngine: DoH addresses: %v", dohaddrs)

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/dns-query", func(w http.ResponseWriter, r *http.Request) {
		var dnsQuery []byte
		var err error
		msg := new(dns.Msg)
		if r.Method == http.MethodPost {
			dnsQuery, err = io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "Failed to read request body", http.StatusInternalServerError)
				return
			}
		} else {
			base64msg := r.URL.Query().Get("dns")
			dnsQuery, err = base64.RawURLEncoding.DecodeString(base64msg)
			if err != nil {
				http.Error(w, "Failed to decode base64 message", http.StatusBadRequest)
				return
			}
		}
		if err := msg.Unpack(dnsQuery); err != nil {
			http.Error(w, "Failed to unpack DNS message", http.StatusBadRequest)
			return
		}

		// Response writer abstraction for DoH
		var buf bytes.Buffer
		rw := &dohResponseWriter{&buf}

		if Globals.Debug {
			log.Printf("*** DoH received message opcode: %s qname: %s rrtype: %s",
				dns.OpcodeToString[msg.Opcode],
				msg.Question[0].Name,
				dns.TypeToString[msg.Question[0].Qtype])
		}

		ourDNSHandler(rw, msg)

		w.Header().Set("Content-Type", "application/dns-message")
		w.Write(buf.Bytes())
	}).Methods("GET", "POST")

	ports := viper.GetStringSlice("dnsengine.ports.doh")
	if len(ports) == 0 {
		ports = []string{"443"}
	}
	for _, addr := range dohaddrs {
		tlsctx, err := ListenerContext(conf, conf.Service.Name,
			tlsutil.CacheTransportHTTPS, AddrFamily(addr))
		if err != nil {
			return err
		}
		for _, port := range ports {
			hostport := net.JoinHostPort(addr, port)
			server := &http.Server{
				Addr:      hostport,
				Handler:   router,
				TLSConfig: tlsctx.Config(),
			}
			go func() {
				log.Printf("DnsEngine: serving on %s (DoH)", hostport)
				// Certificate material comes from the TLS context.
				if err := server.ListenAndServeTLS("", ""); err != nil {
					log.Printf("Failed to setup the DoH server on %s: %s", hostport, err.Error())
				}
			}()
		}
	}
	return nil
}

type dohResponseWriter struct {
	buf *bytes.Buffer
}

func (w *dohResponseWriter) WriteMsg(m *dns.Msg) error {
	raw, err := m.Pack()
	if err != nil {
		return err
	}
	_, err = w.buf.Write(raw)
	return err
}

func (w *dohResponseWriter) Close() error              { return nil }
func (w *dohResponseWriter) TsigStatus() error         { return nil }
func (w *dohResponseWriter) TsigTimersOnly(bool)       {}
func (w *dohResponseWriter) Hijack()                   {}
func (w *dohResponseWriter) LocalAddr() net.Addr       { return dummyAddr{} }
func (w *dohResponseWriter) RemoteAddr() net.Addr      { return dummyAddr{} }
func (w *dohResponseWriter) Write([]byte) (int, error) { return 0, nil }
func (w *dohResponseWriter) WriteMsgWithTsig(*dns.Msg, string, bool) error {
	return errors.New("not implemented")
}

type dummyAddr struct{}

func (dummyAddr) Network() string { return "doh" }
func (dummyAddr) String() string  { return "127.0.0.1:443" }
