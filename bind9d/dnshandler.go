/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package main

import (
	"log"
	"strings"

	"github.com/miekg/dns"

	"github.com/acidburn0zzz/bind9/bind9"
)

// createDnsHandler returns the default query responder: CHAOS TXT
// queries for version.bind, version.server, id.server and
// hostname.bind are answered, a message without exactly one question
// gets FORMERR, and everything else is refused.
func createDnsHandler(conf *bind9.Config) func(w dns.ResponseWriter, r *dns.Msg) {
	return func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)

		if len(r.Question) != 1 {
			m.SetRcode(r, dns.RcodeFormatError)
			w.WriteMsg(m)
			return
		}

		q := r.Question[0]
		qname := strings.ToLower(q.Name)

		if q.Qclass == dns.ClassCHAOS && q.Qtype == dns.TypeTXT {
			var txt string
			switch qname {
			case "version.bind.", "version.server.":
				txt = bind9.Globals.AppName + " " + bind9.Globals.AppVersion
			case "id.server.":
				txt = conf.Service.Identity
			case "hostname.bind.":
				txt = bind9.Globals.Hostname
			}
			if txt != "" {
				m.SetReply(r)
				m.Answer = append(m.Answer, &dns.TXT{
					Hdr: dns.RR_Header{
						Name:   q.Name,
						Rrtype: dns.TypeTXT,
						Class:  dns.ClassCHAOS,
						Ttl:    0,
					},
					Txt: []string{txt},
				})
				w.WriteMsg(m)
				return
			}
		}

		if bind9.Globals.Debug {
			log.Printf("DnsHandler: refusing %s %s %s", dns.ClassToString[q.Qclass],
				dns.TypeToString[q.Qtype], q.Name)
		}
		m.SetRcode(r, dns.RcodeRefused)
		w.WriteMsg(m)
	}
}
