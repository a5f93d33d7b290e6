/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package bind9

import (
	"github.com/miekg/dns"
	cmap "github.com/orcaman/concurrent-map/v2"
)

type GlobalStuff struct {
	Verbose    bool
	Debug      bool
	AppName    string
	AppVersion string
	Hostname   string
}

var Globals = GlobalStuff{
	Verbose: false,
	Debug:   false,
}

// DnsServers tracks the running DNS-over-TLS listeners by host:port so
// they can be inspected and shut down.
var DnsServers = cmap.New[*dns.Server]()
