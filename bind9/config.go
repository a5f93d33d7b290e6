/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package bind9

import (
	"github.com/acidburn0zzz/bind9/tlsutil"
)

const DefaultCfgFile = "/etc/bind9/bind9.yaml"

type Config struct {
	Service   ServiceConf   `validate:"required"`
	Log       LogConf       `validate:"required"`
	DnsEngine DnsEngineConf `mapstructure:"dnsengine" validate:"required"`

	Internal InternalConf `mapstructure:"-"`
}

type ServiceConf struct {
	Name     string `validate:"required"`
	Identity string
}

// LogConf configures the rotating server log. The size is in
// megabytes and the age in days; zero values fall back to the
// defaults in logging.go.
type LogConf struct {
	File       string `validate:"required"`
	MaxSize    int    `mapstructure:"max-size"`
	MaxBackups int    `mapstructure:"max-backups"`
	MaxAge     int    `mapstructure:"max-age"`
}

type DnsEngineConf struct {
	Addresses []string  `validate:"required"`
	Ports     PortsConf `validate:"required"`
	Dot       TlsConf   `mapstructure:"dot"`
	Doh       TlsConf   `mapstructure:"doh"`
	Doq       TlsConf   `mapstructure:"doq"`
}

type PortsConf struct {
	Dot []string
	Doh []string
	Doq []string
}

// TlsConf configures the TLS context of one listener transport. With
// both CertFile and KeyFile empty an ephemeral identity is generated
// at startup.
type TlsConf struct {
	Active              bool
	CertFile            string   `mapstructure:"certfile" validate:"omitempty,certkey"`
	KeyFile             string   `mapstructure:"keyfile" validate:"excluded_without=CertFile"`
	Protocols           []string `validate:"omitempty,tlsversions"`
	CipherList          string   `mapstructure:"cipherlist" validate:"omitempty,cipherlist"`
	DhParamFile         string   `mapstructure:"dhparam" validate:"omitempty,file"`
	SessionTickets      bool     `mapstructure:"session-tickets"`
	PreferServerCiphers bool     `mapstructure:"prefer-server-ciphers"`
}

type InternalConf struct {
	CfgFile     string
	TlsCtxCache *tlsutil.Cache
	APIStopCh   chan struct{}
}
