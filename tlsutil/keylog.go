/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package tlsutil

import (
	"crypto/tls"
	"log"
	"os"
	"strings"
)

const sslKeyLogEnv = "SSLKEYLOGFILE"

// keyLogWriter forwards pre-master secret lines from the TLS stack to
// the log. The value of SSLKEYLOGFILE is not interpreted here; the log
// sink decides where the lines end up.
type keyLogWriter struct{}

func (keyLogWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		log.Printf("sslkeylog: %s", line)
	}
	return len(p), nil
}

// sslKeyLogInit enables pre-master secret logging if the SSLKEYLOGFILE
// environment variable is set. This happens per context, at creation
// time.
func sslKeyLogInit(conf *tls.Config) {
	if os.Getenv(sslKeyLogEnv) != "" {
		conf.KeyLogWriter = keyLogWriter{}
	}
}
