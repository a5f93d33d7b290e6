/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/acidburn0zzz/bind9/bind9"
	"github.com/acidburn0zzz/bind9/tlsutil"
)

var tlsctxCmd = &cobra.Command{
	Use:   "tlsctx",
	Short: "Work with the configured TLS contexts",
}

var tlsctxListCmd = &cobra.Command{
	Use:   "list",
	Short: "Build the configured TLS contexts and list them",
	Run: func(cmd *cobra.Command, args []string) {
		var conf bind9.Config
		if err := viper.Unmarshal(&conf); err != nil {
			log.Fatalf("Error unmarshalling config: %v", err)
		}
		conf.Internal.TlsCtxCache = tlsutil.NewCache()
		defer conf.Internal.TlsCtxCache.Detach()

		tlsutil.Initialize()

		transports := []tlsutil.CacheTransport{
			tlsutil.CacheTransportTLS,
			tlsutil.CacheTransportHTTPS,
			tlsutil.CacheTransportQUIC,
		}

		lines := []string{"Transport | Family | Versions | ALPN | Subject CN"}
		for _, addr := range conf.DnsEngine.Addresses {
			family := bind9.AddrFamily(addr)
			for _, transport := range transports {
				ctx, err := bind9.ListenerContext(&conf, conf.Service.Name, transport, family)
				if err != nil {
					log.Fatalf("Error building TLS context for %s: %v",
						tlsutil.CacheTransportToString[transport], err)
				}

				var versions []string
				for ver, name := range tlsutil.ProtocolVersionToString {
					if ctx.Protocols()&ver != 0 {
						versions = append(versions, name)
					}
				}

				cn := "-"
				if certs := ctx.Config().Certificates; len(certs) > 0 && certs[0].Leaf != nil {
					cn = certs[0].Leaf.Subject.CommonName
				}

				lines = append(lines, fmt.Sprintf("%s | %s | %s | %s | %s",
					tlsutil.CacheTransportToString[transport],
					tlsutil.FamilyToString[family],
					strings.Join(versions, ","),
					strings.Join(ctx.Config().NextProtos, ","),
					cn))
			}
		}

		fmt.Println(columnize.SimpleFormat(lines))
	},
}

func init() {
	rootCmd.AddCommand(tlsctxCmd)
	tlsctxCmd.AddCommand(tlsctxListCmd)
}
