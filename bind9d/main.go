/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/acidburn0zzz/bind9/bind9"
	"github.com/acidburn0zzz/bind9/tlsutil"
)

func mainloop(conf *bind9.Config) {
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	hupper := make(chan os.Signal, 1)
	signal.Notify(hupper, syscall.SIGHUP)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		for {
			select {
			case <-exit:
				log.Println("mainloop: Exit signal received. Cleaning up.")
				wg.Done()
			case <-hupper:
				log.Println("mainloop: SIGHUP received. Reloading configuration.")
				if err := bind9.ParseConfig(conf, true); err != nil {
					log.Fatalf("Error reloading config: %v", err)
				}
			case <-conf.Internal.APIStopCh:
				log.Println("mainloop: Stop command received. Cleaning up.")
				wg.Done()
			}
		}
	}()
	wg.Wait()

	fmt.Println("mainloop: leaving signal dispatcher")
}

func main() {
	var conf bind9.Config

	flag.StringVar(&conf.Internal.CfgFile, "config", bind9.DefaultCfgFile, "Config file")
	flag.BoolVarP(&bind9.Globals.Debug, "debug", "d", false, "Debug mode")
	flag.BoolVarP(&bind9.Globals.Verbose, "verbose", "v", false, "Verbose mode")
	flag.Parse()

	bind9.Globals.AppName = "bind9d"
	bind9.Globals.AppVersion = appVersion

	if err := bind9.ParseConfig(&conf, false); err != nil {
		log.Fatalf("Error parsing config: %v", err)
	}

	bind9.SetupLogging(conf.Log)
	fmt.Printf("Logging to file: %s\n", conf.Log.File)

	fmt.Printf("%s version %s starting.\n", bind9.Globals.AppName, appVersion)

	// The crypto provider must be up before any TLS context is built.
	tlsutil.Initialize()

	handler := createDnsHandler(&conf)

	addrs := conf.DnsEngine.Addresses
	if conf.DnsEngine.Dot.Active {
		if err := bind9.DnsDoTEngine(&conf, addrs, handler); err != nil {
			log.Fatalf("Error starting DoT engine: %v", err)
		}
	}
	if conf.DnsEngine.Doh.Active {
		if err := bind9.DnsDoHEngine(&conf, addrs, handler); err != nil {
			log.Fatalf("Error starting DoH engine: %v", err)
		}
	}
	if conf.DnsEngine.Doq.Active {
		if err := bind9.DnsDoQEngine(&conf, addrs, handler); err != nil {
			log.Fatalf("Error starting DoQ engine: %v", err)
		}
	}

	mainloop(&conf)

	conf.Internal.TlsCtxCache.Detach()
	tlsutil.Shutdown()
}
