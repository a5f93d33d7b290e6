/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package bind9

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"

	"github.com/acidburn0zzz/bind9/tlsutil"
)

func ParseConfig(conf *Config, reload bool) error {
	if Globals.Debug {
		log.Printf("Enter ParseConfig")
	}
	cfgfile := conf.Internal.CfgFile
	if cfgfile == "" {
		cfgfile = DefaultCfgFile
	}
	viper.SetConfigFile(cfgfile)

	viper.AutomaticEnv() // read in environment variables that match

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else {
		log.Fatalf("Could not load config %s: Error: %v", cfgfile, err)
	}

	if err := viper.Unmarshal(conf); err != nil {
		return fmt.Errorf("ParseConfig: unmarshal error: %v", err)
	}

	if err := ValidateConfig(nil, cfgfile); err != nil {
		return err
	}

	if hostname, err := os.Hostname(); err == nil {
		Globals.Hostname = hostname
	}

	if conf.Internal.TlsCtxCache == nil {
		conf.Internal.TlsCtxCache = tlsutil.NewCache()
	}
	if conf.Internal.APIStopCh == nil {
		conf.Internal.APIStopCh = make(chan struct{}, 10)
	}

	if !reload {
		if Globals.Verbose {
			log.Printf("ParseConfig: service %s configured", conf.Service.Name)
		}
	}

	return nil
}
