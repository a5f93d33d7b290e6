/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/gookit/goutil/dump"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/acidburn0zzz/bind9/bind9"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate the bind9d configuration",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		if err := bind9.ValidateConfig(nil, viper.ConfigFileUsed()); err != nil {
			fmt.Printf("Config %s does not validate: %v\n", viper.ConfigFileUsed(), err)
			os.Exit(1)
		}
		fmt.Printf("Config %s validates ok\n", viper.ConfigFileUsed())
	},
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		var conf bind9.Config
		if err := viper.Unmarshal(&conf); err != nil {
			log.Fatalf("Error unmarshalling config: %v", err)
		}

		if bind9.Globals.Debug {
			dump.P(conf)
			return
		}

		out, err := yaml.Marshal(conf)
		if err != nil {
			log.Fatalf("Error marshalling config: %v", err)
		}
		fmt.Printf("%s", out)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configCheckCmd, configDumpCmd)
}
