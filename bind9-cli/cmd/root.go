/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/acidburn0zzz/bind9/bind9"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bind9-cli",
	Short: "CLI tool to inspect and validate the bind9d configuration",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		fmt.Sprintf("config file (default is %s)", bind9.DefaultCfgFile))
	rootCmd.PersistentFlags().BoolVarP(&bind9.Globals.Verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&bind9.Globals.Debug, "debug", "d", false, "Debugging output")
}

func initConfig() {
	bind9.SetupCliLogging()

	if cfgFile == "" {
		cfgFile = bind9.DefaultCfgFile
	}
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Could not load config %s: %v\n", cfgFile, err)
		os.Exit(1)
	}
	if bind9.Globals.Debug {
		log.Printf("Using config file: %s", viper.ConfigFileUsed())
	}
}
