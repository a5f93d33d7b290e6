/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package bind9

import (
	"log"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultLogMaxSize    = 20 // megabytes
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 14 // days
)

// SetupLogging directs the server log to the rotating file described
// by lconf. A missing log file is a configuration error the server
// cannot run without.
func SetupLogging(lconf LogConf) error {
	log.SetFlags(log.Ltime | log.Lshortfile)

	if lconf.File == "" {
		log.Fatalf("Error: no log file (key log.file) specified")
	}

	if lconf.MaxSize == 0 {
		lconf.MaxSize = defaultLogMaxSize
	}
	if lconf.MaxBackups == 0 {
		lconf.MaxBackups = defaultLogMaxBackups
	}
	if lconf.MaxAge == 0 {
		lconf.MaxAge = defaultLogMaxAge
	}

	log.SetOutput(&lumberjack.Logger{
		Filename:   lconf.File,
		MaxSize:    lconf.MaxSize,
		MaxBackups: lconf.MaxBackups,
		MaxAge:     lconf.MaxAge,
	})

	return nil
}

// SetupCliLogging configures plain stderr logging for CLI commands,
// which have no log file. Timestamps and file/line info only show up
// in verbose or debug runs.
func SetupCliLogging() {
	flags := 0
	if Globals.Verbose || Globals.Debug {
		flags = log.Ltime | log.Lshortfile
	}
	log.SetFlags(flags)
}
