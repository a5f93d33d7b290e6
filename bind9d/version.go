/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package main

// Overridden at build time via -ldflags.
var appVersion = "v0.1.0"
