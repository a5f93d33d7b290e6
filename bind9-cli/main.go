/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

package main

import (
	"github.com/acidburn0zzz/bind9/bind9-cli/cmd"
)

func main() {
	cmd.Execute()
}
