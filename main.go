// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/jcodagnone/pharmalocator/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
