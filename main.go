// Copyright 2025 The Corridor Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/corridorhq/corridor/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
