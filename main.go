// Package main is the entry point for the songdl application.
package main

import (
	"github.com/songdl-cli/songdl/cmd"
	"github.com/songdl-cli/songdl/config"
	"github.com/songdl-cli/songdl/internal/cache"
	"github.com/songdl-cli/songdl/log"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	// Prune expired search cache entries in the background.
	cache.CollectGarbage()

	cmd.Execute()
}
