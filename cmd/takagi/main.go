// Package main is the entry point for the takagi CLI.
package main

import (
	"os"

	"github.com/takagi-dev/takagi/cmd/takagi/app"
	"github.com/takagi-dev/takagi/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
