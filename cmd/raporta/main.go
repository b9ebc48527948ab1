package main

import "github.com/seuros/raporta/internal/cli"

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	cli.Version = version
	cli.RootCmd.Version = version
	cli.Execute()
}
