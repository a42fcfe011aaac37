// Package main provides the chathistory command-line entry point.
package main

import (
	"os"

	"chathistory/internal/cli"
)

func main() {
	os.Exit(cli.NewApp().Run(os.Args[1:]))
}
