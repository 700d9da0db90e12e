/*
Package main provides the CLI entry point for the mail service.
*/
package main

import (
	"os"

	"github.com/lattiq/mailservice/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
