package main

import (
	"os"

	"github.com/wonny/strikegate/cmd/strikegate/commands"
)

// main is the entry point for the strikegate CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/strikegate [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
