package main

import (
	"github.com/webbridge/webbridge-cli/cmd"
)

// main is the entry point for the webbridge CLI. All argument parsing,
// configuration loading and command execution live in the cmd package.
func main() {
	cmd.Execute()
}
