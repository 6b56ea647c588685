// -- cmd/version.go --
package cmd

// Version is the application version, overridable at build time with
// -ldflags "-X github.com/webbridge/webbridge-cli/cmd.Version=...".
var Version = "0.1.0"
