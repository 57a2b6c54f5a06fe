// Package config provides local configuration for previewshare-cli.
//
// This package defines CLI-specific configuration:
//
//   - spec.go: CLIConfig struct (~/.previewshare/cli.yaml)
//   - loader.go: Loading, saving and environment overrides
//
// A configuration holds named connection profiles and the profile in
// use. Command-line flags take precedence over PREVIEWSHARE_CLI_*
// variables, which take precedence over the file.
package config
