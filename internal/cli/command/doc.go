// Package command provides the previewshare-cli command tree.
//
// Commands are defined with urfave/cli/v2:
//
//   - root.go: App, global flags, connection resolution
//   - token.go: Issue, resolve, revoke and list preview tokens
//   - settings.go: Read and patch runtime settings
//   - resource.go: Manage the resource registry
//   - connect.go: Save a server as a profile after a health check
//   - config.go: Inspect and switch local profiles
//
// Every command resolves its connection the same way: the selected
// profile, then PREVIEWSHARE_CLI_* variables, then flags.
package command
