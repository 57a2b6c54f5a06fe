// Package connection provides the HTTP client previewshare-cli uses to
// reach a server.
//
//   - http.go: Envelope-aware HTTP client with bearer authentication
//   - manager.go: Profile resolution from the local CLI configuration
package connection
