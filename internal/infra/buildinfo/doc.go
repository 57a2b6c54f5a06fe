// Package buildinfo exposes build information for PreviewShare.
//
// Version, Commit and BuildTime are injected via ldflags:
//
//	go build -ldflags "-X github.com/yndnr/previewshare-go/internal/infra/buildinfo.Version=v1.0.0"
//
// When a value is not injected, Get falls back to the module build
// information embedded by the Go toolchain (VCS revision and time).
package buildinfo
