// Package main provides the entry point for previewshare-cli.
//
// previewshare-cli manages a previewshare-server over its HTTP API:
// issuing and revoking preview tokens, listing them, editing settings and
// maintaining the resource registry.
//
//	previewshare-cli connect http://127.0.0.1:5080 --api-key $KEY
//	previewshare-cli token issue --ttl-hours 48 42
//	previewshare-cli -o json token list
package main
