// Package tlscert loads TLS material for the server.
//
// A Reloader serves the HTTP listener's key pair and swaps it when the
// files change on disk, so certificate rotation needs no restart.
// ClientConfig builds the client side configuration used when dialing
// Redis over TLS.
package tlscert
