// Package config defines the server configuration tree, its defaults and
// the checks run after loading. Loading itself lives in
// internal/infra/confloader; Sanitize returns a copy safe to log.
package config
