// Package confloader loads configuration with koanf and watches the
// configuration file for changes.
//
// Priority (highest to lowest):
//
//  1. Environment variables (PREVIEWSHARE_ prefix)
//  2. The YAML configuration file
//  3. Values already present in the target struct (defaults)
//
// Environment variables separate nesting levels with a double underscore so
// that keys may themselves contain underscores:
//
//	PREVIEWSHARE_PREVIEW__DEFAULT_TTL_HOURS=48  ->  preview.default_ttl_hours
//
// List fields accept comma separated values. In strict mode a key in the
// file that matches no field is an error; the environment is never checked
// because other tools share the prefix.
package confloader
