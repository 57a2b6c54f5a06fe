// Package output renders previewshare-cli results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: Aligned tables; values opt in by implementing Tabler
//   - json.go: Indented JSON
//   - yaml.go: YAML keyed by the same field names as JSON
package output
