// Package schemas embeds the JSON schemas request bodies are validated against.
package schemas

import "embed"

// FS holds the top level schemas and, under refs/, the schemas they reference
//
//go:embed *.json refs/*.json
var FS embed.FS
