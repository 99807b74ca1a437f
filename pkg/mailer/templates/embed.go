// Package templates embeds the built-in email templates.
package templates

import "embed"

// FS holds the markdown templates and their layouts.
//
//go:embed *.md layouts/*.html
var FS embed.FS
