package web

import "embed"

// staticFS holds the chat widget served at /.
//
//go:embed static
var staticFS embed.FS
