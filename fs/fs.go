// Package appfs exposes the embedded application filesystem (DB migrations).
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
