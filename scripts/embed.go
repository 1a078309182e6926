// Package scripts embeds the Risor modules that exclude expressions can
// import when no scripts directory is given.
package scripts

import "embed"

//go:embed *.risor
var FS embed.FS
