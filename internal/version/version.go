// Package version carries the build stamp reported in the startup log.
package version

// Overridden through -ldflags by release builds; the defaults identify
// a plain source build.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
