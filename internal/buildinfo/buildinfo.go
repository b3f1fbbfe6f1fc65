// Package buildinfo provides build-time metadata for the identityctx binary.
//
// All variables have sensible defaults and can be overridden at build time
// using -ldflags:
//
//	go build -ldflags "\
//	  -X 'github.com/ozlabs/identityctx/internal/buildinfo.Version=1.4.0' \
//	  -X 'github.com/ozlabs/identityctx/internal/buildinfo.BuildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)'"
package buildinfo

import "runtime"

var (
	// Version is the current version of the module
	Version = "0.0.0"

	// BuildDate is the date the binary was built
	BuildDate = "1970-01-01T00:00:00Z"

	// GitCommit is the commit hash the binary was built from
	GitCommit = ""

	// GoVersion is the version of Go used to build the binary
	GoVersion = runtime.Version()
)
