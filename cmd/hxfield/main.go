// Command hxfield serves blueprint forms built from the built-in fieldtypes
// and checks fieldtype registrations in Go sources.
//
// Usage:
//
//	hxfield serve --blueprint post.yaml --watch
//	hxfield vet ./...
//	hxfield version
package main

import (
	"fmt"
	"os"
)

// Build information injected via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := newRootCmd(fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date))
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
