package handlers

import (
	"fmt"
	"io"
)

// BuildInfo is the version metadata stamped in at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Version prints the build information.
func Version(w io.Writer, info BuildInfo) {
	fmt.Fprintf(w, "podstrap %s\n", info.Version)
	fmt.Fprintf(w, "  commit: %s\n", info.Commit)
	fmt.Fprintf(w, "  built:  %s\n", info.Date)
}
