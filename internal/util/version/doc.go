// Package version extracts semantic versions from tool output and compares
// them against pins.
//
// Installed binaries report versions in many shapes ("go version go1.22.5
// linux/amd64", "podman version 5.2.3", "crun version 1.17"). [Extract] finds
// the first dotted version in such output and [Satisfies] decides whether an
// installed version meets a pin.
package version
