package version

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var versionPattern = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?(?:-[0-9A-Za-z.-]+)?)`)

// Extract returns the first version string found in output, without a
// leading "v". It returns an empty string when nothing looks like a version.
func Extract(output string) string {
	// Only the first line matters for every tool we probe; later lines carry
	// commit hashes and feature flags that can look like versions.
	line := output
	if i := strings.IndexByte(output, '\n'); i >= 0 {
		line = output[:i]
	}
	if m := versionPattern.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	if m := versionPattern.FindStringSubmatch(output); m != nil {
		return m[1]
	}
	return ""
}

// Parse parses a version leniently (missing patch or minor are allowed).
func Parse(v string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(strings.TrimSpace(v))
	if err != nil {
		return nil, fmt.Errorf("invalid version %q: %w", v, err)
	}
	return parsed, nil
}

// Satisfies reports whether installed is at or above pin.
//
// An empty pin is satisfied by any parseable installed version. An installed
// version that cannot be parsed never satisfies a pin.
func Satisfies(installed, pin string) bool {
	got, err := Parse(installed)
	if err != nil {
		return false
	}
	if strings.TrimSpace(pin) == "" {
		return true
	}
	want, err := Parse(pin)
	if err != nil {
		return false
	}
	return !got.LessThan(want)
}
