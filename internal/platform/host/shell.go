package host

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Quote returns s quoted for a POSIX shell. Plain words are left alone.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' ||
			strings.ContainsRune("-_./:=,+@%", r)) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// Elevate rewrites argv so it runs as root with searchPath kept as PATH and
// env applied after sudo resets the environment. Callers that are already
// root get argv back unchanged.
func Elevate(argv []string, searchPath string, env []string, isRoot bool) []string {
	if isRoot {
		return argv
	}
	out := make([]string, 0, len(argv)+len(env)+3)
	out = append(out, "sudo", "env", "PATH="+searchPath)
	out = append(out, env...)
	return append(out, argv...)
}

// writeScript replaces "$1" with stdin atomically. The temporary file lives in
// the target directory so the final rename stays on one filesystem.
const writeScript = `set -e
dir=$(dirname "$1")
mkdir -p "$dir"
tmp="$1.podstrap-tmp.$$"
trap 'rm -f "$tmp"' EXIT
cat > "$tmp"
chmod "$2" "$tmp"
mv -f "$tmp" "$1"
trap - EXIT`

// WriteViaShell replaces path on h by streaming data into a small sh script.
// It is the write path for hosts without direct filesystem access and for
// privileged writes by non-root users.
func WriteViaShell(ctx context.Context, h Host, path string, data []byte, mode uint32, privileged bool) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("write %s: path must be absolute", path)
	}
	_, err := h.Run(ctx, Command{
		Path:       "sh",
		Args:       []string{"-c", writeScript, "sh", path, fmt.Sprintf("%o", mode)},
		Stdin:      bytes.NewReader(data),
		Privileged: privileged,
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ShellLine renders cmd as a single sh command line for hosts that only
// accept command strings. Env entries and the search path are applied with
// env(1) so they survive elevation.
func ShellLine(cmd Command, searchPath string, isRoot bool) string {
	argv := make([]string, 0, len(cmd.Args)+len(cmd.Env)+4)
	if cmd.Privileged && !isRoot {
		argv = append(argv, "sudo", "-n")
	}
	argv = append(argv, "env", "PATH="+searchPath)
	argv = append(argv, cmd.Env...)
	argv = append(argv, cmd.Path)
	argv = append(argv, cmd.Args...)

	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = Quote(a)
	}
	line := strings.Join(quoted, " ")
	if cmd.Dir != "" {
		line = "cd " + Quote(cmd.Dir) + " && " + line
	}
	return line
}
