package configure

import (
	"fmt"
	"strings"
)

// Markers delimit the block podstrap owns inside a user's shell profile.
const (
	markerBegin = "# >>> podstrap >>>"
	markerEnd   = "# <<< podstrap <<<"
)

// profileExports is the PATH export shared by the profile.d script and the
// user profile block.
func profileExports(dirs []string) string {
	return fmt.Sprintf("export PATH=\"%s:$PATH\"\n", strings.Join(dirs, ":"))
}

// SystemProfile renders /etc/profile.d/podstrap.sh.
func SystemProfile(dirs []string) []byte {
	return []byte("# Generated by podstrap. Rerunning podstrap replaces this file.\n" + profileExports(dirs))
}

// MergeProfile returns existing with exactly one podstrap block at the end.
// Any earlier block, complete or truncated, is removed first, so applying it
// repeatedly yields the same bytes.
func MergeProfile(existing []byte, dirs []string) []byte {
	kept := stripBlock(string(existing))

	var b strings.Builder
	b.WriteString(kept)
	if kept != "" && !strings.HasSuffix(kept, "\n") {
		b.WriteString("\n")
	}
	if kept != "" && !strings.HasSuffix(kept, "\n\n") {
		b.WriteString("\n")
	}
	b.WriteString(markerBegin + "\n")
	b.WriteString(profileExports(dirs))
	b.WriteString(markerEnd + "\n")
	return []byte(b.String())
}

// stripBlock removes every marker-delimited block and the blank lines that
// separated it from the rest of the file. A begin marker that is never closed
// only loses itself and the PATH export podstrap writes right after it.
func stripBlock(s string) string {
	var out, pending []string
	inBlock := false
	for _, line := range strings.SplitAfter(s, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == markerBegin:
			if inBlock {
				out = append(out, unclosed(pending)...)
			}
			inBlock, pending = true, nil
		case trimmed == markerEnd:
			inBlock, pending = false, nil
		case line == "":
		case inBlock:
			pending = append(pending, line)
		default:
			out = append(out, line)
		}
	}
	if inBlock {
		out = append(out, unclosed(pending)...)
	}
	return strings.TrimRight(strings.Join(out, ""), "\n") + trailingNewline(out)
}

// unclosed returns the lines that followed an unterminated begin marker.
func unclosed(lines []string) []string {
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), "export PATH=") {
		return lines[1:]
	}
	return lines
}

func trailingNewline(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "\n"
}
