package host

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"
)

// Host is the machine being provisioned.
type Host interface {
	// Name returns a human-readable identifier ("localhost", "user@host").
	Name() string

	// Run executes a command and waits for it. A non-zero exit status is
	// reported as *ExitError; the Result is returned in both cases.
	Run(ctx context.Context, cmd Command) (*Result, error)

	// ReadFile returns the content of path. Missing files yield an error
	// satisfying errors.Is(err, os.ErrNotExist).
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// WriteFile replaces path with data atomically, creating parent
	// directories. Privileged writes go through sudo when not root.
	WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode, privileged bool) error

	// Exists reports whether path exists.
	Exists(ctx context.Context, path string) (bool, error)

	// RemoveAll removes path recursively. A missing path is not an error.
	RemoveAll(ctx context.Context, path string) error

	// LookPath resolves an executable name against the host search path.
	LookPath(ctx context.Context, name string) (string, error)

	// FreeBytes returns the space available to unprivileged users on the
	// volume holding path, or its nearest existing ancestor.
	FreeBytes(ctx context.Context, path string) (uint64, error)

	// Euid returns the effective user ID commands run under.
	Euid(ctx context.Context) (int, error)

	// Arch returns the CPU architecture in GOARCH notation.
	Arch(ctx context.Context) (string, error)

	// Username returns the invoking (not elevated) user name.
	Username(ctx context.Context) (string, error)

	// ConfigHome returns the invoking user's configuration directory.
	ConfigHome(ctx context.Context) (string, error)

	// HomeDir returns the invoking user's home directory.
	HomeDir(ctx context.Context) (string, error)

	// Dial opens a network connection as seen from the host.
	Dial(ctx context.Context, network, addr string) (net.Conn, error)
}

// Command describes a process to run on a host.
type Command struct {
	// Path is the executable; resolved against the host search path.
	Path string
	// Args are passed verbatim, never through a shell.
	Args []string
	// Dir is the working directory; empty means the host default.
	Dir string
	// Env holds extra KEY=VALUE entries layered over the search path.
	Env []string
	// Stdin is fed to the process when non-nil.
	Stdin io.Reader
	// Privileged runs the command as root.
	Privileged bool
	// Interactive attaches the operator's terminal (for password prompts).
	Interactive bool
}

// String renders the command the way an operator would type it.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+2)
	if c.Privileged {
		parts = append(parts, "sudo")
	}
	parts = append(parts, Quote(c.Path))
	for _, a := range c.Args {
		parts = append(parts, Quote(a))
	}
	return strings.Join(parts, " ")
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Output   string // tail of stderr, or stdout when stderr is empty
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.ExitCode, e.Output)
}

// outputTailLines bounds how much command output ends up in error messages;
// the full output is always in the execution log.
const outputTailLines = 5

// NewExitError builds an ExitError for cmd, keeping only the output tail.
func NewExitError(cmd Command, code int, stdout, stderr string) *ExitError {
	out := stderr
	if strings.TrimSpace(out) == "" {
		out = stdout
	}
	return &ExitError{
		Command:  cmd.String(),
		ExitCode: code,
		Output:   tail(out, outputTailLines),
	}
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// NormalizeArch maps `uname -m` output to GOARCH names.
func NormalizeArch(machine string) string {
	switch m := strings.TrimSpace(machine); m {
	case "x86_64", "amd64":
		return "amd64"
	case "aarch64", "arm64":
		return "arm64"
	case "armv7l", "armv6l":
		return "arm"
	case "ppc64le":
		return "ppc64le"
	case "s390x":
		return "s390x"
	case "riscv64":
		return "riscv64"
	default:
		return m
	}
}
