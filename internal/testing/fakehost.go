package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/imamik/podstrap/internal/platform/host"
)

// FakeFile is a file stored by FakeHost.
type FakeFile struct {
	Data       []byte
	Mode       os.FileMode
	Privileged bool
}

// Rule scripts the response to every command whose line starts with Prefix.
type Rule struct {
	Prefix string
	handle func(cmd host.Command) (*host.Result, error)
}

// Return makes matching commands succeed with stdout.
func (r *Rule) Return(stdout string) *Rule {
	r.handle = func(host.Command) (*host.Result, error) { return &host.Result{Stdout: stdout}, nil }
	return r
}

// Fail makes matching commands exit with code and stderr.
func (r *Rule) Fail(code int, stderr string) *Rule {
	r.handle = func(cmd host.Command) (*host.Result, error) {
		return &host.Result{Stderr: stderr, ExitCode: code}, host.NewExitError(cmd, code, "", stderr)
	}
	return r
}

// Do runs fn for matching commands; fn may mutate the host (for example to
// simulate an install placing a binary).
func (r *Rule) Do(fn func(cmd host.Command) (*host.Result, error)) *Rule {
	r.handle = fn
	return r
}

// FakeHost is an in-memory host.Host. Commands without a matching rule
// succeed with empty output.
type FakeHost struct {
	mu sync.Mutex

	HostName     string
	Files        map[string]FakeFile
	Dirs         map[string]bool
	Binaries     map[string]string // name -> resolved path
	FreeSpace    uint64
	EUID         int
	Architecture string
	User         string
	Home         string
	ConfigDir    string

	// Dialer serves Dial; nil refuses every connection.
	Dialer func(ctx context.Context, network, addr string) (net.Conn, error)

	rules    []*Rule
	commands []host.Command
	dials    []string
	removed  []string
	writes   []string
}

var _ host.Host = (*FakeHost)(nil)

// NewFakeHost returns an amd64 host with plenty of disk, running as a
// regular user.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		HostName:     "fake",
		Files:        map[string]FakeFile{},
		Dirs:         map[string]bool{},
		Binaries:     map[string]string{},
		FreeSpace:    100 << 30,
		EUID:         1000,
		Architecture: "amd64",
		User:         "dev",
		Home:         "/home/dev",
		ConfigDir:    "/home/dev/.config",
	}
}

// Line renders cmd for rule matching: path and args joined by spaces,
// without elevation.
func Line(cmd host.Command) string {
	return strings.TrimSpace(cmd.Path + " " + strings.Join(cmd.Args, " "))
}

// On registers a rule. Later rules take precedence over earlier ones.
func (h *FakeHost) On(prefix string) *Rule {
	h.mu.Lock()
	defer h.mu.Unlock()
	r := &Rule{Prefix: prefix}
	r.Return("")
	h.rules = append(h.rules, r)
	return r
}

// Install makes name resolvable at dir/name.
func (h *FakeHost) Install(name, dir string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Binaries[name] = path.Join(dir, name)
}

// Uninstall removes name from the search path.
func (h *FakeHost) Uninstall(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.Binaries, name)
}

// Commands returns every command run so far.
func (h *FakeHost) Commands() []host.Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]host.Command(nil), h.commands...)
}

// Lines returns Line for every command run so far.
func (h *FakeHost) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.commands))
	for i, c := range h.commands {
		out[i] = Line(c)
	}
	return out
}

// Ran reports how many commands started with prefix.
func (h *FakeHost) Ran(prefix string) int {
	n := 0
	for _, l := range h.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

// Removed returns every path passed to RemoveAll.
func (h *FakeHost) Removed() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.removed...)
}

// Writes returns every path passed to WriteFile, in order.
func (h *FakeHost) Writes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.writes...)
}

// Dials returns every address passed to Dial.
func (h *FakeHost) Dials() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.dials...)
}

// File returns the content at p, or nil.
func (h *FakeHost) File(p string) []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.Files[p]
	if !ok {
		return nil
	}
	return f.Data
}

// Paths returns every stored file path, sorted.
func (h *FakeHost) Paths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.Files))
	for p := range h.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Name implements host.Host.
func (h *FakeHost) Name() string { return h.HostName }

// Run implements host.Host.
func (h *FakeHost) Run(ctx context.Context, cmd host.Command) (*host.Result, error) {
	if err := ctx.Err(); err != nil {
		return &host.Result{ExitCode: -1}, fmt.Errorf("%s: %w", cmd, err)
	}
	if cmd.Stdin != nil {
		// Drain so callers streaming data observe a completed write.
		_, _ = io.Copy(io.Discard, cmd.Stdin)
	}

	h.mu.Lock()
	h.commands = append(h.commands, cmd)
	line := Line(cmd)
	var match *Rule
	for i := len(h.rules) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, h.rules[i].Prefix) {
			match = h.rules[i]
			break
		}
	}
	h.mu.Unlock()

	if match == nil {
		return &host.Result{}, nil
	}
	return match.handle(cmd)
}

// ReadFile implements host.Host.
func (h *FakeHost) ReadFile(_ context.Context, p string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.Files[p]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", p, os.ErrNotExist)
	}
	return append([]byte(nil), f.Data...), nil
}

// WriteFile implements host.Host as a full replace.
func (h *FakeHost) WriteFile(_ context.Context, p string, data []byte, mode os.FileMode, privileged bool) error {
	if !path.IsAbs(p) {
		return fmt.Errorf("write %s: path must be absolute", p)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Files[p] = FakeFile{Data: append([]byte(nil), data...), Mode: mode, Privileged: privileged}
	h.writes = append(h.writes, p)
	for dir := path.Dir(p); dir != "/"; dir = path.Dir(dir) {
		h.Dirs[dir] = true
	}
	return nil
}

// Exists implements host.Host.
func (h *FakeHost) Exists(_ context.Context, p string) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.Files[p]; ok || h.Dirs[p] {
		return true, nil
	}
	for _, bin := range h.Binaries {
		if bin == p {
			return true, nil
		}
	}
	return false, nil
}

// RemoveAll implements host.Host.
func (h *FakeHost) RemoveAll(_ context.Context, p string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, p)
	prefix := strings.TrimRight(p, "/") + "/"
	for f := range h.Files {
		if f == p || strings.HasPrefix(f, prefix) {
			delete(h.Files, f)
		}
	}
	for d := range h.Dirs {
		if d == p || strings.HasPrefix(d, prefix) {
			delete(h.Dirs, d)
		}
	}
	return nil
}

// LookPath implements host.Host.
func (h *FakeHost) LookPath(_ context.Context, name string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.Binaries[name]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%s: %w", name, exec.ErrNotFound)
}

// FreeBytes implements host.Host.
func (h *FakeHost) FreeBytes(context.Context, string) (uint64, error) { return h.FreeSpace, nil }

// Euid implements host.Host.
func (h *FakeHost) Euid(context.Context) (int, error) { return h.EUID, nil }

// Arch implements host.Host.
func (h *FakeHost) Arch(context.Context) (string, error) { return h.Architecture, nil }

// Username implements host.Host.
func (h *FakeHost) Username(context.Context) (string, error) { return h.User, nil }

// HomeDir implements host.Host.
func (h *FakeHost) HomeDir(context.Context) (string, error) { return h.Home, nil }

// ConfigHome implements host.Host.
func (h *FakeHost) ConfigHome(context.Context) (string, error) { return h.ConfigDir, nil }

// Dial implements host.Host.
func (h *FakeHost) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	h.mu.Lock()
	h.dials = append(h.dials, addr)
	dialer := h.Dialer
	h.mu.Unlock()
	if dialer == nil {
		return nil, &net.OpError{Op: "dial", Net: network, Err: errors.New("connection refused")}
	}
	return dialer(ctx, network, addr)
}
