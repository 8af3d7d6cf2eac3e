package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"golang.org/x/sys/unix"
)

// LocalOptions configures a Local host.
type LocalOptions struct {
	// SearchPath is the PATH every command runs with, elevated or not.
	SearchPath string

	// Output receives command stdout and stderr as they are produced.
	// Nil discards the stream; the captured Result is unaffected.
	Output io.Writer

	// DialTimeout bounds Dial when the context carries no deadline.
	DialTimeout time.Duration
}

// Local is the machine podstrap itself runs on.
type Local struct {
	searchPath string
	output     io.Writer
	euid       int
	dialer     net.Dialer
}

var _ Host = (*Local)(nil)

// NewLocal creates a Local host.
func NewLocal(opts LocalOptions) *Local {
	searchPath := opts.SearchPath
	if searchPath == "" {
		searchPath = os.Getenv("PATH")
	}
	timeout := opts.DialTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Local{
		searchPath: searchPath,
		output:     opts.Output,
		euid:       unix.Geteuid(),
		dialer:     net.Dialer{Timeout: timeout},
	}
}

// Name implements Host.
func (l *Local) Name() string { return "localhost" }

// Run implements Host.
func (l *Local) Run(ctx context.Context, cmd Command) (*Result, error) {
	argv := append([]string{cmd.Path}, cmd.Args...)
	if cmd.Privileged {
		argv = Elevate(argv, l.searchPath, cmd.Env, l.euid == 0)
	}

	bin := argv[0]
	if !strings.Contains(bin, "/") {
		if resolved, err := l.lookPath(bin); err == nil {
			bin = resolved
		}
	}

	// #nosec G204 - commands come from the manifest and stage code, not from remote input
	c := exec.CommandContext(ctx, bin, argv[1:]...)
	c.Dir = cmd.Dir
	c.Env = append(withPath(os.Environ(), l.searchPath), cmd.Env...)

	var stdout, stderr bytes.Buffer
	if cmd.Interactive {
		c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stderr, os.Stderr
	} else {
		c.Stdin = cmd.Stdin
		c.Stdout = l.tee(&stdout)
		c.Stderr = l.tee(&stderr)
	}

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err == nil {
		return res, nil
	}

	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", cmd, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, NewExitError(cmd, res.ExitCode, res.Stdout, res.Stderr)
	}
	res.ExitCode = -1
	return res, fmt.Errorf("%s: %w", cmd, err)
}

func (l *Local) tee(buf *bytes.Buffer) io.Writer {
	if l.output == nil {
		return buf
	}
	return io.MultiWriter(buf, l.output)
}

// withPath returns env with PATH replaced by searchPath.
func withPath(env []string, searchPath string) []string {
	out := make([]string, 0, len(env)+1)
	for _, kv := range env {
		if !strings.HasPrefix(kv, "PATH=") {
			out = append(out, kv)
		}
	}
	return append(out, "PATH="+searchPath)
}

// ReadFile implements Host.
func (l *Local) ReadFile(_ context.Context, path string) ([]byte, error) {
	// #nosec G304 - paths are fixed configuration locations
	return os.ReadFile(path)
}

// WriteFile implements Host.
func (l *Local) WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode, privileged bool) error {
	if privileged && l.euid != 0 {
		return WriteViaShell(ctx, l, path, data, uint32(mode.Perm()), true)
	}
	return WriteAtomic(path, data, mode)
}

// WriteAtomic writes data to a temp file in the same directory and renames it
// over path, so readers never observe a partial file.
func WriteAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".podstrap-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(mode.Perm()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpName, path, err)
	}
	tmpName = ""
	return nil
}

// Exists implements Host.
func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// RemoveAll implements Host. Trees left partly root-owned by a privileged
// `make install` are removed with sudo.
func (l *Local) RemoveAll(ctx context.Context, path string) error {
	err := os.RemoveAll(path)
	if err == nil || !errors.Is(err, os.ErrPermission) || l.euid == 0 {
		return err
	}
	if _, err := l.Run(ctx, Command{Path: "rm", Args: []string{"-rf", "--", path}, Privileged: true}); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// LookPath implements Host.
func (l *Local) LookPath(_ context.Context, name string) (string, error) {
	return l.lookPath(name)
}

func (l *Local) lookPath(name string) (string, error) {
	if strings.Contains(name, "/") {
		if isExecutable(name) {
			return name, nil
		}
		return "", fmt.Errorf("%s: %w", name, exec.ErrNotFound)
	}
	for _, dir := range filepath.SplitList(l.searchPath) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, name)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, exec.ErrNotFound)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

// FreeBytes implements Host.
func (l *Local) FreeBytes(_ context.Context, path string) (uint64, error) {
	p := filepath.Clean(path)
	for {
		if _, err := os.Stat(p); err == nil {
			break
		}
		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}

	var st unix.Statfs_t
	if err := unix.Statfs(p, &st); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", p, err)
	}
	return st.Bavail * uint64(st.Bsize), nil //nolint:gosec // Bsize is positive
}

// Euid implements Host.
func (l *Local) Euid(context.Context) (int, error) { return l.euid, nil }

// Arch implements Host.
func (l *Local) Arch(context.Context) (string, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}
	return NormalizeArch(unix.ByteSliceToString(u.Machine[:])), nil
}

// sudoUser returns the account that invoked sudo, if podstrap runs under it.
func (l *Local) sudoUser() (*user.User, bool) {
	name := os.Getenv("SUDO_USER")
	if l.euid != 0 || name == "" || name == "root" {
		return nil, false
	}
	u, err := user.Lookup(name)
	if err != nil {
		return nil, false
	}
	return u, true
}

// Username implements Host.
func (l *Local) Username(context.Context) (string, error) {
	if u, ok := l.sudoUser(); ok {
		return u.Username, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("current user: %w", err)
	}
	return u.Username, nil
}

// HomeDir implements Host.
func (l *Local) HomeDir(context.Context) (string, error) {
	if u, ok := l.sudoUser(); ok {
		return u.HomeDir, nil
	}
	return xdg.Home, nil
}

// ConfigHome implements Host.
func (l *Local) ConfigHome(context.Context) (string, error) {
	if u, ok := l.sudoUser(); ok {
		return filepath.Join(u.HomeDir, ".config"), nil
	}
	return xdg.ConfigHome, nil
}

// Dial implements Host.
func (l *Local) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	return l.dialer.DialContext(ctx, network, addr)
}
