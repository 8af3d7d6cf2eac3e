package ssh

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"

	"github.com/imamik/podstrap/internal/platform/host"
)

const (
	defaultPort        = 22
	defaultDialTimeout = 10 * time.Second

	// missingFileStatus is the exit status ReadFile's snippet uses for a
	// missing file, distinct from cat's own failures.
	missingFileStatus = 44
)

// Config holds SSH connection configuration.
type Config struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte

	// DialTimeout bounds the TCP connect and handshake.
	// If zero, defaultDialTimeout is used.
	DialTimeout time.Duration

	// HostKeyCallback handles host key verification.
	// If nil, ssh.InsecureIgnoreHostKey() is used.
	HostKeyCallback ssh.HostKeyCallback

	// SearchPath is the PATH remote commands run with.
	SearchPath string

	// Output receives remote stdout and stderr as they arrive.
	Output io.Writer

	// Logger receives connection diagnostics. If unset, they are dropped.
	Logger logr.Logger
}

// Host is a remote machine reached over SSH.
// Connect must be called before any other method.
type Host struct {
	config *Config
	signer ssh.Signer

	mu     sync.Mutex
	client *ssh.Client
	euid   int
}

var _ host.Host = (*Host)(nil)

// NewHost validates cfg and parses the private key. It does not connect.
func NewHost(cfg *Config) (*Host, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Host == "" {
		return nil, fmt.Errorf("config host cannot be empty")
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("config user cannot be empty")
	}
	if len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("config private key cannot be empty")
	}

	// Copy config to avoid mutating caller's struct
	configCopy := *cfg
	if configCopy.Port == 0 {
		configCopy.Port = defaultPort
	}
	if configCopy.DialTimeout == 0 {
		configCopy.DialTimeout = defaultDialTimeout
	}
	if configCopy.HostKeyCallback == nil {
		configCopy.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in verification via Config
	}
	if configCopy.Logger.GetSink() == nil {
		configCopy.Logger = logr.Discard()
	}
	if configCopy.SearchPath == "" {
		configCopy.SearchPath = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	}

	signer, err := ssh.ParsePrivateKey(configCopy.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &Host{config: &configCopy, signer: signer, euid: -1}, nil
}

// ParseTarget splits "user@host[:port]" into its parts.
func ParseTarget(target string) (user, hostname string, port int, err error) {
	at := strings.LastIndex(target, "@")
	if at <= 0 || at == len(target)-1 {
		return "", "", 0, fmt.Errorf("invalid target %q: want user@host[:port]", target)
	}
	user, rest := target[:at], target[at+1:]

	hostname, portStr, splitErr := net.SplitHostPort(rest)
	if splitErr != nil {
		// No port given.
		return user, strings.Trim(rest, "[]"), defaultPort, nil
	}
	port, err = strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", "", 0, fmt.Errorf("invalid port in target %q", target)
	}
	return user, hostname, port, nil
}

// Connect establishes the SSH connection and learns the remote euid.
// There is no retry: an unreachable target fails preflight immediately.
func (h *Host) Connect(ctx context.Context) error {
	if _, err := h.conn(); err == nil {
		return nil
	}

	config := &ssh.ClientConfig{
		User:            h.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(h.signer)},
		HostKeyCallback: h.config.HostKeyCallback,
		Timeout:         h.config.DialTimeout,
	}
	addr := net.JoinHostPort(h.config.Host, strconv.Itoa(h.config.Port))
	log := h.config.Logger.WithValues("addr", addr)

	log.V(1).Info("dialing", "user", h.config.User, "timeout", h.config.DialTimeout)
	dialer := net.Dialer{Timeout: h.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}

	h.mu.Lock()
	h.client = ssh.NewClient(sshConn, chans, reqs)
	h.mu.Unlock()
	log.V(1).Info("handshake complete", "server", string(sshConn.ServerVersion()))

	out, err := h.output(ctx, "id -u")
	if err != nil {
		_ = h.Close()
		return fmt.Errorf("query remote uid: %w", err)
	}
	euid, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		_ = h.Close()
		return fmt.Errorf("unexpected uid %q from %s", strings.TrimSpace(out), addr)
	}
	h.euid = euid
	log.V(1).Info("connected", "euid", euid)
	return nil
}

// Close closes the SSH connection.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Close()
	h.client = nil
	return err
}

// Name implements host.Host.
func (h *Host) Name() string {
	return fmt.Sprintf("%s@%s", h.config.User, h.config.Host)
}

func (h *Host) conn() (*ssh.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil, fmt.Errorf("ssh host %s: not connected", h.Name())
	}
	return h.client, nil
}

// Run implements host.Host.
func (h *Host) Run(ctx context.Context, cmd host.Command) (*host.Result, error) {
	return h.exec(ctx, cmd, host.ShellLine(cmd, h.config.SearchPath, h.euid == 0))
}

// exec runs line in a fresh session, reporting failures against cmd.
func (h *Host) exec(ctx context.Context, cmd host.Command, line string) (*host.Result, error) {
	client, err := h.conn()
	if err != nil {
		return nil, err
	}
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH session on %s: %w", h.config.Host, err)
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	session.Stdin = cmd.Stdin
	session.Stdout = h.tee(&stdout)
	session.Stderr = h.tee(&stderr)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = session.Signal(ssh.SIGTERM)
			_ = session.Close()
		case <-done:
		}
	}()

	start := time.Now()
	err = session.Run(line)
	res := &host.Result{
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

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitStatus()
		return res, host.NewExitError(cmd, res.ExitCode, res.Stdout, res.Stderr)
	}
	res.ExitCode = -1
	return res, fmt.Errorf("%s on %s: %w", cmd, h.config.Host, err)
}

func (h *Host) tee(buf *bytes.Buffer) io.Writer {
	if h.config.Output == nil {
		return buf
	}
	return io.MultiWriter(buf, h.config.Output)
}

// output runs a fixed snippet and returns its stdout.
func (h *Host) output(ctx context.Context, snippet string) (string, error) {
	cmd := host.Command{Path: "sh", Args: []string{"-c", snippet}}
	res, err := h.exec(ctx, cmd, "sh -c "+host.Quote(snippet))
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// snippet runs a shell snippet with positional arguments through Run, so it
// picks up the search path.
func (h *Host) snippet(ctx context.Context, script string, args ...string) (*host.Result, error) {
	return h.Run(ctx, host.Command{Path: "sh", Args: append([]string{"-c", script, "sh"}, args...)})
}

// ReadFile implements host.Host.
func (h *Host) ReadFile(ctx context.Context, path string) ([]byte, error) {
	script := fmt.Sprintf(`[ -e "$1" ] || exit %d; cat -- "$1"`, missingFileStatus)
	res, err := h.snippet(ctx, script, path)
	if err != nil {
		var exitErr *host.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode == missingFileStatus {
			return nil, fmt.Errorf("read %s on %s: %w", path, h.Name(), os.ErrNotExist)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return []byte(res.Stdout), nil
}

// WriteFile implements host.Host.
func (h *Host) WriteFile(ctx context.Context, path string, data []byte, mode os.FileMode, privileged bool) error {
	return host.WriteViaShell(ctx, h, path, data, uint32(mode.Perm()), privileged)
}

// Exists implements host.Host.
func (h *Host) Exists(ctx context.Context, path string) (bool, error) {
	_, err := h.snippet(ctx, `[ -e "$1" ]`, path)
	if err == nil {
		return true, nil
	}
	var exitErr *host.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode == 1 {
		return false, nil
	}
	return false, err
}

// RemoveAll implements host.Host. Trees left partly root-owned by a
// privileged `make install` are removed with sudo.
func (h *Host) RemoveAll(ctx context.Context, path string) error {
	rm := host.Command{Path: "rm", Args: []string{"-rf", "--", path}}
	_, err := h.Run(ctx, rm)
	var exitErr *host.ExitError
	if err == nil || !errors.As(err, &exitErr) || h.euid == 0 {
		return err
	}
	rm.Privileged = true
	if _, err := h.Run(ctx, rm); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// LookPath implements host.Host.
func (h *Host) LookPath(ctx context.Context, name string) (string, error) {
	res, err := h.snippet(ctx, `command -v "$1"`, name)
	if err != nil {
		return "", fmt.Errorf("%s: executable file not found on %s", name, h.Name())
	}
	path := strings.TrimSpace(res.Stdout)
	if !strings.HasPrefix(path, "/") {
		// Shell builtins and aliases are not binaries.
		return "", fmt.Errorf("%s: executable file not found on %s", name, h.Name())
	}
	return path, nil
}

// FreeBytes implements host.Host.
func (h *Host) FreeBytes(ctx context.Context, path string) (uint64, error) {
	script := `p="$1"; while [ ! -e "$p" ]; do p=$(dirname "$p"); done; df -Pk "$p" | tail -n 1`
	res, err := h.snippet(ctx, script, path)
	if err != nil {
		return 0, fmt.Errorf("df %s: %w", path, err)
	}
	return parseDF(res.Stdout)
}

// parseDF extracts available bytes from a `df -Pk` data line.
func parseDF(line string) (uint64, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return 0, fmt.Errorf("unexpected df output %q", strings.TrimSpace(line))
	}
	kb, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected df available column %q", fields[3])
	}
	return kb * 1024, nil
}

// Euid implements host.Host.
func (h *Host) Euid(context.Context) (int, error) {
	if h.euid < 0 {
		return 0, fmt.Errorf("ssh host %s: not connected", h.Name())
	}
	return h.euid, nil
}

// Arch implements host.Host.
func (h *Host) Arch(ctx context.Context) (string, error) {
	out, err := h.output(ctx, "uname -m")
	if err != nil {
		return "", err
	}
	return host.NormalizeArch(out), nil
}

// Username implements host.Host.
func (h *Host) Username(ctx context.Context) (string, error) {
	out, err := h.output(ctx, "id -un")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// HomeDir implements host.Host.
func (h *Host) HomeDir(ctx context.Context) (string, error) {
	out, err := h.output(ctx, `printf %s "$HOME"`)
	if err != nil {
		return "", err
	}
	return out, nil
}

// ConfigHome implements host.Host.
func (h *Host) ConfigHome(ctx context.Context) (string, error) {
	out, err := h.output(ctx, `printf %s "${XDG_CONFIG_HOME:-$HOME/.config}"`)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Dial implements host.Host by opening a direct-tcpip channel.
func (h *Host) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	client, err := h.conn()
	if err != nil {
		return nil, err
	}
	return client.DialContext(ctx, network, addr)
}
