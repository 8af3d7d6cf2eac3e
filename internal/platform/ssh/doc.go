// Package ssh provisions a remote machine over SSH.
//
// [Host] implements host.Host on top of a single golang.org/x/crypto/ssh
// connection: commands are rendered to sh command lines, file operations are
// small shell snippets, and Dial tunnels through the connection so network
// probes see the remote machine's view of the world.
//
// Security: host key verification is disabled unless Config.HostKeyCallback is
// set. Pass a known_hosts based callback for machines you do not control.
package ssh
