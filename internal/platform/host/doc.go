// Package host abstracts the machine being provisioned.
//
// Every stage talks to the target through [Host]: running commands (with or
// without elevated privileges), reading and atomically replacing files,
// resolving binaries on the provisioning search path, and probing disk space,
// architecture and network reachability. [Local] implements it for the
// machine podstrap runs on; the ssh package implements it for a remote
// machine.
//
// Privileged commands are wrapped as
//
//	sudo env PATH=<search path> <command> <args...>
//
// when the caller is not root, because sudo resets PATH to secure_path and
// freshly installed toolchain binaries would otherwise vanish mid-build.
package host
