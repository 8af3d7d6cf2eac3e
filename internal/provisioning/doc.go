// Package provisioning runs the staged install pipeline.
//
// # Subpackages
//
//   - preflight/: environment checks that run before any mutation
//   - dependencies/: distribution package removal and installation
//   - toolchain/: Go distribution archive install
//   - source/: clone, build and install of one component from source
//   - configure/: configuration files, subordinate ID grant, service reload
//   - validate/: version probes, smoke tests and already-installed detection
//   - cleanup/: best-effort removal of build artifacts
//
// This root package holds what every stage shares: the [Stage] interface,
// the per-run [Context], the [Report] of warnings and detected versions,
// the error taxonomy and the fail-fast [Pipeline].
package provisioning
