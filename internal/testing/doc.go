// Package testing provides fakes and builders shared by the stage tests.
//
//   - FakeHost: in-memory Host with scripted command responses and a record
//     of every command run
//   - RecordingLogger: Logger that keeps every entry for assertions
//   - MockPackageManager: testify mock of packages.Manager
//   - ConfigBuilder: fluent builder for config.Config values
//
// Usage:
//
//	h := testing.NewFakeHost()
//	h.On("podman --version").Return("podman version 5.2.5\n")
//	h.On("apt-get install").Fail(100, "E: Unable to locate package")
package testing
