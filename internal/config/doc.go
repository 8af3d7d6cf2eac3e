// Package config builds the pipeline configuration.
//
// [Load] resolves command-line options, PODSTRAP_* environment variables and
// the provisioning manifest exactly once. The manifest carries the externally
// supplied data (target platform, package lists, upstream repositories, build
// steps, probe lists and payload URLs); a default is embedded in the binary
// and an operator-supplied YAML file is merged over it.
//
// The resulting [Config] is a value: stages receive it read-only and nothing
// mutates it after the pipeline starts.
package config
