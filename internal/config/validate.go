package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/imamik/podstrap/internal/util/version"
)

// ValidArchitectures are the GOARCH names the toolchain archive exists for.
var ValidArchitectures = map[string]bool{
	"amd64":   true,
	"arm64":   true,
	"ppc64le": true,
	"s390x":   true,
	"riscv64": true,
}

// Validate checks the manifest and returns every problem found, joined.
func (m Manifest) Validate() error {
	var errs []error

	errs = append(errs, m.validatePlatform()...)

	if len(m.Probes) == 0 {
		errs = append(errs, fmt.Errorf("probes: at least one endpoint is required"))
	}
	for _, p := range m.Probes {
		if _, _, err := net.SplitHostPort(p); err != nil {
			errs = append(errs, fmt.Errorf("probes: %q is not host:port: %w", p, err))
		}
	}
	if !strings.HasPrefix(m.Prefix, "/") {
		errs = append(errs, fmt.Errorf("prefix must be an absolute path, got %q", m.Prefix))
	}
	if len(m.Packages.Install) == 0 {
		errs = append(errs, fmt.Errorf("packages.install must not be empty"))
	}
	for i, p := range m.Runtime.Probes {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("runtime.probes[%d]: name is required", i))
		}
	}

	errs = append(errs, m.validateToolchain()...)
	errs = append(errs, m.validateComponents()...)
	errs = append(errs, m.validateValidation()...)

	return errors.Join(errs...)
}

func (m Manifest) validatePlatform() []error {
	var errs []error
	if m.Platform.OSID == "" {
		errs = append(errs, fmt.Errorf("platform.os_id is required"))
	}
	if len(m.Platform.OSVersions) == 0 {
		errs = append(errs, fmt.Errorf("platform.os_versions must not be empty"))
	}
	if len(m.Platform.Architectures) == 0 {
		errs = append(errs, fmt.Errorf("platform.architectures must not be empty"))
	}
	for _, arch := range m.Platform.Architectures {
		if !ValidArchitectures[arch] {
			errs = append(errs, fmt.Errorf("platform.architectures: unsupported %q", arch))
		}
	}
	return errs
}

func (m Manifest) validateToolchain() []error {
	var errs []error
	t := m.Toolchain
	if _, err := version.Parse(t.Version); err != nil {
		errs = append(errs, fmt.Errorf("toolchain.version: %w", err))
	}
	if t.URL == "" {
		errs = append(errs, fmt.Errorf("toolchain.url is required"))
	}
	if !strings.HasPrefix(t.InstallDir, "/") {
		errs = append(errs, fmt.Errorf("toolchain.install_dir must be an absolute path, got %q", t.InstallDir))
	}
	for arch, sum := range t.SHA256 {
		if len(sum) != 64 {
			errs = append(errs, fmt.Errorf("toolchain.sha256[%s]: expected 64 hex characters", arch))
		}
	}
	return errs
}

func (m Manifest) validateComponents() []error {
	var errs []error
	seen := map[string]bool{}
	for i, c := range m.Components {
		where := fmt.Sprintf("components[%d]", i)
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		} else {
			where = "components." + c.Name
			if seen[c.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate component", where))
			}
			seen[c.Name] = true
		}
		if c.Repo == "" {
			errs = append(errs, fmt.Errorf("%s: repo is required", where))
		}
		if c.Ref == "" {
			errs = append(errs, fmt.Errorf("%s: ref is required", where))
		}
		if c.Binary == "" {
			errs = append(errs, fmt.Errorf("%s: binary is required", where))
		}
		if c.Version != "" {
			if _, err := version.Parse(c.Version); err != nil {
				errs = append(errs, fmt.Errorf("%s: version: %w", where, err))
			}
		}
		if len(c.Install) == 0 {
			errs = append(errs, fmt.Errorf("%s: install steps are required", where))
		}
		for _, steps := range [][][]string{c.Bootstrap, c.Configure, c.Build, c.Install} {
			for _, step := range steps {
				if len(step) == 0 {
					errs = append(errs, fmt.Errorf("%s: empty build step", where))
				}
			}
		}
	}
	return errs
}

func (m Manifest) validateValidation() []error {
	var errs []error
	v := m.Validation
	if v.Engine == "" {
		errs = append(errs, fmt.Errorf("validation.engine is required"))
	} else if _, ok := m.Component(v.Engine); !ok {
		errs = append(errs, fmt.Errorf("validation.engine %q is not a component", v.Engine))
	}
	for i, p := range v.Components {
		if p.Name == "" || p.Binary == "" {
			errs = append(errs, fmt.Errorf("validation.components[%d]: name and binary are required", i))
		}
	}
	for i, s := range v.SmokeTests {
		if len(s.Command) == 0 {
			errs = append(errs, fmt.Errorf("validation.smoke_tests[%d]: command is required", i))
		}
	}
	return errs
}
