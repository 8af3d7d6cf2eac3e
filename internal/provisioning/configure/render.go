package configure

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
)

// RegistriesConf is the subset of containers-registries.conf(5) podstrap
// writes when the upstream file cannot be fetched.
type RegistriesConf struct {
	UnqualifiedSearchRegistries []string `toml:"unqualified-search-registries"`
	ShortNameMode               string   `toml:"short-name-mode"`
}

// ContainersConf is the subset of containers.conf(5) podstrap manages.
type ContainersConf struct {
	Containers *ContainersTable `toml:"containers,omitempty"`
	Engine     EngineTable      `toml:"engine"`
	Network    *NetworkTable    `toml:"network,omitempty"`
}

// ContainersTable is the [containers] table.
type ContainersTable struct {
	LogDriver string `toml:"log_driver,omitempty"`
}

// EngineTable is the [engine] table.
type EngineTable struct {
	Runtime           string              `toml:"runtime"`
	EventsLogger      string              `toml:"events_logger,omitempty"`
	CgroupManager     string              `toml:"cgroup_manager,omitempty"`
	ConmonPath        []string            `toml:"conmon_path,omitempty"`
	HelperBinariesDir []string            `toml:"helper_binaries_dir,omitempty"`
	Runtimes          map[string][]string `toml:"runtimes,omitempty"`
}

// NetworkTable is the [network] table.
type NetworkTable struct {
	NetworkBackend string `toml:"network_backend"`
}

const generatedHeader = "# Generated by podstrap. Rerunning podstrap replaces this file.\n\n"

// fallbackRegistries is written when the registry list cannot be fetched.
var fallbackRegistries = RegistriesConf{
	UnqualifiedSearchRegistries: []string{"docker.io", "quay.io"},
	ShortNameMode:               "enforcing",
}

// fallbackPolicy accepts any image, matching the upstream default policy.
const fallbackPolicy = `{
    "default": [
        {
            "type": "insecureAcceptAnything"
        }
    ],
    "transports": {
        "docker-daemon": {
            "": [
                {
                    "type": "insecureAcceptAnything"
                }
            ]
        }
    }
}
`

// encodeTOML renders v with the generated-file header.
func encodeTOML(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(generatedHeader)
	if err := toml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode toml: %w", err)
	}
	return buf.Bytes(), nil
}

// SystemContainersConf renders /etc/containers/containers.conf.
func SystemContainersConf(conmon, crun string, helperDirs []string) ([]byte, error) {
	return encodeTOML(ContainersConf{
		Engine: EngineTable{
			Runtime:           "crun",
			ConmonPath:        []string{conmon},
			HelperBinariesDir: helperDirs,
			Runtimes:          map[string][]string{"crun": {crun}},
		},
		Network: &NetworkTable{NetworkBackend: "netavark"},
	})
}

// UserContainersConf renders the invoking user's containers.conf.
func UserContainersConf() ([]byte, error) {
	return encodeTOML(ContainersConf{
		Containers: &ContainersTable{LogDriver: "k8s-file"},
		Engine: EngineTable{
			Runtime:       "crun",
			EventsLogger:  "file",
			CgroupManager: "cgroupfs",
		},
	})
}

// FallbackRegistries renders the built-in registry list.
func FallbackRegistries() ([]byte, error) {
	return encodeTOML(fallbackRegistries)
}

// validTOML reports whether data parses as TOML.
func validTOML(data []byte) error {
	var v map[string]any
	_, err := toml.Decode(string(data), &v)
	return err
}

// validJSON reports whether data is a JSON object.
func validJSON(data []byte) error {
	var v map[string]any
	return json.Unmarshal(data, &v)
}
