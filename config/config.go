// Package config loads the runtime's TOML configuration file: a single
// runtime.toml describing the host's core-library search path, target,
// and the tables forwarded to the external collaborators.
package config

import (
	"os"

	"github.com/pelletier/go-toml"

	"corejit/report"
)

// GCConfig is forwarded verbatim to the external GC collaborator; the
// runtime does not interpret these values itself.
type GCConfig struct {
	HeapInitialBytes uint64 `toml:"heap_initial_bytes"`
	SafepointEvery   int    `toml:"safepoint_every_backedge"`
}

// ThreadingConfig is forwarded verbatim to the external threading
// collaborator.
type ThreadingConfig struct {
	MaxThreads int `toml:"max_threads"`
}

// Config is the runtime's resolved configuration.
type Config struct {
	// CoreLibPath is the directory searched for the runtime's core library
	// assembly (the one providing System.Object, System.String, etc.) and
	// any assembly referenced by name but not found alongside the root
	// assembly.
	CoreLibPath string `toml:"core_lib_path"`

	// TargetArch selects the native target the JIT lowers MIR for.
	TargetArch string `toml:"target_arch"`

	// JITVerbose turns on per-method MIR dumps during compilation.
	JITVerbose bool `toml:"jit_verbose"`

	GC        GCConfig        `toml:"gc"`
	Threading ThreadingConfig `toml:"threading"`
}

// Default returns the built-in configuration used when no config file is
// present. The runtime must always be able to start without one.
func Default() *Config {
	return &Config{
		CoreLibPath: ".",
		TargetArch:  "amd64",
		JITVerbose:  false,
		GC: GCConfig{
			HeapInitialBytes: 4 << 20,
			SafepointEvery:   1,
		},
		Threading: ThreadingConfig{
			MaxThreads: 0, // 0 => host decides
		},
	}
}

// Load reads a runtime.toml file at path, falling back to Default() if the
// file does not exist. A present-but-malformed file is a fatal error: an
// operator asked for specific configuration and it could not be honored.
func Load(path string) *Config {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg
		}

		report.ReportFatal("failed to read runtime config %s: %s", path, err)
		return cfg
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		report.ReportFatal("malformed runtime config %s: %s", path, err)
	}

	return cfg
}
