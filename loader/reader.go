package loader

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"

	"corejit/report"
)

// Reader is the external metadata-reader boundary: the PE/portable-
// executable byte parser that turns an assembly file into decoded table
// rows. The core never parses PE bytes itself; a host links a concrete
// reader in and installs it here.
type Reader interface {
	Read(path string) (*RawAssembly, *report.Diagnostic)
}

// Manifest is the sidecar TOML an assembly may ship with, naming the
// assemblies it must have loaded first. It mirrors the AssemblyRef table
// for hosts that want load order without parsing metadata up front.
type Manifest struct {
	Module struct {
		Name       string   `toml:"name"`
		References []string `toml:"references"`
	} `toml:"module"`
}

// ReadManifest loads the sidecar manifest next to an assembly path, if
// present: App.dll looks for App.toml. A missing manifest is not an
// error; a malformed one is.
func ReadManifest(assemblyPath string) (*Manifest, *report.Diagnostic) {
	base := assemblyPath[:len(assemblyPath)-len(filepath.Ext(assemblyPath))]
	data, err := os.ReadFile(base + ".toml")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, report.New(report.OutOfResources, assemblyPath, 0,
			"failed to read assembly manifest: %s", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, report.BadFormatf(assemblyPath, "malformed assembly manifest: %s", err)
	}

	return &m, nil
}
