package sideload

import (
	"io/fs"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// DefaultManifest is the bundle entry describing the module.
const DefaultManifest = "module.yaml"

type (
	//Manifest describes the optional module as shipped in the asset bundle:
	//which payload file to cache, under what name and version, and which
	//symbol to drive once loaded.
	Manifest struct {
		//Name keys cached payload files, so it must be stable across builds.
		Name string `yaml:"name"`
		//Version identifies the build; bumping it invalidates older caches.
		Version int `yaml:"version"`
		//Payload is the bundle entry holding the module payload. Its
		//extension selects the payload kind (.js, .o, .a).
		Payload string `yaml:"payload"`
		//Package is the package path of an object payload, defaulting to main.
		Package string `yaml:"package,omitempty"`
		//Checksum is an optional xxh64 hex digest of the payload.
		Checksum string `yaml:"checksum,omitempty"`
		Entry    Entry  `yaml:"entry"`
	}

	//Entry names the module's primary symbol plus the class/method pair the
	//reflective fallback drives when host-side resolution stays blocked.
	Entry struct {
		Symbol string `yaml:"symbol"`
		Class  string `yaml:"class"`
		Method string `yaml:"method"`
	}
)

// ReadManifest loads and validates a module manifest from the asset bundle.
func ReadManifest(assets fs.FS, name string) (*Manifest, error) {
	if name == "" {
		name = DefaultManifest
	}
	b, err := fs.ReadFile(assets, name)
	if err != nil {
		return nil, zerr.Wrap(zerr.With(ErrStorage, "manifest", name), err.Error())
	}
	m := new(Manifest)
	if err = yaml.Unmarshal(b, m); err != nil {
		return nil, zerr.Wrap(zerr.With(ErrPayload, "manifest", name), err.Error())
	}
	if err = m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks the manifest names everything the loader needs.
func (m *Manifest) Validate() error {
	switch {
	case m.Name == "":
		return zerr.With(ErrPayload, "manifest", "missing name")
	case m.Payload == "":
		return zerr.With(ErrPayload, "manifest", "missing payload")
	case m.Entry.Symbol == "":
		return zerr.With(ErrPayload, "manifest", "missing entry symbol")
	case m.Entry.Class == "" || m.Entry.Method == "":
		return zerr.With(ErrPayload, "manifest", "missing entry class or method")
	default:
		return nil
	}
}
