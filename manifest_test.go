package sideload

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

const manifestYAML = `name: sdkmod
version: 42
payload: sdkmod.o
package: sdk
checksum: "9a3fc1d2e4b5a607"
entry:
  symbol: sdk.Setup
  class: sdk.Agent
  method: Setup
`

func TestReadManifest(t *testing.T) {
	assets := fstest.MapFS{
		"module.yaml": &fstest.MapFile{Data: []byte(manifestYAML)},
	}
	m, err := ReadManifest(assets, "")
	require.NoError(t, err)
	require.Equal(t, "sdkmod", m.Name)
	require.Equal(t, 42, m.Version)
	require.Equal(t, "sdkmod.o", m.Payload)
	require.Equal(t, "sdk", m.Package)
	require.Equal(t, "9a3fc1d2e4b5a607", m.Checksum)
	require.Equal(t, Entry{Symbol: "sdk.Setup", Class: "sdk.Agent", Method: "Setup"}, m.Entry)
}

func TestReadManifestMissing(t *testing.T) {
	_, err := ReadManifest(fstest.MapFS{}, "")
	require.ErrorIs(t, err, ErrStorage)
}

func TestReadManifestMalformed(t *testing.T) {
	assets := fstest.MapFS{
		"module.yaml": &fstest.MapFile{Data: []byte("::: not yaml")},
	}
	_, err := ReadManifest(assets, "")
	require.ErrorIs(t, err, ErrPayload)
}

func TestManifestValidate(t *testing.T) {
	base := func() Manifest {
		return Manifest{
			Name:    "sdkmod",
			Payload: "sdkmod.js",
			Entry:   Entry{Symbol: "sdk.Setup", Class: "sdk.Agent", Method: "Setup"},
		}
	}
	cases := []struct {
		name   string
		mutate func(*Manifest)
	}{
		{"missing name", func(m *Manifest) { m.Name = "" }},
		{"missing payload", func(m *Manifest) { m.Payload = "" }},
		{"missing entry symbol", func(m *Manifest) { m.Entry.Symbol = "" }},
		{"missing entry class", func(m *Manifest) { m.Entry.Class = "" }},
		{"missing entry method", func(m *Manifest) { m.Entry.Method = "" }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := base()
			require.NoError(t, m.Validate())
			c.mutate(&m)
			require.ErrorIs(t, m.Validate(), ErrPayload)
		})
	}
}
