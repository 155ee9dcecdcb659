package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, "ANAY", p.Name)
	require.Equal(t, 10, p.MemoryPairs)
	require.Equal(t, "notepad.exe", p.Apps["notepad"])
	require.Contains(t, p.Safety.SensitiveTerms, "cvv")

	p, err = Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultPersona, p.Persona)
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Jarvis
memory_pairs: 4
workspace: /tmp/anay
apps:
  Obsidian: obsidian
  notepad: gedit
safety:
  power_actions: [shutdown, reboot]
`), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "Jarvis", p.Name)
	require.Equal(t, 4, p.MemoryPairs)
	require.Equal(t, "/tmp/anay", p.Workspace)
	require.Equal(t, "obsidian", p.Apps["obsidian"])
	require.Equal(t, "gedit", p.Apps["notepad"])
	require.Equal(t, "calc.exe", p.Apps["calculator"])
	require.Equal(t, []string{"shutdown", "reboot"}, p.Safety.PowerActions)
	require.Contains(t, p.Safety.CriticalPaths, "/etc")
	require.Equal(t, DefaultPersona, p.Persona)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("apps: [unclosed"))
	require.Error(t, err)
}
