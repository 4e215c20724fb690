package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "armature.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg != Default() {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}
}

func TestLoadOverlaysOnDefaults(t *testing.T) {
	path := writeConfig(t, `
history:
  graph_depth: 5
material:
  default_density: 1000
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.History.GraphDepth != 5 {
		t.Errorf("graph depth = %d, want 5", cfg.History.GraphDepth)
	}
	// Unset fields keep their defaults.
	if cfg.History.SceneDepth != Default().History.SceneDepth {
		t.Errorf("scene depth = %d, want default", cfg.History.SceneDepth)
	}
	if cfg.Mesh.Cells != Default().Mesh.Cells {
		t.Errorf("mesh cells = %d, want default", cfg.Mesh.Cells)
	}
	if d := cfg.DensityPtr(); d == nil || *d != 1000 {
		t.Errorf("density ptr = %v, want 1000", d)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	for name, body := range map[string]string{
		"malformed yaml": "history: [",
		"zero depth":     "history: {scene_depth: 0}",
		"bad epsilon":    "epsilons: {translation: -1}",
		"coarse mesh":    "mesh: {cells: 2}",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Errorf("config %q should be rejected", body)
			}
		})
	}
}

func TestDensityPtrUnset(t *testing.T) {
	if d := Default().DensityPtr(); d != nil {
		t.Errorf("default density = %v, want nil", d)
	}
}
