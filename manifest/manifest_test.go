package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "kestrel.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
}

func TestLoadFullManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
version = "0.1.0"

[image]
path = "build/demo.kimg"

[runtime]
memory-size = 65536
verbosity = 2

[profile]
enabled = true
database = "runs.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Project.Name != "demo" || m.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", m.Project)
	}
	if m.Runtime.MemorySize != 65536 || m.Runtime.Verbosity != 2 {
		t.Errorf("runtime = %+v", m.Runtime)
	}
	if got, want := m.ImagePath(), filepath.Join(dir, "build/demo.kimg"); got != want {
		t.Errorf("ImagePath = %q, want %q", got, want)
	}
	if got, want := m.ProfileDBPath(), filepath.Join(dir, "runs.db"); got != want {
		t.Errorf("ProfileDBPath = %q, want %q", got, want)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "bare"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Image.Path != "program.kimg" {
		t.Errorf("default image path = %q, want program.kimg", m.Image.Path)
	}
	if m.ProfileDBPath() != "" {
		t.Errorf("profiling disabled should yield an empty db path")
	}
}

func TestLoadProfileDatabaseDefault(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[profile]
enabled = true
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got, want := m.ProfileDBPath(), filepath.Join(dir, "profile.db"); got != want {
		t.Errorf("ProfileDBPath = %q, want %q", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Errorf("Load of an empty directory should fail")
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project\nname =")
	if _, err := Load(dir); err == nil {
		t.Errorf("Load should reject malformed TOML")
	}
}

func TestFindAndLoadWalksUp(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[project]
name = "walker"
`)
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad should locate the manifest above the start directory")
	}
	if m.Project.Name != "walker" {
		t.Errorf("project name = %q, want walker", m.Project.Name)
	}
	if m.Dir != root {
		t.Errorf("Dir = %q, want %q", m.Dir, root)
	}
}

func TestFindAndLoadStopsAtNearest(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `
[project]
name = "outer"
`)
	inner := filepath.Join(root, "sub")
	if err := os.Mkdir(inner, 0755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	writeManifest(t, inner, `
[project]
name = "inner"
`)

	m, err := FindAndLoad(inner)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m.Project.Name != "inner" {
		t.Errorf("nearest manifest should win, got %q", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Errorf("no manifest anywhere should yield nil, got %+v", m)
	}
}

func TestAbsolutePathsPassThrough(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[image]
path = "/opt/images/app.kimg"

[profile]
enabled = true
database = "/var/lib/kestrel/profile.db"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.ImagePath() != "/opt/images/app.kimg" {
		t.Errorf("absolute image path should not be rejoined: %q", m.ImagePath())
	}
	if m.ProfileDBPath() != "/var/lib/kestrel/profile.db" {
		t.Errorf("absolute db path should not be rejoined: %q", m.ProfileDBPath())
	}
}
