package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("base_url: https://philo.example.org\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, ".pv", "config.yaml")
	writeConfig(t, want)

	sub := filepath.Join(root, "src", "pkg")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	got, ok := findProjectConfig(sub)
	if !ok {
		t.Fatal("expected to find project config")
	}
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFindProjectConfig_IgnoresDirectory(t *testing.T) {
	root := t.TempDir()
	// config.yaml as a directory is not a config file
	if err := os.MkdirAll(filepath.Join(root, ".pv", "config.yaml"), 0o755); err != nil {
		t.Fatal(err)
	}
	if p, ok := findProjectConfig(root); ok && p == filepath.Join(root, ".pv", "config.yaml") {
		t.Errorf("directory should not count as a config file")
	}
}

func TestDiscover_ExplicitWins(t *testing.T) {
	dir := t.TempDir()
	explicit := filepath.Join(dir, "custom.yaml")
	writeConfig(t, explicit)
	t.Setenv("PV_CONFIG", filepath.Join(dir, "env.yaml"))

	got, ok := Discover(explicit)
	if got != explicit || !ok {
		t.Errorf("Discover(explicit) = %q, %v", got, ok)
	}
}

func TestDiscover_Env(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "env.yaml")
	t.Setenv("PV_CONFIG", envPath)

	got, ok := Discover("")
	if got != envPath {
		t.Errorf("expected %q, got %q", envPath, got)
	}
	if ok {
		t.Error("expected ok=false for a missing file")
	}

	writeConfig(t, envPath)
	if _, ok := Discover(""); !ok {
		t.Error("expected ok=true once the file exists")
	}
}

func TestDiscover_FallsBackToUserConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv("HOME", xdg)
	t.Setenv("PV_CONFIG", "")

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	empty := t.TempDir()
	if err := os.Chdir(empty); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	got, _ := Discover("")
	if got != UserConfigPath() {
		t.Errorf("expected user config path %q, got %q", UserConfigPath(), got)
	}
}
