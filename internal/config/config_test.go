package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}

func TestPathPrefersNearestLocalConfig(t *testing.T) {
	root := t.TempDir()
	home := filepath.Join(root, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)

	projectRoot := filepath.Join(root, "project")
	deep := filepath.Join(projectRoot, "a", "b")
	if err := os.MkdirAll(deep, 0o755); err != nil {
		t.Fatalf("mkdir deep: %v", err)
	}

	parentCfg := filepath.Join(projectRoot, ".ssbsql", "config.yaml")
	nearCfg := filepath.Join(projectRoot, "a", ".ssbsql", "config.yaml")
	for _, p := range []string{parentCfg, nearCfg} {
		if err := Save(p, Default()); err != nil {
			t.Fatalf("save %s: %v", p, err)
		}
	}
	chdir(t, deep)

	got, err := Path()
	if err != nil {
		t.Fatalf("Path() error: %v", err)
	}
	if got != nearCfg {
		t.Fatalf("Path() = %q, want %q", got, nearCfg)
	}
}

func TestPathFallsBackToHomeWhenNoLocalConfig(t *testing.T) {
	root := t.TempDir()
	home := filepath.Join(root, "home")
	t.Setenv("HOME", home)

	wd := filepath.Join(root, "work", "x", "y")
	if err := os.MkdirAll(wd, 0o755); err != nil {
		t.Fatalf("mkdir wd: %v", err)
	}
	chdir(t, wd)

	got, err := Path()
	if err != nil {
		t.Fatalf("Path() error: %v", err)
	}
	want := filepath.Join(home, ".ssbsql", "config.yaml")
	if got != want {
		t.Fatalf("Path() = %q, want %q", got, want)
	}
}

func TestLoadLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("db_path: /tmp/file.db\nchunk_size: 50\nidle_interval: 5s\nformat: compact\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("SSBSQL_CHUNK_SIZE", "75")
	t.Setenv("SSBSQL_LISTEN", "127.0.0.1:9000")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DBPath != "/tmp/file.db" {
		t.Fatalf("db_path = %q", c.DBPath)
	}
	if c.ChunkSize != 75 {
		t.Fatalf("chunk_size = %d, env must win", c.ChunkSize)
	}
	if c.IdleInterval != 5*time.Second {
		t.Fatalf("idle_interval = %s", c.IdleInterval)
	}
	if c.Format != "compact" || c.Listen != "127.0.0.1:9000" {
		t.Fatalf("unexpected config: %+v", c)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("SSBSQL_DB_PATH", "")
	os.Unsetenv("SSBSQL_DB_PATH")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SSBSQL_DB_PATH=/tmp/dotenv.db\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	c, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DBPath != "/tmp/dotenv.db" {
		t.Fatalf("db_path = %q, want value from .env", c.DBPath)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	cases := map[string]string{
		"format":   "format: xml\n",
		"idle":     "idle_interval: 0s\n",
		"rate":     "rate_limit: -1\n",
		"bad yaml": "chunk_size: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("expected error for %q", body)
			}
		})
	}
}
