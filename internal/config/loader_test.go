package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "addr: :9999\npython: /usr/bin/python3.11\ndependency: tensorflow-cpu\nmin_version: \"2.12\"\nauto_install: false\nruntime: memory\ncors_origins: [\"http://a\", \"http://b\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.Python != "/usr/bin/python3.11" || cfg.Dependency != "tensorflow-cpu" || cfg.MinVersion != "2.12" || cfg.Runtime != RuntimeMemory {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.AutoInstall == nil || *cfg.AutoInstall || cfg.AutoInstallEnabled() {
		t.Fatalf("auto_install not decoded: %v", cfg.AutoInstall)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("cors origins = %v", cfg.CORSOrigins)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"addr":":7070","venv_dir":"/venv","start_timeout":"2m","max_objects":5,"warmup":true}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.VenvDir != "/venv" || cfg.StartTimeoutDuration() != 2*time.Minute || cfg.MaxObjects != 5 || !cfg.Warmup {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8081\"\nindex_url=\"https://pypi.example/simple\"\nlog_format=\"json\"\nmax_body_bytes=2048\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8081" || cfg.IndexURL != "https://pypi.example/simple" || cfg.LogFormat != "json" || cfg.MaxBodyBytes != 2048 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
	bad := map[string]string{
		"bad.yaml": "addr: :8080\n: broken\n",
		"bad.json": `{ "addr": ":8080", "python": }`,
		"bad.toml": "addr=:8080\npython\n",
	}
	for name, content := range bad {
		if _, err := Load(writeTempFile(t, d, name, content)); err == nil {
			t.Fatalf("%s: expected parse error", name)
		}
	}
}

func TestWithDefaults(t *testing.T) {
	cfg, err := Config{}.WithDefaults()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if cfg.Addr != DefaultAddr || cfg.Python != DefaultPython || cfg.Dependency != "tensorflow" || cfg.MinVersion != "2.0" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.AutoInstallEnabled() || cfg.Runtime != RuntimeSubprocess || cfg.MaxBodyBytes != DefaultMaxBodyBytes || cfg.MaxObjects != DefaultMaxObjects {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.StartTimeoutDuration() != time.Minute || cfg.ShutdownTimeoutDuration() != 10*time.Second {
		t.Fatalf("durations: %v %v", cfg.StartTimeoutDuration(), cfg.ShutdownTimeoutDuration())
	}

	// A custom dependency does not inherit the tensorflow minimum.
	cfg, _ = Config{Dependency: "keras"}.WithDefaults()
	if cfg.MinVersion != "" {
		t.Fatalf("min version = %q", cfg.MinVersion)
	}

	home, err := os.UserHomeDir()
	if err == nil {
		cfg, _ = Config{VenvDir: "~/venvs/kb"}.WithDefaults()
		if cfg.VenvDir != filepath.Join(home, "venvs/kb") {
			t.Fatalf("venv dir = %q", cfg.VenvDir)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []Config{
		{Runtime: "docker"},
		{LogFormat: "xml"},
		{StartTimeout: "soon"},
	}
	for _, c := range cases {
		if _, err := c.WithDefaults(); err == nil {
			t.Fatalf("%+v: expected validation error", c)
		}
	}
}
