package confloader

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type testConfig struct {
	Store struct {
		Dir        string        `koanf:"dir"`
		TempMaxAge time.Duration `koanf:"temp_max_age"`
	} `koanf:"store"`
	Metrics struct {
		Addr    string `koanf:"addr"`
		Enabled bool   `koanf:"enabled"`
	} `koanf:"metrics"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessfile.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestNewLoader_Options(t *testing.T) {
	l := NewLoader()
	if l.envPrefix != DefaultEnvPrefix || l.filePath != "" {
		t.Errorf("defaults = %q, %q", l.envPrefix, l.filePath)
	}

	l = NewLoader(WithEnvPrefix("TEST_"), WithConfigFile("/etc/sessfile.yaml"))
	if l.envPrefix != "TEST_" {
		t.Errorf("envPrefix = %q, want TEST_", l.envPrefix)
	}
	if l.FilePath() != "/etc/sessfile.yaml" {
		t.Errorf("FilePath() = %q", l.FilePath())
	}
}

func TestLoader_File(t *testing.T) {
	path := writeConfig(t, `
store:
  dir: "/var/lib/sessfile"
  temp_max_age: "30m"
metrics:
  addr: "127.0.0.1:9464"
  enabled: true
`)
	l := NewLoader(WithConfigFile(path))

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Dir != "/var/lib/sessfile" || cfg.Store.TempMaxAge != 30*time.Minute {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Metrics.Addr != "127.0.0.1:9464" || !cfg.Metrics.Enabled {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if got := l.Sources(); !reflect.DeepEqual(got, []string{SourceFile}) {
		t.Errorf("Sources() = %v", got)
	}
	if !l.Bool("metrics.enabled") || l.String("metrics.addr") != "127.0.0.1:9464" {
		t.Error("typed getters disagree with the loaded file")
	}
}

func TestLoader_MissingFile(t *testing.T) {
	var cfg testConfig
	err := NewLoader(WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))).Load(&cfg)
	if err == nil {
		t.Fatal("Load() succeeded for a missing file")
	}
}

func TestLoader_Env(t *testing.T) {
	t.Setenv("SESSFILE_METRICS__ADDR", "127.0.0.1:8080")
	t.Setenv("SESSFILE_STORE__TEMP_MAX_AGE", "2h")

	l := NewLoader()
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Metrics.Addr != "127.0.0.1:8080" {
		t.Errorf("metrics.addr = %q", cfg.Metrics.Addr)
	}
	if d := l.Duration("store.temp_max_age"); d != 2*time.Hour {
		t.Errorf("store.temp_max_age = %v, want 2h", d)
	}
	if got := l.Sources(); !reflect.DeepEqual(got, []string{SourceEnv}) {
		t.Errorf("Sources() = %v", got)
	}
}

func TestLoader_EnvCustomPrefix(t *testing.T) {
	t.Setenv("MYAPP_STORE__DIR", "/srv/sessions")
	t.Setenv("SESSFILE_STORE__DIR", "/ignored")

	var cfg testConfig
	if err := NewLoader(WithEnvPrefix("MYAPP_")).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Dir != "/srv/sessions" {
		t.Errorf("store.dir = %q", cfg.Store.Dir)
	}
}

func TestLoader_Precedence(t *testing.T) {
	path := writeConfig(t, "store:\n  dir: from-file\nmetrics:\n  addr: from-file\n  enabled: true\n")
	t.Setenv("SESSFILE_METRICS__ADDR", "from-env")
	t.Setenv("SESSFILE_STORE__DIR", "from-env")

	l := NewLoader(
		WithConfigFile(path),
		WithOverrides(map[string]any{"store.dir": "from-flag"}),
	)
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Dir != "from-flag" {
		t.Errorf("store.dir = %q, want from-flag", cfg.Store.Dir)
	}
	if cfg.Metrics.Addr != "from-env" {
		t.Errorf("metrics.addr = %q, want from-env", cfg.Metrics.Addr)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics.enabled from file lost")
	}
	want := []string{SourceFile, SourceEnv, SourceOverrides}
	if got := l.Sources(); !reflect.DeepEqual(got, want) {
		t.Errorf("Sources() = %v, want %v", got, want)
	}
}

func TestLoader_OverridesTyped(t *testing.T) {
	l := NewLoader(WithOverrides(map[string]any{
		"store.temp_max_age": 45 * time.Second,
		"metrics.enabled":    true,
	}))
	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.TempMaxAge != 45*time.Second || !cfg.Metrics.Enabled {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoader_KeepsDefaults(t *testing.T) {
	path := writeConfig(t, "store:\n  dir: /data\n")

	var cfg testConfig
	cfg.Store.TempMaxAge = time.Hour
	cfg.Metrics.Addr = ":9464"

	if err := NewLoader(WithConfigFile(path)).Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Dir != "/data" {
		t.Errorf("Dir = %q, want /data", cfg.Store.Dir)
	}
	if cfg.Store.TempMaxAge != time.Hour || cfg.Metrics.Addr != ":9464" {
		t.Errorf("defaults overwritten: %+v", cfg)
	}
}

func TestLoader_LoadTwiceDropsStaleValues(t *testing.T) {
	path := writeConfig(t, "metrics:\n  addr: first\n")
	l := NewLoader(WithConfigFile(path))

	var cfg testConfig
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("store:\n  dir: /x\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	var next testConfig
	if err := l.Load(&next); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if next.Metrics.Addr != "" {
		t.Errorf("second Load kept stale value %q", next.Metrics.Addr)
	}
	if next.Store.Dir != "/x" {
		t.Errorf("Dir = %q, want /x", next.Store.Dir)
	}
	if keys := l.Keys(); !reflect.DeepEqual(keys, []string{"store.dir"}) {
		t.Errorf("Keys() = %v", keys)
	}
}
