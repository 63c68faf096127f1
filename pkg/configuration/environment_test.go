package configuration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "STATREG_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "dataupload")
	requireMkdirAll(t, sub)

	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	if err := os.Chdir(sub); err != nil {
		t.Fatalf("chdir: %v", err)
	}

	_ = os.Unsetenv("STATREG_TEST_ENV_LOAD")
	t.Cleanup(func() { _ = os.Unsetenv("STATREG_TEST_ENV_LOAD") })

	n, err := LoadEnv([]string{".env", ".env.local"})
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 env file loaded, got %d", n)
	}
	if got := os.Getenv("STATREG_TEST_ENV_LOAD"); got != "ok" {
		t.Fatalf("expected env var loaded from repo root, got %q", got)
	}
}

func TestLoad_ParsesImportOptions(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("LOG_PATH", filepath.Join(tmp, "logs", "import.log"))
	t.Setenv("IMPORT_POLL_INTERVAL", "250ms")
	t.Setenv("IMPORT_LOG_BUFFER_MAX", "7")
	t.Setenv("IMPORT_PERSONS_GOOD_QUALITY", "false")
	t.Setenv("DB_NAME", "statreg_test")

	c, err := Load([]string{filepath.Join(tmp, "missing.env")})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(c.Unload)

	if c.Import.PollInterval != 250*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", c.Import.PollInterval)
	}
	if c.Import.LogBufferMax != 7 {
		t.Fatalf("unexpected log buffer max: %d", c.Import.LogBufferMax)
	}
	if c.Import.PersonsGoodQuality {
		t.Fatalf("expected persons good quality to be disabled")
	}
	if c.Logger() == nil {
		t.Fatalf("expected logger to be initialised")
	}
	if want := "dbname=statreg_test"; !strings.Contains(c.Database.Opts, want) {
		t.Fatalf("connection string %q does not contain %q", c.Database.Opts, want)
	}
}

func TestLoad_RejectsInvalidImportOptions(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("LOG_PATH", filepath.Join(tmp, "import.log"))
	t.Setenv("IMPORT_LOG_BUFFER_MAX", "0")

	if _, err := Load(nil); err == nil {
		t.Fatalf("expected validation error for zero log buffer size")
	}
}

func TestSearchIndexOptions_Validate(t *testing.T) {
	opts := SearchIndexOptions{Required: true, Timeout: time.Second}
	if err := opts.Validate(); err == nil {
		t.Fatalf("expected error when index is required without url")
	}
	opts.URL = "http://localhost:9200"
	if err := opts.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLogrusLogLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug":   logrus.DebugLevel,
		"INFO":    logrus.InfoLevel,
		"warn":    logrus.WarnLevel,
		"silent":  logrus.PanicLevel,
		"unknown": logrus.ErrorLevel,
	}
	for in, want := range cases {
		c := &Configuration{Log: LogOptions{Level: in}}
		if got := c.LogrusLogLevel(); got != want {
			t.Fatalf("level %q: expected %s, got %s", in, want, got)
		}
	}
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func requireMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}
