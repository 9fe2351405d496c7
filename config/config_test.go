package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[evaluator]
mode = "basic"
imports = ["fmt", "strings"]
stdlib = false
image-dir = "refs"

[server]
addr = ":9000"
session-ttl = "5m"
sweep-interval = "10s"

[log]
verbosity = 2
file = "replkit.log"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if c.Evaluator.Mode != ModeBasic {
		t.Errorf("mode = %q, want basic", c.Evaluator.Mode)
	}
	if diff := cmp.Diff([]string{"fmt", "strings"}, c.Evaluator.Imports); diff != "" {
		t.Errorf("imports mismatch (-want +got):\n%s", diff)
	}
	if c.Evaluator.Stdlib {
		t.Error("stdlib = true, want false")
	}
	if c.Server.Addr != ":9000" {
		t.Errorf("addr = %q, want :9000", c.Server.Addr)
	}
	if c.Server.SessionTTL != 5*time.Minute {
		t.Errorf("session-ttl = %v, want 5m", c.Server.SessionTTL)
	}
	if c.Server.SweepInterval != 10*time.Second {
		t.Errorf("sweep-interval = %v, want 10s", c.Server.SweepInterval)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", c.Log.Verbosity)
	}

	abs, _ := filepath.Abs(dir)
	if got := c.ImageDirPath(); got != filepath.Join(abs, "refs") {
		t.Errorf("ImageDirPath = %q", got)
	}
	if got := c.LogFile(); got == nil || *got != filepath.Join(abs, "replkit.log") {
		t.Errorf("LogFile = %v", got)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[evaluator]
imports = ["fmt"]
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	d := Default()
	if c.Evaluator.Mode != ModeFull {
		t.Errorf("default mode = %q, want full", c.Evaluator.Mode)
	}
	if !c.Evaluator.Stdlib {
		t.Error("default stdlib = false, want true")
	}
	if c.Server != d.Server {
		t.Errorf("server = %+v, want %+v", c.Server, d.Server)
	}
	if c.LogFile() != nil {
		t.Error("LogFile should be nil when no file is configured")
	}
}

func TestLoadConfigRejectsUnknownMode(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[evaluator]
mode = "turbo"
`)

	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "turbo") {
		t.Errorf("err = %v, want unknown mode error", err)
	}
}

func TestLoadConfigParseError(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[evaluator\nmode = ")

	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Errorf("err = %v, want parse error", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, dir, `
[server]
addr = "127.0.0.1:1234"
`)

	c, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Server.Addr != "127.0.0.1:1234" {
		t.Errorf("addr = %q, want 127.0.0.1:1234", c.Server.Addr)
	}
	abs, _ := filepath.Abs(dir)
	if c.Dir != abs {
		t.Errorf("Dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if c.Dir != "" {
		t.Errorf("Dir = %q, want empty for defaults", c.Dir)
	}
	if c.Evaluator.Mode != ModeFull {
		t.Errorf("mode = %q, want full", c.Evaluator.Mode)
	}
}

func TestImageDirPathAbsolute(t *testing.T) {
	c := Default()
	c.Evaluator.ImageDir = "/var/cache/replkit"
	if got := c.ImageDirPath(); got != "/var/cache/replkit" {
		t.Errorf("ImageDirPath = %q", got)
	}
}
