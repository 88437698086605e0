package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8090" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Storage.SQLitePath != "./data/alta_parking.db" {
		t.Errorf("sqlitePath = %q", cfg.Storage.SQLitePath)
	}
	if cfg.Site.URL != "https://reserve.altaparking.com" {
		t.Errorf("site url = %q", cfg.Site.URL)
	}
	if got := cfg.Poll.DefaultInterval(); got != time.Minute {
		t.Errorf("default interval = %v", got)
	}
	if got := cfg.Site.MaxCalendarPages(); got != 12 {
		t.Errorf("max calendar pages = %d", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  addr: ":9000"
site:
  url: "http://127.0.0.1:8091"
  navTimeoutMs: 5000
poll:
  minIntervalMs: 1000
  maxIntervalMs: 10000
  defaultIntervalMs: 2000
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if got := cfg.Site.NavTimeout(); got != 5*time.Second {
		t.Errorf("nav timeout = %v", got)
	}
	if got := cfg.Poll.MinInterval(); got != time.Second {
		t.Errorf("min interval = %v", got)
	}
}

func TestLoadRejectsInvertedPollBounds(t *testing.T) {
	_, err := Load(writeConfig(t, `
poll:
  minIntervalMs: 5000
  maxIntervalMs: 1000
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestClampInterval(t *testing.T) {
	poll := PollConfig{MinIntervalMs: 1000, MaxIntervalMs: 10_000, DefaultIntervalMs: 2000}
	cases := []struct {
		name string
		in   int
		want time.Duration
	}{
		{"zero picks default", 0, 2 * time.Second},
		{"negative picks default", -5, 2 * time.Second},
		{"below min clamps up", 10, time.Second},
		{"within range passes", 4000, 4 * time.Second},
		{"above max clamps down", 60_000, 10 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := poll.ClampInterval(tc.in); got != tc.want {
				t.Errorf("ClampInterval(%d) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
