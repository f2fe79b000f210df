package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()
	if cfg.Depth != DefaultDepth {
		t.Errorf("Depth = %d, want %d", cfg.Depth, DefaultDepth)
	}
	if cfg.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", cfg.Concurrency, DefaultConcurrency)
	}
	if cfg.MaxDownloadBytes != 307200 {
		t.Errorf("MaxDownloadBytes = %d, want 307200", cfg.MaxDownloadBytes)
	}
	if cfg.CleanFormat != CleanFormatText {
		t.Errorf("CleanFormat = %q", cfg.CleanFormat)
	}
	if cfg.FallbackExtension != ".pdf" {
		t.Errorf("FallbackExtension = %q", cfg.FallbackExtension)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if !cfg.SaveToDB || cfg.DBDir == "" {
		t.Errorf("history should be enabled by default: %q %v", cfg.DBDir, cfg.SaveToDB)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "valid", modify: func(*Config) {}},
		{name: "no target", modify: func(c *Config) { c.Targets = nil }, wantErr: ErrNoTarget},
		{name: "relative target", modify: func(c *Config) { c.Targets = []string{"/about"} }, wantErr: ErrInvalidTarget},
		{name: "ftp target", modify: func(c *Config) { c.Targets = []string{"ftp://example.com/"} }, wantErr: ErrInvalidTarget},
		{name: "uppercase scheme", modify: func(c *Config) { c.Targets = []string{"HTTPS://example.com/"} }},
		{name: "zero depth", modify: func(c *Config) { c.Depth = 0 }, wantErr: ErrInvalidDepth},
		{name: "zero concurrency", modify: func(c *Config) { c.Concurrency = 0 }, wantErr: ErrInvalidConcurrency},
		{name: "zero timeout", modify: func(c *Config) { c.Timeout = 0 }, wantErr: ErrInvalidTimeout},
		{name: "zero batch", modify: func(c *Config) { c.BatchSize = 0 }, wantErr: ErrInvalidBatchSize},
		{
			name:    "json and markdown",
			modify:  func(c *Config) { c.JSONReport, c.MarkdownReport = true, true },
			wantErr: ErrConflictingReportFormats,
		},
		{name: "zero max bytes", modify: func(c *Config) { c.MaxDownloadBytes = 0 }, wantErr: ErrInvalidMaxDownloadBytes},
		{name: "bad clean format", modify: func(c *Config) { c.CleanFormat = "pdf" }, wantErr: ErrInvalidCleanFormat},
		{name: "markdown clean format", modify: func(c *Config) { c.CleanFormat = CleanFormatMarkdown }},
		{name: "negative rps", modify: func(c *Config) { c.RequestsPerSecond = -1 }, wantErr: ErrInvalidRequestsPerSecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			cfg.Targets = []string{"https://example.com/"}
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func noFlags(string) bool { return false }

func TestApplyProfile(t *testing.T) {
	t.Parallel()

	full := &Profile{
		Website:           "https://example.com",
		UseSitemap:        true,
		Depth:             3,
		Concurrency:       2,
		MaxDownloadBytes:  1024,
		IgnoreLinks:       []string{"/logout"},
		CleanContent:      true,
		CleanFormat:       "Markdown",
		RespectRobots:     true,
		Render:            true,
		RequestsPerSecond: 1.5,
		Proxy:             "127.0.0.1:9050",
		UserAgent:         "bot/1",
		Headers:           map[string]string{"X-Foo": "bar"},
		Storage:           &StorageProfile{Type: "local", Path: "./out"},
	}

	t.Run("fills unset options", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		if err := cfg.ApplyProfile(full, noFlags); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.Targets) != 1 || cfg.Targets[0] != "https://example.com" {
			t.Errorf("Targets = %v", cfg.Targets)
		}
		if !cfg.UseSitemap || !cfg.CleanContent || !cfg.RespectRobots || !cfg.Render {
			t.Errorf("bool options not applied: %+v", cfg)
		}
		if cfg.Depth != 3 || cfg.Concurrency != 2 || cfg.MaxDownloadBytes != 1024 {
			t.Errorf("numeric options not applied: %+v", cfg)
		}
		if cfg.CleanFormat != CleanFormatMarkdown {
			t.Errorf("CleanFormat = %q", cfg.CleanFormat)
		}
		if cfg.RequestsPerSecond != 1.5 || cfg.Proxy != "127.0.0.1:9050" || cfg.UserAgent != "bot/1" {
			t.Errorf("fetch options not applied: %+v", cfg)
		}
		if cfg.Headers["X-Foo"] != "bar" {
			t.Errorf("Headers = %v", cfg.Headers)
		}
		if !cfg.SaveFiles || cfg.OutputDir != "./out" {
			t.Errorf("storage should enable saving: %v %q", cfg.SaveFiles, cfg.OutputDir)
		}
	})

	t.Run("flags win", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Targets = []string{"https://other.example/"}
		cfg.Depth = 7
		cfg.OutputDir = "flag-dir"
		cfg.Headers = map[string]string{"X-Foo": "flag"}
		set := func(name string) bool { return name == "depth" || name == "output-dir" }

		if err := cfg.ApplyProfile(full, set); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Targets[0] != "https://other.example/" {
			t.Errorf("argument target replaced: %v", cfg.Targets)
		}
		if cfg.Depth != 7 {
			t.Errorf("Depth = %d, want 7", cfg.Depth)
		}
		if cfg.OutputDir != "flag-dir" {
			t.Errorf("OutputDir = %q", cfg.OutputDir)
		}
		if cfg.Headers["X-Foo"] != "flag" {
			t.Errorf("flag header overridden: %v", cfg.Headers)
		}
		if cfg.Concurrency != 2 {
			t.Errorf("unset flag should take the profile value, got %d", cfg.Concurrency)
		}
	})

	t.Run("rejects unknown storage", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		err := cfg.ApplyProfile(&Profile{Storage: &StorageProfile{Type: "blob"}}, noFlags)
		if !errors.Is(err, ErrUnsupportedStorage) {
			t.Errorf("ApplyProfile() = %v, want ErrUnsupportedStorage", err)
		}
	})

	t.Run("nil profile", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		if err := cfg.ApplyProfile(nil, noFlags); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Depth != DefaultDepth {
			t.Errorf("Depth = %d", cfg.Depth)
		}
	})
}

func TestLoadProfile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for missing file", func(t *testing.T) {
		t.Parallel()

		p, err := LoadProfile(filepath.Join(t.TempDir(), DefaultConfigFile))
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got %v", err)
		}
		if p != nil {
			t.Error("expected nil profile")
		}
	})

	t.Run("loads YAML profile", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `website: https://example.com
useSitemap: true
depth: 2
ignoreLinks:
  - /logout
  - https://example.com/private
cleanFormat: markdown
headers:
  X-Foo: bar
storage:
  type: local
  path: ./out
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write profile: %v", err)
		}

		p, err := LoadProfile(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Website != "https://example.com" || !p.UseSitemap || p.Depth != 2 {
			t.Errorf("profile = %+v", p)
		}
		if len(p.IgnoreLinks) != 2 || p.CleanFormat != "markdown" {
			t.Errorf("profile = %+v", p)
		}
		if p.Headers["X-Foo"] != "bar" {
			t.Errorf("Headers = %v", p.Headers)
		}
		if p.Storage == nil || p.Storage.Path != "./out" {
			t.Errorf("Storage = %+v", p.Storage)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(path, []byte("invalid: yaml: content: [}"), 0600); err != nil {
			t.Fatalf("failed to write profile: %v", err)
		}
		if _, err := LoadProfile(path); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})
}

func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(path, []byte("depth: 1\n"), 0600); err != nil {
			t.Fatalf("failed to write profile: %v", err)
		}
		if got := FindConfigFile(path); got != path {
			t.Errorf("FindConfigFile() = %q, want %q", got, path)
		}
	})

	t.Run("returns empty for missing explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); got != "" {
			t.Errorf("FindConfigFile() = %q, want empty", got)
		}
	})
}

func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
	} {
		if !strings.HasSuffix(dir, AppName) {
			t.Errorf("%s dir %q does not end with %q", name, dir, AppName)
		}
	}
}
