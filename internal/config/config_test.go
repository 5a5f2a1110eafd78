package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nao1215/ballotharvest/internal/model"
)

// TestNewConfig verifies the defaults per source.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	t.Run("tree defaults", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig(model.SourceTree)
		if diff := cmp.Diff([]string{DefaultTreeRootURL}, cfg.RootURLs); diff != "" {
			t.Errorf("root mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"RETURN", "QUESTIONS", "CATEGORIES"}, cfg.Denylist); diff != "" {
			t.Errorf("denylist mismatch (-want +got):\n%s", diff)
		}
		if cfg.MaxDepth != 10 || cfg.Concurrency != 1 {
			t.Errorf("unexpected depth %d / concurrency %d", cfg.MaxDepth, cfg.Concurrency)
		}
		if cfg.Timeout != 60*time.Second || cfg.Retries != 3 {
			t.Errorf("unexpected timeout %v / retries %d", cfg.Timeout, cfg.Retries)
		}
		if !cfg.SaveToDB || cfg.DBDir == "" {
			t.Error("expected history to be enabled by default")
		}
		if cfg.Contests != nil {
			t.Error("tree runs have no contests")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("defaults should be valid: %v", err)
		}
	})

	t.Run("postback defaults", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig(model.SourcePostback)
		if cfg.RootURLs[0] != DefaultPostbackRootURL {
			t.Errorf("unexpected root %v", cfg.RootURLs)
		}
		if cfg.MaxPages != 500 {
			t.Errorf("expected MaxPages 500, got %d", cfg.MaxPages)
		}
	})

	t.Run("features defaults", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig(model.SourceFeatures)
		if len(cfg.Contests) != len(DefaultContests) {
			t.Errorf("expected %d contests, got %d", len(DefaultContests), len(cfg.Contests))
		}
		cfg.Contests[0] = "changed"
		if DefaultContests[0] == "changed" {
			t.Error("config must not alias the default contest list")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("defaults should be valid: %v", err)
		}
	})
}

// TestConfigValidate tests one validation rule per case.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"no root", func(c *Config) { c.RootURLs = nil }, ErrNoRootURL},
		{"relative root", func(c *Config) { c.RootURLs = []string{"/index.html"} }, ErrInvalidRootURL},
		{"ftp root", func(c *Config) { c.RootURLs = []string{"ftp://example.com/"} }, ErrInvalidRootURL},
		{"bad detail base", func(c *Config) { c.DetailBaseURL = "nope" }, ErrInvalidDetailBaseURL},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, ErrInvalidTimeout},
		{"negative retries", func(c *Config) { c.Retries = -1 }, ErrInvalidRetries},
		{"negative depth", func(c *Config) { c.MaxDepth = -1 }, ErrInvalidDepth},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"zero batch", func(c *Config) { c.BatchSize = 0 }, ErrInvalidBatchSize},
		{"zero max pages", func(c *Config) { c.MaxPages = 0 }, ErrInvalidMaxPages},
		{"negative body size", func(c *Config) { c.MaxBodySize = -1 }, ErrInvalidMaxBodySize},
		{"unknown summary format", func(c *Config) { c.SummaryFormat = "csv" }, ErrInvalidSummaryFormat},
		{"zero depth is allowed", func(c *Config) { c.MaxDepth = 0 }, nil},
		{"zero retries are allowed", func(c *Config) { c.Retries = 0 }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig(model.SourceTree)
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("features without contests", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig(model.SourceFeatures)
		cfg.Contests = nil
		if err := cfg.Validate(); !errors.Is(err, ErrNoContests) {
			t.Errorf("expected ErrNoContests, got %v", err)
		}
	})
}

// TestApplyProfile tests copying profile fields into a config.
func TestApplyProfile(t *testing.T) {
	t.Parallel()

	t.Run("overrides only set fields", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig(model.SourceTree)
		err := cfg.ApplyProfile(Profile{
			Kind:           "tree",
			RootURL:        "https://results.example.gov/index.html",
			Denylist:       []string{"BACK"},
			MaxDepth:       4,
			IgnorePatterns: []string{"/archive/*"},
			OutputPrefix:   "county",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"https://results.example.gov/index.html"}, cfg.RootURLs); diff != "" {
			t.Errorf("root mismatch (-want +got):\n%s", diff)
		}
		if cfg.MaxDepth != 4 || cfg.OutputPrefix != "county" || cfg.Denylist[0] != "BACK" {
			t.Errorf("profile not applied: %+v", cfg)
		}
		if cfg.Concurrency != DefaultConcurrency || cfg.Timeout != DefaultTimeout {
			t.Error("unset profile fields must keep the defaults")
		}
	})

	t.Run("rejects a profile of another kind", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig(model.SourcePostback)
		if err := cfg.ApplyProfile(Profile{Kind: "features"}); !errors.Is(err, ErrProfileKind) {
			t.Errorf("expected ErrProfileKind, got %v", err)
		}
	})

	t.Run("sets feature-service fields", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig(model.SourceFeatures)
		err := cfg.ApplyProfile(Profile{Contests: []string{"State Treasurer"}, PrecinctContest: "Attorney General"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff([]string{"State Treasurer"}, cfg.Contests); diff != "" {
			t.Errorf("contests mismatch (-want +got):\n%s", diff)
		}
		if cfg.PrecinctContest != "Attorney General" {
			t.Errorf("unexpected precinct contest %q", cfg.PrecinctContest)
		}
	})
}

// TestFileGetProfile tests merging a profile over the defaults.
func TestFileGetProfile(t *testing.T) {
	t.Parallel()

	file := &File{
		Defaults: Profile{MaxDepth: 5, UserAgent: "county-bot"},
		Profiles: map[string]Profile{
			"lancaster-2019": {
				Kind:    "tree",
				RootURL: "http://vr.co.lancaster.pa.us/ElectionReturns/November_5,_2019_-_Municipal_Election/Categories.html",
			},
			"deep": {Kind: "tree", MaxDepth: 20},
		},
	}

	p, err := file.GetProfile("lancaster-2019")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.MaxDepth != 5 || p.UserAgent != "county-bot" || p.Kind != "tree" {
		t.Errorf("expected defaults merged in, got %+v", p)
	}

	p, err = file.GetProfile("deep")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.MaxDepth != 20 {
		t.Errorf("expected profile to override default depth, got %d", p.MaxDepth)
	}

	p, err = file.GetProfile("")
	if err != nil || p.MaxDepth != 5 {
		t.Errorf("expected defaults for empty name, got %+v, %v", p, err)
	}

	if _, err := file.GetProfile("missing"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("expected ErrProfileNotFound, got %v", err)
	}

	if diff := cmp.Diff([]string{"deep", "lancaster-2019"}, file.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

// TestLoadConfigFile tests loading the YAML profile file.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.ballotharvest")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		content := `defaults:
  maxDepth: 8
profiles:
  montco:
    kind: features
    rootURL: https://services1.arcgis.com/x/FeatureServer/1/query
    contests:
      - Attorney General
      - State Treasurer
  voter-services:
    kind: postback
    maxPages: 40
    detailBaseURL: https://www.pavoterservices.pa.gov/ElectionInfo/
`
		if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Defaults.MaxDepth != 8 {
			t.Errorf("expected default depth 8, got %d", cfg.Defaults.MaxDepth)
		}
		montco := cfg.Profiles["montco"]
		if montco.Kind != "features" || len(montco.Contests) != 2 {
			t.Errorf("unexpected profile %+v", montco)
		}
		vs := cfg.Profiles["voter-services"]
		if vs.MaxPages != 40 || !strings.HasSuffix(vs.DetailBaseURL, "/ElectionInfo/") {
			t.Errorf("unexpected profile %+v", vs)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("initializes nil Profiles map", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), DefaultConfigFile)
		if err := os.WriteFile(configPath, []byte("defaults:\n  maxDepth: 2\n"), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		cfg, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Profiles == nil {
			t.Error("expected Profiles map to be initialized")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("defaults: {}"), 0o600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile("/nonexistent/path/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})

	t.Run("ignores a directory", func(t *testing.T) {
		t.Parallel()

		if got := FindConfigFile(t.TempDir()); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})

	t.Run("searches the XDG config directory last", func(t *testing.T) {
		t.Parallel()

		paths := searchPaths()
		want := filepath.Join(XDGConfigDir(), "profiles.yaml")
		if len(paths) == 0 || paths[len(paths)-1] != want {
			t.Errorf("expected %q as last search path, got %v", want, paths)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for _, dir := range []string{XDGDataDir(), XDGConfigDir()} {
		if !strings.HasSuffix(dir, AppName) {
			t.Errorf("expected %q to end with %q", dir, AppName)
		}
	}
}

// TestDefaultRootURL tests the per-source default roots.
func TestDefaultRootURL(t *testing.T) {
	t.Parallel()

	if DefaultRootURL(model.SourceTree) != DefaultTreeRootURL {
		t.Error("unexpected tree root")
	}
	if !strings.Contains(DefaultRootURL(model.SourceFeatures), "FeatureServer/1/query") {
		t.Error("unexpected features root")
	}
	if DefaultRootURL("bogus") != "" {
		t.Error("unknown sources have no default")
	}
}
