package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/ballotharvest/internal/config"
	"github.com/nao1215/ballotharvest/internal/model"
)

// TestNewInitCmd tests the init command flags.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()
	output := cmd.Flags().Lookup("output")
	if output == nil || output.Shorthand != "o" || output.DefValue != config.DefaultConfigFile {
		t.Errorf("unexpected output flag %+v", output)
	}
	force := cmd.Flags().Lookup("force")
	if force == nil || force.Shorthand != "f" || force.DefValue != "false" {
		t.Errorf("unexpected force flag %+v", force)
	}
}

// TestRunInitCmd tests writing the profile file.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates the profile file", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "nested", ".ballotharvest")
		cmd := NewInitCmd()
		var buf bytes.Buffer
		cmd.SetOut(&buf)
		cmd.SetArgs([]string{"-o", outputPath})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("expected file: %v", err)
		}
		if !strings.Contains(string(content), "profiles:") {
			t.Error("expected profiles section in template")
		}
		if !strings.Contains(buf.String(), "Created profile file") {
			t.Errorf("unexpected output %q", buf.String())
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".ballotharvest")
		if err := os.WriteFile(outputPath, []byte("existing"), 0o600); err != nil {
			t.Fatal(err)
		}

		cmd := NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"-o", outputPath})
		if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected already exists error, got %v", err)
		}

		content, _ := os.ReadFile(outputPath)
		if string(content) != "existing" {
			t.Error("file must not be modified")
		}
	})

	t.Run("overwrites with force", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), ".ballotharvest")
		if err := os.WriteFile(outputPath, []byte("existing"), 0o600); err != nil {
			t.Fatal(err)
		}

		cmd := NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"-o", outputPath, "-f"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, _ := os.ReadFile(outputPath)
		if string(content) == "existing" {
			t.Error("expected file to be overwritten")
		}
	})
}

// TestConfigTemplate tests that the embedded template is a valid profile file.
func TestConfigTemplate(t *testing.T) {
	t.Parallel()

	content, err := configTemplate.ReadFile("templates/ballotharvest.yaml")
	if err != nil {
		t.Fatalf("failed to read template: %v", err)
	}
	path := filepath.Join(t.TempDir(), ".ballotharvest")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		t.Fatalf("template does not parse: %v", err)
	}

	kinds := map[string]model.Source{
		"lancaster-2020": model.SourceTree,
		"pa-candidates":  model.SourcePostback,
		"montco-2020":    model.SourceFeatures,
	}
	for name, source := range kinds {
		profile, err := file.GetProfile(name)
		if err != nil {
			t.Errorf("profile %s: %v", name, err)
			continue
		}
		cfg := config.NewConfig(source)
		if err := cfg.ApplyProfile(profile); err != nil {
			t.Errorf("profile %s does not apply to %s: %v", name, source, err)
			continue
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("profile %s gives an invalid config: %v", name, err)
		}
	}
}
