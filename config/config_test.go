package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ImgWidth != 16 {
		t.Errorf("ImgWidth = %d, want 16", cfg.ImgWidth)
	}
	if cfg.InputSize() != 256 {
		t.Errorf("InputSize() = %d, want 256", cfg.InputSize())
	}
	if cfg.Seed != 97798 {
		t.Errorf("Seed = %d, want 97798", cfg.Seed)
	}
	if len(cfg.Architecture) != 3 || cfg.Architecture[0] != 1300 {
		t.Errorf("Architecture = %v", cfg.Architecture)
	}
	if cfg.CEStrength != 0.9 || cfg.ConnectionReg != 5 {
		t.Errorf("regularization defaults: CEStrength %v, ConnectionReg %v", cfg.CEStrength, cfg.ConnectionReg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err != nil {
		t.Errorf("missing settings file should not be an error: %v", err)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	settings := `{
		"IMG_WIDTH": 8,
		"BATCH_SIZE": 32,
		"NET_ARCHITECTURE": [16, 8],
		"ONLY_USE_DATA_SUBSET": true,
		"LOG_NAME": "filed"
	}`
	if err := os.WriteFile(path, []byte(settings), 0644); err != nil {
		t.Fatal(err)
	}

	// Environment overrides the file; unset keys fall through to it.
	t.Setenv("BATCH_SIZE", "64")
	t.Setenv("LOG_NAME", "scrappy run")
	t.Setenv("LEARNING_RATE", "0.02")
	t.Setenv("NET_ARCHITECTURE", "[4, 4]")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ImgWidth != 8 {
		t.Errorf("ImgWidth = %d, want 8 from file", cfg.ImgWidth)
	}
	if cfg.BatchSize != 64 {
		t.Errorf("BatchSize = %d, want 64 from environment", cfg.BatchSize)
	}
	if cfg.LogName != "scrappy run" {
		t.Errorf("LogName = %q, want unquoted environment string", cfg.LogName)
	}
	if cfg.LearningRate != 0.02 {
		t.Errorf("LearningRate = %v, want 0.02", cfg.LearningRate)
	}
	if len(cfg.Architecture) != 2 || cfg.Architecture[0] != 4 || cfg.Architecture[1] != 4 {
		t.Errorf("Architecture = %v, want [4 4] from environment", cfg.Architecture)
	}
	if !cfg.OnlyDataSubset {
		t.Error("ONLY_USE_DATA_SUBSET = false, want true from file")
	}
	if cfg.Epochs != 50 {
		t.Errorf("Epochs = %d, want untouched default 50", cfg.Epochs)
	}
}

func TestLoadBoolForms(t *testing.T) {
	truthy := []string{"yes", "true", "TRUE", "True", "YES", "1"}
	for _, v := range truthy {
		t.Setenv("ONLY_USE_DATA_SUBSET", v)
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if !cfg.OnlyDataSubset {
			t.Errorf("%q should parse as true", v)
		}
	}

	falsy := []string{"0", "false", "FALSE", "No"}
	for _, v := range falsy {
		t.Setenv("ONLY_USE_DATA_SUBSET", v)
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if cfg.OnlyDataSubset {
			t.Errorf("%q should parse as false", v)
		}
	}

	t.Setenv("ONLY_USE_DATA_SUBSET", "")
	t.Setenv("USE_GPU", "True")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.UseGPU {
		t.Error("USE_GPU=True should enable the GPU path")
	}
}

func TestTimezone(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC default", cfg.Timezone)
	}

	t.Setenv("TIMEZONE", "Europe/Berlin")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Timezone != "Europe/Berlin" || cfg.Location().String() != "Europe/Berlin" {
		t.Errorf("Timezone = %q, Location = %v", cfg.Timezone, cfg.Location())
	}

	t.Setenv("TIMEZONE", "Nowhere/Atlantis")
	if _, err := Load(""); err == nil {
		t.Error("expected error for unresolvable TIMEZONE")
	}
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("BATCH_SIZE", "plenty")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric BATCH_SIZE")
	}
}

func TestNegativeSeedRandomized(t *testing.T) {
	t.Setenv("SEED", "-1")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Seed < 0 {
		t.Errorf("Seed = %d, want non-negative replacement", cfg.Seed)
	}
}

func TestPrintoutExcludesSecrets(t *testing.T) {
	t.Setenv("SYSLOG_HOST", "collector.internal")
	t.Setenv("SYSLOG_PORT", "514")
	t.Setenv("TRACKER_URL", "https://tracker.internal/api")
	t.Setenv("TRACKER_KEY", "super-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TrackerKey != "super-secret" {
		t.Fatalf("TrackerKey = %q, secrets must still load", cfg.TrackerKey)
	}

	m, err := cfg.Printout()
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"SYSLOG_HOST", "SYSLOG_PORT", "TRACKER_URL", "TRACKER_KEY"} {
		if _, ok := m[key]; ok {
			t.Errorf("secret %s present in printout", key)
		}
	}
	for _, v := range m {
		if s, ok := v.(string); ok && s == "super-secret" {
			t.Error("secret value present in printout")
		}
	}
	if m["IMG_WIDTH"] != 16 || m["INPUT_SIZE"] != 256 {
		t.Errorf("printout dimensions: IMG_WIDTH=%v INPUT_SIZE=%v", m["IMG_WIDTH"], m["INPUT_SIZE"])
	}
	if m["TIMEZONE"] != "UTC" || m["USE_GPU"] != false {
		t.Errorf("printout: TIMEZONE=%v USE_GPU=%v", m["TIMEZONE"], m["USE_GPU"])
	}
}
