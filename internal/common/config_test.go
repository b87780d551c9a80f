package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigReadsPromptOverridesFromEnv(t *testing.T) {
	t.Setenv("TRIAGE_SYSTEM_PROMPT", "kurze Sortieranweisung")
	t.Setenv("DETAIL_SYSTEM_PROMPT", "ausfuehrliche Sortieranweisung")

	cfg := LoadConfig()
	if cfg.Inference.TriageSystemPrompt != "kurze Sortieranweisung" {
		t.Fatalf("TriageSystemPrompt = %q", cfg.Inference.TriageSystemPrompt)
	}
	if cfg.Inference.DetailSystemPrompt != "ausfuehrliche Sortieranweisung" {
		t.Fatalf("DetailSystemPrompt = %q", cfg.Inference.DetailSystemPrompt)
	}
}

func TestApplyFileOverlaysPromptsAndKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := []byte("inference:\n  triage_system_prompt: aus der Datei\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg := LoadConfig()
	if err := cfg.ApplyFile(path); err != nil {
		t.Fatalf("ApplyFile() error = %v", err)
	}
	if cfg.Inference.TriageSystemPrompt != "aus der Datei" {
		t.Fatalf("TriageSystemPrompt = %q", cfg.Inference.TriageSystemPrompt)
	}
	// Untouched fields keep their env/default values.
	if cfg.Inference.MaxRetries != 4 {
		t.Fatalf("MaxRetries = %d, want default 4", cfg.Inference.MaxRetries)
	}
	if cfg.Inference.TriageModel == "" {
		t.Fatal("TriageModel lost its default")
	}
}
