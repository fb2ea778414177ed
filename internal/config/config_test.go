package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/erazemk/najdeno/internal/moderation"
)

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg, cmpopts.IgnoreUnexported(moderation.Policy{})); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "najdeno.yaml")
	err := os.WriteFile(path, []byte(`
moderation:
  banned_words: [spam]
  review_threshold: 0.4
classifier:
  url: http://localhost:8501/classify
  timeout: 2s
feed:
  window: 72h
`), 0o600)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff([]string{"spam"}, cfg.Moderation.BannedWords); diff != "" {
		t.Errorf("banned words (-want +got):\n%s", diff)
	}
	if cfg.Moderation.ReviewThreshold != 0.4 || cfg.Moderation.RejectThreshold != 0.85 {
		t.Errorf("unexpected thresholds %v / %v", cfg.Moderation.ReviewThreshold, cfg.Moderation.RejectThreshold)
	}
	if len(cfg.Moderation.SevereSubstrings) == 0 {
		t.Error("expected default severe substrings to be kept")
	}
	if cfg.Classifier.URL != "http://localhost:8501/classify" || cfg.Classifier.Timeout != 2*time.Second {
		t.Errorf("unexpected classifier %+v", cfg.Classifier)
	}
	if cfg.Feed.Window != 72*time.Hour || cfg.Feed.PageSize != 50 {
		t.Errorf("unexpected feed %+v", cfg.Feed)
	}
	if got := cfg.Moderation.Offending("cheap spam here"); got != "spam" {
		t.Errorf("expected configured word to be enforced, got %q", got)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := map[string]string{
		"unknown key":         "colour: blue\n",
		"inverted thresholds": "moderation:\n  review_threshold: 0.9\n  reject_threshold: 0.5\n",
		"zero timeout":        "classifier:\n  timeout: 0s\n",
		"bad fragment":        "moderation:\n  fragments:\n    - label: x\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			if err := Decode(strings.NewReader(doc), &cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodeEmptyDocument(t *testing.T) {
	cfg := Default()
	if err := Decode(strings.NewReader(""), &cfg); err != nil {
		t.Errorf("expected empty file to be accepted, got %v", err)
	}
}
