package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelRouterSplitsByLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	log := slog.New(newLevelRouter(&out, &errOut, slog.LevelInfo)).With("item_id", "abc")

	log.Debug("scanner armed")
	log.Info("item published")
	log.Warn("post rejected")
	log.Error("alert matching failed")

	if strings.Contains(out.String(), "scanner armed") {
		t.Error("debug record logged at info level")
	}
	if !strings.Contains(out.String(), "item published") || !strings.Contains(out.String(), "post rejected") {
		t.Errorf("stdout missing info/warn records: %q", out.String())
	}
	if strings.Contains(out.String(), "alert matching failed") {
		t.Error("error record written to stdout")
	}
	if !strings.Contains(errOut.String(), "alert matching failed") || !strings.Contains(errOut.String(), "item_id=abc") {
		t.Errorf("stderr missing error record with attrs: %q", errOut.String())
	}
}

func TestLevelRouterDebug(t *testing.T) {
	var out bytes.Buffer
	log := slog.New(newLevelRouter(&out, &out, slog.LevelDebug))
	log.Debug("scanner armed")
	if !strings.Contains(out.String(), "scanner armed") {
		t.Error("debug record dropped at debug level")
	}
}
