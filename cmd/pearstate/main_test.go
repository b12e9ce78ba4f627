package main

import (
	"testing"

	"git.home.luguber.info/inful/pearstate/internal/config"
)

func TestBuildFlagsRecognized(t *testing.T) {
	flags := buildFlags(&config.File{}, true, false, true, "/data", nil)

	if flags["stage"] != true {
		t.Errorf("expected stage flag, got %v", flags["stage"])
	}
	if flags["tmpStore"] != true {
		t.Errorf("expected tmpStore flag, got %v", flags["tmpStore"])
	}
	if flags["store"] != "/data" {
		t.Errorf("expected store flag, got %v", flags["store"])
	}
	if _, ok := flags["dev"]; ok {
		t.Error("dev flag should be absent when not set")
	}
}

func TestBuildFlagsExtraPairs(t *testing.T) {
	flags := buildFlags(&config.File{}, false, false, false, "", []string{"future=thing", "bare"})

	if flags["future"] != "thing" {
		t.Errorf("expected future=thing, got %v", flags["future"])
	}
	if flags["bare"] != true {
		t.Errorf("expected bare flag true, got %v", flags["bare"])
	}
}

func TestBuildFlagsCLIOverridesConfig(t *testing.T) {
	cfg := &config.File{Flags: map[string]any{"store": "/from-config", "keep": 1}}
	flags := buildFlags(cfg, false, false, false, "/from-cli", nil)

	if flags["store"] != "/from-cli" {
		t.Errorf("expected CLI store to win, got %v", flags["store"])
	}
	if flags["keep"] != 1 {
		t.Errorf("expected config flag preserved, got %v", flags["keep"])
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Errorf("expected b, got %s", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Errorf("expected empty, got %s", got)
	}
}
