package main

import (
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetupLogger(t *testing.T) {
	original := log.GetLevel()
	defer log.SetLevel(original)

	setupLogger("debug")
	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("expected debug level, got %s", log.GetLevel())
	}

	setupLogger("nonsense")
	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("expected fallback to info level, got %s", log.GetLevel())
	}
}
