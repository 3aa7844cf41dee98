package voicepod

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger_Errorf(t *testing.T) {
	log := DefaultLogger()

	base := errors.New("boom")
	err := log.Errorf("start: %w", base)
	if err == nil {
		t.Fatal("Errorf returned nil")
	}
	if got := err.Error(); got != "voicepod: start: boom" {
		t.Errorf("err = %q", got)
	}
	if !errors.Is(err, base) {
		t.Error("Errorf did not wrap the cause")
	}
}

func TestSlogLogger_Prefix(t *testing.T) {
	var buf bytes.Buffer
	log := SlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	log.InfoPrintf("state: %s", StateIdle)
	if !strings.Contains(buf.String(), "voicepod: state: idle") {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestDefaultLogger_FollowsSlogDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	log := DefaultLogger()

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	log.WarnPrintf("late binding")
	if !strings.Contains(buf.String(), "voicepod: late binding") {
		t.Errorf("log output = %q", buf.String())
	}
}
