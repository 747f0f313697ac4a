package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_MissingEnvFile(t *testing.T) {
	err := run([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "migrate"})
	if err == nil || !strings.Contains(err.Error(), "env file") {
		t.Errorf("expected env file error, got %v", err)
	}
}

func TestRun_UnknownFlag(t *testing.T) {
	if err := run([]string{"--no-such-flag"}); err == nil {
		t.Error("unknown flag should return error")
	}
}

func TestRun_EnvFileDoesNotOverrideEnvironment(t *testing.T) {
	// 必須変数を1つ欠いた状態で起動し、設定エラーで終了させる
	t.Setenv("JWT_SECRET", "")
	t.Setenv("OPENAI_API_KEY", "from-env")

	path := filepath.Join(t.TempDir(), "test.env")
	content := "OPENAI_API_KEY=from-file\nTRAVELPLANNER_TEST_MARKER=loaded\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("TRAVELPLANNER_TEST_MARKER") })

	if err := run([]string{"--env-file", path, "migrate"}); err == nil {
		t.Fatal("expected config error")
	}

	if got := os.Getenv("TRAVELPLANNER_TEST_MARKER"); got != "loaded" {
		t.Errorf("env file was not loaded: marker = %q", got)
	}
	if got := os.Getenv("OPENAI_API_KEY"); got != "from-env" {
		t.Errorf("OPENAI_API_KEY = %q, want existing value to win", got)
	}
}
