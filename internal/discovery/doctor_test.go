package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDoctor_OptionalChecksDoNotFail(t *testing.T) {
	fakeBin := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fakeBin, "yt-dlp"), []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin)

	res, err := Doctor(DoctorOptions{Mode: "captions", TempDir: t.TempDir()})
	if err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected ok with only optional failures, got %+v", res.Checks)
	}
}

func TestDoctor_MissingCookiesAndOpenAIKeyFail(t *testing.T) {
	res, err := Doctor(DoctorOptions{
		Mode:        "auto",
		CookiesPath: filepath.Join(t.TempDir(), "missing.txt"),
		TempDir:     t.TempDir(),
	})
	if err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
	if res.OK {
		t.Fatalf("expected doctor failure")
	}
	byName := map[string]DoctorCheck{}
	for _, c := range res.Checks {
		byName[c.Name] = c
	}
	if byName["file:cookies"].OK {
		t.Fatalf("expected cookies check to fail")
	}
	if c := byName["credential:openai_api_key"]; c.OK || c.Optional {
		t.Fatalf("openai key must be required in auto mode, got %+v", c)
	}
	if c := byName["credential:youtube_api_key"]; !c.Optional {
		t.Fatalf("youtube api key must be optional, got %+v", c)
	}
}
