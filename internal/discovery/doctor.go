package discovery

import (
	"os"
	"strings"

	"yt-channel-scan/internal/ytdlp"
)

type DoctorOptions struct {
	APIKey      string
	OpenAIKey   string
	CookiesPath string
	TempDir     string
	Mode        string
	NeedsFFmpeg bool
}

type DoctorResult struct {
	OK     bool          `json:"ok"`
	Checks []DoctorCheck `json:"checks"`
}

// DoctorCheck is one environment check. Optional checks never fail the
// overall result.
type DoctorCheck struct {
	Name     string `json:"name"`
	OK       bool   `json:"ok"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message"`
}

func Doctor(opts DoctorOptions) (DoctorResult, error) {
	checks := make([]DoctorCheck, 0, 6)
	dep := ytdlp.DependencyStatus()
	checks = append(checks, DoctorCheck{
		Name:    "dependency:yt-dlp",
		OK:      dep.YTDLPFound,
		Message: dependencyMessage(dep.YTDLPFound, dep.YTDLPPath, "yt-dlp"),
	})
	checks = append(checks, DoctorCheck{
		Name:     "dependency:ffmpeg",
		OK:       dep.FFmpegFound,
		Optional: !opts.NeedsFFmpeg,
		Message:  dependencyMessage(dep.FFmpegFound, dep.FFmpegPath, "ffmpeg"),
	})

	checks = append(checks, keyCheck("credential:youtube_api_key", opts.APIKey, true,
		"set; channel enumeration uses the Data API",
		"not set; falling back to scraped channel listings"))

	audioNeeded := !strings.EqualFold(strings.TrimSpace(opts.Mode), "captions")
	checks = append(checks, keyCheck("credential:openai_api_key", opts.OpenAIKey, !audioNeeded,
		"set; audio transcription available",
		"not set; audio transcription fallback will fail"))

	if p := strings.TrimSpace(opts.CookiesPath); p != "" {
		ok, msg := readableFile(p)
		checks = append(checks, DoctorCheck{Name: "file:cookies", OK: ok, Message: msg})
	}

	tmp := strings.TrimSpace(opts.TempDir)
	if tmp == "" {
		tmp = os.TempDir()
	}
	tmpOK, tmpMessage := ensureWritableDir(tmp)
	checks = append(checks, DoctorCheck{
		Name:    "directory:temp",
		OK:      tmpOK,
		Message: tmpMessage,
	})

	ok := true
	for _, c := range checks {
		if !c.OK && !c.Optional {
			ok = false
			break
		}
	}

	return DoctorResult{OK: ok, Checks: checks}, nil
}

func keyCheck(name, value string, optional bool, setMsg, unsetMsg string) DoctorCheck {
	if strings.TrimSpace(value) != "" {
		return DoctorCheck{Name: name, OK: true, Optional: optional, Message: setMsg}
	}
	return DoctorCheck{Name: name, OK: false, Optional: optional, Message: unsetMsg}
}

func dependencyMessage(ok bool, path, name string) string {
	if ok {
		return name + " found at " + path
	}
	return name + " not found on PATH"
}

func readableFile(path string) (bool, string) {
	f, err := os.Open(path)
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	return true, "readable"
}

func ensureWritableDir(path string) (bool, string) {
	if strings.TrimSpace(path) == "" {
		return false, "empty path"
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return false, err.Error()
	}
	f, err := os.CreateTemp(path, "yt-channel-scan-check-*.tmp")
	if err != nil {
		return false, err.Error()
	}
	_ = f.Close()
	_ = os.Remove(f.Name())
	return true, "writable"
}
