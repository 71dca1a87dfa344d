package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Binary is the yt-dlp executable looked up on PATH.
var Binary = "yt-dlp"

const AudioFormat = "bestaudio[filesize<25M]/bestaudio[ext=m4a][filesize<25M]/bestaudio[ext=webm][filesize<25M]/worstaudio/worstaudio[ext=m4a]/worstaudio[ext=webm]"

var rePct = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)

type OutputStream string

const (
	StreamStdout OutputStream = "stdout"
	StreamStderr OutputStream = "stderr"
)

type FlatPlaylistOptions struct {
	SourceURL   string
	CookiesPath string
	PlaylistEnd int
	JSRuntime   string
}

type InfoOptions struct {
	VideoURL    string
	CookiesPath string
	JSRuntime   string
}

type AudioOptions struct {
	VideoURL    string
	OutputDir   string
	CookiesPath string
	JSRuntime   string
	LogWriter   io.Writer
	Progress    func(stream OutputStream, line string)
}

type DependencyReport struct {
	YTDLPFound  bool   `json:"yt_dlp_found"`
	YTDLPPath   string `json:"yt_dlp_path,omitempty"`
	FFmpegFound bool   `json:"ffmpeg_found"`
	FFmpegPath  string `json:"ffmpeg_path,omitempty"`
}

func CheckJSRuntime(raw string) (string, error) {
	runtime, ok := normalizeJSRuntime(raw)
	if !ok {
		return "", fmt.Errorf("invalid js runtime %q (expected auto, deno, node, quickjs, or bun)", strings.TrimSpace(raw))
	}
	if runtime == "auto" {
		return runtime, nil
	}
	candidates := jsRuntimeBinaryCandidates(runtime)
	for _, bin := range candidates {
		if _, err := exec.LookPath(bin); err == nil {
			return runtime, nil
		}
	}
	return "", fmt.Errorf("missing dependency for js runtime %q: install one of [%s] or set js runtime to auto", runtime, strings.Join(candidates, ", "))
}

func DependencyStatus() DependencyReport {
	report := DependencyReport{}
	if path, err := exec.LookPath(Binary); err == nil {
		report.YTDLPFound = true
		report.YTDLPPath = path
	}
	if path, err := exec.LookPath("ffmpeg"); err == nil {
		report.FFmpegFound = true
		report.FFmpegPath = path
	}
	return report
}

// CheckDependencies only requires yt-dlp; ffmpeg is optional because audio
// is downloaded as-is without remuxing.
func CheckDependencies() error {
	report := DependencyStatus()
	if !report.YTDLPFound {
		return fmt.Errorf("missing dependency: yt-dlp is not installed or not on PATH")
	}
	return nil
}

func FlatPlaylistJSON(ctx context.Context, opts FlatPlaylistOptions) ([]byte, error) {
	if strings.TrimSpace(opts.SourceURL) == "" {
		return nil, fmt.Errorf("source URL is required")
	}

	args := []string{"--flat-playlist", "-J", "--no-warnings"}
	if opts.PlaylistEnd > 0 {
		args = append(args, "--playlist-end", fmt.Sprintf("%d", opts.PlaylistEnd))
	}
	args, err := appendCommonArgs(args, opts.CookiesPath, opts.JSRuntime)
	if err != nil {
		return nil, err
	}
	args = append(args, opts.SourceURL)
	return runJSON(ctx, args)
}

func VideoInfoJSON(ctx context.Context, opts InfoOptions) ([]byte, error) {
	if strings.TrimSpace(opts.VideoURL) == "" {
		return nil, fmt.Errorf("video URL is required")
	}

	args := []string{"-J", "--skip-download", "--no-playlist", "--no-warnings"}
	args, err := appendCommonArgs(args, opts.CookiesPath, opts.JSRuntime)
	if err != nil {
		return nil, err
	}
	args = append(args, opts.VideoURL)
	return runJSON(ctx, args)
}

// DownloadAudio fetches a single audio stream into OutputDir and returns the
// path of the written file.
func DownloadAudio(ctx context.Context, opts AudioOptions) (string, error) {
	if strings.TrimSpace(opts.VideoURL) == "" {
		return "", fmt.Errorf("video URL is required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return "", fmt.Errorf("output directory is required")
	}

	args := []string{
		"--no-playlist",
		"--newline",
		"--no-part",
		"-f", AudioFormat,
		"-P", opts.OutputDir,
		"-o", "%(id)s.%(ext)s",
	}
	args, err := appendCommonArgs(args, opts.CookiesPath, opts.JSRuntime)
	if err != nil {
		return "", err
	}
	args = append(args, opts.VideoURL)

	if err := runCommand(ctx, args, opts.LogWriter, opts.Progress); err != nil {
		return "", err
	}
	return findDownloadedFile(opts.OutputDir)
}

// ParseDownloadPercent extracts the completion percentage from a
// "[download]" progress line.
func ParseDownloadPercent(line string) (string, bool) {
	l := strings.TrimSpace(line)
	if !strings.HasPrefix(l, "[download]") {
		return "", false
	}
	m := rePct.FindStringSubmatch(l)
	if len(m) < 2 {
		return "", false
	}
	return m[1] + "%", true
}

func findDownloadedFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read audio directory %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || strings.HasSuffix(e.Name(), ".part") {
			continue
		}
		return filepath.Join(dir, e.Name()), nil
	}
	return "", fmt.Errorf("audio_not_found: yt-dlp produced no file in %s", dir)
}

func appendCommonArgs(args []string, cookiesPath, jsRuntime string) ([]string, error) {
	if strings.TrimSpace(cookiesPath) != "" {
		resolved, err := resolveCookiesPath(cookiesPath)
		if err != nil {
			return nil, err
		}
		args = append(args, "--cookies", resolved)
	}
	return appendJSRuntimeArgs(args, jsRuntime)
}

func appendJSRuntimeArgs(args []string, rawRuntime string) ([]string, error) {
	runtime, ok := normalizeJSRuntime(rawRuntime)
	if !ok {
		return nil, fmt.Errorf("invalid js runtime %q (expected auto, deno, node, quickjs, or bun)", strings.TrimSpace(rawRuntime))
	}
	if runtime == "auto" {
		return args, nil
	}
	return append(args, "--no-js-runtimes", "--js-runtimes", runtime), nil
}

func normalizeJSRuntime(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return "auto", true
	case "deno", "node", "quickjs", "bun":
		return strings.ToLower(strings.TrimSpace(raw)), true
	default:
		return "", false
	}
}

func jsRuntimeBinaryCandidates(runtime string) []string {
	switch runtime {
	case "quickjs":
		return []string{"quickjs", "qjs"}
	default:
		return []string{runtime}
	}
}

func runJSON(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, Binary, args...)
	cmd.WaitDelay = 2 * time.Second
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, lastLines(stderr.String(), 4))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("yt-dlp returned empty output")
	}
	return stdout.Bytes(), nil
}

func runCommand(ctx context.Context, args []string, logW io.Writer, progress func(OutputStream, string)) error {
	cmd := exec.CommandContext(ctx, Binary, args...)
	cmd.WaitDelay = 2 * time.Second

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("setup stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("setup stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start yt-dlp: %w", err)
	}

	var outBuf strings.Builder
	var errBuf strings.Builder
	var mu sync.Mutex
	var wg sync.WaitGroup

	read := func(stream OutputStream, r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)
		scanner.Split(splitByNewlineOrCR)
		for scanner.Scan() {
			line := scanner.Text()
			mu.Lock()
			appendLimited(&outBuf, &errBuf, stream, line)
			if logW != nil {
				_, _ = io.WriteString(logW, line+"\n")
			}
			mu.Unlock()

			if progress != nil {
				progress(stream, line)
			}
		}
	}

	wg.Add(2)
	go read(StreamStdout, stdoutPipe)
	go read(StreamStderr, stderrPipe)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		mu.Lock()
		defer mu.Unlock()
		return fmt.Errorf("yt-dlp failed: %w: %s", err, lastLines(errBuf.String(), 4))
	}
	return nil
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i := 0; i < len(data); i++ {
		if data[i] == '\n' || data[i] == '\r' {
			if i == 0 {
				return 1, nil, nil
			}
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func appendLimited(outBuf, errBuf *strings.Builder, stream OutputStream, line string) {
	const maxKeep = 8192
	b := outBuf
	if stream == StreamStderr {
		b = errBuf
	}
	if b.Len() >= maxKeep {
		return
	}
	toWrite := line + "\n"
	remain := maxKeep - b.Len()
	if len(toWrite) > remain {
		toWrite = toWrite[:remain]
	}
	b.WriteString(toWrite)
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

func resolveCookiesPath(path string) (string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve cookies path %s: %w", p, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("cookies file %s: %w", abs, err)
	}
	return abs, nil
}
