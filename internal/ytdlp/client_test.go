package ytdlp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// installFakeYTDLP puts a shell script named yt-dlp first on PATH.
func installFakeYTDLP(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	argsLog := filepath.Join(dir, "args.log")
	body := "#!/usr/bin/env bash\nset -euo pipefail\necho \"$@\" >> \"" + argsLog + "\"\n" + script
	require.NoError(t, os.WriteFile(filepath.Join(dir, "yt-dlp"), []byte(body), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
	return argsLog
}

func readArgs(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFlatPlaylistJSON_PassesPlaylistEndAndCookies(t *testing.T) {
	argsLog := installFakeYTDLP(t, `echo '{"id":"UCx","entries":[{"id":"abc","url":"https://www.youtube.com/shorts/abc","duration":30}]}'`)
	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(cookies, []byte("# Netscape HTTP Cookie File\n"), 0o600))

	data, err := FlatPlaylistJSON(context.Background(), FlatPlaylistOptions{
		SourceURL:   "https://www.youtube.com/@h/shorts",
		CookiesPath: cookies,
		PlaylistEnd: 30,
	})
	require.NoError(t, err)

	pl, err := ParsePlaylist(data)
	require.NoError(t, err)
	require.Len(t, pl.FlattenEntries(), 1)
	assert.Equal(t, 30.0, *pl.Entries[0].Duration)

	args := readArgs(t, argsLog)
	assert.Contains(t, args, "--flat-playlist -J")
	assert.Contains(t, args, "--playlist-end 30")
	assert.Contains(t, args, "--cookies "+cookies)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(args), "https://www.youtube.com/@h/shorts"))
}

func TestFlatPlaylistJSON_MissingCookiesFile(t *testing.T) {
	installFakeYTDLP(t, `echo '{}'`)
	_, err := FlatPlaylistJSON(context.Background(), FlatPlaylistOptions{
		SourceURL:   "https://www.youtube.com/@h",
		CookiesPath: filepath.Join(t.TempDir(), "missing.txt"),
	})
	assert.Error(t, err)
}

func TestVideoInfoJSON_ParsesCaptionMaps(t *testing.T) {
	installFakeYTDLP(t, `cat <<'EOF'
{"id":"abc","title":"T","webpage_url":"https://www.youtube.com/watch?v=abc","view_count":1200,"duration":59.6,
 "subtitles":{"en":[{"ext":"vtt","url":"https://x/en.vtt"}]},
 "automatic_captions":{"de":[{"ext":"srv3","url":"https://x/de.srv3"}]}}
EOF`)
	data, err := VideoInfoJSON(context.Background(), InfoOptions{VideoURL: "https://www.youtube.com/watch?v=abc"})
	require.NoError(t, err)

	info, err := ParseVideoInfo(data)
	require.NoError(t, err)
	require.NotNil(t, info.ViewCount)
	assert.Equal(t, int64(1200), *info.ViewCount)
	assert.Nil(t, info.LikeCount)
	assert.Equal(t, 60, *info.DurationSeconds())
	assert.Equal(t, "https://x/en.vtt", info.Subtitles["en"][0].URL)
	assert.Equal(t, "srv3", info.AutomaticCaptions["de"][0].Ext)
}

func TestVideoInfoJSON_FailureIncludesStderr(t *testing.T) {
	installFakeYTDLP(t, `echo "ERROR: [youtube] abc: Private video" >&2; exit 1`)
	_, err := VideoInfoJSON(context.Background(), InfoOptions{VideoURL: "https://www.youtube.com/watch?v=abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Private video")
}

func TestVideoInfoJSON_RespectsContextCancel(t *testing.T) {
	installFakeYTDLP(t, `exec sleep 5`)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := VideoInfoJSON(ctx, InfoOptions{VideoURL: "https://www.youtube.com/watch?v=abc"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDownloadAudio_ReturnsWrittenFile(t *testing.T) {
	argsLog := installFakeYTDLP(t, `
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-P" ]; then out="$2"; fi
  shift
done
echo "[download]  42.0% of 1.00MiB at 1.00MiB/s ETA 00:01"
printf 'audio' > "$out/abc.m4a"
`)
	dir := t.TempDir()
	var lines []string
	path, err := DownloadAudio(context.Background(), AudioOptions{
		VideoURL:  "https://www.youtube.com/watch?v=abc",
		OutputDir: dir,
		Progress: func(_ OutputStream, line string) {
			lines = append(lines, line)
		},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc.m4a"), path)
	assert.Contains(t, readArgs(t, argsLog), AudioFormat)

	require.NotEmpty(t, lines)
	pct, ok := ParseDownloadPercent(lines[0])
	assert.True(t, ok)
	assert.Equal(t, "42.0%", pct)
}

func TestParseDownloadPercent_IgnoresOtherLines(t *testing.T) {
	_, ok := ParseDownloadPercent("[youtube] abc: Downloading 100% webpage")
	assert.False(t, ok)
}

func TestFlattenEntries_ExpandsNestedTabs(t *testing.T) {
	pl, err := ParsePlaylist([]byte(`{"id":"UCx","entries":[
		{"_type":"playlist","id":"videos","entries":[{"id":"a"},{"id":"b"}]},
		{"_type":"playlist","id":"shorts","entries":[{"id":"c"}]}
	]}`))
	require.NoError(t, err)
	ids := []string{}
	for _, e := range pl.FlattenEntries() {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestCheckJSRuntime_RejectsUnknown(t *testing.T) {
	_, err := CheckJSRuntime("rhino")
	assert.Error(t, err)
	rt, err := CheckJSRuntime("")
	require.NoError(t, err)
	assert.Equal(t, "auto", rt)
}
