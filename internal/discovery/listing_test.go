package discovery

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-channel-scan/internal/model"
	"yt-channel-scan/internal/ytdlp"
)

func installFakeYTDLP(t *testing.T, script string) {
	t.Helper()
	fakeBin := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	body := "#!/usr/bin/env bash\nset -euo pipefail\n" + script
	if err := os.WriteFile(filepath.Join(fakeBin, "yt-dlp"), []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))
}

const listingScript = `
url="${@: -1}"
case "$url" in
  *"/videos"*)
    echo '{"id":"UCx","channel":"Chan","channel_id":"UCx","entries":[
      {"id":"aaaaaaaaaaa","url":"https://www.youtube.com/watch?v=aaaaaaaaaaa","title":"Long","duration":600},
      {"id":"ppppppppppp","url":"https://www.youtube.com/watch?v=ppppppppppp","title":"[Private video]"},
      {"id":"sssssssssss","url":"https://www.youtube.com/shorts/sssssssssss","title":"dup"}]}'
    ;;
  *"/shorts"*)
    echo '{"id":"UCx","entries":[
      {"id":"sssssssssss","url":"https://www.youtube.com/shorts/sssssssssss","title":"Short"},
      {"id":"ttttttttttt","url":"ttttttttttt","title":"Bare"}]}'
    ;;
  *"watch?v="*)
    echo '{"id":"aaaaaaaaaaa","title":"Long","webpage_url":"https://www.youtube.com/watch?v=aaaaaaaaaaa",
      "view_count":1500,"like_count":20,"duration":600,"upload_date":"20240131","channel":"Chan",
      "subtitles":{"en":[{"ext":"vtt","url":"https://x/en.vtt"}]}}'
    ;;
  *)
    echo "ERROR: unsupported" >&2
    exit 1
    ;;
esac
`

func TestListingSource_EnumerateDedupesAcrossTabs(t *testing.T) {
	installFakeYTDLP(t, listingScript)
	src := NewListingSource("", "", zerolog.Nop())
	src.Delay = 0

	en, err := src.Enumerate(context.Background(), EnumerateRequest{
		ChannelURL:   "https://www.youtube.com/@chan",
		ContentType:  model.ContentBoth,
		ScanLimit:    10,
		PopularFirst: true,
	})
	require.NoError(t, err)

	ids := make([]string, 0, len(en.Candidates))
	for _, c := range en.Candidates {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"aaaaaaaaaaa", "sssssssssss", "ttttttttttt"}, ids)
	assert.Equal(t, "https://www.youtube.com/watch?v=ttttttttttt", en.Candidates[2].URL)
	assert.Equal(t, 600, *en.Candidates[0].DurationSeconds)
	assert.Equal(t, "Chan", en.ChannelTitle)
	assert.False(t, en.ViewsKnown)
	assert.Contains(t, strings.Join(en.Diagnostics, "\n"), "view=0&sort=p&flow=grid")
}

func TestListingSource_FailedTabIsDiagnosed(t *testing.T) {
	installFakeYTDLP(t, `echo "ERROR: boom" >&2; exit 1`)
	src := NewListingSource("", "", zerolog.Nop())
	src.Delay = 0

	en, err := src.Enumerate(context.Background(), EnumerateRequest{
		ChannelURL:  "https://www.youtube.com/@chan",
		ContentType: model.ContentShorts,
	})
	require.NoError(t, err)
	assert.Empty(t, en.Candidates)
	assert.Contains(t, strings.Join(en.Diagnostics, "\n"), "List extraction failed")
}

func TestListingSource_DetailMapsInfo(t *testing.T) {
	installFakeYTDLP(t, listingScript)
	src := NewListingSource("", "", zerolog.Nop())

	rec, info, err := src.Detail(context.Background(), model.VideoCandidate{
		ID:  "aaaaaaaaaaa",
		URL: "https://www.youtube.com/watch?v=aaaaaaaaaaa",
	})
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, int64(1500), *rec.ViewCount)
	assert.Equal(t, int64(20), *rec.LikeCount)
	assert.Nil(t, rec.CommentCount)
	assert.Equal(t, "2024-01-31", rec.PublishedAt)
	assert.False(t, rec.IsShort)
	assert.Equal(t, "Chan", rec.ChannelTitle)
	assert.Len(t, info.Subtitles["en"], 1)
}

func TestCandidateFromEntry_SkipsPrivate(t *testing.T) {
	_, ok := candidateFromEntry(ytdlp.PlaylistEntry{ID: "xxxxxxxxxxx", Title: "[Deleted video]"})
	assert.False(t, ok)
	c, ok := candidateFromEntry(ytdlp.PlaylistEntry{ID: "xxxxxxxxxxx", Title: "fine"})
	require.True(t, ok)
	assert.Equal(t, "https://www.youtube.com/watch?v=xxxxxxxxxxx", c.URL)
}
