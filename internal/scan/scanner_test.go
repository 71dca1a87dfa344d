package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-channel-scan/internal/discovery"
	"yt-channel-scan/internal/model"
	"yt-channel-scan/internal/transcript"
	"yt-channel-scan/internal/ytdlp"
)

type fakeFetcher struct {
	en        discovery.Enumeration
	enumErr   error
	records   map[string]model.VideoRecord
	detailErr map[string]error
	details   []string
}

func (f *fakeFetcher) Enumerate(context.Context, discovery.EnumerateRequest) (discovery.Enumeration, error) {
	return f.en, f.enumErr
}

func (f *fakeFetcher) Detail(_ context.Context, c model.VideoCandidate) (model.VideoRecord, *ytdlp.VideoInfo, error) {
	f.details = append(f.details, c.ID)
	if err := f.detailErr[c.ID]; err != nil {
		return model.VideoRecord{}, nil, err
	}
	rec, ok := f.records[c.ID]
	if !ok {
		return model.VideoRecord{}, nil, discovery.ErrNoDetail
	}
	return rec, &ytdlp.VideoInfo{ID: c.ID}, nil
}

type fakeResolver struct {
	calls []transcript.Request
	res   transcript.Result
}

func (f *fakeResolver) Resolve(_ context.Context, req transcript.Request) transcript.Result {
	f.calls = append(f.calls, req)
	return f.res
}

func short(id string, views int64) (model.VideoCandidate, model.VideoRecord) {
	url := "https://www.youtube.com/shorts/" + id
	c := model.VideoCandidate{ID: id, URL: url, Title: "title " + id}
	r := model.VideoRecord{
		VideoID:         id,
		URL:             url,
		Title:           "title " + id,
		ViewCount:       model.Int64Ptr(views),
		DurationSeconds: model.IntPtr(30),
		IsShort:         true,
	}
	return c, r
}

func newFixture(views ...int64) *fakeFetcher {
	f := &fakeFetcher{records: map[string]model.VideoRecord{}, detailErr: map[string]error{}}
	for i, v := range views {
		c, r := short(fmt.Sprintf("vid%02d", i), v)
		f.en.Candidates = append(f.en.Candidates, c)
		f.records[c.ID] = r
	}
	return f
}

func testRequest() Request {
	req := DefaultRequest()
	req.ChannelRef = "@example"
	req.DetailDelay = 0
	req.ListingDelay = 0
	return req
}

func okResolver() *fakeResolver {
	return &fakeResolver{res: transcript.Result{
		Text:   "hello world",
		Status: model.TranscriptOK,
		Source: transcript.SourceService,
		Format: "json3",
		Method: transcript.MethodCaptionsThen,
	}}
}

func TestRun_RanksQualifyingRecordsByViews(t *testing.T) {
	f := newFixture(10, 500000, 20, 900000, 30, 40, 300000, 50, 60, 70)
	res := okResolver()
	s := &Scanner{Fetcher: f, Resolver: res, Log: zerolog.Nop()}

	req := testRequest()
	req.MaxResults = 10
	req.PopularFirst = false

	out, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, out.Records, 3)

	assert.Equal(t, "vid03", out.Records[0].VideoID)
	assert.Equal(t, "vid01", out.Records[1].VideoID)
	assert.Equal(t, "vid06", out.Records[2].VideoID)
	for i, r := range out.Records {
		assert.Equal(t, i+1, r.Rank)
		views, ok := r.Views()
		require.True(t, ok)
		assert.GreaterOrEqual(t, views, req.MinViews)
		assert.Equal(t, "hello world", r.Transcript)
		assert.Equal(t, model.TranscriptOK, r.TranscriptStatus)
	}
	assert.Len(t, res.calls, 3, "transcripts are resolved only for qualifying videos")
	assert.Equal(t, 10, out.Stats.Inspected)
	assert.Equal(t, 7, out.Stats.BelowThreshold)
	assert.False(t, out.Stats.EarlyStopped)
	assert.NotEmpty(t, out.ScanID)
	assert.Equal(t, "https://www.youtube.com/@example", out.ChannelURL)
}

func TestRun_EarlyStopAfterStreakExceedsTolerance(t *testing.T) {
	views := []int64{900000}
	for i := 0; i < 20; i++ {
		views = append(views, 100)
	}
	views = append(views, 800000)
	f := newFixture(views...)
	s := &Scanner{Fetcher: f, Resolver: okResolver(), Log: zerolog.Nop()}

	req := testRequest()
	req.StreakTolerance = 3

	out, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.True(t, out.Stats.EarlyStopped)
	// one qualifying video, then tolerance+1 misses
	assert.Len(t, f.details, 1+4)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "vid00", out.Records[0].VideoID)
	assert.True(t, containsLine(out.Diagnostics, "Early stop: 4 consecutive videos"), out.Diagnostics)
}

func TestRun_StreakResetsOnQualifyingVideo(t *testing.T) {
	f := newFixture(100, 100, 900000, 100, 100, 800000, 100)
	s := &Scanner{Fetcher: f, Resolver: okResolver(), Log: zerolog.Nop()}

	req := testRequest()
	req.StreakTolerance = 2

	out, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.False(t, out.Stats.EarlyStopped)
	assert.Len(t, out.Records, 2)
	assert.Len(t, f.details, 7)
}

func TestRun_NoEarlyStopWithoutPopularOrder(t *testing.T) {
	f := newFixture(1, 2, 3, 4, 5, 6, 900000)
	s := &Scanner{Fetcher: f, Resolver: okResolver(), Log: zerolog.Nop()}

	req := testRequest()
	req.StreakTolerance = 1
	req.PopularFirst = false

	out, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.False(t, out.Stats.EarlyStopped)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "vid06", out.Records[0].VideoID)
}

func TestRun_StopsAtMaxResults(t *testing.T) {
	f := newFixture(400000, 500000, 600000, 700000, 800000)
	res := okResolver()
	s := &Scanner{Fetcher: f, Resolver: res, Log: zerolog.Nop()}

	req := testRequest()
	req.MaxResults = 2

	out, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, out.Records, 2)
	assert.Len(t, f.details, 2)
	assert.Len(t, res.calls, 2)
	assert.Equal(t, "vid01", out.Records[0].VideoID)
	assert.True(t, containsLine(out.Diagnostics, "Reached max_results=2"))
}

func TestRun_PreSortsWhenListingViewsKnown(t *testing.T) {
	f := newFixture(100, 900000, 500000)
	for i := range f.en.Candidates {
		v := *f.records[f.en.Candidates[i].ID].ViewCount
		f.en.Candidates[i].ViewCount = model.Int64Ptr(v)
	}
	f.en.ViewsKnown = true
	s := &Scanner{Fetcher: f, Resolver: okResolver(), Log: zerolog.Nop()}

	out, err := s.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"vid01", "vid02", "vid00"}, f.details)
	assert.Len(t, out.Records, 2)
}

func TestRun_SortsBeforeApplyingScanLimit(t *testing.T) {
	f := newFixture(100, 200, 300, 900000, 800000, 700000)
	for i := range f.en.Candidates {
		f.en.Candidates[i].ViewCount = f.records[f.en.Candidates[i].ID].ViewCount
	}
	f.en.ViewsKnown = true
	s := &Scanner{Fetcher: f, Resolver: okResolver(), Log: zerolog.Nop()}

	req := testRequest()
	req.ScanLimit = 3
	req.MinViews = 500000

	out, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"vid03", "vid04", "vid05"}, f.details)
	require.Len(t, out.Records, 3)
	assert.Equal(t, "vid03", out.Records[0].VideoID)

	states := map[string]string{}
	for _, c := range out.Candidates {
		states[c.ID] = c.State
	}
	assert.Equal(t, model.StateScanTerminated, states["vid00"])
	assert.Equal(t, model.StateCollected, states["vid05"])
}

func TestRun_EveryCandidateEndsTerminal(t *testing.T) {
	views := []int64{900000, 10, 800000}
	for i := 0; i < 15; i++ {
		views = append(views, 100)
	}
	f := newFixture(views...)
	f.en.Candidates[1].DurationSeconds = model.IntPtr(900)
	f.detailErr["vid02"] = errors.New("private video")
	rec := f.records["vid03"]
	rec.ViewCount = nil
	f.records["vid03"] = rec

	var logs strings.Builder
	s := &Scanner{Fetcher: f, Resolver: okResolver(), Log: zerolog.New(&logs).Level(zerolog.DebugLevel)}
	req := testRequest()
	req.StreakTolerance = 2

	out, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, out.Candidates, len(views))
	for _, c := range out.Candidates {
		assert.True(t, model.IsTerminalState(c.State), "%s ended in %q", c.ID, c.State)
	}
	assert.NotContains(t, logs.String(), "illegal candidate transition")

	// A rejected move is logged and leaves the candidate unchanged.
	c := model.VideoCandidate{ID: "x", State: model.StateCollected}
	assert.False(t, s.transition(s.Log, &c, model.StatePending, ""))
	assert.Equal(t, model.StateCollected, c.State)
	assert.Contains(t, logs.String(), "illegal candidate transition")
}

func TestRun_ContentTypeFilter(t *testing.T) {
	f := newFixture(900000, 900000, 900000)
	// Known long duration overrides the /shorts/ route before detail.
	f.en.Candidates[1].DurationSeconds = model.IntPtr(600)
	// Detail reveals a long video the listing could not classify.
	rec := f.records["vid02"]
	rec.IsShort = false
	rec.DurationSeconds = model.IntPtr(1200)
	f.records["vid02"] = rec

	s := &Scanner{Fetcher: f, Resolver: okResolver(), Log: zerolog.Nop()}
	out, err := s.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)

	require.Len(t, out.Records, 1)
	assert.Equal(t, "vid00", out.Records[0].VideoID)
	assert.Equal(t, 3, out.Stats.Enumerated)
	assert.Equal(t, 2, out.Stats.AfterTypeFilter)
	assert.Equal(t, 2, out.Stats.TypeMismatch)
	assert.NotContains(t, f.details, "vid01")
}

func TestRun_ZeroViewsKeptUnknownViewsDropped(t *testing.T) {
	f := newFixture(0, 0)
	rec := f.records["vid01"]
	rec.ViewCount = nil
	f.records["vid01"] = rec

	s := &Scanner{Fetcher: f, Resolver: okResolver(), Log: zerolog.Nop()}
	req := testRequest()
	req.MinViews = 0

	out, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "vid00", out.Records[0].VideoID)
	assert.Equal(t, 1, out.Stats.UnknownViews)
}

func TestRun_DetailFailureDoesNotAbort(t *testing.T) {
	f := newFixture(900000, 800000)
	f.detailErr["vid00"] = errors.New("Sign in to confirm your age")

	s := &Scanner{Fetcher: f, Resolver: okResolver(), Log: zerolog.Nop()}
	out, err := s.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, "vid01", out.Records[0].VideoID)
	assert.Equal(t, 1, out.Stats.DetailFailures)
}

func TestRun_EmptyResultExplainsWhy(t *testing.T) {
	f := newFixture(10, 250000)
	s := &Scanner{Fetcher: f, Resolver: okResolver(), Log: zerolog.Nop()}

	out, err := s.Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.Empty(t, out.Records)
	assert.NotNil(t, out.Records)
	assert.True(t, containsLine(out.Diagnostics, "highest seen had 250000 views"), out.Diagnostics)

	out, err = (&Scanner{Fetcher: &fakeFetcher{}, Resolver: okResolver(), Log: zerolog.Nop()}).Run(context.Background(), testRequest(), nil)
	require.NoError(t, err)
	assert.True(t, containsLine(out.Diagnostics, "No videos were enumerated"))
}

func TestRun_HidesErrorDetailsWhenDisabled(t *testing.T) {
	f := newFixture(900000)
	res := &fakeResolver{res: transcript.Result{Status: model.TranscriptBlocked, Err: "service: 429"}}
	s := &Scanner{Fetcher: f, Resolver: res, Log: zerolog.Nop()}

	req := testRequest()
	req.IncludeErrorDetails = false
	out, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, out.Records, 1)
	assert.Equal(t, model.TranscriptBlocked, out.Records[0].TranscriptStatus)
	assert.Empty(t, out.Records[0].TranscriptError)
}

func TestRun_PassesInfoAndLanguageToResolver(t *testing.T) {
	f := newFixture(900000)
	res := okResolver()
	s := &Scanner{Fetcher: f, Resolver: res, Log: zerolog.Nop()}

	req := testRequest()
	req.Language = "de"
	req.AllowAuto = false
	_, err := s.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Len(t, res.calls, 1)
	assert.Equal(t, "de", res.calls[0].Language)
	assert.False(t, res.calls[0].AllowAuto)
	require.NotNil(t, res.calls[0].Info)
	assert.Equal(t, "vid00", res.calls[0].Info.ID)
}

func TestRun_ReportsProgress(t *testing.T) {
	f := newFixture(900000, 100)
	s := &Scanner{Fetcher: f, Resolver: okResolver(), Log: zerolog.Nop()}

	var seen []Progress
	_, err := s.Run(context.Background(), testRequest(), func(p Progress) { seen = append(seen, p) })
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.Equal(t, 0, seen[0].Current)
	last := seen[len(seen)-1]
	assert.Equal(t, 2, last.Current)
	assert.Equal(t, 2, last.Total)
	assert.Equal(t, 1, last.Qualifying)
}

func TestRun_CanceledReturnsPartial(t *testing.T) {
	f := newFixture(900000, 800000, 700000)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Scanner{Fetcher: f, Resolver: okResolver(), Log: zerolog.Nop()}
	out, err := s.Run(ctx, testRequest(), func(p Progress) {
		if p.Qualifying == 1 {
			cancel()
		}
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, out.Records, 1)
	assert.Equal(t, 1, out.Records[0].Rank)
}

func TestRun_InvalidInput(t *testing.T) {
	s := &Scanner{Fetcher: &fakeFetcher{}, Resolver: okResolver(), Log: zerolog.Nop()}
	for name, mutate := range map[string]func(*Request){
		"empty channel":  func(r *Request) { r.ChannelRef = "   " },
		"zero limit":     func(r *Request) { r.ScanLimit = 0 },
		"zero results":   func(r *Request) { r.MaxResults = 0 },
		"negative views": func(r *Request) { r.MinViews = -1 },
		"bad type":       func(r *Request) { r.ContentType = "clips" },
	} {
		t.Run(name, func(t *testing.T) {
			req := testRequest()
			mutate(&req)
			_, err := s.Run(context.Background(), req, nil)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestRun_EnumerationErrorIsFatal(t *testing.T) {
	s := &Scanner{Fetcher: &fakeFetcher{enumErr: discovery.ErrChannelNotFound}, Resolver: okResolver(), Log: zerolog.Nop()}
	_, err := s.Run(context.Background(), testRequest(), nil)
	require.ErrorIs(t, err, discovery.ErrChannelNotFound)
}

func TestBuild_ScopesPastedCookies(t *testing.T) {
	req := testRequest()
	req.CookiesText = "# Netscape HTTP Cookie File\n.youtube.com\tTRUE\t/\tTRUE\t0\tSID\tabc\n"

	s, release, err := Build(context.Background(), req, Env{Log: zerolog.Nop()})
	require.NoError(t, err)
	src, ok := s.Fetcher.(*discovery.ListingSource)
	require.True(t, ok, "no API key selects the listing source")
	require.NotEmpty(t, src.CookiesPath)

	info, err := os.Stat(src.CookiesPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	release()
	_, err = os.Stat(src.CookiesPath)
	assert.True(t, os.IsNotExist(err))
}

func TestBuild_APIKeySelectsAPISource(t *testing.T) {
	req := testRequest()
	req.APIKey = "key"
	s, release, err := Build(context.Background(), req, Env{Log: zerolog.Nop()})
	require.NoError(t, err)
	defer release()
	_, ok := s.Fetcher.(*discovery.APISource)
	assert.True(t, ok)
}

func containsLine(lines []string, sub string) bool {
	for _, l := range lines {
		if strings.Contains(l, sub) {
			return true
		}
	}
	return false
}
