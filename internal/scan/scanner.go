package scan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"yt-channel-scan/internal/channel"
	"yt-channel-scan/internal/discovery"
	"yt-channel-scan/internal/model"
	"yt-channel-scan/internal/transcript"
)

// TranscriptResolver is satisfied by *transcript.Resolver.
type TranscriptResolver interface {
	Resolve(ctx context.Context, req transcript.Request) transcript.Result
}

type Progress struct {
	Current    int
	Total      int
	Qualifying int
	Message    string
}

type ProgressFunc func(Progress)

type Stats struct {
	Enumerated      int   `json:"enumerated"`
	AfterTypeFilter int   `json:"after_type_filter"`
	TypeMismatch    int   `json:"type_mismatch"`
	Inspected       int   `json:"inspected"`
	Qualifying      int   `json:"qualifying"`
	BelowThreshold  int   `json:"below_threshold"`
	UnknownViews    int   `json:"unknown_views"`
	DetailFailures  int   `json:"detail_failures"`
	EarlyStopped    bool  `json:"early_stopped"`
	HighestBelow    int64 `json:"highest_below_threshold,omitempty"`
}

type Result struct {
	ScanID       string              `json:"scan_id"`
	ChannelURL   string              `json:"channel_url"`
	ChannelID    string              `json:"channel_id,omitempty"`
	ChannelTitle string              `json:"channel_title,omitempty"`
	Records      []model.VideoRecord `json:"records"`
	Diagnostics  []string            `json:"diagnostics"`
	Stats        Stats               `json:"stats"`

	// Candidates holds every enumerated video with its final lifecycle state.
	Candidates []model.VideoCandidate `json:"-"`
}

type Scanner struct {
	Fetcher  discovery.Fetcher
	Resolver TranscriptResolver
	Log      zerolog.Logger
}

// Run scans one channel. Input and enumeration errors are returned; problems
// with a single video are recorded on its row or in the diagnostics. On
// cancellation the records collected so far are returned with ctx.Err().
func (s *Scanner) Run(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
	log := s.Log.With().Str("component", "scan").Logger()
	if progress == nil {
		progress = func(Progress) {}
	}
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	channelURL, err := channel.NormalizeReference(req.ChannelRef)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	res := Result{ScanID: uuid.NewString(), ChannelURL: channelURL}
	res.Diagnostics = append(res.Diagnostics, "Normalized channel URL: "+channelURL)
	log = log.With().Str("scan_id", res.ScanID).Logger()

	en, err := s.Fetcher.Enumerate(ctx, discovery.EnumerateRequest{
		ChannelURL:   channelURL,
		ContentType:  req.ContentType,
		ScanLimit:    req.ScanLimit,
		PopularFirst: req.PopularFirst,
	})
	if err != nil {
		return Result{}, fmt.Errorf("enumerate %s: %w", channelURL, err)
	}
	res.ChannelID = en.ChannelID
	res.ChannelTitle = en.ChannelTitle
	res.Diagnostics = append(res.Diagnostics, en.Diagnostics...)
	res.Stats.Enumerated = len(en.Candidates)

	cands := make([]model.VideoCandidate, 0, len(en.Candidates))
	var rejected []model.VideoCandidate
	for _, c := range en.Candidates {
		s.transition(log, &c, model.StatePending, "")
		if !req.ContentType.Matches(channel.IsShort(c.URL, c.DurationSeconds)) {
			s.transition(log, &c, model.StateFilteredOut, "content_type")
			res.Stats.TypeMismatch++
			rejected = append(rejected, c)
			continue
		}
		cands = append(cands, c)
	}
	res.Stats.AfterTypeFilter = len(cands)
	// Sort the whole window before cutting it so the scan limit keeps the
	// most viewed candidates, not the newest ones.
	if req.PopularFirst && en.ViewsKnown {
		sort.SliceStable(cands, func(i, j int) bool {
			return *cands[i].ViewCount > *cands[j].ViewCount
		})
	}
	window := cands
	if len(cands) > req.ScanLimit {
		s.terminate(log, cands[req.ScanLimit:], "scan_limit")
		cands = cands[:req.ScanLimit]
	}
	res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("Candidates after type filter: %d (scanning %d)", res.Stats.AfterTypeFilter, len(cands)))

	total := len(cands)
	var limiter *rate.Limiter
	if req.DetailDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(req.DetailDelay), 1)
	}
	records := make([]model.VideoRecord, 0, min(total, req.MaxResults))
	streak := 0
	stopAt := total

	for i := range cands {
		c := &cands[i]
		progress(Progress{
			Current:    i,
			Total:      total,
			Qualifying: len(records),
			Message:    fmt.Sprintf("Checking views + transcript (%d/%d)... qualifying: %d", i+1, total, len(records)),
		})
		if err := ctx.Err(); err != nil {
			s.terminate(log, cands[i:], "canceled")
			res.Records = rank(records)
			res.Stats.Qualifying = len(records)
			res.Candidates = append(rejected, window...)
			return res, err
		}

		if c.Detail == nil && limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				s.terminate(log, cands[i:i+1], "canceled")
				continue
			}
		}
		res.Stats.Inspected++
		rec, info, err := s.Fetcher.Detail(ctx, *c)
		if err != nil {
			s.transition(log, c, model.StateDropped, "detail_failed")
			res.Stats.DetailFailures++
			log.Debug().Err(err).Str("video_id", c.ID).Msg("detail fetch failed")
			continue
		}
		s.transition(log, c, model.StateDetailFetched, "")
		if rec.VideoID == "" {
			rec.VideoID = c.ID
		}
		if rec.URL == "" {
			rec.URL = firstNonEmpty(c.URL, channel.WatchURL(c.ID))
		}
		if rec.Title == "" {
			rec.Title = c.Title
		}

		if !req.ContentType.Matches(rec.IsShort) {
			s.transition(log, c, model.StateFilteredOut, "content_type")
			res.Stats.TypeMismatch++
			continue
		}
		views, ok := rec.Views()
		if !ok {
			s.transition(log, c, model.StateDropped, "views_unknown")
			res.Stats.UnknownViews++
			continue
		}
		if views < req.MinViews {
			s.transition(log, c, model.StateFilteredOut, "below_threshold")
			res.Stats.BelowThreshold++
			if views > res.Stats.HighestBelow {
				res.Stats.HighestBelow = views
			}
			if req.PopularFirst && req.EarlyStop {
				streak++
				if streak > req.StreakTolerance {
					res.Stats.EarlyStopped = true
					res.Diagnostics = append(res.Diagnostics, fmt.Sprintf(
						"Early stop: %d consecutive videos below min_views=%d after %d of %d candidates.",
						streak, req.MinViews, i+1, total))
					stopAt = i + 1
					break
				}
			}
			continue
		}
		streak = 0
		s.transition(log, c, model.StateQualifying, "")

		tr := s.Resolver.Resolve(ctx, transcript.Request{
			VideoID:   rec.VideoID,
			VideoURL:  rec.URL,
			Info:      info,
			Language:  req.Language,
			AllowAuto: req.AllowAuto,
		})
		rec.Transcript = tr.Text
		rec.TranscriptStatus = tr.Status
		rec.TranscriptSource = tr.Source
		rec.TranscriptFormat = tr.Format
		rec.TranscriptMethod = tr.Method
		if req.IncludeErrorDetails {
			rec.TranscriptError = tr.Err
		}
		s.transition(log, c, model.StateCollected, "")
		records = append(records, rec)
		log.Debug().Str("video_id", rec.VideoID).Int64("views", views).Str("transcript_status", string(tr.Status)).Msg("collected")

		if len(records) >= req.MaxResults {
			res.Diagnostics = append(res.Diagnostics, fmt.Sprintf("Reached max_results=%d after %d of %d candidates.", req.MaxResults, i+1, total))
			stopAt = i + 1
			break
		}
	}
	if stopAt < total {
		s.terminate(log, cands[stopAt:], "scan_stopped")
	}

	res.Records = rank(records)
	res.Stats.Qualifying = len(records)
	res.Candidates = append(rejected, window...)
	if len(records) == 0 {
		res.Diagnostics = append(res.Diagnostics, explainEmpty(req, res.Stats, total)...)
	}
	progress(Progress{
		Current:    total,
		Total:      total,
		Qualifying: len(records),
		Message:    fmt.Sprintf("Complete. Returning %d ranked result(s).", len(records)),
	})
	log.Info().
		Int("enumerated", res.Stats.Enumerated).
		Int("inspected", res.Stats.Inspected).
		Int("qualifying", res.Stats.Qualifying).
		Bool("early_stopped", res.Stats.EarlyStopped).
		Msg("scan finished")
	return res, nil
}

func (s *Scanner) terminate(log zerolog.Logger, rest []model.VideoCandidate, reason string) {
	for i := range rest {
		if rest[i].State == model.StatePending {
			s.transition(log, &rest[i], model.StateScanTerminated, reason)
		}
	}
}

// transition moves c to state. A rejected move leaves c unchanged and is
// logged; it never aborts the scan.
func (s *Scanner) transition(log zerolog.Logger, c *model.VideoCandidate, state, reason string) bool {
	if err := model.TransitionCandidate(c, state, reason); err != nil {
		log.Debug().Err(err).Str("video_id", c.ID).Msg("illegal candidate transition")
		return false
	}
	return true
}

// rank orders records by views, highest first, keeping encounter order for
// ties, and numbers them from 1.
func rank(records []model.VideoRecord) []model.VideoRecord {
	out := make([]model.VideoRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		vi, _ := out[i].Views()
		vj, _ := out[j].Views()
		return vi > vj
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func explainEmpty(req Request, st Stats, scanned int) []string {
	var out []string
	switch {
	case st.Enumerated == 0:
		out = append(out, "No videos were enumerated. Check the channel URL, cookies, or API key.")
	case st.AfterTypeFilter == 0:
		out = append(out, fmt.Sprintf("All %d enumerated videos were filtered out as not %s.", st.Enumerated, req.ContentType))
	}
	if st.BelowThreshold > 0 {
		out = append(out, fmt.Sprintf("%d inspected video(s) were below min_views=%d; the highest seen had %d views. Try a lower threshold.",
			st.BelowThreshold, req.MinViews, st.HighestBelow))
	}
	if st.TypeMismatch > 0 && st.AfterTypeFilter > 0 {
		out = append(out, fmt.Sprintf("%d video(s) did not match content type %s.", st.TypeMismatch, req.ContentType))
	}
	if st.DetailFailures > 0 {
		out = append(out, fmt.Sprintf("Detail fetch failed for %d video(s). Cookies may be required.", st.DetailFailures))
	}
	if st.UnknownViews > 0 {
		out = append(out, fmt.Sprintf("%d video(s) had no view count.", st.UnknownViews))
	}
	if scanned > 0 && scanned >= req.ScanLimit && !st.EarlyStopped {
		out = append(out, fmt.Sprintf("Scan limit of %d reached before any video qualified.", req.ScanLimit))
	}
	if len(out) == 0 {
		out = append(out, "No qualifying videos found.")
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
