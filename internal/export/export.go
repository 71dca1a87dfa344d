package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"yt-channel-scan/internal/channel"
	"yt-channel-scan/internal/model"
	"yt-channel-scan/internal/runstore"
)

// Columns is the fixed CSV header order.
var Columns = []string{
	"rank",
	"video_id",
	"title",
	"url",
	"view_count",
	"like_count",
	"comment_count",
	"published_at",
	"duration_seconds",
	"is_short",
	"channel_id",
	"channel_title",
	"category_id",
	"default_language",
	"default_audio_language",
	"tags",
	"thumbnail_default",
	"thumbnail_medium",
	"thumbnail_high",
	"thumbnail_standard",
	"thumbnail_maxres",
	"transcript_method",
	"transcript_source",
	"transcript_format",
	"transcript_status",
	"transcript_error",
	"transcript",
}

const tagSeparator = "|"

type CSVOptions struct {
	IncludeErrorDetails bool
}

func WriteCSV(w io.Writer, records []model.VideoRecord, opts CSVOptions) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(row(r, opts)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.VideoID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func row(r model.VideoRecord, opts CSVOptions) []string {
	transcriptErr := r.TranscriptError
	if !opts.IncludeErrorDetails {
		transcriptErr = ""
	}
	return []string{
		strconv.Itoa(r.Rank),
		r.VideoID,
		r.Title,
		r.URL,
		int64Cell(r.ViewCount),
		int64Cell(r.LikeCount),
		int64Cell(r.CommentCount),
		r.PublishedAt,
		intCell(r.DurationSeconds),
		strconv.FormatBool(r.IsShort),
		r.ChannelID,
		r.ChannelTitle,
		r.CategoryID,
		r.DefaultLanguage,
		r.DefaultAudioLanguage,
		strings.Join(r.Tags, tagSeparator),
		r.Thumbnails.Default,
		r.Thumbnails.Medium,
		r.Thumbnails.High,
		r.Thumbnails.Standard,
		r.Thumbnails.Maxres,
		r.TranscriptMethod,
		r.TranscriptSource,
		r.TranscriptFormat,
		string(r.TranscriptStatus),
		transcriptErr,
		r.Transcript,
	}
}

func int64Cell(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func WriteJSON(w io.Writer, records []model.VideoRecord) error {
	if records == nil {
		records = []model.VideoRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(records)
}

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("invalid export format %q (expected csv or json)", strings.TrimSpace(raw))
	}
}

// FormatForPath picks the export format from a file extension.
func FormatForPath(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return FormatJSON
	}
	return FormatCSV
}

// WriteFile renders records and replaces path atomically.
func WriteFile(path string, format Format, records []model.VideoRecord, opts CSVOptions) error {
	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJSON:
		if !opts.IncludeErrorDetails {
			records = withoutErrors(records)
		}
		err = WriteJSON(&buf, records)
	default:
		err = WriteCSV(&buf, records, opts)
	}
	if err != nil {
		return err
	}
	return runstore.WriteBytes(path, buf.Bytes())
}

func withoutErrors(records []model.VideoRecord) []model.VideoRecord {
	out := make([]model.VideoRecord, len(records))
	copy(out, records)
	for i := range out {
		out[i].TranscriptError = ""
	}
	return out
}

var reUnsafe = regexp.MustCompile(`[^a-z0-9_-]+`)

// FileName derives a default export file name from a channel URL.
func FileName(channelURL, ext string) string {
	slug := ""
	if ref, err := channel.ParseReference(channelURL); err == nil {
		slug = strings.Trim(reUnsafe.ReplaceAllString(strings.ToLower(ref.Value), "-"), "-")
	}
	if slug == "" {
		slug = "channel"
	}
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = string(FormatCSV)
	}
	return slug + "_videos_with_transcripts." + ext
}
