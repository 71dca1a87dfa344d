package scan

import (
	"errors"
	"fmt"
	"time"

	"yt-channel-scan/internal/model"
)

const (
	DefaultScanLimit       = 600
	DefaultMinViews        = 300000
	DefaultMaxResults      = 150
	DefaultStreakTolerance = 10
	DefaultDetailDelay     = 250 * time.Millisecond
	DefaultListingDelay    = 120 * time.Millisecond
)

var ErrInvalidInput = errors.New("invalid scan input")

type Request struct {
	ChannelRef      string
	ContentType     model.ContentType
	ScanLimit       int
	MinViews        int64
	MaxResults      int
	PopularFirst    bool
	EarlyStop       bool
	StreakTolerance int
	Language        string
	AllowAuto       bool
	TranscriptMode  model.TranscriptMode

	APIKey      string
	CookiesPath string
	// CookiesText is a pasted cookies.txt payload. It is written to a
	// private temp file for the duration of the scan.
	CookiesText string

	IncludeErrorDetails bool
	DetailDelay         time.Duration
	ListingDelay        time.Duration
}

func DefaultRequest() Request {
	return Request{
		ContentType:         model.ContentShorts,
		ScanLimit:           DefaultScanLimit,
		MinViews:            DefaultMinViews,
		MaxResults:          DefaultMaxResults,
		PopularFirst:        true,
		EarlyStop:           true,
		StreakTolerance:     DefaultStreakTolerance,
		AllowAuto:           true,
		TranscriptMode:      model.ModeAuto,
		IncludeErrorDetails: true,
		DetailDelay:         DefaultDetailDelay,
		ListingDelay:        DefaultListingDelay,
	}
}

func (r Request) validate() error {
	switch {
	case r.ScanLimit <= 0:
		return fmt.Errorf("%w: scan_limit must be positive, got %d", ErrInvalidInput, r.ScanLimit)
	case r.MaxResults <= 0:
		return fmt.Errorf("%w: max_results must be positive, got %d", ErrInvalidInput, r.MaxResults)
	case r.MinViews < 0:
		return fmt.Errorf("%w: min_views must not be negative, got %d", ErrInvalidInput, r.MinViews)
	case r.StreakTolerance < 0:
		return fmt.Errorf("%w: streak_tolerance must not be negative, got %d", ErrInvalidInput, r.StreakTolerance)
	}
	switch r.ContentType {
	case model.ContentShorts, model.ContentLongform, model.ContentBoth:
	default:
		return fmt.Errorf("%w: content type %q", ErrInvalidInput, r.ContentType)
	}
	return nil
}
