package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"yt-channel-scan/internal/audio"
	"yt-channel-scan/internal/channel"
	"yt-channel-scan/internal/discovery"
	"yt-channel-scan/internal/httpx"
	"yt-channel-scan/internal/runstore"
	"yt-channel-scan/internal/transcript"
)

// Env carries process-level settings that are not part of a scan request.
type Env struct {
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	APIBaseURL    string
	JSRuntime     string
	ProxyURL      string
	Log           zerolog.Logger
}

// Build wires a Scanner for one request. The returned release func removes
// any temporary cookie file and must be called when the scan is done.
func Build(ctx context.Context, req Request, env Env) (*Scanner, func(), error) {
	release := func() {}
	cookiesPath := strings.TrimSpace(req.CookiesPath)
	if cookiesPath == "" && strings.TrimSpace(req.CookiesText) != "" {
		path, rel, err := runstore.ScopedCookieFile(req.CookiesText)
		if err != nil {
			return nil, release, fmt.Errorf("write cookies: %w", err)
		}
		cookiesPath, release = path, rel
	}

	web, err := httpx.NewCookieClient(cookiesPath, httpx.Options{ProxyURL: env.ProxyURL})
	if err != nil {
		release()
		return nil, func() {}, fmt.Errorf("%w: cookies: %v", ErrInvalidInput, err)
	}

	var fetcher discovery.Fetcher
	if key := strings.TrimSpace(req.APIKey); key != "" {
		apiClient, err := httpx.NewClient(httpx.Options{ProxyURL: env.ProxyURL})
		if err != nil {
			release()
			return nil, func() {}, err
		}
		src, err := discovery.NewAPISource(ctx, discovery.APIConfig{
			APIKey:     key,
			BaseURL:    env.APIBaseURL,
			HTTPClient: apiClient,
			Pages:      &channel.PageResolver{Client: web},
			Delay:      req.ListingDelay,
		}, env.Log)
		if err != nil {
			release()
			return nil, func() {}, err
		}
		fetcher = src
	} else {
		src := discovery.NewListingSource(cookiesPath, env.JSRuntime, env.Log)
		if req.ListingDelay > 0 {
			src.Delay = req.ListingDelay
		}
		fetcher = src
	}

	var transcriber audio.Transcriber = audio.MissingKeyTranscriber{}
	if strings.TrimSpace(env.OpenAIKey) != "" {
		t, err := audio.NewOpenAITranscriber(audio.OpenAIConfig{
			APIKey:  env.OpenAIKey,
			Model:   env.OpenAIModel,
			BaseURL: env.OpenAIBaseURL,
		})
		if err != nil {
			release()
			return nil, func() {}, err
		}
		transcriber = t
	}
	downloader := audio.FallbackDownloader{
		audio.YTDLPDownloader{CookiesPath: cookiesPath, JSRuntime: env.JSRuntime, Log: env.Log},
		audio.NewNativeDownloader(web, env.Log),
	}

	resolver := transcript.NewResolver(req.TranscriptMode, transcript.Deps{
		HTTPClient:  web,
		Info:        discovery.YTDLPInfo{CookiesPath: cookiesPath, JSRuntime: env.JSRuntime},
		Downloader:  downloader,
		Transcriber: transcriber,
		Log:         env.Log,
	})
	return &Scanner{Fetcher: fetcher, Resolver: resolver, Log: env.Log}, release, nil
}

// Execute builds a Scanner for req, runs it, and cleans up scoped files.
func Execute(ctx context.Context, req Request, env Env, progress ProgressFunc) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if _, err := channel.NormalizeReference(req.ChannelRef); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	s, release, err := Build(ctx, req, env)
	if err != nil {
		return Result{}, err
	}
	defer release()
	return s.Run(ctx, req, progress)
}
