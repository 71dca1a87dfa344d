package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"yt-channel-scan/internal/channel"
	"yt-channel-scan/internal/model"
	"yt-channel-scan/internal/scan"
	"yt-channel-scan/internal/transcript"
	"yt-channel-scan/internal/ytdlp"
)

type transcriptOutput struct {
	VideoID  string                 `json:"video_id"`
	URL      string                 `json:"url"`
	Status   model.TranscriptStatus `json:"transcript_status"`
	Source   string                 `json:"transcript_source"`
	Format   string                 `json:"transcript_format"`
	Method   string                 `json:"transcript_method"`
	Error    string                 `json:"transcript_error,omitempty"`
	Text     string                 `json:"transcript"`
	Attempts []transcript.Attempt   `json:"attempts"`
}

func runTranscript(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("transcript", flag.ContinueOnError)
	_ = fs.String("config", "", "config file (yaml)")
	lang := fs.String("lang", cfg.Scan.Language, "preferred caption language code")
	allowAuto := fs.Bool("allow-auto", cfg.Scan.AllowAuto, "accept auto-generated captions")
	mode := fs.String("mode", cfg.Scan.TranscriptMode, "transcript mode: captions|audio|auto")
	cookies := fs.String("cookies", cfg.YouTube.CookiesPath, "path to cookies.txt")
	jsRuntime := fs.String("js-runtime", cfg.YouTube.JSRuntime, jsRuntimeFlagHelp)
	proxy := fs.String("proxy", cfg.YouTube.Proxy, "proxy URL for YouTube requests")
	jsonOut := fs.Bool("json", false, "print JSON output")
	logLevel := fs.String("log-level", "", "log level: trace|debug|info|warn|error|off")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("a video URL or id is required")
	}
	videoID := channel.ExtractVideoID(fs.Arg(0))
	if videoID == "" {
		return fmt.Errorf("no video id found in %q", fs.Arg(0))
	}
	tm, err := model.ParseTranscriptMode(*mode)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*jsRuntime) != "" {
		if _, err := ytdlp.CheckJSRuntime(*jsRuntime); err != nil {
			return err
		}
	}

	lg := newLogger(cfg, *logLevel)
	defer lg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, release, err := scan.Build(ctx, scan.Request{
		TranscriptMode: tm,
		CookiesPath:    strings.TrimSpace(*cookies),
	}, scan.Env{
		OpenAIKey:     cfg.OpenAI.APIKey,
		OpenAIModel:   cfg.OpenAI.Model,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		JSRuntime:     strings.TrimSpace(*jsRuntime),
		ProxyURL:      strings.TrimSpace(*proxy),
		Log:           lg.Logger,
	})
	if err != nil {
		return err
	}
	defer release()

	videoURL := channel.WatchURL(videoID)
	res := s.Resolver.Resolve(ctx, transcript.Request{
		VideoID:   videoID,
		VideoURL:  videoURL,
		Language:  strings.TrimSpace(*lang),
		AllowAuto: *allowAuto,
	})

	if *jsonOut {
		if err := printJSON(transcriptOutput{
			VideoID:  videoID,
			URL:      videoURL,
			Status:   res.Status,
			Source:   res.Source,
			Format:   res.Format,
			Method:   res.Method,
			Error:    res.Err,
			Text:     res.Text,
			Attempts: res.Attempts,
		}); err != nil {
			return err
		}
	} else if res.Status == model.TranscriptOK {
		fmt.Fprintf(os.Stderr, "%s: %s via %s (%s)\n", videoID, res.Status, res.Source, res.Format)
		fmt.Println(res.Text)
	}
	if res.Status != model.TranscriptOK {
		return fmt.Errorf("transcript %s for %s: %s", res.Status, videoID, res.Err)
	}
	return nil
}
