package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yt-channel-scan/internal/channel"
	"yt-channel-scan/internal/export"
	"yt-channel-scan/internal/model"
	"yt-channel-scan/internal/runstore"
	"yt-channel-scan/internal/scan"
	"yt-channel-scan/internal/ytdlp"
)

const jsRuntimeFlagHelp = "JavaScript runtime override for yt-dlp extractor scripts: auto|deno|node|quickjs|bun"

type scanOutput struct {
	scan.Result
	OutputPath string `json:"output_path,omitempty"`
	Canceled   bool   `json:"canceled,omitempty"`
}

func runScan(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	sc := cfg.Scan

	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	_ = fs.String("config", "", "config file (yaml)")
	channelFlag := fs.String("channel", "", "channel URL, @handle, or UC... id (or first positional argument)")
	contentType := fs.String("type", sc.ContentType, "content type: shorts|longform|both")
	scanLimit := fs.Int("scan-limit", sc.ScanLimit, "max candidates to inspect")
	minViews := fs.Int64("min-views", sc.MinViews, "minimum view count for a video to qualify")
	maxResults := fs.Int("max-results", sc.MaxResults, "max rows to return")
	popularFirst := fs.Bool("popular-first", sc.PopularFirst, "inspect the most-viewed videos first")
	earlyStop := fs.Bool("early-stop", sc.EarlyStop, "stop after a streak of videos below --min-views (with --popular-first)")
	streak := fs.Int("streak-tolerance", sc.StreakTolerance, "consecutive below-threshold videos tolerated before early stop")
	lang := fs.String("lang", sc.Language, "preferred caption language code")
	allowAuto := fs.Bool("allow-auto", sc.AllowAuto, "accept auto-generated captions")
	mode := fs.String("mode", sc.TranscriptMode, "transcript mode: captions|audio|auto")
	apiKey := fs.String("api-key", cfg.YouTube.APIKey, "YouTube Data API key (enables API enumeration)")
	cookies := fs.String("cookies", cfg.YouTube.CookiesPath, "path to cookies.txt")
	cookiesStdin := fs.Bool("cookies-stdin", false, "read a cookies.txt payload from stdin")
	errorDetails := fs.Bool("error-details", sc.IncludeErrorDetails, "fill the transcript_error column")
	detailDelay := fs.Duration("detail-delay", sc.DetailDelay, "pause between per-video detail fetches")
	listingDelay := fs.Duration("listing-delay", sc.ListingDelay, "pause between listing or API page requests")
	jsRuntime := fs.String("js-runtime", cfg.YouTube.JSRuntime, jsRuntimeFlagHelp)
	proxy := fs.String("proxy", cfg.YouTube.Proxy, "proxy URL for YouTube requests")
	out := fs.String("out", "", "output file (default: <output.dir>/<channel>_videos_with_transcripts.<format>)")
	format := fs.String("format", "", "export format: csv|json (default: from --out extension, then config)")
	top := fs.Int("top", 10, "rows shown in the summary table (0 = all)")
	jsonOut := fs.Bool("json", false, "print the scan result as JSON on stdout")
	noProgress := fs.Bool("no-progress", false, "disable the live progress view")
	logLevel := fs.String("log-level", "", "log level: trace|debug|info|warn|error|off")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	ref := firstNonEmpty(*channelFlag, fs.Arg(0))
	if ref == "" {
		ref, err = promptRequired("channel URL")
		if err != nil {
			fs.Usage()
			return err
		}
	}
	channelURL, err := channel.NormalizeReference(ref)
	if err != nil {
		return err
	}

	ct, err := model.ParseContentType(*contentType)
	if err != nil {
		return err
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

	if strings.TrimSpace(*apiKey) == "" {
		// Listing enumeration shells out to yt-dlp.
		if err := ytdlp.CheckDependencies(); err != nil {
			return err
		}
	}

	cookiesText := ""
	if *cookiesStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read cookies from stdin: %w", err)
		}
		cookiesText = string(data)
		*cookies = ""
	}

	req := scan.Request{
		ChannelRef:          channelURL,
		ContentType:         ct,
		ScanLimit:           *scanLimit,
		MinViews:            *minViews,
		MaxResults:          *maxResults,
		PopularFirst:        *popularFirst,
		EarlyStop:           *earlyStop,
		StreakTolerance:     *streak,
		Language:            strings.TrimSpace(*lang),
		AllowAuto:           *allowAuto,
		TranscriptMode:      tm,
		APIKey:              strings.TrimSpace(*apiKey),
		CookiesPath:         strings.TrimSpace(*cookies),
		CookiesText:         cookiesText,
		IncludeErrorDetails: *errorDetails,
		DetailDelay:         *detailDelay,
		ListingDelay:        *listingDelay,
	}

	exportFormat, outPath, err := resolveOutput(*out, *format, cfg.Output.Format, cfg.Output.Dir, channelURL, *jsonOut)
	if err != nil {
		return err
	}

	showView := !*jsonOut && !*noProgress && stderrIsTTY()
	lg := newLogger(cfg, *logLevel)
	defer lg.Close()
	log := lg.WithComponent("cli").Logger
	if showView && log.GetLevel() < zerolog.WarnLevel {
		// Console logs would tear the live view.
		log = log.Level(zerolog.WarnLevel)
	}
	if tm != model.ModeCaptions && strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set; the audio transcription fallback will report audio_transcribe_failed")
	}

	if outPath != "" {
		lock, err := runstore.AcquireOutputLock(outPath, uuid.NewString())
		if err != nil {
			return err
		}
		defer func() { _ = lock.Release() }()
	}

	env := scan.Env{
		OpenAIKey:     cfg.OpenAI.APIKey,
		OpenAIModel:   cfg.OpenAI.Model,
		OpenAIBaseURL: cfg.OpenAI.BaseURL,
		APIBaseURL:    cfg.YouTube.APIBaseURL,
		JSRuntime:     strings.TrimSpace(*jsRuntime),
		ProxyURL:      strings.TrimSpace(*proxy),
		Log:           log,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := func(ctx context.Context, progress scan.ProgressFunc) (scan.Result, error) {
		return scan.Execute(ctx, req, env, progress)
	}
	var res scan.Result
	if showView {
		res, err = runScanView(ctx, channelURL, run)
	} else {
		res, err = run(ctx, nil)
	}
	canceled := errors.Is(err, context.Canceled)
	if err != nil && (!canceled || res.ScanID == "") {
		return err
	}

	if outPath != "" {
		if err := export.WriteFile(outPath, exportFormat, res.Records, export.CSVOptions{IncludeErrorDetails: req.IncludeErrorDetails}); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
	}

	if *jsonOut {
		if err := printJSON(scanOutput{Result: res, OutputPath: outPath, Canceled: canceled}); err != nil {
			return err
		}
	} else {
		fmt.Print(renderSummary(res, outPath, *top))
	}
	if canceled {
		return fmt.Errorf("scan canceled after %d result(s): %w", len(res.Records), err)
	}
	return nil
}

// resolveOutput decides the export file and format. With --json and no
// --out nothing is written to disk.
func resolveOutput(out, format, cfgFormat, cfgDir, channelURL string, jsonOut bool) (export.Format, string, error) {
	out = strings.TrimSpace(out)
	var f export.Format
	var err error
	switch {
	case strings.TrimSpace(format) != "":
		f, err = export.ParseFormat(format)
	case out != "":
		f = export.FormatForPath(out)
	default:
		f, err = export.ParseFormat(cfgFormat)
	}
	if err != nil {
		return "", "", err
	}
	if out == "" {
		if jsonOut {
			return f, "", nil
		}
		out = filepath.Join(firstNonEmpty(cfgDir, "."), export.FileName(channelURL, string(f)))
	}
	return f, out, nil
}
