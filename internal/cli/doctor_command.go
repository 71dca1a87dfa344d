package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"yt-channel-scan/internal/discovery"
	"yt-channel-scan/internal/model"
)

func runDoctor(args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	_ = fs.String("config", "", "config file (yaml)")
	mode := fs.String("mode", cfg.Scan.TranscriptMode, "transcript mode to check for: captions|audio|auto")
	cookies := fs.String("cookies", cfg.YouTube.CookiesPath, "path to cookies.txt")
	tempDir := fs.String("temp-dir", os.TempDir(), "scratch directory for audio downloads")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, err := model.ParseTranscriptMode(*mode)
	if err != nil {
		return err
	}

	res, err := discovery.Doctor(discovery.DoctorOptions{
		APIKey:      cfg.YouTube.APIKey,
		OpenAIKey:   cfg.OpenAI.APIKey,
		CookiesPath: strings.TrimSpace(*cookies),
		TempDir:     strings.TrimSpace(*tempDir),
		Mode:        string(m),
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
		if !res.OK {
			return errors.New("doctor checks failed")
		}
		return nil
	}

	for _, c := range res.Checks {
		status := "ok"
		switch {
		case !c.OK && c.Optional:
			status = "warn"
		case !c.OK:
			status = "fail"
		}
		fmt.Printf("%s: %s (%s)\n", c.Name, status, c.Message)
	}
	if !res.OK {
		return errors.New("doctor checks failed")
	}
	fmt.Println("doctor: all required checks passed")
	return nil
}
