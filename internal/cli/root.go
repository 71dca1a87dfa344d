package cli

import "fmt"

func Run(args []string) error {
	if len(args) == 0 {
		printRootUsage()
		return nil
	}

	switch args[0] {
	case "scan":
		return runScan(args[1:])
	case "transcript":
		return runTranscript(args[1:])
	case "normalize":
		return runNormalize(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "help", "-h", "--help":
		printRootUsage()
		return nil
	default:
		printRootUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage() {
	fmt.Println("yt-channel-scan: rank a YouTube channel's most-viewed videos and collect their transcripts")
	fmt.Println()
	fmt.Println("Quick Start:")
	fmt.Println("  yt-channel-scan doctor")
	fmt.Println("  yt-channel-scan scan @channel --min-views 300000 --max-results 50")
	fmt.Println("  yt-channel-scan scan https://www.youtube.com/@channel --type longform --out top.json")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  scan        enumerate a channel, filter by views, fetch transcripts, export CSV/JSON")
	fmt.Println("  transcript  resolve the transcript of a single video")
	fmt.Println("  normalize   print the canonical channel URL for a reference")
	fmt.Println("  doctor      check dependencies, credentials, and writable temp space")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  - flags > environment (YTSCAN_*, YT_API_KEY, YOUTUBE_API_KEY, OPENAI_API_KEY) > config file > defaults")
	fmt.Println("  - config file: --config <path>, ./ytscan.yaml, or ~/.config/yt-channel-scan/config.yaml")
	fmt.Println("  - a .env file in the working directory is loaded first")
	fmt.Println()
	fmt.Println("Notes:")
	fmt.Println("  - Use --json on commands for machine-readable output")
	fmt.Println("  - Without an API key, channels are enumerated with yt-dlp")
}
