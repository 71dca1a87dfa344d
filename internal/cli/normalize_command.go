package cli

import (
	"errors"
	"flag"
	"fmt"

	"yt-channel-scan/internal/channel"
)

type normalizedReference struct {
	Input string                `json:"input"`
	URL   string                `json:"url"`
	Kind  channel.ReferenceKind `json:"kind"`
	Value string                `json:"value"`
}

func runNormalize(args []string) error {
	fs := flag.NewFlagSet("normalize", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("at least one channel reference is required")
	}

	out := make([]normalizedReference, 0, fs.NArg())
	for _, raw := range fs.Args() {
		u, err := channel.NormalizeReference(raw)
		if err != nil {
			return fmt.Errorf("%q: %w", raw, err)
		}
		ref, err := channel.ParseReference(u)
		if err != nil {
			return fmt.Errorf("%q: %w", raw, err)
		}
		out = append(out, normalizedReference{Input: raw, URL: u, Kind: ref.Kind, Value: ref.Value})
	}

	if *jsonOut {
		return printJSON(out)
	}
	for _, r := range out {
		fmt.Printf("%s\t%s\n", r.URL, r.Kind)
	}
	return nil
}
