package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

func main() {
	var (
		journalDir = flag.String("journal", "./data/journal", "journal dir containing mutations-*.jsonl.zst")
		toTick     = flag.Uint64("to_tick", 0, "stop applying after tick (inclusive, optional)")
		verbose    = flag.Bool("v", false, "log skipped and failed entries")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags|log.Lmicroseconds)
	if !*verbose {
		logger.SetOutput(io.Discard)
	}

	res, err := replayDir(*journalDir, *toTick, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}

	fmt.Printf("files=%d entries=%d applied=%d skipped=%d gaps=%d failed=%d\n",
		res.Files, res.Entries, res.Mirror.Applied, res.Mirror.Skipped, res.Mirror.Gaps, res.Mirror.Failed)
	for _, r := range res.Regions {
		partial := ""
		if r.Partial {
			partial = " partial"
		}
		fmt.Printf("region=%s epochs=%d epoch=%s seq=%d last_tick=%d barriers=%d%s\n",
			r.Region, r.Epochs, r.Epoch, r.Seq, r.LastTick, r.Barriers, partial)
	}
	if res.Mirror.Failed > 0 {
		os.Exit(1)
	}
}
