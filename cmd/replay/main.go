package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"emberfield/internal/persistence/record"
	"emberfield/internal/sim/match"
	"emberfield/internal/sim/tuning"
)

// replay re-drives a recorded injection stream through a fresh match and
// checks the resulting digests against the recorded ones. Running it once
// with -backend=scalar and once with -backend=parallel is the offline parity
// check for the two kernel implementations.
func main() {
	var (
		path       = flag.String("events", "", "path to events.jsonl.zst")
		seed       = flag.Int64("seed", 1337, "seed the match was hosted with")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (empty: built-in defaults)")
		backend    = flag.String("backend", "", "execution backend: scalar, parallel or auto")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags)

	if strings.TrimSpace(*path) == "" {
		logger.Fatalf("-events is required")
	}
	records, err := record.ReadTickRecords(*path)
	if err != nil {
		logger.Fatalf("read %s: %v", *path, err)
	}
	if len(records) == 0 {
		logger.Fatalf("event log is empty")
	}

	tune := tuning.Defaults()
	if tp := strings.TrimSpace(*tuningPath); tp != "" {
		tune, err = tuning.Load(tp)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	m := match.New(match.Config{ID: "replay", Seed: *seed, Backend: *backend}, tune, logger)
	dt := 1.0 / float64(tune.TickRateHz)

	byTick := map[uint64][]match.Injection{}
	for _, rec := range records {
		byTick[rec.Tick] = rec.Injections
	}
	lastTick := records[len(records)-1].Tick

	mismatches := 0
	idx := 0
	for tick := uint64(1); tick <= lastTick; tick++ {
		m.StepOnce(byTick[tick], dt)
		for idx < len(records) && records[idx].Tick == tick {
			if records[idx].Digest != "" {
				got := m.Store().DigestWith(m.LastScanIntegrity())
				if got != records[idx].Digest {
					mismatches++
					logger.Printf("tick %d: digest mismatch recorded=%s replayed=%s", tick, records[idx].Digest, got)
				}
			}
			idx++
		}
	}

	logger.Printf("replayed %d ticks (%d eventful) backend=%s", lastTick, len(records), m.BackendName())
	logger.Printf("final digest: %s", m.Store().Digest())
	if mismatches > 0 {
		logger.Fatalf("%d digest mismatches", mismatches)
	}
	logger.Printf("all recorded digests match")
}
