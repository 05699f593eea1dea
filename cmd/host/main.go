package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"emberfield/internal/persistence/record"
	"emberfield/internal/sim/match"
	"emberfield/internal/sim/tuning"
	"emberfield/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		matchIDs   = flag.String("matches", "match_1", "comma-separated match ids; the first is the default")
		seed       = flag.Int64("seed", 1337, "world seed broadcast to peers")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (empty: built-in defaults)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		backend    = flag.String("backend", "", "execution backend: scalar, parallel or auto")
		recordLog  = flag.Bool("record", true, "write the match event log")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite match index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[host] ", log.LstdFlags|log.Lmicroseconds)

	tune := tuning.Defaults()
	if tp := strings.TrimSpace(*tuningPath); tp != "" {
		var err error
		tune, err = tuning.Load(tp)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	manager := match.NewManager()
	var recorders []*record.MatchRecorder
	for i, id := range strings.Split(*matchIDs, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		// Sibling matches get distinct worlds from offset seeds.
		m, err := manager.Create(match.Config{ID: id, Seed: *seed + int64(i), Backend: *backend}, tune, logger)
		if err != nil {
			logger.Fatalf("create match: %v", err)
		}
		logger.Printf("match %s seed=%d backend=%s grid=%dx%d sub=%d",
			id, *seed+int64(i), m.BackendName(), tune.Grid.TilesX, tune.Grid.TilesY, tune.Grid.SubDiv)

		if *recordLog {
			rec, err := record.Open(*dataDir, id, !*disableDB)
			if err != nil {
				logger.Fatalf("open recorder: %v", err)
			}
			recorders = append(recorders, rec)
			m.SetRecorder(rec)
		}
		if err := manager.Start(id); err != nil {
			logger.Fatalf("start match: %v", err)
		}
	}
	if len(manager.IDs()) == 0 {
		logger.Fatalf("no match ids configured")
	}
	defer func() {
		for _, rec := range recorders {
			_ = rec.Close()
		}
	}()

	wsServer := ws.NewServer(manager, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/ws", wsServer.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)

	httpServer := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		logger.Printf("listening on %s, matches: %s", *addr, strings.Join(manager.IDs(), ", "))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Printf("shutting down")
	manager.StopAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
