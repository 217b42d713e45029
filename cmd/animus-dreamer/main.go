// Command animus-dreamer is the long-running daemon: it periodically
// re-scores every anima and runs the synthesis pipeline for those past the
// threshold, runs the deep curation passes on their own schedule, ingests
// file-dropped events, and broadcasts run events over WebSocket.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/scrypster/animus/internal/checkpoint"
	"github.com/scrypster/animus/internal/config"
	"github.com/scrypster/animus/internal/curation"
	"github.com/scrypster/animus/internal/ingest"
	"github.com/scrypster/animus/internal/llm"
	"github.com/scrypster/animus/internal/notify"
	"github.com/scrypster/animus/internal/storage"
	"github.com/scrypster/animus/internal/storage/postgres"
	"github.com/scrypster/animus/internal/storage/sqlite"
	"github.com/scrypster/animus/internal/synthesis"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, checkpoints, vectors, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	llmCfg := llm.Config{
		Provider:          cfg.LLM.Provider,
		APIKey:            cfg.LLM.APIKey(),
		Model:             cfg.LLM.Model(),
		BaseURL:           cfg.LLM.BaseURL(),
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	}
	client, err := llm.New(llmCfg)
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}
	embedder, err := llm.NewEmbeddingGenerator(llmCfg, cfg.LLM.EmbeddingModel)
	if err != nil {
		log.Fatalf("Failed to initialize embedding client: %v", err)
	}

	hub := notify.NewHub()
	go hub.Run()
	defer hub.Stop()

	pipeline := synthesis.NewPipeline(store, client, checkpoints, hub, synthesis.Config{
		Threshold: cfg.Synthesis.Threshold,
		Weights: synthesis.Weights{
			Time:  cfg.Synthesis.TimeWeight,
			Event: cfg.Synthesis.EventWeight,
			Token: cfg.Synthesis.TokenWeight,
		},
	})
	finder := curation.NewCandidateFinder(store, vectors, embedder, 3)
	curator := curation.NewEngine(store, client, finder, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher := ingest.NewWatcher(cfg.Storage.DataPath, store)
	if err := watcher.Start(); err != nil {
		log.Fatalf("Failed to start ingest watcher: %v", err)
	}
	defer watcher.Stop()

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.Printf("dreamer: run-event hub listening on ws://%s/ws", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Run-event hub failed: %v", err)
		}
	}()

	d := &dreamer{
		store:    store,
		pipeline: pipeline,
		curator:  curator,
		locks:    make(map[string]*sync.Mutex),
	}

	go d.scanLoop(ctx, cfg.Synthesis.ScanInterval)
	if cfg.Curation.Enabled {
		go d.curationLoop(ctx, cfg.Curation.Interval)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// dreamer serializes pipeline and curation work per anima: the pipeline
// does not deduplicate concurrent runs itself, so the daemon guarantees
// single-flight execution with a per-anima lock.
type dreamer struct {
	store    storage.Store
	pipeline *synthesis.Pipeline
	curator  *curation.Engine

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (d *dreamer) lockFor(animaID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[animaID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[animaID] = l
	}
	return l
}

// scanLoop re-scores every anima on the interval and runs synthesis for
// each. Runs below the threshold exit cheaply at the gate.
func (d *dreamer) scanLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.scanOnce(ctx)
		}
	}
}

func (d *dreamer) scanOnce(ctx context.Context) {
	animas, err := d.store.ListAnimas(ctx)
	if err != nil {
		log.Printf("dreamer: failed to list animas: %v", err)
		return
	}
	for _, anima := range animas {
		lock := d.lockFor(anima.ID)
		if !lock.TryLock() {
			continue // a run for this anima is already in flight
		}
		go func(animaID string, lock *sync.Mutex) {
			defer lock.Unlock()
			state, err := d.pipeline.Run(ctx, animaID, "")
			if err != nil {
				log.Printf("dreamer: synthesis run for anima %s hit a retryable error: %v", animaID, err)
				return
			}
			switch {
			case state.Error != "":
				log.Printf("dreamer: synthesis run %s for anima %s failed: %s", state.RunID, animaID, state.Error)
			case state.SynthesisTriggered:
				log.Printf("dreamer: synthesized memory %s for anima %s (score %.2f)",
					state.MemoryID, animaID, state.AccumulationScore)
			}
		}(anima.ID, lock)
	}
}

// curationLoop runs the merge and review passes for every anima on the
// interval.
func (d *dreamer) curationLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.curateOnce(ctx)
		}
	}
}

func (d *dreamer) curateOnce(ctx context.Context) {
	animas, err := d.store.ListAnimas(ctx)
	if err != nil {
		log.Printf("dreamer: failed to list animas: %v", err)
		return
	}
	for _, anima := range animas {
		lock := d.lockFor(anima.ID)
		lock.Lock()
		if report, err := d.curator.MergePass(ctx, anima.ID); err != nil {
			log.Printf("dreamer: merge pass for anima %s failed: %v", anima.ID, err)
		} else if report.Merged > 0 {
			log.Printf("dreamer: merged %d memory groups for anima %s", report.Merged, anima.ID)
		}
		if report, err := d.curator.ReviewPass(ctx, anima.ID); err != nil {
			log.Printf("dreamer: review pass for anima %s failed: %v", anima.ID, err)
		} else if report.Scanned > 0 {
			log.Printf("dreamer: reviewed %d memories for anima %s (updated %d, split %d, deleted %d)",
				report.Scanned, anima.ID, report.Updated, report.Split, report.Deleted)
		}
		lock.Unlock()
	}
}

// openStore opens the configured storage backend, a checkpoint store
// sharing its database, and the vector searcher when the backend provides
// one.
func openStore(cfg *config.Config) (storage.Store, checkpoint.Store, storage.VectorSearcher, error) {
	if cfg.Storage.Engine == "postgres" {
		store, err := postgres.NewStore(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, checkpoint.NewSQLStore(store.DB(), checkpoint.DialectPostgres), store, nil
	}
	store, err := sqlite.NewStore(cfg.Storage.DataPath + "/animus.db")
	if err != nil {
		return nil, nil, nil, err
	}
	return store, checkpoint.NewSQLStore(store.DB(), checkpoint.DialectSQLite), nil, nil
}
