// Command animus-synthesis runs one synthesis pipeline run for a single
// anima and prints the final run state as JSON. Re-invoking with the same
// -run flag resumes an interrupted run from its last checkpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/scrypster/animus/internal/checkpoint"
	"github.com/scrypster/animus/internal/config"
	"github.com/scrypster/animus/internal/llm"
	"github.com/scrypster/animus/internal/storage"
	"github.com/scrypster/animus/internal/storage/postgres"
	"github.com/scrypster/animus/internal/storage/sqlite"
	"github.com/scrypster/animus/internal/synthesis"
)

func main() {
	animaID := flag.String("anima", "", "ID of the anima to synthesize memories for (required)")
	runID := flag.String("run", "", "Run ID to resume; a new run starts when omitted")
	flag.Parse()

	if *animaID == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, checkpoints, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	client, err := llm.New(llm.Config{
		Provider:          cfg.LLM.Provider,
		APIKey:            cfg.LLM.APIKey(),
		Model:             cfg.LLM.Model(),
		BaseURL:           cfg.LLM.BaseURL(),
		MaxTokens:         cfg.LLM.MaxTokens,
		Temperature:       cfg.LLM.Temperature,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
	})
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	pipeline := synthesis.NewPipeline(store, client, checkpoints, nil, synthesis.Config{
		Threshold: cfg.Synthesis.Threshold,
		Weights: synthesis.Weights{
			Time:  cfg.Synthesis.TimeWeight,
			Event: cfg.Synthesis.EventWeight,
			Token: cfg.Synthesis.TokenWeight,
		},
	})

	state, err := pipeline.Run(context.Background(), *animaID, *runID)
	if err != nil {
		log.Fatalf("Synthesis run failed (retryable with -run %s): %v", state.RunID, err)
	}

	out, _ := json.MarshalIndent(state, "", "  ")
	os.Stdout.Write(append(out, '\n'))

	if state.Error != "" {
		os.Exit(1)
	}
}

// openStore opens the configured storage backend and a checkpoint store
// sharing its database.
func openStore(cfg *config.Config) (storage.Store, checkpoint.Store, error) {
	if cfg.Storage.Engine == "postgres" {
		store, err := postgres.NewStore(cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, checkpoint.NewSQLStore(store.DB(), checkpoint.DialectPostgres), nil
	}
	store, err := sqlite.NewStore(cfg.Storage.DataPath + "/animus.db")
	if err != nil {
		return nil, nil, err
	}
	return store, checkpoint.NewSQLStore(store.DB(), checkpoint.DialectSQLite), nil
}
