package main

import (
	"context"
	"os"
	"time"

	"github.com/dennisdiepolder/monti/okr/internal/facts"
	"github.com/dennisdiepolder/monti/okr/internal/ingestion"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// seed loads a JSON fixture file into the DynamoDB event tables
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	_ = godotenv.Load()

	path := os.Getenv("FIXTURES_FILE")
	if path == "" {
		log.Fatal().Msg("FIXTURES_FILE is required")
	}

	dynamoCfg := facts.LoadDynamoConfig()
	if dynamoCfg.Mode == facts.DynamoModeNone {
		log.Fatal().Msg("DYNAMO_MODE must be local or aws")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fixtures, err := facts.LoadMemorySource(path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load fixtures")
	}

	client, err := facts.NewDynamoClient(ctx, dynamoCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create DynamoDB client")
	}
	sink, err := facts.NewDynamoDBSource(ctx, client, dynamoCfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize DynamoDB tables")
	}

	written, err := ingestion.NewLoader(fixtures, sink, log.Logger).Load(ctx, facts.AllCategories)
	if err != nil {
		log.Fatal().Err(err).Msg("seeding failed")
	}

	total := 0
	for _, n := range written {
		total += n
	}
	log.Info().Int("rows", total).Int("categories", len(written)).Msg("seeding complete")
}
