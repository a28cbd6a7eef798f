// parse-statement extracts transactions from a local or archived
// statement file and prints them as JSON. It talks to the same pipeline
// the API uses, so it doubles as a quick way to eyeball what a given
// statement produces without running the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/finsight-app/finsight/internal/gcsarchive"
	"github.com/finsight-app/finsight/internal/logger"
	"github.com/finsight-app/finsight/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	var (
		filePath = flag.String("file", "", "Local statement file (.txt or .csv)")
		gcsURI   = flag.String("gcs-uri", "", "Archived statement to fetch (gs://bucket/object)")
		model    = flag.String("model", envOr("GEMINI_MODEL", pipeline.DefaultModelName), "Gemini model for extraction")
		mock     = flag.Bool("mock", false, "Skip the model and print the sample transaction set")
	)
	flag.Parse()

	log := logger.New("parse-statement")

	if *filePath == "" && *gcsURI == "" && !*mock {
		fmt.Fprintln(os.Stderr, "Usage: parse-statement -file statement.csv | -gcs-uri gs://bucket/object | -mock")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var client pipeline.ExtractionClient
	apiKey := os.Getenv("GEMINI_API_KEY")
	if !*mock && pipeline.Configured(apiKey) {
		c, err := pipeline.NewGeminiClient(ctx, apiKey, *model)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Gemini client")
		}
		client = c
	}

	text := ""
	if !*mock {
		var err error
		text, err = statementText(ctx, *filePath, *gcsURI)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read statement")
		}
	}

	parser := pipeline.NewParser(client, 0, log)
	result, err := parser.Parse(ctx, text)
	if err != nil {
		log.Fatal().Err(err).Msg("Extraction failed")
	}

	if result.Source == pipeline.SourceMock && result.Reason != "" {
		log.Warn().Str("reason", result.Reason).Msg("Degraded to sample transactions")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Transactions); err != nil {
		log.Fatal().Err(err).Msg("Failed to print transactions")
	}
}

func statementText(ctx context.Context, filePath, gcsURI string) (string, error) {
	if filePath != "" {
		ext := strings.ToLower(filepath.Ext(filePath))
		return pipeline.ExtractText(filePath, ext)
	}

	bucket, _, err := gcsarchive.ParseURI(gcsURI)
	if err != nil {
		return "", err
	}

	archiver, err := gcsarchive.NewArchiver(ctx, bucket)
	if err != nil {
		return "", err
	}
	defer archiver.Close()

	data, err := archiver.Fetch(ctx, gcsURI)
	if err != nil {
		return "", err
	}

	// Fetched statements go through the same text extraction as uploads.
	tmp, err := os.CreateTemp("", "statement-*"+filepath.Ext(gcsURI))
	if err != nil {
		return "", fmt.Errorf("statementText: creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("statementText: writing temp file: %w", err)
	}
	tmp.Close()

	ext := strings.ToLower(filepath.Ext(gcsURI))
	return pipeline.ExtractText(tmp.Name(), ext)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
