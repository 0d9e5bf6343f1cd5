package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/momoso/api/internal/ai"
	"github.com/momoso/api/internal/config"
	"github.com/momoso/api/internal/database"
	"github.com/momoso/api/internal/repository"
	"github.com/momoso/api/internal/transcribe"
	"github.com/momoso/api/migrations"
)

type transcribeArgs struct {
	dir      string
	language string
	workers  int
	noStore  bool
}

// newTranscribeCmd runs speech recognition over chunks already on disk,
// for example ones left behind when the live queue was full
func newTranscribeCmd() *cobra.Command {
	var args transcribeArgs

	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe every .wav chunk in a room directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTranscribe(cmd, args)
		},
	}

	cmd.Flags().StringVarP(&args.dir, "dir", "d", "", "room directory holding chunk_*.wav files")
	cmd.Flags().StringVarP(&args.language, "language", "l", "", "BCP 47 language tag (default from config)")
	cmd.Flags().IntVarP(&args.workers, "workers", "w", 0, "concurrent recognitions (default from config)")
	cmd.Flags().BoolVar(&args.noStore, "no-store", false, "only write text files, skip saving transcripts to the database")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

func runTranscribe(cmd *cobra.Command, args transcribeArgs) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if args.language == "" {
		args.language = cfg.Transcribe.Language
	}
	if args.workers <= 0 {
		args.workers = cfg.Transcribe.Workers
	}

	recognizer, err := ai.New(cmd.Context(), ai.Config{
		Provider: cfg.AI.Provider,
		Gemini: ai.GeminiConfig{
			APIKey:         cfg.AI.GeminiAPIKey,
			Model:          cfg.AI.GeminiModel,
			EmbeddingModel: cfg.AI.EmbeddingModel,
			BaseURL:        cfg.AI.GeminiBaseURL,
		},
		OpenAI: ai.OpenAIConfig{
			APIKey:         cfg.AI.OpenAIAPIKey,
			BaseURL:        cfg.AI.OpenAIBaseURL,
			Model:          cfg.AI.OpenAIModel,
			EmbeddingModel: cfg.AI.OpenAIEmbed,
			WhisperModel:   cfg.AI.WhisperModel,
		},
	})
	if err != nil {
		return err
	}

	// Transcripts feed discussion notes, so they go to the same table the
	// live relay writes to unless the caller opts out.
	var sink transcribe.Sink
	if !args.noStore {
		db := database.NewSurrealDB(database.Config{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Namespace:       cfg.Database.Namespace,
			Database:        cfg.Database.Database,
			ConnectAttempts: cfg.Database.ConnectAttempts,
			QueryTimeout:    cfg.Database.QueryTimeout,
		})
		if err := db.Connect(cmd.Context()); err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer func() { _ = db.Close() }()

		if err := migrations.Apply(cmd.Context(), db); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		sink = transcribe.SinkFunc(repository.NewTranscriptRepository(db).Create)
	}

	return transcribeDir(cmd, recognizer, sink, args)
}

func transcribeDir(cmd *cobra.Command, recognizer ai.Recognizer, sink transcribe.Sink, args transcribeArgs) error {
	pipeline := transcribe.New(transcribe.Config{
		Recognizer: recognizer,
		Sink:       sink,
		Workers:    args.workers,
		Language:   args.language,
		Logger:     slog.New(slog.NewTextHandler(os.Stderr, nil)),
	})

	n, err := pipeline.RunDirectory(cmd.Context(), args.dir)
	fmt.Fprintf(cmd.OutOrStdout(), "transcribed %d chunk(s) in %s\n", n, args.dir)
	return err
}
