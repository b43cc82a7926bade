package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sentimentai/pkg/classifier"
	"sentimentai/pkg/domain"
	"sentimentai/pkg/store"
	"sentimentai/services/sentiment/internal/app"
	"sentimentai/services/sentiment/internal/config"
)

const rule = "================================================================================"

func (o *rootOptions) load() (config.FileConfig, error) {
	cfg, err := config.Read(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.modelDir != "" {
		cfg.ModelDir = o.modelDir
		cfg.Minio = config.MinioConfig{}
	}
	return cfg, nil
}

func (o *rootOptions) loadModel(ctx context.Context) (*classifier.Model, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	src, err := config.ModelSource(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return classifier.Load(ctx, src)
}

func newCheckDBCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "check-db",
		Short: "Print the most recent stored predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st, err := openStore(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if c, ok := st.(io.Closer); ok {
				defer c.Close()
			}
			results, err := st.RecentResults(limit)
			if err != nil {
				return fmt.Errorf("query results: %w", err)
			}
			printResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "number of records to show")
	return cmd
}

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "predict <text>",
		Short: "Classify text with the local model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := opts.loadModel(cmd.Context())
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			pred := model.Predict(text)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetEscapeHTML(false)
				return enc.Encode(pred)
			}
			active := 0
			for _, v := range pred.Vector {
				if v != 0 {
					active++
				}
			}
			fmt.Fprintf(out, "Prediction: %s (%.1f%%)\n", pred.Label, pred.Confidence)
			fmt.Fprintf(out, "Tokens: %s\n", strings.Join(pred.Tokens, ", "))
			fmt.Fprintf(out, "Active features: %d of %d\n", active, len(pred.Vector))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the prediction as JSON")
	return cmd
}

func newModelCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "model",
		Short: "Describe the model artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			model, err := opts.loadModel(cmd.Context())
			if err != nil {
				return err
			}
			d := model.Details()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Source:          %s\n", d.Source)
			fmt.Fprintf(out, "Vocabulary size: %d\n", d.VocabularySize)
			fmt.Fprintf(out, "Classes:         %d\n", d.NumClasses)
			fmt.Fprintf(out, "Labels:          %s\n", strings.Join(d.Labels, ", "))
			return nil
		},
	}
}

func openStore(dsn string) (store.Store, error) {
	dsn = strings.TrimSpace(dsn)
	switch dsn {
	case "":
		return nil, errors.New("database URL required (set --db or DATABASE_URL)")
	case app.MemoryDatabaseURL:
		return store.NewMemoryStore(), nil
	}
	gs, err := store.NewGormStore(dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return gs, nil
}

func printResults(out io.Writer, results []domain.SentimentResult) {
	fmt.Fprintf(out, "Found %d recent records\n", len(results))
	for i, r := range results {
		fmt.Fprintf(out, "\n%s\nRecord #%d (ID: %d)\n%s\n", rule, i+1, r.ID, rule)
		fmt.Fprintf(out, "User: %s\n", r.UserEmail)
		fmt.Fprintf(out, "Text: %s\n", truncateRunes(r.Text, 100))
		fmt.Fprintf(out, "Prediction: %s (%.1f%%)\n", r.Prediction, r.Confidence)
		fmt.Fprintf(out, "Created: %s\n", r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "Tokens: %d [%s]\n", len(r.Tokens), strings.Join(r.Tokens, ", "))
		fmt.Fprintf(out, "Vector: %s\n", app.VectorSummary(r))
	}
	fmt.Fprintf(out, "\n%s\nCheck complete.\n", rule)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
