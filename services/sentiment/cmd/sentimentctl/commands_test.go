package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sentimentai/pkg/domain"
	"sentimentai/pkg/store"
)

func writeModelDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"vectorizer_vocab.json": `{"राम्रो":0,"नराम्रो":1,"छ":2}`,
		"label_map.json":        `{"0":"Negative","1":"Positive"}`,
		"sentiment_model.json":  `{"linear.weight":[[0,2,0],[2,0,0]],"linear.bias":[0,0]}`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SENTIMENT_CONFIG", "")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPredictCommand(t *testing.T) {
	dir := writeModelDir(t)

	out, err := runCLI(t, "predict", "--model-dir", dir, "यो", "राम्रो", "छ")
	require.NoError(t, err)
	require.Contains(t, out, "Prediction: Positive (88.1%)")
	require.Contains(t, out, "Active features: 2 of 3")

	out, err = runCLI(t, "predict", "--model-dir", dir, "--json", "नराम्रो")
	require.NoError(t, err)
	var pred domain.Prediction
	require.NoError(t, json.Unmarshal([]byte(out), &pred))
	require.Equal(t, "Negative", pred.Label)
	require.Equal(t, []string{"नराम्रो"}, pred.Tokens)
}

func TestModelCommand(t *testing.T) {
	dir := writeModelDir(t)
	out, err := runCLI(t, "model", "--model-dir", dir)
	require.NoError(t, err)
	require.Contains(t, out, "Vocabulary size: 3")
	require.Contains(t, out, "Labels:          Negative, Positive")
}

func TestModelCommandMissingArtifacts(t *testing.T) {
	_, err := runCLI(t, "model", "--model-dir", t.TempDir())
	require.Error(t, err)
}

func TestCheckDBCommand(t *testing.T) {
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "check.db")
	gs, err := store.NewGormStore(dsn)
	require.NoError(t, err)
	base := time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)
	for i, text := range []string{"पहिलो", "दोस्रो", strings.Repeat("क", 150)} {
		r := domain.SentimentResult{
			UserEmail:  "a@example.com",
			Text:       text,
			Tokens:     []string{text},
			Vector:     []float64{1, 0, 0},
			Prediction: "Positive",
			Confidence: 70,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, gs.SaveResult(&r))
	}
	require.NoError(t, gs.Close())

	out, err := runCLI(t, "check-db", "--db", dsn, "--limit", "2")
	require.NoError(t, err)
	require.Contains(t, out, "Found 2 recent records")
	require.Contains(t, out, "Record #1 (ID: 3)")
	require.Contains(t, out, strings.Repeat("क", 100)+"...")
	require.Contains(t, out, "1 active features out of 3")
	require.NotContains(t, out, "पहिलो")
}

func TestCheckDBRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := runCLI(t, "check-db")
	require.Error(t, err)
}
