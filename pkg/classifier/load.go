package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// Artifact file names.
const (
	VocabFile  = "vectorizer_vocab.json"
	LabelsFile = "label_map.json"
	WeightFile = "sentiment_model.json"
)

// Artifacts lists every file a model is built from.
var Artifacts = []string{VocabFile, LabelsFile, WeightFile}

// Load fetches the three artifacts concurrently and builds a validated model.
func Load(ctx context.Context, src ArtifactSource) (*Model, error) {
	var (
		vocab   map[string]int
		rawMap  map[string]string
		weights linearWeights
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return decodeArtifact(gctx, src, VocabFile, &vocab) })
	g.Go(func() error { return decodeArtifact(gctx, src, LabelsFile, &rawMap) })
	g.Go(func() error { return decodeArtifact(gctx, src, WeightFile, &weights) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	labels, err := denseLabels(rawMap)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", LabelsFile, err)
	}
	m, err := NewModel(vocab, labels, weights.Weight, weights.Bias)
	if err != nil {
		return nil, fmt.Errorf("build model from %s: %w", src, err)
	}
	m.source = src.String()
	return m, nil
}

func decodeArtifact(ctx context.Context, src ArtifactSource, name string, dst any) error {
	rc, err := src.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// denseLabels turns {"0": "Negative", "1": "Positive"} into an index-ordered slice.
func denseLabels(raw map[string]string) ([]string, error) {
	labels := make([]string, len(raw))
	for key, label := range raw {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("label key %q is not an integer", key)
		}
		if idx < 0 || idx >= len(raw) {
			return nil, fmt.Errorf("label index %d out of range [0,%d)", idx, len(raw))
		}
		if labels[idx] != "" {
			return nil, fmt.Errorf("label index %d is assigned twice", idx)
		}
		if label == "" {
			return nil, fmt.Errorf("label index %d is empty", idx)
		}
		labels[idx] = label
	}
	return labels, nil
}

// linearWeights is a JSON export of a linear layer state dict.
// Both "linear.weight"/"linear.bias" and bare "weight"/"bias" keys are accepted.
type linearWeights struct {
	Weight [][]float64
	Bias   []float64
}

func (w *linearWeights) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	weight, ok := firstKey(raw, "linear.weight", "weight")
	if !ok {
		return fmt.Errorf("missing linear.weight")
	}
	bias, ok := firstKey(raw, "linear.bias", "bias")
	if !ok {
		return fmt.Errorf("missing linear.bias")
	}
	if err := json.Unmarshal(weight, &w.Weight); err != nil {
		return fmt.Errorf("weight: %w", err)
	}
	if err := json.Unmarshal(bias, &w.Bias); err != nil {
		return fmt.Errorf("bias: %w", err)
	}
	return nil
}

func firstKey(raw map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v, true
		}
	}
	return nil, false
}
