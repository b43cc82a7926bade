package classifier

import (
	"errors"
	"fmt"
	"math"
	"time"

	"sentimentai/pkg/domain"
)

// Model is a bag-of-known-words vectorizer followed by a single linear layer.
// A Model is immutable after construction and safe for concurrent use.
type Model struct {
	vocab  map[string]int
	labels []string
	weight [][]float64 // classes x vocab
	bias   []float64

	source   string
	loadedAt time.Time
}

// NewModel validates the shapes and builds a model.
func NewModel(vocab map[string]int, labels []string, weight [][]float64, bias []float64) (*Model, error) {
	dim := len(vocab)
	if dim == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	seen := make([]bool, dim)
	for word, idx := range vocab {
		if idx < 0 || idx >= dim {
			return nil, fmt.Errorf("vocabulary index %d for %q out of range [0,%d)", idx, word, dim)
		}
		if seen[idx] {
			return nil, fmt.Errorf("vocabulary index %d is assigned twice", idx)
		}
		seen[idx] = true
	}
	classes := len(labels)
	if classes == 0 {
		return nil, errors.New("label map is empty")
	}
	if len(weight) != classes {
		return nil, fmt.Errorf("weight has %d rows, want %d (one per label)", len(weight), classes)
	}
	for i, row := range weight {
		if len(row) != dim {
			return nil, fmt.Errorf("weight row %d has %d columns, want %d (vocabulary size)", i, len(row), dim)
		}
	}
	if len(bias) != classes {
		return nil, fmt.Errorf("bias has %d entries, want %d", len(bias), classes)
	}
	return &Model{
		vocab:    vocab,
		labels:   labels,
		weight:   weight,
		bias:     bias,
		loadedAt: time.Now().UTC(),
	}, nil
}

// VocabularySize is the length of every vector the model produces.
func (m *Model) VocabularySize() int { return len(m.vocab) }

// Labels returns the class labels ordered by class index.
func (m *Model) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

// HasLabel reports whether label is one of the model classes.
func (m *Model) HasLabel(label string) bool {
	for _, l := range m.labels {
		if l == label {
			return true
		}
	}
	return false
}

// Vectorize one-hot encodes the recognized tokens.
func (m *Model) Vectorize(tokens []string) []float64 {
	vec := make([]float64, len(m.vocab))
	for _, tok := range tokens {
		if idx, ok := m.vocab[tok]; ok {
			vec[idx] = 1
		}
	}
	return vec
}

// Predict classifies text. Confidence is a percentage rounded to one decimal.
func (m *Model) Predict(text string) domain.Prediction {
	tokens := Tokenize(text)
	vec := m.Vectorize(tokens)
	probs := softmax(m.forward(vec))
	idx := argmax(probs)
	return domain.Prediction{
		Label:      m.labels[idx],
		Confidence: math.Round(probs[idx]*1000) / 10,
		Tokens:     tokens,
		Vector:     vec,
	}
}

func (m *Model) forward(x []float64) []float64 {
	logits := make([]float64, len(m.weight))
	for c, row := range m.weight {
		sum := m.bias[c]
		for j, v := range x {
			if v != 0 {
				sum += row[j] * v
			}
		}
		logits[c] = sum
	}
	return logits
}

// Details describes the loaded model.
func (m *Model) Details() domain.ModelDetails {
	return domain.ModelDetails{
		VocabularySize: len(m.vocab),
		NumClasses:     len(m.labels),
		Labels:         m.Labels(),
		Source:         m.source,
		LoadedAt:       m.loadedAt,
	}
}

func softmax(logits []float64) []float64 {
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		if l > maxLogit {
			maxLogit = l
		}
	}
	out := make([]float64, len(logits))
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(l - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// argmax returns the first index holding the maximum.
func argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
