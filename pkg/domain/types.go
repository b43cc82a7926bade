package domain

import "time"

// NeutralLabel is reported for empty input without running the model.
const NeutralLabel = "Neutral"

type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SentimentResult is one stored prediction.
// len(Vector) equals the vocabulary size of the model that produced it.
type SentimentResult struct {
	ID         uint      `json:"id"`
	UserEmail  string    `json:"user_email"`
	Text       string    `json:"text"`
	Tokens     []string  `json:"tokens"`
	Vector     []float64 `json:"vector"`
	Prediction string    `json:"prediction"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// ActiveFeatures counts the nonzero positions of the vector.
func (r SentimentResult) ActiveFeatures() int {
	n := 0
	for _, v := range r.Vector {
		if v != 0 {
			n++
		}
	}
	return n
}

type Prediction struct {
	Label      string    `json:"prediction"`
	Confidence float64   `json:"confidence"`
	Tokens     []string  `json:"tokens"`
	Vector     []float64 `json:"vector"`
}

// NeutralPrediction is the zero-confidence answer for empty text.
func NeutralPrediction() Prediction {
	return Prediction{
		Label:  NeutralLabel,
		Tokens: []string{},
		Vector: []float64{},
	}
}

// DashboardRow is the display projection of a SentimentResult.
type DashboardRow struct {
	ID            uint      `json:"id"`
	UserEmail     string    `json:"user_email"`
	Text          string    `json:"text"`
	Tokens        []string  `json:"tokens"`
	TokenCount    int       `json:"token_count"`
	VectorSummary string    `json:"vector_summary"`
	Vector        []float64 `json:"vector"`
	Prediction    string    `json:"prediction"`
	Confidence    float64   `json:"confidence"`
	CreatedAt     string    `json:"created_at"`
}

type ModelDetails struct {
	VocabularySize int       `json:"vocabularySize"`
	NumClasses     int       `json:"numClasses"`
	Labels         []string  `json:"labels"`
	Source         string    `json:"source"`
	LoadedAt       time.Time `json:"loadedAt"`
}
