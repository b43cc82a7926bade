package store

import (
	"encoding/json"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"sentimentai/pkg/domain"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	FullName     string    `gorm:"size:255"`
	Email        string    `gorm:"size:255;uniqueIndex;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type SentimentResultModel struct {
	ID         uint           `gorm:"primaryKey;autoIncrement"`
	UserEmail  string         `gorm:"size:255;index"`
	Text       string         `gorm:"type:text"`
	Tokens     datatypes.JSON `gorm:"type:text"`
	Vector     datatypes.JSON `gorm:"type:text"`
	Prediction string         `gorm:"size:50"`
	Confidence float64
	CreatedAt  time.Time `gorm:"not null;index"`
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		FullName:     m.FullName,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		CreatedAt:    m.CreatedAt,
	}
}

func resultToModel(r domain.SentimentResult) (SentimentResultModel, error) {
	tokens := r.Tokens
	if tokens == nil {
		tokens = []string{}
	}
	tokensJSON, err := json.Marshal(tokens)
	if err != nil {
		return SentimentResultModel{}, err
	}
	vector := r.Vector
	if vector == nil {
		vector = []float64{}
	}
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return SentimentResultModel{}, err
	}
	return SentimentResultModel{
		ID:         r.ID,
		UserEmail:  r.UserEmail,
		Text:       r.Text,
		Tokens:     datatypes.JSON(tokensJSON),
		Vector:     datatypes.JSON(vectorJSON),
		Prediction: r.Prediction,
		Confidence: r.Confidence,
		CreatedAt:  r.CreatedAt,
	}, nil
}

// resultFromModel decodes unparsable JSON columns as empty slices.
func resultFromModel(m SentimentResultModel) domain.SentimentResult {
	res := domain.SentimentResult{
		ID:         m.ID,
		UserEmail:  m.UserEmail,
		Text:       m.Text,
		Prediction: m.Prediction,
		Confidence: m.Confidence,
		CreatedAt:  m.CreatedAt,
	}
	if len(m.Tokens) > 0 {
		if err := json.Unmarshal(m.Tokens, &res.Tokens); err != nil {
			slog.Warn("decode stored tokens", "result_id", m.ID, "err", err)
			res.Tokens = nil
		}
	}
	if len(m.Vector) > 0 {
		if err := json.Unmarshal(m.Vector, &res.Vector); err != nil {
			slog.Warn("decode stored vector", "result_id", m.ID, "err", err)
			res.Vector = nil
		}
	}
	if res.Tokens == nil {
		res.Tokens = []string{}
	}
	if res.Vector == nil {
		res.Vector = []float64{}
	}
	return res
}
