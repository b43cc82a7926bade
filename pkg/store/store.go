package store

import (
	"errors"

	"sentimentai/pkg/domain"
)

// ErrEmailExists is returned when a user with the same email is already registered.
var ErrEmailExists = errors.New("email already exists")

// Store defines persistence operations for users and sentiment results.
type Store interface {
	// users
	CreateUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)

	// results
	SaveResult(*domain.SentimentResult) error
	ListResultsByEmail(email string) ([]domain.SentimentResult, error)
	RecentResults(limit int) ([]domain.SentimentResult, error)
}

// SessionStore issues and resolves session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}
