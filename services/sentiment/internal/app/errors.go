package app

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("Invalid email or password.")

	ErrMissingFields      = errors.New("Full name, email and password are required.")
	ErrEmailAlreadyExists = errors.New("Email already exists.")

	ErrEmailRequired = errors.New("No user email provided")
	ErrEmailMismatch = errors.New("email does not match the signed-in user")
	ErrInvalidToken  = errors.New("invalid or expired token")

	ErrModelNotLoaded = errors.New("model not loaded")
)
