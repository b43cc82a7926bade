package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"sentimentai/internal/util"
	"sentimentai/pkg/auth"
	"sentimentai/pkg/classifier"
	"sentimentai/pkg/domain"
	"sentimentai/pkg/store"
)

// MemoryDatabaseURL selects the in-process store.
const MemoryDatabaseURL = "memory://"

const createdAtLayout = "2006-01-02 15:04:05"

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL       string
	RedisAddr         string
	RedisPassword     string
	SessionTTL        time.Duration
	JWTSecret         string
	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTKeyID          string
	JWTIssuer         string
	JWTAudience       string
	JWTLeeway         time.Duration

	Models   *classifier.Holder
	Store    store.Store
	Sessions store.SessionStore
	Now      func() time.Time
}

// App wires storage, sessions and the classifier together.
type App struct {
	store    store.Store
	sessions store.SessionStore
	models   *classifier.Holder
	now      func() time.Time
	closers  []io.Closer
}

// New constructs the application with storage, session management and a model holder.
func New(cfg Config) (*App, error) {
	if cfg.Models == nil {
		return nil, errors.New("model holder required")
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	a := &App{models: cfg.Models, now: cfg.Now}

	a.store = cfg.Store
	if a.store == nil {
		dsn := strings.TrimSpace(cfg.DatabaseURL)
		switch dsn {
		case "":
			return nil, errors.New("database URL required")
		case MemoryDatabaseURL:
			a.store = store.NewMemoryStore()
		default:
			gs, err := store.NewGormStore(dsn)
			if err != nil {
				return nil, fmt.Errorf("init gorm store: %w", err)
			}
			a.store = gs
			a.closers = append(a.closers, gs)
		}
	}

	a.sessions = cfg.Sessions
	if a.sessions == nil {
		var revoker store.TokenRevoker
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			rr := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
			a.closers = append(a.closers, rr)
			revoker = rr
		} else {
			revoker = store.NewMemoryTokenRevoker()
		}
		jwtOpts := store.JWTOptions{
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   cfg.JWTLeeway,
		}
		var (
			sessions *store.JWTSessionStore
			err      error
		)
		switch {
		case strings.TrimSpace(cfg.JWTPrivateKeyPath) != "":
			sessions, err = store.NewJWTRS256SessionStoreFromPEM(
				cfg.JWTPrivateKeyPath,
				cfg.JWTPublicKeyPath,
				cfg.JWTKeyID,
				cfg.SessionTTL,
				revoker,
				jwtOpts,
			)
		case cfg.JWTSecret != "":
			sessions, err = store.NewJWTHS256SessionStore(cfg.JWTSecret, cfg.SessionTTL, revoker, jwtOpts)
		default:
			err = errors.New("jwtSecret or jwtPrivateKeyPath is required")
		}
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		a.sessions = sessions
	}
	return a, nil
}

// Close releases database and Redis connections opened by New.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Store exposes the underlying store.
func (a *App) Store() store.Store {
	return a.store
}

// Register creates a new account.
func (a *App) Register(fullName, email, password string) (domain.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = normalizeEmail(email)
	if fullName == "" || email == "" || password == "" {
		return domain.User{}, ErrMissingFields
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, ErrEmailAlreadyExists
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           uuid.NewString(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    a.now().UTC(),
	}
	if err := a.store.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return domain.User{}, ErrEmailAlreadyExists
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.User{}, "", ErrInvalidCredentials
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("create session: %w", err)
	}
	return user, token, nil
}

// Logout revokes the session token.
func (a *App) Logout(token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrInvalidToken
	}
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves the user that owns a session token.
func (a *App) UserFromToken(token string) (domain.User, error) {
	userID, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, ErrInvalidToken
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrInvalidToken
	}
	return user, nil
}

// EffectiveEmail picks the email a request acts on.
// A signed-in user's email wins; a different requested email is rejected.
func EffectiveEmail(sessionEmail, requested string) (string, error) {
	sessionEmail = normalizeEmail(sessionEmail)
	requested = normalizeEmail(requested)
	if sessionEmail == "" {
		return requested, nil
	}
	if requested != "" && requested != sessionEmail {
		return "", ErrEmailMismatch
	}
	return sessionEmail, nil
}

// Predict classifies text and stores the result when email is set.
// Empty text yields the neutral prediction without inference or storage.
func (a *App) Predict(ctx context.Context, text, email string) (domain.Prediction, error) {
	if text == "" {
		return domain.NeutralPrediction(), nil
	}
	model := a.models.Current()
	if model == nil {
		return domain.Prediction{}, ErrModelNotLoaded
	}
	pred := model.Predict(text)

	email = normalizeEmail(email)
	if email == "" {
		return pred, nil
	}
	result := domain.SentimentResult{
		UserEmail:  email,
		Text:       text,
		Tokens:     pred.Tokens,
		Vector:     pred.Vector,
		Prediction: pred.Label,
		Confidence: pred.Confidence,
		CreatedAt:  a.now().UTC(),
	}
	if err := a.store.SaveResult(&result); err != nil {
		return domain.Prediction{}, fmt.Errorf("save result: %w", err)
	}
	util.LoggerFromContext(ctx).Debug("prediction stored", "result_id", result.ID, "prediction", pred.Label)
	return pred, nil
}

// DashboardRows lists one user's stored predictions, newest first.
func (a *App) DashboardRows(email string) ([]domain.DashboardRow, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	results, err := a.store.ListResultsByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	rows := make([]domain.DashboardRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, DashboardRowFromResult(r))
	}
	return rows, nil
}

// ModelDetails describes the model currently serving predictions.
func (a *App) ModelDetails() (domain.ModelDetails, error) {
	model := a.models.Current()
	if model == nil {
		return domain.ModelDetails{}, ErrModelNotLoaded
	}
	return model.Details(), nil
}

// DashboardRowFromResult builds the display projection of a stored result.
func DashboardRowFromResult(r domain.SentimentResult) domain.DashboardRow {
	tokens := r.Tokens
	if tokens == nil {
		tokens = []string{}
	}
	vector := r.Vector
	if vector == nil {
		vector = []float64{}
	}
	return domain.DashboardRow{
		ID:            r.ID,
		UserEmail:     r.UserEmail,
		Text:          r.Text,
		Tokens:        tokens,
		TokenCount:    len(tokens),
		VectorSummary: VectorSummary(r),
		Vector:        vector,
		Prediction:    r.Prediction,
		Confidence:    r.Confidence,
		CreatedAt:     r.CreatedAt.UTC().Format(createdAtLayout),
	}
}

// VectorSummary reports how many vector positions are active.
func VectorSummary(r domain.SentimentResult) string {
	if len(r.Vector) == 0 {
		return "No vector data"
	}
	return fmt.Sprintf("%d active features out of %d", r.ActiveFeatures(), len(r.Vector))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
