package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"sentimentai/internal/ratelimit"
	"sentimentai/internal/util"
	"sentimentai/pkg/domain"
	"sentimentai/services/sentiment/internal/app"
)

//go:embed templates/*.html
var templateFS embed.FS

const maxBodyBytes = 1 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	RedisAddr                  string
	RedisPassword              string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
	PredictRateLimitPerMinute  int
	CORSAllowedOrigins         []string
	TrustedProxies             *util.TrustedProxies
}

// Server exposes the pages and JSON endpoints of the sentiment app.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	pages          map[string]*template.Template
	corsOrigins    []string
	trustedProxies *util.TrustedProxies

	registerLimiter ratelimit.Limiter
	loginLimiter    ratelimit.Limiter
	predictLimiter  ratelimit.Limiter
	closers         []io.Closer
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		pages:          pages,
		corsOrigins:    cfg.CORSAllowedOrigins,
		trustedProxies: cfg.TrustedProxies,
	}

	rateWindow := time.Minute
	newLimiter := func(name string, limit, fallback int) (ratelimit.Limiter, error) {
		if limit <= 0 {
			limit = fallback
		}
		var (
			limiter *ratelimit.FixedWindowLimiter
			err     error
		)
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "sentiment:ratelimit:"+name, limit, rateWindow)
		} else {
			limiter, err = ratelimit.NewMemoryFixedWindowLimiter(limit, rateWindow)
		}
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		s.closers = append(s.closers, limiter)
		return limiter, nil
	}
	if s.registerLimiter, err = newLimiter("register", cfg.RegisterRateLimitPerMinute, 5); err != nil {
		return nil, err
	}
	if s.loginLimiter, err = newLimiter("login", cfg.LoginRateLimitPerMinute, 10); err != nil {
		return nil, err
	}
	if s.predictLimiter, err = newLimiter("predict", cfg.PredictRateLimitPerMinute, 60); err != nil {
		return nil, err
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.corsOrigins, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog("sentiment", h)
	return util.WithRequestID(h)
}

// Close releases rate limiter connections.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// pages
	s.mux.HandleFunc("/", s.handlePage("login.html", "Log in", ""))
	s.mux.HandleFunc("/index.html", s.handlePage("index.html", "Analyze", "predict"))
	s.mux.HandleFunc("/dashboard", s.handlePage("dashboard.html", "Dashboard", "dashboard"))
	s.mux.HandleFunc("/model-details", s.handleModelPage)

	// api
	s.mux.HandleFunc("/register", s.handleRegister)
	s.mux.HandleFunc("/login", s.handleLogin)
	s.mux.HandleFunc("/logout", s.handleLogout)
	s.mux.HandleFunc("/predict", s.handlePredict)
	s.mux.HandleFunc("/dashboard-data", s.handleDashboardData)
	s.mux.HandleFunc("/api/model-details", s.handleModelDetails)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if _, err := s.app.ModelDetails(); err != nil {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

// pages
type pageData struct {
	Title  string
	Active string
	Model  *domain.ModelDetails
}

func parsePages() (map[string]*template.Template, error) {
	names := []string{"login.html", "index.html", "dashboard.html", "model_details.html"}
	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		tmpl, err := template.ParseFS(templateFS, "templates/partials.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

func (s *Server) handlePage(name, title, active string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if name == "login.html" && r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w)
			return
		}
		s.renderPage(w, r, name, pageData{Title: title, Active: active})
	}
}

func (s *Server) handleModelPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w)
		return
	}
	data := pageData{Title: "Model", Active: "model"}
	if details, err := s.app.ModelDetails(); err == nil {
		data.Model = &details
	}
	s.renderPage(w, r, "model_details.html", data)
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.pages[name].ExecuteTemplate(&buf, name, data); err != nil {
		util.LoggerFromContext(r.Context()).Error("render page failed", "page", name, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// account handlers
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter) {
		return
	}
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.app.Register(req.FullName, req.Email, req.Password)
	switch {
	case errors.Is(err, app.ErrMissingFields):
		writeStatus(w, http.StatusBadRequest, "error", err.Error())
		return
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeStatus(w, http.StatusConflict, "error", err.Error())
		return
	case err != nil:
		util.LoggerFromContext(r.Context()).Error("register failed", "err", err)
		writeStatus(w, http.StatusInternalServerError, "error", "internal error")
		return
	}
	util.LoggerFromContext(r.Context()).Info("user registered", "user_id", user.ID)
	writeStatus(w, http.StatusOK, "success", "User registered successfully.")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter) {
		return
	}
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, app.ErrInvalidCredentials) {
			util.LoggerFromContext(r.Context()).Warn("login rejected", "ip", util.ClientIP(r, s.trustedProxies))
			writeStatus(w, http.StatusUnauthorized, "error", err.Error())
			return
		}
		util.LoggerFromContext(r.Context()).Error("login failed", "err", err)
		writeStatus(w, http.StatusInternalServerError, "error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Status:   "success",
		FullName: user.FullName,
		Email:    user.Email,
		Token:    token,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		util.LoggerFromContext(r.Context()).Error("logout failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// prediction handlers
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.predictLimiter) {
		return
	}
	var req predictRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email, ok := s.requestEmail(w, r, req.Email)
	if !ok {
		return
	}
	pred, err := s.app.Predict(r.Context(), req.Text, email)
	if err != nil {
		util.LoggerFromContext(r.Context()).Error("prediction failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, predictError{
			Prediction: "Error",
			Tokens:     []string{},
			Vector:     []float64{},
			Error:      err.Error(),
		})
		return
	}
	util.LoggerFromContext(r.Context()).Info("prediction",
		"prediction", pred.Label,
		"confidence", pred.Confidence,
		"tokens", len(pred.Tokens),
		"active_features", countActive(pred.Vector),
		"stored", email != "",
	)
	writeJSON(w, http.StatusOK, pred)
}

func (s *Server) handleDashboardData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	email, ok := s.requestEmail(w, r, r.URL.Query().Get("email"))
	if !ok {
		return
	}
	rows, err := s.app.DashboardRows(email)
	if err != nil {
		if errors.Is(err, app.ErrEmailRequired) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		util.LoggerFromContext(r.Context()).Error("dashboard query failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleModelDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	details, err := s.app.ModelDetails()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// requestEmail resolves the email a request acts on. A present bearer token
// must be valid and owns the email; otherwise the requested email is used.
func (s *Server) requestEmail(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	sessionEmail := ""
	if strings.TrimSpace(r.Header.Get("Authorization")) != "" {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return "", false
		}
		user, err := s.app.UserFromToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return "", false
		}
		sessionEmail = user.Email
	}
	email, err := app.EffectiveEmail(sessionEmail, requested)
	if err != nil {
		util.LoggerFromContext(r.Context()).Warn("email mismatch", "path", r.URL.Path)
		writeError(w, http.StatusForbidden, err.Error())
		return "", false
	}
	return email, true
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter ratelimit.Limiter) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeStatus(w, http.StatusTooManyRequests, "error", "too many requests")
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type registerRequest struct {
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Status   string `json:"status"`
	FullName string `json:"fullname"`
	Email    string `json:"email"`
	Token    string `json:"token"`
}

type predictRequest struct {
	Text  string `json:"text"`
	Email string `json:"email"`
}

type predictError struct {
	Prediction string    `json:"prediction"`
	Confidence float64   `json:"confidence"`
	Tokens     []string  `json:"tokens"`
	Vector     []float64 `json:"vector"`
	Error      string    `json:"error"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func bearerToken(r *http.Request) (string, bool) {
	logger := util.LoggerFromContext(r.Context())
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		logger.Warn("missing bearer prefix", "path", r.URL.Path)
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		logger.Warn("empty bearer token", "path", r.URL.Path)
		return "", false
	}
	return token, true
}

func countActive(vec []float64) int {
	n := 0
	for _, v := range vec {
		if v != 0 {
			n++
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStatus(w http.ResponseWriter, status int, outcome, msg string) {
	writeJSON(w, status, map[string]string{"status": outcome, "message": msg})
}
