package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/zzin/campsync/sync"
)

// ErrorResponse is the standardized error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LoginRequest is the credentials payload for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
}

// StatusResponse is the body for GET /api/status.
type StatusResponse struct {
	Scheduler     map[string]bool `json:"scheduler"`
	User          string          `json:"user"`
	UptimeSeconds int64           `json:"uptimeSeconds"`
}

// Routes holds the handler dependencies.
type Routes struct {
	logger    *zap.SugaredLogger
	config    sync.ServerSettings
	runner    SyncRunner
	checker   HealthChecker
	jobs      JobStatusReporter
	startedAt time.Time
}

// NewRoutes creates a Routes instance with the provided dependencies.
func NewRoutes(logger *zap.SugaredLogger, config sync.ServerSettings, runner SyncRunner, checker HealthChecker, jobs JobStatusReporter) *Routes {
	return &Routes{
		logger:    logger,
		config:    config,
		runner:    runner,
		checker:   checker,
		jobs:      jobs,
		startedAt: time.Now(),
	}
}

// login handles POST /api/auth/login.
func (rr *Routes) login(w http.ResponseWriter, r *http.Request) {
	var request LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		rr.writeErrorResponse(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if request.Username != rr.config.Username || request.Password != rr.config.Password ||
		rr.config.Username == "" {
		rr.writeErrorResponse(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := rr.issueToken(request.Username)
	if err != nil {
		rr.logger.Errorf("failed to issue token: %v", err)
		rr.writeErrorResponse(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	rr.writeJSONResponse(w, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// health handles GET /api/health. An unhealthy system reports 503 so load
// balancers can act on the status code alone.
func (rr *Routes) health(w http.ResponseWriter, r *http.Request) {
	result := rr.checker.Check(r.Context())
	code := http.StatusOK
	if result.Status == sync.HealthUnhealthy {
		code = http.StatusServiceUnavailable
	}
	rr.writeJSONResponse(w, result, code)
}

// status handles GET /api/status.
func (rr *Routes) status(w http.ResponseWriter, r *http.Request) {
	rr.writeJSONResponse(w, StatusResponse{
		Scheduler:     rr.jobs.JobStatus(),
		User:          userFromContext(r.Context()),
		UptimeSeconds: int64(time.Since(rr.startedAt).Seconds()),
	}, http.StatusOK)
}

// manualSync handles POST /api/sync/manual.
func (rr *Routes) manualSync(w http.ResponseWriter, r *http.Request) {
	rr.runSync(w, r)
}

// webhookSync handles POST /api/webhook/sync. It authenticates with a
// shared API key instead of a JWT so external systems can call it.
func (rr *Routes) webhookSync(w http.ResponseWriter, r *http.Request) {
	if rr.config.APIKey == "" || r.Header.Get("X-Api-Key") != rr.config.APIKey {
		rr.writeErrorResponse(w, "invalid api key", http.StatusUnauthorized)
		return
	}
	rr.runSync(w, r)
}

// runSync triggers a reconciliation run. A run that is rejected because
// another is in flight maps to 409; any other outcome, including a failed
// run, is a 200 carrying the result body.
func (rr *Routes) runSync(w http.ResponseWriter, r *http.Request) {
	result, err := rr.runner.PerformSync(r.Context())
	if err != nil {
		if errors.Is(err, sync.ErrSyncInProgress) {
			rr.writeErrorResponse(w, err.Error(), http.StatusConflict)
			return
		}
		rr.logger.Errorf("sync trigger failed: %v", err)
		rr.writeErrorResponse(w, "sync failed to start", http.StatusInternalServerError)
		return
	}
	rr.writeJSONResponse(w, result, http.StatusOK)
}

func (rr *Routes) writeJSONResponse(w http.ResponseWriter, body any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rr.logger.Errorf("failed to encode response: %v", err)
	}
}

func (rr *Routes) writeErrorResponse(w http.ResponseWriter, message string, code int) {
	rr.writeJSONResponse(w, ErrorResponse{Error: message}, code)
}
