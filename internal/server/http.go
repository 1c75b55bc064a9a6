package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/muurk/remootio/internal/config"
	"github.com/muurk/remootio/internal/flow"
	"github.com/muurk/remootio/internal/logging"
	"github.com/muurk/remootio/internal/supervisor"
)

const maxBodySize = 64 << 10

// EntryStore is the part of the registry the API needs.
type EntryStore interface {
	Entries() []config.Entry
	GetEntry(serial string) (config.Entry, bool)
	RemoveEntry(serial string) error
}

// FlowRunner runs the config flow.
type FlowRunner interface {
	StepUser(ctx context.Context, input *flow.UserInput) *flow.Result
}

// StatusSource reports runtime status and reacts to registry changes.
type StatusSource interface {
	Status(serial string) (supervisor.EntryStatus, bool)
	Sync() error
	Stop(serial string)
}

// Deps are the collaborators of the API. Supervisor, Metrics and Reload may
// be nil.
type Deps struct {
	Store      EntryStore
	Flow       FlowRunner
	Supervisor StatusSource
	Metrics    http.Handler

	// Reload re-reads the registry file after external edits
	Reload func() error
}

// EntryView is an entry as returned by the API, with keys redacted.
type EntryView struct {
	Title        string                  `json:"title"`
	Host         string                  `json:"host"`
	SerialNumber string                  `json:"serial_number"`
	DeviceClass  string                  `json:"device_class"`
	APISecretKey string                  `json:"api_secret_key"`
	APIAuthKey   string                  `json:"api_auth_key"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
	LastSeen     time.Time               `json:"last_seen,omitempty"`
	Status       *supervisor.EntryStatus `json:"status,omitempty"`
}

type api struct {
	deps Deps
}

// NewRouter builds the HTTP API:
//
//	GET    /healthz
//	GET    /metrics
//	GET    /api/entries
//	GET    /api/entries/:serial
//	DELETE /api/entries/:serial
//	POST   /api/flow/user
//	POST   /api/reload
func NewRouter(deps Deps) http.Handler {
	a := &api{deps: deps}

	router := httprouter.New()
	router.GET("/healthz", a.handleHealth)
	if deps.Metrics != nil {
		router.Handler(http.MethodGet, "/metrics", deps.Metrics)
	}
	router.GET("/api/entries", a.handleListEntries)
	router.GET("/api/entries/:serial", a.handleGetEntry)
	router.DELETE("/api/entries/:serial", a.handleDeleteEntry)
	router.POST("/api/flow/user", a.handleFlowUser)
	if deps.Reload != nil {
		router.POST("/api/reload", a.handleReload)
	}

	return logRequests(router)
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"entries": len(a.deps.Store.Entries()),
	})
}

func (a *api) handleListEntries(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	entries := a.deps.Store.Entries()
	out := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, a.view(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleGetEntry(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	e, ok := a.deps.Store.GetEntry(p.ByName("serial"))
	if !ok {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	writeJSON(w, http.StatusOK, a.view(e))
}

func (a *api) handleDeleteEntry(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	serial := p.ByName("serial")
	if err := a.deps.Store.RemoveEntry(serial); err != nil {
		if errors.Is(err, config.ErrEntryNotFound) {
			writeError(w, http.StatusNotFound, "entry not found")
			return
		}
		logging.Error("Failed to remove entry", zap.String("serial", serial), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to remove entry")
		return
	}

	if a.deps.Supervisor != nil {
		a.deps.Supervisor.Stop(serial)
	}
	logging.Info("Config entry removed", zap.String("serial", serial))
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleReload(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := a.deps.Reload(); err != nil {
		logging.Error("Failed to reload config", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to reload config")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "reloaded",
		"entries": len(a.deps.Store.Entries()),
	})
}

// handleFlowUser runs the user step. An empty body returns the blank form.
func (a *api) handleFlowUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input *flow.UserInput

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if len(body) > 0 {
		input = &flow.UserInput{}
		if err := json.Unmarshal(body, input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	result := a.deps.Flow.StepUser(r.Context(), input)

	if input != nil {
		logging.LogFlowResult(input.Host, string(result.Type), flow.Outcome(result))
	}
	if result.Type == flow.ResultCreateEntry || result.Reason == flow.AbortAlreadyExists {
		if a.deps.Supervisor != nil {
			if err := a.deps.Supervisor.Sync(); err != nil {
				logging.Warn("Failed to sync supervisor", zap.Error(err))
			}
		}
	}

	writeJSON(w, http.StatusOK, redactResult(result))
}

func (a *api) view(e config.Entry) EntryView {
	r := e.Redacted()
	v := EntryView{
		Title:        r.Title,
		Host:         r.Host,
		SerialNumber: r.SerialNumber,
		DeviceClass:  r.DeviceClass,
		APISecretKey: r.APISecretKey,
		APIAuthKey:   r.APIAuthKey,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastSeen:     r.LastSeen,
	}
	if a.deps.Supervisor != nil {
		if st, ok := a.deps.Supervisor.Status(e.SerialNumber); ok {
			v.Status = &st
		}
	}
	return v
}

// redactResult masks the keys echoed back in a created entry.
func redactResult(r *flow.Result) *flow.Result {
	if r.Data == nil {
		return r
	}
	c := *r
	e := config.NewEntry(r.Data, time.Time{}).Redacted()
	data := *r.Data
	data.APISecretKey = e.APISecretKey
	data.APIAuthKey = e.APIAuthKey
	c.Data = &data
	return &c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}
