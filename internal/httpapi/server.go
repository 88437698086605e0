// Package httpapi is the local control surface: a small JSON API plus the
// websocket event stream, meant to be driven by the bundled web UI on the
// same machine.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clawdshartavenger/alta-parking-app/internal/config"
	"github.com/clawdshartavenger/alta-parking-app/internal/logbus"
	"github.com/clawdshartavenger/alta-parking-app/internal/model"
	"github.com/clawdshartavenger/alta-parking-app/internal/monitor"
	"github.com/clawdshartavenger/alta-parking-app/internal/notify"
	"github.com/clawdshartavenger/alta-parking-app/internal/store/sqlite"
	"github.com/clawdshartavenger/alta-parking-app/internal/update"
	"github.com/clawdshartavenger/alta-parking-app/internal/ws"
)

// credentialsService keys the stored credential row; a single-site install
// only ever uses this one.
const credentialsService = "altaparking"

const maskedSecret = "******"

type Options struct {
	Cfg     config.Config
	Bus     *logbus.Bus
	Store   *sqlite.Store
	Monitor *monitor.Monitor
	Updates *update.Checker
	Version string
}

type Server struct {
	cfg     config.Config
	bus     *logbus.Bus
	store   *sqlite.Store
	monitor *monitor.Monitor
	updates *update.Checker
	version string
	ws      *ws.Handler
}

func New(opts Options) *Server {
	return &Server{
		cfg:     opts.Cfg,
		bus:     opts.Bus,
		store:   opts.Store,
		monitor: opts.Monitor,
		updates: opts.Updates,
		version: opts.Version,
		ws:      ws.NewHandler(opts.Bus, opts.Cfg.Server.Cors.AllowOrigins),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/ws", s.ws)

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/monitor/start", s.handleMonitorStart)
	api.HandleFunc("/api/v1/monitor/stop", s.handleMonitorStop)
	api.HandleFunc("/api/v1/monitor/state", s.handleMonitorState)
	api.HandleFunc("/api/v1/credentials", s.handleCredentials)
	api.HandleFunc("/api/v1/settings/email", s.handleEmailSettings)
	api.HandleFunc("/api/v1/settings/email/test", s.handleEmailTest)
	api.HandleFunc("/api/v1/events", s.handleEvents)
	api.HandleFunc("/api/v1/update/check", s.handleUpdateCheck)

	mux.Handle("/api/", corsMiddleware(s.cfg.Server.Cors, api))
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "version": s.version})
}

// startPayload overrides stored credentials field by field; anything omitted
// falls back to what the credentials store holds.
type startPayload struct {
	Date           string `json:"date"`
	Email          string `json:"email,omitempty"`
	Password       string `json:"password,omitempty"`
	SeasonPassCode string `json:"seasonPassCode,omitempty"`
	LicensePlate   string `json:"licensePlate,omitempty"`
	PollIntervalMs int    `json:"pollIntervalMs,omitempty"`
	BrowserPath    string `json:"browserPath,omitempty"`
}

func (s *Server) handleMonitorStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body startPayload
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	mc := model.MonitorConfig{
		Email:          strings.TrimSpace(body.Email),
		Password:       body.Password,
		SeasonPassCode: strings.TrimSpace(body.SeasonPassCode),
		LicensePlate:   strings.TrimSpace(body.LicensePlate),
		Date:           strings.TrimSpace(body.Date),
		PollIntervalMs: body.PollIntervalMs,
		BrowserPath:    strings.TrimSpace(body.BrowserPath),
	}
	if s.store != nil {
		stored, ok, err := s.store.GetCredentials(r.Context(), credentialsService)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		if ok {
			if mc.Email == "" {
				mc.Email = stored.Email
			}
			if mc.Password == "" {
				mc.Password = stored.Password
			}
			if mc.SeasonPassCode == "" {
				mc.SeasonPassCode = stored.SeasonPassCode
			}
			if mc.LicensePlate == "" {
				mc.LicensePlate = stored.LicensePlate
			}
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	runID, err := s.monitor.Start(ctx, mc)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, monitor.ErrAlreadyBooked) {
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"runId": runID}})
}

func (s *Server) handleMonitorStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Generous timeout: Stop waits out an attempt already in flight.
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Poll.AttemptTimeout()+10*time.Second)
	defer cancel()
	if err := s.monitor.Stop(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMonitorState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.monitor.State()})
}

type credentialsPayload struct {
	Email          *string `json:"email,omitempty"`
	Password       *string `json:"password,omitempty"`
	SeasonPassCode *string `json:"seasonPassCode,omitempty"`
	LicensePlate   *string `json:"licensePlate,omitempty"`
}

func (s *Server) handleCredentials(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		stored, ok, err := s.store.GetCredentials(r.Context(), credentialsService)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"data": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": maskCredentials(stored)})
	case http.MethodPost:
		var body credentialsPayload
		if err := readJSON(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}

		current, _, err := s.store.GetCredentials(r.Context(), credentialsService)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}

		next := current
		next.Service = credentialsService
		if body.Email != nil {
			next.Email = strings.TrimSpace(*body.Email)
		}
		if body.Password != nil && *body.Password != maskedSecret {
			next.Password = *body.Password
		}
		if body.SeasonPassCode != nil {
			if v := strings.TrimSpace(*body.SeasonPassCode); v != maskedSecret {
				next.SeasonPassCode = v
			}
		}
		if body.LicensePlate != nil {
			next.LicensePlate = strings.TrimSpace(*body.LicensePlate)
		}
		if next.Email == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "email is required"})
			return
		}

		saved, err := s.store.UpsertCredentials(r.Context(), next)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": maskCredentials(saved)})
	case http.MethodDelete:
		if err := s.store.DeleteCredentials(r.Context(), credentialsService); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// maskCredentials hides secret fields on the way out; the UI round-trips the
// mask and the write path treats it as "unchanged".
func maskCredentials(c model.Credentials) model.Credentials {
	if c.Password != "" {
		c.Password = maskedSecret
	}
	if c.SeasonPassCode != "" {
		c.SeasonPassCode = maskedSecret
	}
	return c
}

type emailSettingsPayload struct {
	Enabled  *bool   `json:"enabled,omitempty"`
	Email    *string `json:"email,omitempty"`
	AuthCode *string `json:"authCode,omitempty"`
}

func (s *Server) handleEmailSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		val, ok, err := s.store.GetEmailSettings(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{
				"data": model.EmailSettings{},
			})
			return
		}
		if val.AuthCode != "" {
			val.AuthCode = maskedSecret
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": val})
	case http.MethodPost:
		var body emailSettingsPayload
		if err := readJSON(r, &body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}

		current, _, err := s.store.GetEmailSettings(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}

		next := current
		if body.Enabled != nil {
			next.Enabled = *body.Enabled
		}
		if body.Email != nil {
			next.Email = strings.TrimSpace(*body.Email)
		}
		if body.AuthCode != nil {
			if ac := strings.TrimSpace(*body.AuthCode); ac != maskedSecret {
				next.AuthCode = ac
			}
		}

		saved, err := s.store.UpsertEmailSettings(r.Context(), next)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
			return
		}
		if saved.AuthCode != "" {
			saved.AuthCode = maskedSecret
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": saved})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type emailTestPayload struct {
	Email    string `json:"email,omitempty"`
	AuthCode string `json:"authCode,omitempty"`
}

func (s *Server) handleEmailTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body emailTestPayload
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	val, _, err := s.store.GetEmailSettings(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if strings.TrimSpace(body.Email) != "" {
		val.Email = strings.TrimSpace(body.Email)
	}
	if strings.TrimSpace(body.AuthCode) != "" {
		val.AuthCode = strings.TrimSpace(body.AuthCode)
	}
	val.Enabled = true

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	if err := notify.SendBookedEmail(ctx, val, notify.BookedEvent{
		At:           time.Now().UnixMilli(),
		Date:         time.Now().Format(model.DateLayout),
		Email:        val.Email,
		LicensePlate: "TEST-123",
		RunID:        "email-test",
	}); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleEvents serves the retained event history for clients that cannot
// hold a websocket open.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.bus.Snapshot()})
}

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.updates == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "update checker unavailable"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()
	res, err := s.updates.Check(ctx, s.version)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": res})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
