// Package api is the REST command surface: it locates live sessions through
// the registry and issues outbound OCPP calls on behalf of operators.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"chargelink/internal/ocpp"
	"chargelink/internal/registry"
	"chargelink/internal/session"
	"chargelink/internal/storage"
)

// Server exposes the charging command endpoints.
type Server struct {
	registry *registry.Registry
	store    storage.Store
	validate *validator.Validate
	logger   *zap.Logger
}

// NewServer builds the API server.
func NewServer(reg *registry.Registry, store storage.Store, logger *zap.Logger) *Server {
	return &Server{
		registry: reg,
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// Routes returns the HTTP handler tree.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/charging", func(r chi.Router) {
		r.Post("/remote_start", s.handleRemoteStart)
		r.Post("/remote_stop", s.handleRemoteStop)
		r.Get("/connected", s.handleConnected)
		r.Get("/active_transaction", s.handleActiveTransaction)
		r.Get("/configuration", s.handleGetConfiguration)
		r.Post("/configuration", s.handleChangeConfiguration)
		r.Post("/whitelist", s.handleWhitelist)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	if err := s.validate.Struct(target); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

func (s *Server) lookupSession(w http.ResponseWriter, chargePointID string) (*session.Session, bool) {
	sess, ok := s.registry.Lookup(chargePointID)
	if !ok {
		writeError(w, http.StatusNotFound, "charge point is not connected")
		return nil, false
	}
	return sess, true
}

// writeCommandError maps session/command failures onto HTTP statuses:
// business-rule rejections are 400s, timeouts 504, transport failures 502.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrTransactionNotActive),
		errors.Is(err, session.ErrCommandRejected):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ocpp.ErrCallTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, session.ErrSessionClosed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
