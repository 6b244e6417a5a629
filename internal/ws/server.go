// Package ws accepts OCPP 1.6-J WebSocket connections and binds each one to
// a charge-point session.
package ws

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargelink/internal/presence"
	"chargelink/internal/registry"
	"chargelink/internal/session"
	"chargelink/internal/storage"
)

// Subprotocol is the mandatory OCPP-J subprotocol negotiation string.
const Subprotocol = "ocpp1.6"

// Server upgrades HTTP connections to OCPP WebSockets.
type Server struct {
	registry     *registry.Registry
	store        storage.Store
	events       session.EventSink
	presence     *presence.Store
	opts         session.Options
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *zap.Logger
	upgrader     websocket.Upgrader
}

// NewServer builds the ws server.
func NewServer(reg *registry.Registry, store storage.Store, events session.EventSink, pres *presence.Store, opts session.Options, writeTimeout, pingInterval time.Duration, logger *zap.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Server{
		registry:     reg,
		store:        store,
		events:       events,
		presence:     pres,
		opts:         opts,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		logger:       logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    []string{Subprotocol},
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWS serves GET /ocpp/{chargePointID}. A client that does not offer the
// ocpp1.6 subprotocol is rejected before any session exists.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	chargePointID := chi.URLParam(r, "chargePointID")
	if chargePointID == "" {
		http.Error(w, "charge point id is required", http.StatusBadRequest)
		return
	}

	if !slices.Contains(websocket.Subprotocols(r), Subprotocol) {
		http.Error(w, "subprotocol "+Subprotocol+" is required", http.StatusBadRequest)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed",
			zap.String("charge_point_id", chargePointID), zap.Error(err))
		return
	}
	if wsConn.Subprotocol() != Subprotocol {
		s.logger.Warn("subprotocol negotiation failed",
			zap.String("charge_point_id", chargePointID))
		_ = wsConn.Close()
		return
	}

	// The request context dies when this handler returns; the connection
	// outlives it.
	ctx, cancel := context.WithCancel(context.Background())

	var conn *Conn
	var sess *session.Session
	onClose := func() {
		cancel()
		sess.Close()
		if s.registry.Remove(chargePointID, sess) {
			s.logger.Info("charge point disconnected", zap.String("charge_point_id", chargePointID))
			if s.presence != nil {
				s.presence.MarkDisconnected(context.Background(), chargePointID)
			}
		}
	}
	conn = NewConn(chargePointID, wsConn, nil, s.writeTimeout, s.pingInterval, s.logger, onClose)
	sess = session.New(chargePointID, conn, s.store, s.events, s.opts, s.logger)
	conn.processor = sess

	if evicted := s.registry.Register(chargePointID, sess); evicted != nil {
		s.logger.Warn("superseding existing connection", zap.String("charge_point_id", chargePointID))
		evicted.Close()
	}
	if s.presence != nil {
		s.presence.MarkConnected(ctx, chargePointID)
	}

	s.logger.Info("charge point connected", zap.String("charge_point_id", chargePointID))
	go conn.Start(ctx)
}
