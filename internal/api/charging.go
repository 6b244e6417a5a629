package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"chargelink/internal/storage"
)

type remoteStartRequest struct {
	ChargePointID string `json:"chargePointId" validate:"required"`
	ConnectorID   int    `json:"connectorId" validate:"gte=0"`
	IdTag         string `json:"idTag" validate:"required"`
}

func (s *Server) handleRemoteStart(w http.ResponseWriter, r *http.Request) {
	var req remoteStartRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	sess, ok := s.lookupSession(w, req.ChargePointID)
	if !ok {
		return
	}

	if err := sess.RemoteStart(r.Context(), req.IdTag, req.ConnectorID); err != nil {
		s.logger.Warn("remote start failed",
			zap.String("charge_point_id", req.ChargePointID), zap.Error(err))
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Accepted"})
}

type remoteStopRequest struct {
	ChargePointID string `json:"chargePointId" validate:"required"`
	TransactionID int64  `json:"transactionId" validate:"required,gt=0"`
}

func (s *Server) handleRemoteStop(w http.ResponseWriter, r *http.Request) {
	var req remoteStopRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	sess, ok := s.lookupSession(w, req.ChargePointID)
	if !ok {
		return
	}

	if err := sess.RemoteStop(r.Context(), req.TransactionID); err != nil {
		s.logger.Warn("remote stop failed",
			zap.String("charge_point_id", req.ChargePointID), zap.Error(err))
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "Accepted"})
}

func (s *Server) handleConnected(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"connectedChargePoints": s.registry.ListConnected(),
	})
}

func (s *Server) handleActiveTransaction(w http.ResponseWriter, r *http.Request) {
	chargePointID := r.URL.Query().Get("chargePointId")
	if chargePointID == "" {
		writeError(w, http.StatusBadRequest, "chargePointId is required")
		return
	}
	connectorID, err := strconv.Atoi(r.URL.Query().Get("connectorId"))
	if err != nil || connectorID <= 0 {
		writeError(w, http.StatusBadRequest, "connectorId must be a positive integer")
		return
	}

	// The in-memory session is authoritative while connected; storage is the
	// fallback for placeholders or recently restarted processes.
	if sess, ok := s.registry.Lookup(chargePointID); ok {
		if transactionID := sess.ActiveTransaction(); transactionID != 0 {
			writeJSON(w, http.StatusOK, map[string]int64{"transactionId": transactionID})
			return
		}
	}

	transactionID, err := s.store.ActiveTransaction(r.Context(), chargePointID, connectorID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no active transaction")
			return
		}
		s.logger.Error("active transaction lookup failed",
			zap.String("charge_point_id", chargePointID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"transactionId": transactionID})
}

func (s *Server) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	chargePointID := r.URL.Query().Get("chargePointId")
	if chargePointID == "" {
		writeError(w, http.StatusBadRequest, "chargePointId is required")
		return
	}
	sess, ok := s.lookupSession(w, chargePointID)
	if !ok {
		return
	}

	var keys []string
	if raw := r.URL.Query().Get("keys"); raw != "" {
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				keys = append(keys, key)
			}
		}
	}

	resp, err := sess.GetConfiguration(r.Context(), keys)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type changeConfigurationRequest struct {
	ChargePointID string `json:"chargePointId" validate:"required"`
	Key           string `json:"key" validate:"required"`
	Value         string `json:"value" validate:"required"`
}

func (s *Server) handleChangeConfiguration(w http.ResponseWriter, r *http.Request) {
	var req changeConfigurationRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	sess, ok := s.lookupSession(w, req.ChargePointID)
	if !ok {
		return
	}

	status, err := sess.ChangeConfiguration(r.Context(), req.Key, req.Value)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

type whitelistRequest struct {
	ChargePointID string   `json:"chargePointId" validate:"required"`
	IdTags        []string `json:"idTags" validate:"required,min=1,dive,required"`
	Version       int      `json:"version" validate:"gte=0"`
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	var req whitelistRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Version == 0 {
		req.Version = 1
	}
	sess, ok := s.lookupSession(w, req.ChargePointID)
	if !ok {
		return
	}

	status, err := sess.SendLocalList(r.Context(), req.IdTags, req.Version)
	if err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}
