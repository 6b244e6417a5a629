package session

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"chargelink/internal/normalizer"
	"chargelink/internal/ocpp"
	"chargelink/internal/ocpp/protocol"
)

func (s *Session) handleBootNotification(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	req, err := ocpp.DecodePayload[protocol.BootNotificationRequest](payload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("boot notification",
		zap.String("vendor", req.ChargePointVendor),
		zap.String("model", req.ChargePointModel))

	// A registration failure must not leave the device stuck unregistered,
	// so the boot is accepted regardless.
	chargerID, err := s.store.EnsureCharger(ctx, s.id, req.ChargePointVendor, req.ChargePointModel)
	if err != nil {
		s.logger.Error("failed to resolve charger record on boot", zap.Error(err))
	}

	norm := normalizer.Select(req.ChargePointVendor, req.ChargePointModel, s.fallback)

	s.mu.Lock()
	if chargerID != 0 {
		s.chargerID = chargerID
	}
	s.norm = norm
	s.mu.Unlock()

	s.logger.Info("normalizer selected", zap.String("normalizer", norm.Name()))

	s.logEvent(ctx, 0, 0, protocol.ActionBootNotification, map[string]interface{}{
		"vendor": req.ChargePointVendor,
		"model":  req.ChargePointModel,
	})
	s.publish("boot", map[string]interface{}{
		"vendor": req.ChargePointVendor,
		"model":  req.ChargePointModel,
	})

	return protocol.BootNotificationResponse{
		CurrentTime: s.now(),
		Interval:    int(s.heartbeatInterval.Seconds()),
		Status:      protocol.RegistrationAccepted,
	}, nil
}

func (s *Session) handleAuthorize(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	req, err := ocpp.DecodePayload[protocol.AuthorizeRequest](payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	norm := s.norm
	if norm == nil {
		// Authorize arrived before BootNotification selected a strategy.
		s.norm = s.fallback
		norm = s.fallback
		s.logger.Warn("normalizer not selected yet, using generic fallback")
	}
	s.mu.Unlock()

	status := norm.Authorize(req.IdTag)
	s.logger.Info("authorize request",
		zap.String("id_tag", req.IdTag),
		zap.String("result", string(status)))

	// The event log write must not fail the Authorize response.
	s.logEvent(ctx, 0, 0, protocol.ActionAuthorize, map[string]interface{}{
		"idTag":  req.IdTag,
		"result": string(status),
	})
	s.publish("authorize", map[string]interface{}{
		"idTag":  req.IdTag,
		"result": string(status),
	})

	return protocol.AuthorizeResponse{
		IdTagInfo: protocol.IdTagInfo{Status: string(status)},
	}, nil
}

func (s *Session) handleHeartbeat(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	s.mu.Lock()
	s.lastHeartbeat = s.now()
	s.mu.Unlock()

	// Heartbeat must succeed even when persistence is down.
	if chargerID := s.chargerRef(ctx); chargerID != 0 {
		if err := s.store.LogHeartbeat(ctx, chargerID, nil); err != nil {
			s.logger.Warn("failed to log heartbeat", zap.Error(err))
		}
	}

	return protocol.HeartbeatResponse{CurrentTime: s.now()}, nil
}

func (s *Session) handleStatusNotification(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	req, err := ocpp.DecodePayload[protocol.StatusNotificationRequest](payload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("status notification",
		zap.Int("connector", req.ConnectorID),
		zap.String("status", req.Status),
		zap.String("error_code", req.ErrorCode))

	// Connector 0 is the charge-point-wide pseudo-connector; it carries no
	// transaction bookkeeping.
	if req.ConnectorID == 0 {
		return protocol.StatusNotificationResponse{}, nil
	}

	s.logEvent(ctx, req.ConnectorID, 0, protocol.ActionStatusNotification, map[string]interface{}{
		"errorCode": req.ErrorCode,
		"status":    req.Status,
		"info":      req.Info,
	})

	if chargerID := s.chargerRef(ctx); chargerID != 0 {
		if err := s.store.UpdateConnectorStatus(ctx, chargerID, req.ConnectorID, req.Status, req.ErrorCode); err != nil {
			s.logger.Warn("failed to update connector status", zap.Int("connector", req.ConnectorID), zap.Error(err))
		}
	}

	if req.Status == protocol.ConnectorCharging {
		s.maybeCreatePlaceholder(ctx, req.ConnectorID)
	}

	s.publish("status", map[string]interface{}{
		"connectorId": req.ConnectorID,
		"status":      req.Status,
		"errorCode":   req.ErrorCode,
	})

	return protocol.StatusNotificationResponse{}, nil
}

// maybeCreatePlaceholder auto-creates a transaction for a connector observed
// charging without a StartTransaction. Chargers started locally (e.g. via
// RFID on the device) sometimes never correlate a StartTransaction with this
// session; the placeholder guarantees a transaction reference exists for any
// later StopTransaction or query. A pending remote start suppresses the rule,
// since its StartTransaction is about to arrive.
func (s *Session) maybeCreatePlaceholder(ctx context.Context, connector int) {
	s.mu.Lock()
	_, hasTx := s.connectorTx[connector]
	pendingStart := s.pendingRemoteStart
	s.mu.Unlock()
	if hasTx || pendingStart {
		return
	}

	chargerID := s.chargerRef(ctx)
	if chargerID == 0 {
		s.logger.Warn("cannot create placeholder, charger record unresolved", zap.Int("connector", connector))
		return
	}
	connectorID, err := s.store.EnsureConnector(ctx, chargerID, connector)
	if err != nil {
		s.logger.Error("failed to resolve connector for placeholder", zap.Int("connector", connector), zap.Error(err))
		return
	}

	transactionID, err := s.store.CreateTransaction(ctx, chargerID, connectorID, "", 0, s.now())
	if err != nil {
		s.logger.Error("failed to create placeholder transaction", zap.Int("connector", connector), zap.Error(err))
		return
	}

	s.mu.Lock()
	if _, occupied := s.connectorTx[connector]; occupied {
		// A real StartTransaction raced us; the fresh placeholder is
		// superfluous and gets closed right away.
		s.mu.Unlock()
		if err := s.store.StopTransaction(ctx, transactionID, 0, s.now()); err != nil {
			s.logger.Warn("failed to close raced placeholder", zap.Int64("transaction_id", transactionID), zap.Error(err))
		}
		return
	}
	s.connectorTx[connector] = connectorTransaction{transactionID: transactionID, startedAt: s.now()}
	s.mu.Unlock()

	s.logger.Info("placeholder transaction created",
		zap.Int("connector", connector),
		zap.Int64("transaction_id", transactionID))
}

func (s *Session) handleStartTransaction(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	req, err := ocpp.DecodePayload[protocol.StartTransactionRequest](payload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("start transaction",
		zap.Int("connector", req.ConnectorID),
		zap.String("id_tag", req.IdTag))

	// An old (placeholder) transaction is never left open once a new one
	// starts on the same connector.
	s.mu.Lock()
	old, hadOld := s.connectorTx[req.ConnectorID]
	s.mu.Unlock()
	if hadOld {
		if err := s.store.StopTransaction(ctx, old.transactionID, req.MeterStart, req.Timestamp); err != nil {
			s.logger.Error("failed to close superseded transaction",
				zap.Int64("transaction_id", old.transactionID), zap.Error(err))
		} else {
			s.logger.Debug("closed superseded transaction",
				zap.Int64("transaction_id", old.transactionID), zap.Int("connector", req.ConnectorID))
		}
		s.mu.Lock()
		delete(s.connectorTx, req.ConnectorID)
		s.mu.Unlock()
	}

	// Creating the transaction record is mandatory: without a valid id the
	// exchange must fail rather than answer with a fabricated transaction.
	chargerID := s.chargerRef(ctx)
	if chargerID == 0 {
		return nil, fmt.Errorf("start transaction: charger record unresolved for %s", s.id)
	}
	connectorID, err := s.store.EnsureConnector(ctx, chargerID, req.ConnectorID)
	if err != nil {
		return nil, fmt.Errorf("start transaction: resolve connector: %w", err)
	}
	transactionID, err := s.store.CreateTransaction(ctx, chargerID, connectorID, req.IdTag, req.MeterStart, req.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("start transaction: create record: %w", err)
	}

	s.mu.Lock()
	if req.ConnectorID > 0 {
		s.connectorTx[req.ConnectorID] = connectorTransaction{transactionID: transactionID, startedAt: s.now()}
	}
	s.activeTransaction = transactionID
	s.pendingRemoteStart = false
	s.mu.Unlock()

	s.publish("transaction_started", map[string]interface{}{
		"connectorId":   req.ConnectorID,
		"transactionId": transactionID,
		"idTag":         req.IdTag,
		"meterStart":    req.MeterStart,
	})

	// Id-tag validation already happened in Authorize; it is not repeated.
	return protocol.StartTransactionResponse{
		TransactionID: transactionID,
		IdTagInfo:     protocol.IdTagInfo{Status: protocol.AuthorizationAccepted},
	}, nil
}

func (s *Session) handleStopTransaction(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	req, err := ocpp.DecodePayload[protocol.StopTransactionRequest](payload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("stop transaction", zap.Int64("transaction_id", req.TransactionID))

	s.mu.Lock()
	matched := s.activeTransaction != 0 && req.TransactionID == s.activeTransaction
	connector, hasConnector := s.connectorByTransaction(req.TransactionID)
	if matched {
		s.activeTransaction = 0
		if hasConnector {
			delete(s.connectorTx, connector)
		}
		s.pendingRemoteStop = false
	}
	active := s.activeTransaction
	s.mu.Unlock()

	if !matched {
		s.logger.Warn("stop transaction does not match active transaction",
			zap.Int64("transaction_id", req.TransactionID),
			zap.Int64("active_transaction", active))
	}

	s.logEvent(ctx, connector, req.TransactionID, protocol.ActionStopTransaction, map[string]interface{}{
		"meterStop": req.MeterStop,
		"timestamp": req.Timestamp,
		"reason":    req.Reason,
	})

	// The transaction is closed in storage even on a mismatch; only the
	// in-memory bookkeeping is restricted to the matching case.
	if err := s.store.StopTransaction(ctx, req.TransactionID, req.MeterStop, req.Timestamp); err != nil {
		s.logger.Error("failed to close transaction",
			zap.Int64("transaction_id", req.TransactionID), zap.Error(err))
	}

	s.publish("transaction_stopped", map[string]interface{}{
		"transactionId": req.TransactionID,
		"meterStop":     req.MeterStop,
	})

	return protocol.StopTransactionResponse{}, nil
}

func (s *Session) handleMeterValues(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	req, err := ocpp.DecodePayload[protocol.MeterValuesRequest](payload)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("meter values",
		zap.Int("connector", req.ConnectorID),
		zap.Int64("transaction_id", req.TransactionID),
		zap.Int("batches", len(req.MeterValue)))

	if chargerID := s.chargerRef(ctx); chargerID != 0 {
		if err := s.store.LogMeterValues(ctx, chargerID, req.ConnectorID, req.TransactionID, req.MeterValue); err != nil {
			s.logger.Warn("failed to log meter values", zap.Error(err))
		}
	}

	return protocol.MeterValuesResponse{}, nil
}

func (s *Session) handleGetLocalListVersion(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	s.logEvent(ctx, 0, 0, protocol.ActionGetLocalListVersion, map[string]interface{}{
		"request": protocol.ActionGetLocalListVersion,
	})
	return protocol.GetLocalListVersionResponse{ListVersion: 1}, nil
}

func (s *Session) handleSendLocalList(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	req, err := ocpp.DecodePayload[protocol.SendLocalListRequest](payload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("local authorization list received",
		zap.Int("list_version", req.ListVersion),
		zap.String("update_type", req.UpdateType))
	for _, entry := range req.LocalAuthorizationList {
		s.logger.Info("local list entry", zap.String("id_tag", entry.IdTag))
	}

	s.logEvent(ctx, 0, 0, protocol.ActionSendLocalList, map[string]interface{}{
		"listVersion": req.ListVersion,
		"updateType":  req.UpdateType,
		"localList":   req.LocalAuthorizationList,
	})

	return protocol.SendLocalListResponse{Status: protocol.StatusAccepted}, nil
}

func (s *Session) handleFirmwareStatusNotification(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	req, err := ocpp.DecodePayload[protocol.FirmwareStatusNotificationRequest](payload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("firmware status", zap.String("status", req.Status))

	s.logEvent(ctx, 0, 0, protocol.ActionFirmwareStatusNotification, map[string]interface{}{
		"firmwareStatus": req.Status,
	})

	return protocol.FirmwareStatusNotificationResponse{}, nil
}

// handleSecurityEventNotification accepts vendor security events without
// schema validation; the raw payload is logged as-is.
func (s *Session) handleSecurityEventNotification(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	s.logger.Info("security event notification", zap.ByteString("payload", payload))
	s.logEvent(ctx, 0, 0, protocol.ActionSecurityEventNotification, json.RawMessage(payload))
	return struct{}{}, nil
}

// handleRemoteStopTransaction covers chargers that mirror the remote stop
// request back at the central system. It is accepted only for the active
// transaction.
func (s *Session) handleRemoteStopTransaction(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	req, err := ocpp.DecodePayload[protocol.RemoteStopTransactionRequest](payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	matched := s.activeTransaction != 0 && req.TransactionID == s.activeTransaction
	if matched {
		s.pendingRemoteStop = true
	}
	active := s.activeTransaction
	connector, _ := s.connectorByTransaction(req.TransactionID)
	s.mu.Unlock()

	if !matched {
		s.logger.Warn("remote stop rejected, transaction is not active",
			zap.Int64("transaction_id", req.TransactionID),
			zap.Int64("active_transaction", active))
		return protocol.RemoteStopTransactionResponse{Status: protocol.StatusRejected}, nil
	}

	s.logEvent(ctx, connector, req.TransactionID, protocol.ActionRemoteStopTransaction, map[string]interface{}{
		"remote": true,
	})

	return protocol.RemoteStopTransactionResponse{Status: protocol.StatusAccepted}, nil
}
