package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"chargelink/internal/ocpp"
	"chargelink/internal/ocpp/protocol"
)

// RemoteStart asks the charge point to start a transaction for idTag on the
// given connector. The pending-remote-start flag is raised before the frame
// leaves, so a StatusNotification racing the device's acceptance cannot
// spuriously create a placeholder transaction.
func (s *Session) RemoteStart(ctx context.Context, idTag string, connectorID int) error {
	if connectorID <= 0 {
		connectorID = 1
	}

	s.mu.Lock()
	s.pendingRemoteStart = true
	s.mu.Unlock()

	payload, err := s.Call(ctx, protocol.ActionRemoteStartTransaction, protocol.RemoteStartTransactionRequest{
		IdTag:       idTag,
		ConnectorID: connectorID,
	})
	if err != nil {
		s.clearPendingRemoteStart()
		return err
	}

	resp, err := ocpp.DecodePayload[protocol.RemoteStartTransactionResponse](payload)
	if err != nil {
		s.clearPendingRemoteStart()
		return fmt.Errorf("decode remote start response: %w", err)
	}
	if resp.Status != protocol.StatusAccepted {
		s.clearPendingRemoteStart()
		s.logger.Warn("remote start rejected by charge point", zap.String("status", resp.Status))
		return fmt.Errorf("%w: %s", ErrCommandRejected, resp.Status)
	}
	return nil
}

func (s *Session) clearPendingRemoteStart() {
	s.mu.Lock()
	s.pendingRemoteStart = false
	s.mu.Unlock()
}

// RemoteStop asks the charge point to stop transactionID. The id must match
// the session's active transaction; otherwise the command is rejected before
// any frame is sent.
func (s *Session) RemoteStop(ctx context.Context, transactionID int64) error {
	s.mu.Lock()
	if s.activeTransaction == 0 || transactionID != s.activeTransaction {
		active := s.activeTransaction
		s.mu.Unlock()
		return fmt.Errorf("%w: requested %d, active %d", ErrTransactionNotActive, transactionID, active)
	}
	s.pendingRemoteStop = true
	s.mu.Unlock()

	payload, err := s.Call(ctx, protocol.ActionRemoteStopTransaction, protocol.RemoteStopTransactionRequest{
		TransactionID: transactionID,
	})
	if err != nil {
		return err
	}

	resp, err := ocpp.DecodePayload[protocol.RemoteStopTransactionResponse](payload)
	if err != nil {
		return fmt.Errorf("decode remote stop response: %w", err)
	}
	if resp.Status != protocol.StatusAccepted {
		s.logger.Warn("remote stop rejected by charge point", zap.String("status", resp.Status))
		return fmt.Errorf("%w: %s", ErrCommandRejected, resp.Status)
	}
	return nil
}

// GetConfiguration fetches device configuration for the given keys (all keys
// when empty). Pure request/response pass-through, no session state touched.
func (s *Session) GetConfiguration(ctx context.Context, keys []string) (*protocol.GetConfigurationResponse, error) {
	payload, err := s.Call(ctx, protocol.ActionGetConfiguration, protocol.GetConfigurationRequest{Key: keys})
	if err != nil {
		return nil, err
	}
	resp, err := ocpp.DecodePayload[protocol.GetConfigurationResponse](payload)
	if err != nil {
		return nil, fmt.Errorf("decode get configuration response: %w", err)
	}
	return &resp, nil
}

// ChangeConfiguration sets one device configuration key.
func (s *Session) ChangeConfiguration(ctx context.Context, key, value string) (string, error) {
	payload, err := s.Call(ctx, protocol.ActionChangeConfiguration, protocol.ChangeConfigurationRequest{
		Key:   key,
		Value: value,
	})
	if err != nil {
		return "", err
	}
	resp, err := ocpp.DecodePayload[protocol.ChangeConfigurationResponse](payload)
	if err != nil {
		return "", fmt.Errorf("decode change configuration response: %w", err)
	}
	return resp.Status, nil
}

// SendLocalList pushes a full local authorization list of id tags.
func (s *Session) SendLocalList(ctx context.Context, idTags []string, version int) (string, error) {
	entries := make([]protocol.AuthorizationData, 0, len(idTags))
	for _, tag := range idTags {
		entries = append(entries, protocol.AuthorizationData{
			IdTag:     tag,
			IdTagInfo: &protocol.IdTagInfo{Status: protocol.AuthorizationAccepted},
		})
	}

	payload, err := s.Call(ctx, protocol.ActionSendLocalList, protocol.SendLocalListRequest{
		ListVersion:            version,
		LocalAuthorizationList: entries,
		UpdateType:             "Full",
	})
	if err != nil {
		return "", err
	}
	resp, err := ocpp.DecodePayload[protocol.SendLocalListResponse](payload)
	if err != nil {
		return "", fmt.Errorf("decode send local list response: %w", err)
	}
	return resp.Status, nil
}
