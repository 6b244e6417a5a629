// Package session implements the per-connection charge-point state machine:
// inbound call dispatch, connector transaction bookkeeping, and outbound
// correlated calls.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chargelink/internal/normalizer"
	"chargelink/internal/ocpp"
	"chargelink/internal/ocpp/protocol"
	"chargelink/internal/storage"
)

var (
	// ErrSessionClosed fails pending calls when the connection goes away.
	ErrSessionClosed = errors.New("session: connection closed")

	// ErrTransactionNotActive rejects a remote stop whose transaction id does
	// not match the session's active transaction. No frame is sent.
	ErrTransactionNotActive = errors.New("session: transaction is not active")

	// ErrCommandRejected reports that the charge point rejected a command.
	ErrCommandRejected = errors.New("session: command rejected by charge point")
)

// Sender transmits an encoded frame to the charge point.
type Sender interface {
	Send(data []byte) error
}

// EventSink receives fire-and-forget charge-point events.
type EventSink interface {
	Publish(chargePointID, event string, payload interface{})
}

// Options tunes a session.
type Options struct {
	// HeartbeatInterval is reported to the device in BootNotification.
	HeartbeatInterval time.Duration
	// CallTimeout bounds outbound correlated calls.
	CallTimeout time.Duration
	// Fallback is the generic normalizer used before boot and for unknown
	// vendors.
	Fallback *normalizer.Generic
}

type handlerFunc func(ctx context.Context, payload json.RawMessage) (interface{}, error)

type connectorTransaction struct {
	transactionID int64
	startedAt     time.Time
}

// Session is the stateful counterpart of one connected charge point. Inbound
// frames are processed in arrival order by the connection's read loop;
// outbound commands arrive concurrently from the REST layer, so all state
// mutations go through the session mutex.
type Session struct {
	id     string
	sender Sender
	store  storage.Store
	events EventSink
	logger *zap.Logger
	calls  *ocpp.PendingCalls

	heartbeatInterval time.Duration
	callTimeout       time.Duration
	fallback          *normalizer.Generic

	handlers map[string]handlerFunc

	mu                 sync.Mutex
	chargerID          int64
	norm               normalizer.Normalizer
	activeTransaction  int64
	connectorTx        map[int]connectorTransaction
	pendingRemoteStart bool
	pendingRemoteStop  bool
	lastHeartbeat      time.Time

	closeOnce sync.Once
}

// New builds a session for a freshly accepted connection.
func New(id string, sender Sender, store storage.Store, events EventSink, opts Options, logger *zap.Logger) *Session {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = ocpp.DefaultCallTimeout
	}
	if opts.Fallback == nil {
		opts.Fallback = normalizer.NewGeneric(nil)
	}
	logger = logger.With(zap.String("charge_point_id", id))

	s := &Session{
		id:                id,
		sender:            sender,
		store:             store,
		events:            events,
		logger:            logger,
		calls:             ocpp.NewPendingCalls(logger),
		heartbeatInterval: opts.HeartbeatInterval,
		callTimeout:       opts.CallTimeout,
		fallback:          opts.Fallback,
		connectorTx:       make(map[int]connectorTransaction),
		lastHeartbeat:     time.Now().UTC(),
	}

	s.handlers = map[string]handlerFunc{
		protocol.ActionBootNotification:           s.handleBootNotification,
		protocol.ActionAuthorize:                  s.handleAuthorize,
		protocol.ActionHeartbeat:                  s.handleHeartbeat,
		protocol.ActionStatusNotification:         s.handleStatusNotification,
		protocol.ActionStartTransaction:           s.handleStartTransaction,
		protocol.ActionStopTransaction:            s.handleStopTransaction,
		protocol.ActionMeterValues:                s.handleMeterValues,
		protocol.ActionGetLocalListVersion:        s.handleGetLocalListVersion,
		protocol.ActionSendLocalList:              s.handleSendLocalList,
		protocol.ActionFirmwareStatusNotification: s.handleFirmwareStatusNotification,
		protocol.ActionSecurityEventNotification:  s.handleSecurityEventNotification,
		protocol.ActionRemoteStopTransaction:      s.handleRemoteStopTransaction,
	}

	return s
}

// ID returns the charge-point identifier.
func (s *Session) ID() string {
	return s.id
}

// HandleFrame processes one inbound frame and returns the reply to send, or
// nil when no reply is due (responses to our own calls, malformed input).
func (s *Session) HandleFrame(ctx context.Context, raw []byte) []byte {
	frame, err := ocpp.Decode(raw)
	if err != nil {
		s.logger.Warn("dropping malformed frame", zap.Error(err))
		return nil
	}

	switch frame.Type {
	case ocpp.MessageTypeCall:
		return s.handleCall(ctx, frame)
	case ocpp.MessageTypeCallResult:
		s.calls.Resolve(frame.UniqueID, frame.Payload)
	case ocpp.MessageTypeCallError:
		s.calls.Reject(frame.UniqueID, frame.ErrorCode, frame.ErrorDescription)
	}
	return nil
}

func (s *Session) handleCall(ctx context.Context, frame *ocpp.Frame) []byte {
	handler, ok := s.handlers[frame.Action]
	if !ok {
		s.logger.Warn("unknown action", zap.String("action", frame.Action))
		return s.encodeCallError(frame.UniqueID, protocol.ErrorCodeNotImplemented, "action not supported")
	}

	response, err := handler(ctx, frame.Payload)
	if err != nil {
		s.logger.Error("handler failed",
			zap.String("action", frame.Action),
			zap.String("message_id", frame.UniqueID),
			zap.Error(err))
		return s.encodeCallError(frame.UniqueID, protocol.ErrorCodeInternalError, "internal error")
	}

	reply, err := ocpp.EncodeCallResult(frame.UniqueID, response)
	if err != nil {
		s.logger.Error("encode call result failed", zap.String("action", frame.Action), zap.Error(err))
		return s.encodeCallError(frame.UniqueID, protocol.ErrorCodeInternalError, "internal error")
	}
	return reply
}

func (s *Session) encodeCallError(uniqueID, code, description string) []byte {
	reply, err := ocpp.EncodeCallError(uniqueID, code, description, nil)
	if err != nil {
		s.logger.Error("encode call error failed", zap.Error(err))
		return nil
	}
	return reply
}

// Call sends an outbound call and waits for its correlated response, the
// configured timeout, or ctx cancellation. Exactly one of those wins: a
// response racing the timeout is honored only if it claimed the pending entry
// first, otherwise it is logged and dropped by the correlation table.
func (s *Session) Call(ctx context.Context, action string, payload interface{}) (json.RawMessage, error) {
	id := uuid.NewString()

	ch, err := s.calls.Register(id)
	if err != nil {
		return nil, err
	}

	frame, err := ocpp.EncodeCall(id, action, payload)
	if err != nil {
		s.calls.Abandon(id)
		return nil, err
	}
	if err := s.sender.Send(frame); err != nil {
		s.calls.Abandon(id)
		return nil, err
	}

	timer := time.NewTimer(s.callTimeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		return out.Payload, out.Err
	case <-timer.C:
		if s.calls.Abandon(id) {
			s.logger.Warn("outbound call timed out",
				zap.String("action", action), zap.String("message_id", id))
			return nil, ocpp.ErrCallTimeout
		}
		out := <-ch
		return out.Payload, out.Err
	case <-ctx.Done():
		if s.calls.Abandon(id) {
			return nil, ctx.Err()
		}
		out := <-ch
		return out.Payload, out.Err
	}
}

// Close fails all outstanding calls. Called when the transport disconnects or
// the session is superseded by a reconnect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.calls.FailAll(ErrSessionClosed)
	})
}

// ActiveTransaction returns the transaction currently considered live for
// this charge point, or 0.
func (s *Session) ActiveTransaction() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeTransaction
}

// ConnectorTransaction returns the transaction associated with a connector.
func (s *Session) ConnectorTransaction(connector int) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.connectorTx[connector]
	return entry.transactionID, ok
}

// PendingRemoteStart reports the transient remote-start intent flag.
func (s *Session) PendingRemoteStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingRemoteStart
}

// PendingRemoteStop reports the transient remote-stop intent flag.
func (s *Session) PendingRemoteStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingRemoteStop
}

// LastHeartbeat returns when the device last sent a heartbeat.
func (s *Session) LastHeartbeat() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

// NormalizerName reports the selected vendor strategy, or empty before boot.
func (s *Session) NormalizerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.norm == nil {
		return ""
	}
	return s.norm.Name()
}

// connectorByTransaction scans the connector map for a transaction id. A
// session holds at most a handful of connectors, so a linear scan is fine.
// Callers must hold s.mu.
func (s *Session) connectorByTransaction(transactionID int64) (int, bool) {
	for connector, entry := range s.connectorTx {
		if entry.transactionID == transactionID {
			return connector, true
		}
	}
	return 0, false
}

// chargerRef returns the cached persisted charger id, resolving it lazily if
// boot has not populated it yet. Returns 0 when the record cannot be resolved.
func (s *Session) chargerRef(ctx context.Context) int64 {
	s.mu.Lock()
	id := s.chargerID
	s.mu.Unlock()
	if id != 0 {
		return id
	}

	resolved, err := s.store.EnsureCharger(ctx, s.id, "", "")
	if err != nil {
		s.logger.Error("failed to resolve charger record", zap.Error(err))
		return 0
	}
	s.mu.Lock()
	s.chargerID = resolved
	s.mu.Unlock()
	return resolved
}

func (s *Session) logEvent(ctx context.Context, connector int, transactionID int64, action string, payload interface{}) {
	chargerID := s.chargerRef(ctx)
	if chargerID == 0 {
		s.logger.Warn("skipping event log, charger record unresolved", zap.String("action", action))
		return
	}
	err := s.store.LogEvent(ctx, storage.Event{
		ChargerID:       chargerID,
		ConnectorNumber: connector,
		TransactionID:   transactionID,
		Action:          action,
		Payload:         payload,
	})
	if err != nil {
		s.logger.Warn("failed to log event", zap.String("action", action), zap.Error(err))
	}
}

func (s *Session) publish(event string, payload interface{}) {
	if s.events == nil {
		return
	}
	s.events.Publish(s.id, event, payload)
}

func (s *Session) now() time.Time {
	return time.Now().UTC()
}
