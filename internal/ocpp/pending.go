package ocpp

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCallTimeout bounds how long an outbound call waits for its
// CallResult/CallError before failing with ErrCallTimeout.
const DefaultCallTimeout = 30 * time.Second

// ErrCallTimeout is returned when no response arrives within the window.
var ErrCallTimeout = errors.New("ocpp: call timed out")

// ErrDuplicatePendingID rejects registering an id that is already in flight.
var ErrDuplicatePendingID = errors.New("ocpp: duplicate pending call id")

// CallFailure is the error carried by a CallError response to an outbound call.
type CallFailure struct {
	Code        string
	Description string
}

func (e *CallFailure) Error() string {
	return fmt.Sprintf("ocpp: call error %s: %s", e.Code, e.Description)
}

// Outcome is the terminal result of a pending call: a payload or an error,
// never both.
type Outcome struct {
	Payload json.RawMessage
	Err     error
}

// PendingCalls correlates outbound calls with their responses for a single
// connection. Each registered id resolves exactly once: a matching
// CallResult/CallError, a timeout (Abandon), or connection teardown (FailAll).
type PendingCalls struct {
	mu      sync.Mutex
	pending map[string]chan Outcome
	logger  *zap.Logger
}

// NewPendingCalls returns an empty correlation table.
func NewPendingCalls(logger *zap.Logger) *PendingCalls {
	return &PendingCalls{
		pending: make(map[string]chan Outcome),
		logger:  logger,
	}
}

// Register reserves an id and returns the channel its outcome will arrive on.
// The channel is buffered so resolution never blocks the receive loop.
func (p *PendingCalls) Register(id string) (<-chan Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.pending[id]; exists {
		return nil, ErrDuplicatePendingID
	}
	ch := make(chan Outcome, 1)
	p.pending[id] = ch
	return ch, nil
}

// Resolve completes the pending call id with a CallResult payload. An unknown
// id (duplicate, spurious, or already timed out) is logged and ignored.
func (p *PendingCalls) Resolve(id string, payload json.RawMessage) {
	ch := p.take(id)
	if ch == nil {
		p.logger.Warn("dropping response for unknown call id", zap.String("message_id", id))
		return
	}
	ch <- Outcome{Payload: payload}
}

// Reject completes the pending call id with a CallError.
func (p *PendingCalls) Reject(id, code, description string) {
	ch := p.take(id)
	if ch == nil {
		p.logger.Warn("dropping call error for unknown call id",
			zap.String("message_id", id), zap.String("error_code", code))
		return
	}
	ch <- Outcome{Err: &CallFailure{Code: code, Description: description}}
}

// Abandon discards a pending call after a timeout. It reports whether the
// entry was still pending; false means a response won the race and its
// outcome is already on the channel.
func (p *PendingCalls) Abandon(id string) bool {
	return p.take(id) != nil
}

// FailAll resolves every outstanding call with err. Used on disconnect.
func (p *PendingCalls) FailAll(err error) {
	p.mu.Lock()
	channels := p.pending
	p.pending = make(map[string]chan Outcome)
	p.mu.Unlock()

	for id, ch := range channels {
		p.logger.Debug("failing pending call", zap.String("message_id", id), zap.Error(err))
		ch <- Outcome{Err: err}
	}
}

// Len reports the number of outstanding calls.
func (p *PendingCalls) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *PendingCalls) take(id string) chan Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.pending[id]
	if !ok {
		return nil
	}
	delete(p.pending, id)
	return ch
}
