// Package notify publishes charge-point events to NATS for downstream
// consumers (billing, dashboards). Publishing is fire-and-forget: a broker
// failure never affects protocol handling.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const subjectPrefix = "chargelink.events"

// Publisher fans session events out to NATS subjects of the form
// chargelink.events.<chargePointID>.<event>.
type Publisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// Connect dials the NATS server.
func Connect(url string, logger *zap.Logger) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: connect nats: %w", err)
	}
	return &Publisher{conn: conn, logger: logger}, nil
}

// Publish emits one event. Failures are logged and swallowed.
func (p *Publisher) Publish(chargePointID, event string, payload interface{}) {
	if p == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("failed to encode event payload",
			zap.String("event", event), zap.Error(err))
		return
	}

	subject := fmt.Sprintf("%s.%s.%s", subjectPrefix, chargePointID, event)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("failed to publish event",
			zap.String("subject", subject), zap.Error(err))
	}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
