// Package storage is the persistence collaborator consumed by charge-point
// sessions and the REST command surface.
package storage

import (
	"context"
	"errors"
	"time"

	"chargelink/internal/ocpp/protocol"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("storage: not found")

// Event is a persisted OCPP activity record. ConnectorNumber and
// TransactionID are optional (0 = not applicable).
type Event struct {
	ChargerID       int64
	ConnectorNumber int
	TransactionID   int64
	Action          string
	Payload         interface{}
}

// Store is the persistence interface for the session state machine. Failures
// are logged by the caller and, except for CreateTransaction during
// StartTransaction, never alter the protocol response.
type Store interface {
	// EnsureCharger resolves the charger record for a charge-point code,
	// creating it if missing, and returns its id. Vendor/model are optional
	// and only written when non-empty.
	EnsureCharger(ctx context.Context, code, vendor, model string) (int64, error)

	// EnsureConnector resolves a numbered connector of a charger, creating
	// it if missing, and returns its id.
	EnsureConnector(ctx context.Context, chargerID int64, number int) (int64, error)

	// CreateTransaction opens a charge transaction and returns its id. An
	// empty idTag marks a placeholder transaction.
	CreateTransaction(ctx context.Context, chargerID, connectorID int64, idTag string, meterStart int64, startedAt time.Time) (int64, error)

	// StopTransaction closes a transaction with its final meter reading.
	StopTransaction(ctx context.Context, transactionID int64, meterStop int64, endedAt time.Time) error

	// UpdateConnectorStatus records the last reported status/error code of a
	// connector, creating the connector row if needed.
	UpdateConnectorStatus(ctx context.Context, chargerID int64, number int, status, errorCode string) error

	// LogEvent appends an OCPP activity record.
	LogEvent(ctx context.Context, event Event) error

	// LogHeartbeat appends a heartbeat record. reportedAt is the device
	// reported time, if any.
	LogHeartbeat(ctx context.Context, chargerID int64, reportedAt *time.Time) error

	// LogMeterValues fans sampled readings out into meter value rows.
	LogMeterValues(ctx context.Context, chargerID int64, connectorNumber int, transactionID int64, values []protocol.MeterValue) error

	// ActiveTransaction returns the most recent open transaction id for a
	// charge-point code and connector number, or ErrNotFound.
	ActiveTransaction(ctx context.Context, code string, connectorNumber int) (int64, error)
}
