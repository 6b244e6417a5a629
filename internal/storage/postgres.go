package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"chargelink/internal/ocpp/protocol"
)

// PostgresStore implements Store on a pgx-backed *sql.DB.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns the store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureCharger upserts the charger by code and returns its id.
func (s *PostgresStore) EnsureCharger(ctx context.Context, code, vendor, model string) (int64, error) {
	const query = `
		INSERT INTO chargers (code, vendor, model, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NOW(), NOW())
		ON CONFLICT (code) DO UPDATE SET
			vendor = COALESCE(NULLIF(EXCLUDED.vendor, ''), chargers.vendor),
			model = COALESCE(NULLIF(EXCLUDED.model, ''), chargers.model),
			updated_at = NOW()
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query, code, vendor, model).Scan(&id)
	return id, err
}

// EnsureConnector upserts a numbered connector and returns its id.
func (s *PostgresStore) EnsureConnector(ctx context.Context, chargerID int64, number int) (int64, error) {
	const query = `
		INSERT INTO connectors (charger_id, connector_number, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (charger_id, connector_number) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query, chargerID, number).Scan(&id)
	return id, err
}

// CreateTransaction opens a charge transaction row. Placeholder transactions
// (auto-created from status transitions) have a NULL id_tag.
func (s *PostgresStore) CreateTransaction(ctx context.Context, chargerID, connectorID int64, idTag string, meterStart int64, startedAt time.Time) (int64, error) {
	const query = `
		INSERT INTO charge_transactions (charger_id, connector_id, id_tag, meter_start, start_time)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING id
	`
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	var id int64
	err := s.db.QueryRowContext(ctx, query, chargerID, connectorID, idTag, meterStart, startedAt).Scan(&id)
	return id, err
}

// StopTransaction closes a transaction with its final meter reading.
func (s *PostgresStore) StopTransaction(ctx context.Context, transactionID int64, meterStop int64, endedAt time.Time) error {
	const query = `
		UPDATE charge_transactions
		SET meter_stop = $2,
		    end_time = $3,
		    net_energy = GREATEST($2 - meter_start, 0)
		WHERE id = $1
	`
	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx, query, transactionID, meterStop, endedAt)
	if err != nil {
		return err
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateConnectorStatus upserts the connector's last reported status.
func (s *PostgresStore) UpdateConnectorStatus(ctx context.Context, chargerID int64, number int, status, errorCode string) error {
	const query = `
		INSERT INTO connectors (charger_id, connector_number, status, error_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (charger_id, connector_number) DO UPDATE SET
			status = EXCLUDED.status,
			error_code = EXCLUDED.error_code,
			updated_at = NOW()
	`
	_, err := s.db.ExecContext(ctx, query, chargerID, number, status, errorCode)
	return err
}

// LogEvent appends an OCPP activity record with a JSONB payload.
func (s *PostgresStore) LogEvent(ctx context.Context, event Event) error {
	const query = `
		INSERT INTO ocpp_events (charger_id, connector_number, transaction_id, action, payload, created_at)
		VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), $4, $5, NOW())
	`
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query,
		event.ChargerID,
		event.ConnectorNumber,
		event.TransactionID,
		event.Action,
		payload,
	)
	return err
}

// LogHeartbeat appends a heartbeat record.
func (s *PostgresStore) LogHeartbeat(ctx context.Context, chargerID int64, reportedAt *time.Time) error {
	const query = `
		INSERT INTO heartbeat_logs (charger_id, reported_time, received_at)
		VALUES ($1, $2, NOW())
	`
	var reported sql.NullTime
	if reportedAt != nil {
		reported = sql.NullTime{Time: *reportedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query, chargerID, reported)
	return err
}

// LogMeterValues fans each sampled reading out into one row.
func (s *PostgresStore) LogMeterValues(ctx context.Context, chargerID int64, connectorNumber int, transactionID int64, values []protocol.MeterValue) error {
	const query = `
		INSERT INTO meter_values (charger_id, connector_number, transaction_id, measured_at, value, measurand, unit, context)
		VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7, $8)
	`
	for _, mv := range values {
		measuredAt := mv.Timestamp
		if measuredAt.IsZero() {
			measuredAt = time.Now().UTC()
		}
		for _, sample := range mv.SampledValue {
			if _, err := s.db.ExecContext(ctx, query,
				chargerID,
				connectorNumber,
				transactionID,
				measuredAt,
				sample.Value,
				sample.Measurand,
				sample.Unit,
				sample.Context,
			); err != nil {
				return err
			}
		}
	}
	return nil
}

// ActiveTransaction finds the latest open transaction for a charge point code
// and connector number.
func (s *PostgresStore) ActiveTransaction(ctx context.Context, code string, connectorNumber int) (int64, error) {
	const query = `
		SELECT t.id
		FROM charge_transactions t
		JOIN connectors c ON c.id = t.connector_id
		JOIN chargers ch ON ch.id = t.charger_id
		WHERE ch.code = $1
		  AND c.connector_number = $2
		  AND t.end_time IS NULL
		ORDER BY t.start_time DESC
		LIMIT 1
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query, code, connectorNumber).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}
