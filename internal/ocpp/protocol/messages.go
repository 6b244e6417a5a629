package protocol

import (
	"encoding/json"
	"time"
)

// BootNotificationRequest minimal subset.
type BootNotificationRequest struct {
	ChargePointVendor string `json:"chargePointVendor"`
	ChargePointModel  string `json:"chargePointModel"`
	ChargePointSerial string `json:"chargePointSerialNumber,omitempty"`
	ChargeBoxSerial   string `json:"chargeBoxSerialNumber,omitempty"`
	FirmwareVersion   string `json:"firmwareVersion,omitempty"`
}

// BootNotificationResponse carries the heartbeat interval and server time.
type BootNotificationResponse struct {
	CurrentTime time.Time `json:"currentTime"`
	Interval    int       `json:"interval"`
	Status      string    `json:"status"`
}

// IdTagInfo wraps an authorization status.
type IdTagInfo struct {
	Status string `json:"status"`
}

// AuthorizeRequest payload.
type AuthorizeRequest struct {
	IdTag string `json:"idTag"`
}

// AuthorizeResponse payload.
type AuthorizeResponse struct {
	IdTagInfo IdTagInfo `json:"idTagInfo"`
}

// HeartbeatRequest is empty.
type HeartbeatRequest struct{}

// HeartbeatResponse returns server time.
type HeartbeatResponse struct {
	CurrentTime time.Time `json:"currentTime"`
}

// StatusNotificationRequest payload.
type StatusNotificationRequest struct {
	ConnectorID int    `json:"connectorId"`
	ErrorCode   string `json:"errorCode"`
	Status      string `json:"status"`
	Info        string `json:"info,omitempty"`
	VendorID    string `json:"vendorId,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// StatusNotificationResponse is an empty ack.
type StatusNotificationResponse struct{}

// StartTransactionRequest payload.
type StartTransactionRequest struct {
	ConnectorID   int       `json:"connectorId"`
	IdTag         string    `json:"idTag"`
	MeterStart    int64     `json:"meterStart"`
	ReservationID int       `json:"reservationId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// StartTransactionResponse returns the assigned transaction id.
type StartTransactionResponse struct {
	TransactionID int64     `json:"transactionId"`
	IdTagInfo     IdTagInfo `json:"idTagInfo"`
}

// StopTransactionRequest payload.
type StopTransactionRequest struct {
	TransactionID int64     `json:"transactionId"`
	IdTag         string    `json:"idTag,omitempty"`
	MeterStop     int64     `json:"meterStop"`
	Timestamp     time.Time `json:"timestamp"`
	Reason        string    `json:"reason,omitempty"`
}

// StopTransactionResponse is an empty ack.
type StopTransactionResponse struct{}

// SampledValue is a single measurement inside a meter value.
type SampledValue struct {
	Value     string `json:"value"`
	Context   string `json:"context,omitempty"`
	Format    string `json:"format,omitempty"`
	Measurand string `json:"measurand,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Location  string `json:"location,omitempty"`
	Unit      string `json:"unit,omitempty"`
}

// MeterValue is one timestamped batch of sampled values.
type MeterValue struct {
	Timestamp    time.Time      `json:"timestamp"`
	SampledValue []SampledValue `json:"sampledValue"`
}

// MeterValueList accepts either a bare array of meter values or a wrapper
// object carrying them under "meterValue". Some firmwares nest the payload.
type MeterValueList []MeterValue

func (l *MeterValueList) UnmarshalJSON(data []byte) error {
	var direct []MeterValue
	if err := json.Unmarshal(data, &direct); err == nil {
		*l = direct
		return nil
	}
	var wrapped struct {
		MeterValue []MeterValue `json:"meterValue"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	*l = wrapped.MeterValue
	return nil
}

// MeterValuesRequest payload.
type MeterValuesRequest struct {
	ConnectorID   int            `json:"connectorId"`
	TransactionID int64          `json:"transactionId,omitempty"`
	MeterValue    MeterValueList `json:"meterValue"`
}

// MeterValuesResponse is an empty ack.
type MeterValuesResponse struct{}

// GetLocalListVersionResponse reports the local authorization list version.
type GetLocalListVersionResponse struct {
	ListVersion int `json:"listVersion"`
}

// AuthorizationData is one entry of a local authorization list.
type AuthorizationData struct {
	IdTag     string     `json:"idTag"`
	IdTagInfo *IdTagInfo `json:"idTagInfo,omitempty"`
}

// SendLocalListRequest payload.
type SendLocalListRequest struct {
	ListVersion            int                 `json:"listVersion"`
	LocalAuthorizationList []AuthorizationData `json:"localAuthorizationList,omitempty"`
	UpdateType             string              `json:"updateType"`
}

// SendLocalListResponse payload.
type SendLocalListResponse struct {
	Status string `json:"status"`
}

// FirmwareStatusNotificationRequest payload.
type FirmwareStatusNotificationRequest struct {
	Status string `json:"status"`
}

// FirmwareStatusNotificationResponse is an empty ack.
type FirmwareStatusNotificationResponse struct{}

// RemoteStartTransactionRequest payload (central system initiated).
type RemoteStartTransactionRequest struct {
	IdTag       string `json:"idTag"`
	ConnectorID int    `json:"connectorId,omitempty"`
}

// RemoteStartTransactionResponse payload.
type RemoteStartTransactionResponse struct {
	Status string `json:"status"`
}

// RemoteStopTransactionRequest payload.
type RemoteStopTransactionRequest struct {
	TransactionID int64 `json:"transactionId"`
}

// RemoteStopTransactionResponse payload.
type RemoteStopTransactionResponse struct {
	Status string `json:"status"`
}

// GetConfigurationRequest payload.
type GetConfigurationRequest struct {
	Key []string `json:"key,omitempty"`
}

// ConfigurationKey is one reported configuration entry.
type ConfigurationKey struct {
	Key      string  `json:"key"`
	Readonly bool    `json:"readonly"`
	Value    *string `json:"value,omitempty"`
}

// GetConfigurationResponse payload.
type GetConfigurationResponse struct {
	ConfigurationKey []ConfigurationKey `json:"configurationKey,omitempty"`
	UnknownKey       []string           `json:"unknownKey,omitempty"`
}

// ChangeConfigurationRequest payload.
type ChangeConfigurationRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ChangeConfigurationResponse payload.
type ChangeConfigurationResponse struct {
	Status string `json:"status"`
}
