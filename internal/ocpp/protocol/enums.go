package protocol

// Actions handled by the central system.
const (
	ActionBootNotification           = "BootNotification"
	ActionAuthorize                  = "Authorize"
	ActionHeartbeat                  = "Heartbeat"
	ActionStatusNotification         = "StatusNotification"
	ActionStartTransaction           = "StartTransaction"
	ActionStopTransaction            = "StopTransaction"
	ActionMeterValues                = "MeterValues"
	ActionGetLocalListVersion        = "GetLocalListVersion"
	ActionSendLocalList              = "SendLocalList"
	ActionFirmwareStatusNotification = "FirmwareStatusNotification"
	ActionSecurityEventNotification  = "SecurityEventNotification"
	ActionRemoteStartTransaction     = "RemoteStartTransaction"
	ActionRemoteStopTransaction      = "RemoteStopTransaction"
	ActionGetConfiguration           = "GetConfiguration"
	ActionChangeConfiguration        = "ChangeConfiguration"
)

// CallError codes.
const (
	ErrorCodeNotImplemented = "NotImplemented"
	ErrorCodeInternalError  = "InternalError"
)

// Registration status values.
const (
	RegistrationAccepted = "Accepted"
	RegistrationRejected = "Rejected"
)

// Id tag authorization status values.
const (
	AuthorizationAccepted = "Accepted"
	AuthorizationInvalid  = "Invalid"
)

// Generic request status values.
const (
	StatusAccepted = "Accepted"
	StatusRejected = "Rejected"
)

// StatusNotification connector status values (subset).
const (
	ConnectorAvailable   = "Available"
	ConnectorPreparing   = "Preparing"
	ConnectorCharging    = "Charging"
	ConnectorFinishing   = "Finishing"
	ConnectorReserved    = "Reserved"
	ConnectorUnavailable = "Unavailable"
	ConnectorFaulted     = "Faulted"
)
