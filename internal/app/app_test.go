package app

import (
	"testing"
	"time"

	"chargelink/internal/config"
	"chargelink/internal/normalizer"
)

func TestSessionOptionsCarryConfiguredIdTags(t *testing.T) {
	cfg := &config.Config{}
	cfg.OCPP.HeartbeatIntervalSeconds = 60
	cfg.OCPP.CallTimeoutSeconds = 10
	cfg.OCPP.AllowedIdTags = []string{"EXTRA1"}

	opts := sessionOptions(cfg)

	if opts.HeartbeatInterval != 60*time.Second {
		t.Fatalf("expected 60s heartbeat interval, got %s", opts.HeartbeatInterval)
	}
	if opts.CallTimeout != 10*time.Second {
		t.Fatalf("expected 10s call timeout, got %s", opts.CallTimeout)
	}
	if opts.Fallback == nil {
		t.Fatalf("expected a configured fallback normalizer")
	}
	if status := opts.Fallback.Authorize("EXTRA1"); status != normalizer.StatusAccepted {
		t.Fatalf("expected configured tag to be accepted, got %s", status)
	}
	if status := opts.Fallback.Authorize("RFID123"); status != normalizer.StatusAccepted {
		t.Fatalf("expected built-in tag to remain accepted, got %s", status)
	}
	if status := opts.Fallback.Authorize("STRANGER"); status != normalizer.StatusInvalid {
		t.Fatalf("expected unknown tag to be rejected, got %s", status)
	}
}
