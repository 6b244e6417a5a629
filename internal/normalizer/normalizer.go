// Package normalizer selects the vendor-specific authorization policy for a
// charge point. A normalizer adapts quirks of a charger family; today that is
// limited to id-tag authorization decisions.
package normalizer

import "strings"

// Status is the outcome of an authorization check.
type Status string

const (
	StatusAccepted Status = "Accepted"
	StatusInvalid  Status = "Invalid"
)

// Normalizer is the per-vendor policy applied to device-reported identifiers.
type Normalizer interface {
	Name() string
	Authorize(idTag string) Status
}

// defaultAllowList seeds the generic fallback when no tags are configured.
var defaultAllowList = []string{
	"RFID123",
	"TEST123",
	"USER456",
	"7A519560",
	"NO.000000333526",
}

// Generic accepts only identifiers on a preconfigured allow-list. It is the
// fallback for unknown vendors and for sessions that must authorize before a
// boot notification has selected a vendor strategy.
type Generic struct {
	allow map[string]struct{}
}

// NewGeneric builds the fallback policy. Extra tags extend the built-in list.
func NewGeneric(extraTags []string) *Generic {
	allow := make(map[string]struct{}, len(defaultAllowList)+len(extraTags))
	for _, tag := range defaultAllowList {
		allow[tag] = struct{}{}
	}
	for _, tag := range extraTags {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			allow[tag] = struct{}{}
		}
	}
	return &Generic{allow: allow}
}

func (g *Generic) Name() string { return "Generic" }

func (g *Generic) Authorize(idTag string) Status {
	if _, ok := g.allow[idTag]; ok {
		return StatusAccepted
	}
	return StatusInvalid
}

type abbTerraAC struct{}

func (abbTerraAC) Name() string { return "ABB Terra AC" }
func (abbTerraAC) Authorize(string) Status { return StatusAccepted }

type abbTerraDC struct{}

func (abbTerraDC) Name() string { return "ABB Terra DC" }
func (abbTerraDC) Authorize(string) Status { return StatusAccepted }

type growatt struct{}

func (growatt) Name() string { return "Growatt" }
func (growatt) Authorize(string) Status { return StatusAccepted }

// Select returns the most specific strategy for a vendor/model pair using
// case-insensitive substring matching. Unknown pairs fall back to the given
// generic policy, as do ABB models outside the Terra family (e.g. CDT_TACW22).
func Select(vendor, model string, fallback *Generic) Normalizer {
	v := strings.ToLower(vendor)
	m := strings.ToLower(model)

	switch {
	case strings.Contains(v, "abb"):
		if strings.Contains(m, "terra") && strings.Contains(m, "ac") {
			return abbTerraAC{}
		}
		if strings.Contains(m, "terra") && strings.Contains(m, "dc") {
			return abbTerraDC{}
		}
		return fallback
	case strings.Contains(v, "growatt"):
		return growatt{}
	default:
		return fallback
	}
}
