package normalizer

import "testing"

func TestSelect(t *testing.T) {
	fallback := NewGeneric(nil)

	cases := []struct {
		name     string
		vendor   string
		model    string
		expected string
	}{
		{"abb terra ac", "ABB", "Terra AC W22", "ABB Terra AC"},
		{"abb terra dc", "abb", "TERRA DC fast", "ABB Terra DC"},
		{"abb unknown model", "ABB", "CDT_TACW22", "Generic"},
		{"growatt", "Growatt New Energy", "THOR 11AS-S", "Growatt"},
		{"unknown vendor", "Delta", "AC Mini Plus", "Generic"},
		{"empty", "", "", "Generic"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			norm := Select(tc.vendor, tc.model, fallback)
			if norm.Name() != tc.expected {
				t.Fatalf("expected %s, got %s", tc.expected, norm.Name())
			}
		})
	}
}

func TestGenericAllowList(t *testing.T) {
	norm := NewGeneric(nil)

	if status := norm.Authorize("RFID123"); status != StatusAccepted {
		t.Fatalf("expected Accepted for RFID123, got %s", status)
	}
	if status := norm.Authorize("UNKNOWN-TAG"); status != StatusInvalid {
		t.Fatalf("expected Invalid for unknown tag, got %s", status)
	}
	// Matching is exact, no case folding.
	if status := norm.Authorize("rfid123"); status != StatusInvalid {
		t.Fatalf("expected Invalid for lowercased tag, got %s", status)
	}
}

func TestGenericExtraTags(t *testing.T) {
	norm := NewGeneric([]string{" CUSTOM-1 ", "", "CUSTOM-2"})

	if status := norm.Authorize("CUSTOM-1"); status != StatusAccepted {
		t.Fatalf("expected Accepted for trimmed extra tag, got %s", status)
	}
	if status := norm.Authorize("CUSTOM-2"); status != StatusAccepted {
		t.Fatalf("expected Accepted for extra tag, got %s", status)
	}
	// Built-in list survives extension.
	if status := norm.Authorize("TEST123"); status != StatusAccepted {
		t.Fatalf("expected Accepted for built-in tag, got %s", status)
	}
}

func TestVendorStrategiesAcceptAnything(t *testing.T) {
	fallback := NewGeneric(nil)
	for _, pair := range [][2]string{
		{"ABB", "Terra AC"},
		{"ABB", "Terra DC"},
		{"Growatt", "anything"},
	} {
		norm := Select(pair[0], pair[1], fallback)
		if status := norm.Authorize("completely-unknown"); status != StatusAccepted {
			t.Fatalf("%s: expected Accepted, got %s", norm.Name(), status)
		}
	}
}
