package main

import (
	"testing"

	"commentflow/internal/domain"
)

func TestLookupPref(t *testing.T) {
	for _, name := range prefNames {
		if _, err := lookupPref(name); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := lookupPref("opacity"); err == nil {
		t.Fatal("expected error for unknown preference")
	}
}

func TestNormalizePref(t *testing.T) {
	tests := []struct {
		name, value, want string
		wantErr           bool
	}{
		{"color", "auto", "auto", false},
		{"color", "Blue", "blue", false},
		{"color", "magenta", "", true},
		{"fontSize", "xl", "XL", false},
		{"fontSize", "XXL", "", true},
		{"fontFamily", "reggae one", "Reggae One", false},
		{"fontFamily", "", "", false},
		{"fontFamily", "Comic Sans", "", true},
		{"streaming", "1", "true", false},
		{"streaming", "off", "", true},
	}
	for _, tt := range tests {
		spec, _ := lookupPref(tt.name)
		got, err := normalizePref(spec, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s=%q: err = %v, wantErr %v", tt.name, tt.value, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%s=%q: got %q, want %q", tt.name, tt.value, got, tt.want)
		}
	}
}

func TestPrefSpecRequests(t *testing.T) {
	spec, _ := lookupPref("streaming")
	req, ok := spec.set("true").(domain.SetIsEnabledStreaming)
	if !ok || !req.Value {
		t.Fatalf("unexpected request %#v", spec.set("true"))
	}

	spec, _ = lookupPref("color")
	if got := spec.display(domain.Response{}); got != "(unset)" {
		t.Fatalf("unset display = %q", got)
	}
	if got := spec.display(domain.StringResponse("red")); got != "red" {
		t.Fatalf("display = %q", got)
	}
}
