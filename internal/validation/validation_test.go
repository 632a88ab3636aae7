package validation

import (
	"strings"
	"testing"

	"github.com/xtxerr/sensorstats/internal/errors"
)

func TestValidateDeviceUUID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "test_device", false},
		{"uuid", "1b4e28ba-2fa1-11d2-883f-0016d3cca427", false},
		{"not a uuid", "other_uuid", false},
		{"with spaces", "kitchen sensor", false},
		{"empty", "", true},
		{"control char", "a\x00b", true},
		{"too long", strings.Repeat("a", 256), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDeviceUUID(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDeviceUUID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.IsClientInput(err) {
				t.Errorf("expected a client input error, got %v", err)
			}
		})
	}
}

func TestValidateSensorType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"temperature", "temperature", false},
		{"humidity", "humidity", false},
		{"free form", "co2-ppm", false},
		{"empty", "", true},
		{"too long", strings.Repeat("t", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSensorType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSensorType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}

	if err := ValidateSensorType(""); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("empty type should be a missing field, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		isNil   bool
		wantErr bool
	}{
		{"empty", "", 0, true, false},
		{"epoch", "1700000000", 1700000000, false, false},
		{"negative epoch", "-60", -60, false, false},
		{"rfc3339", "2023-11-14T22:13:20Z", 1700000000, false, false},
		{"offset", "2023-11-14T23:13:20+01:00", 1700000000, false, false},
		{"date only", "1970-01-02", 86400, false, false},
		{"garbage", "yesterday", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp("start", tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseTimestamp(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.IsClientInput(err) {
					t.Errorf("expected a client input error, got %v", err)
				}
				return
			}
			if tt.isNil {
				if got != nil {
					t.Errorf("expected nil, got %d", *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("ParseTimestamp(%q) = %v, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateRange(t *testing.T) {
	a, b := int64(10), int64(20)

	if err := ValidateRange(&a, &b); err != nil {
		t.Errorf("ordered range: %v", err)
	}
	if err := ValidateRange(&b, &a); err == nil {
		t.Error("expected error for inverted range")
	}
	if err := ValidateRange(nil, &a); err != nil {
		t.Errorf("open start: %v", err)
	}
	if err := ValidateRange(&a, &a); err != nil {
		t.Errorf("single instant: %v", err)
	}
}
