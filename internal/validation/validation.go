// Package validation provides centralized input validation for sensorstats.
package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/xtxerr/sensorstats/internal/errors"
)

// =============================================================================
// Identifier Validation
// =============================================================================

// TextRules defines the validation rules for free-form identifiers.
type TextRules struct {
	MinLength int
	MaxLength int
}

// DeviceUUIDRules returns the rules for device identifiers.
// Device UUIDs are opaque; they are not checked against the UUID format.
func DeviceUUIDRules() TextRules {
	return TextRules{MinLength: 1, MaxLength: 255}
}

// SensorTypeRules returns the rules for sensor types.
// Types are free-form ("temperature", "humidity", ...), not an enum.
func SensorTypeRules() TextRules {
	return TextRules{MinLength: 1, MaxLength: 64}
}

// ValidateText validates an identifier according to the given rules.
func ValidateText(field, value string, rules TextRules) error {
	if len(value) < rules.MinLength {
		if value == "" {
			return errors.NewMissingField(field)
		}
		return errors.NewInvalidValue(field, value,
			fmt.Sprintf("minimum %d characters required", rules.MinLength))
	}
	if len(value) > rules.MaxLength {
		return errors.NewInvalidValue(field, value[:16]+"...",
			fmt.Sprintf("maximum %d characters allowed", rules.MaxLength))
	}

	for i, r := range value {
		if r < 32 || r == 127 {
			return errors.NewInvalidValue(field, value,
				fmt.Sprintf("control character at position %d", i))
		}
	}

	return nil
}

// ValidateDeviceUUID validates a device identifier.
func ValidateDeviceUUID(id string) error {
	return ValidateText("device_uuid", id, DeviceUUIDRules())
}

// ValidateSensorType validates a sensor type.
func ValidateSensorType(t string) error {
	return ValidateText("type", t, SensorTypeRules())
}

// =============================================================================
// Timestamp Parsing
// =============================================================================

// ParseTimestamp parses a query-string time bound.
// Accepted forms are Unix epoch seconds ("1700000000") and ISO-8601
// ("2024-01-02T15:04:05Z", "2024-01-02"). The result is epoch seconds.
// An empty string yields nil.
func ParseTimestamp(field, s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &secs, nil
	}

	t, err := iso8601.ParseString(s)
	if err != nil {
		return nil, errors.NewInvalidValue(field, s, "expected epoch seconds or ISO-8601 time")
	}
	secs := t.Unix()
	return &secs, nil
}

// ValidateRange checks that start is not after end when both are set.
func ValidateRange(start, end *int64) error {
	if start != nil && end != nil && *start > *end {
		return errors.NewInvalidValue("start",
			time.Unix(*start, 0).UTC().Format(time.RFC3339), "start is after end")
	}
	return nil
}
