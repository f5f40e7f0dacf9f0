// internal/model/telemetry.go
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ADCSample represents one analog reading pushed by a device
type ADCSample struct {
	Pin      int             `json:"pin"`
	RawValue int             `json:"raw_value"`
	Voltage  decimal.Decimal `json:"voltage"`
}

// VoltageFromRaw converts a raw ADC count to volts for the given
// resolution and reference voltage. Firmware reports raw counts; the
// conversion is done here so stored samples are exact.
func VoltageFromRaw(raw int, resolutionBits int, refVoltage decimal.Decimal) decimal.Decimal {
	maxCount := int64(1)<<uint(resolutionBits) - 1
	if maxCount <= 0 {
		return decimal.Zero
	}
	return refVoltage.
		Mul(decimal.NewFromInt(int64(raw))).
		DivRound(decimal.NewFromInt(maxCount), 4)
}

// TelemetrySample is a persisted telemetry data point
type TelemetrySample struct {
	ID         uuid.UUID           `json:"id" db:"id"`
	DeviceID   string              `json:"device_id" db:"device_id"`
	Topic      string              `json:"topic" db:"topic"`
	Pin        *int                `json:"pin,omitempty" db:"pin"`
	RawValue   *int                `json:"raw_value,omitempty" db:"raw_value"`
	Voltage    decimal.NullDecimal `json:"voltage,omitempty" db:"voltage"`
	Payload    JSONObject          `json:"payload" db:"payload"`
	RecordedAt time.Time           `json:"recorded_at" db:"recorded_at"`
}

// DeviceLogLine represents a log line emitted by device firmware
type DeviceLogLine struct {
	DeviceID string    `json:"device_id"`
	Level    string    `json:"level"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}
