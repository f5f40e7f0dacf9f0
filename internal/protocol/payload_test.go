// internal/protocol/payload_test.go
package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodePayloadTypedShapes(t *testing.T) {
	tests := []struct {
		name    string
		command string
		raw     string
		check   func(t *testing.T, result interface{})
	}{
		{
			name:    "ping uptime",
			command: CmdPing,
			raw:     `{"uptime":123456}`,
			check: func(t *testing.T, result interface{}) {
				ping, ok := result.(*PingResult)
				if !ok {
					t.Fatalf("expected *PingResult, got %T", result)
				}
				if ping.Uptime != 123456 {
					t.Errorf("uptime = %d, want 123456", ping.Uptime)
				}
			},
		},
		{
			name:    "adc reading",
			command: CmdADCRead,
			raw:     `{"pin":34,"raw_value":2048,"voltage":1.65}`,
			check: func(t *testing.T, result interface{}) {
				adc, ok := result.(*ADCReading)
				if !ok {
					t.Fatalf("expected *ADCReading, got %T", result)
				}
				if adc.Pin != 34 || adc.RawValue != 2048 {
					t.Errorf("unexpected reading: %+v", adc)
				}
			},
		},
		{
			name:    "i2c scan",
			command: CmdI2CScan,
			raw:     `{"addresses":[60,104]}`,
			check: func(t *testing.T, result interface{}) {
				scan, ok := result.(*I2CScanResult)
				if !ok {
					t.Fatalf("expected *I2CScanResult, got %T", result)
				}
				if len(scan.Addresses) != 2 || scan.Addresses[0] != 60 {
					t.Errorf("unexpected scan: %+v", scan)
				}
			},
		},
		{
			name:    "wifi scan",
			command: CmdWiFiScan,
			raw:     `{"networks":[{"ssid":"lab","rssi":-42,"channel":6}]}`,
			check: func(t *testing.T, result interface{}) {
				scan, ok := result.(*WiFiScanResult)
				if !ok {
					t.Fatalf("expected *WiFiScanResult, got %T", result)
				}
				if len(scan.Networks) != 1 || scan.Networks[0].SSID != "lab" {
					t.Errorf("unexpected scan: %+v", scan)
				}
			},
		},
		{
			name:    "file list",
			command: CmdFileList,
			raw:     `{"files":[{"name":"main.py","size":812}]}`,
			check: func(t *testing.T, result interface{}) {
				list, ok := result.(*FileListResult)
				if !ok {
					t.Fatalf("expected *FileListResult, got %T", result)
				}
				if len(list.Files) != 1 || list.Files[0].Name != "main.py" {
					t.Errorf("unexpected list: %+v", list)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := DecodePayload(tt.command, json.RawMessage(tt.raw))
			if err != nil {
				t.Fatalf("DecodePayload failed: %v", err)
			}
			tt.check(t, result)
		})
	}
}

func TestDecodePayloadUnknownCommandFallsBack(t *testing.T) {
	raw := json.RawMessage(`{"anything":"goes"}`)
	result, err := DecodePayload("future_command", raw)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}

	unknown, ok := result.(*UnknownPayload)
	if !ok {
		t.Fatalf("expected *UnknownPayload, got %T", result)
	}
	if unknown.Command != "future_command" {
		t.Errorf("command = %s, want future_command", unknown.Command)
	}
	if string(unknown.Raw) != string(raw) {
		t.Errorf("raw payload not preserved: %s", unknown.Raw)
	}
}

func TestDecodePayloadNil(t *testing.T) {
	result, err := DecodePayload(CmdReboot, nil)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if result != nil {
		t.Errorf("nil payload should decode to nil, got %+v", result)
	}

	result, err = DecodePayload(CmdReboot, json.RawMessage("null"))
	if err != nil || result != nil {
		t.Errorf("null payload should decode to nil, got %v %v", result, err)
	}
}

func TestDecodePayloadMalformed(t *testing.T) {
	if _, err := DecodePayload(CmdPing, json.RawMessage(`{"uptime":"not-a-number"}`)); err == nil {
		t.Error("expected error for malformed typed payload")
	}
}
