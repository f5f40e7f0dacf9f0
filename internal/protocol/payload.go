// internal/protocol/payload.go
package protocol

import (
	"encoding/json"
	"fmt"
)

// Typed result payloads per command. Firmware responses are decoded
// through a command-keyed table; commands without a registered shape
// fall back to UnknownPayload so newer firmware cannot break the service.

// PingResult is the payload of a ping response
type PingResult struct {
	Uptime int64 `json:"uptime"`
}

// VersionInfo is the payload of a version response
type VersionInfo struct {
	Firmware string `json:"firmware"`
	Build    string `json:"build,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// SystemInfo is the payload of a system_info response
type SystemInfo struct {
	ChipModel  string `json:"chip_model"`
	SDKVersion string `json:"sdk_version,omitempty"`
	FreeHeap   int64  `json:"free_heap"`
	FlashSize  int64  `json:"flash_size,omitempty"`
	UptimeMs   int64  `json:"uptime_ms,omitempty"`
}

// GPIOState is the payload of gpio_read and gpio_write responses
type GPIOState struct {
	Pin   int `json:"pin"`
	Value int `json:"value"`
}

// ADCReading is the payload of an adc_read response or an adc stream
// data push
type ADCReading struct {
	Pin      int     `json:"pin"`
	RawValue int     `json:"raw_value"`
	Voltage  float64 `json:"voltage"`
}

// I2CScanResult is the payload of an i2c_scan response
type I2CScanResult struct {
	Addresses []int `json:"addresses"`
}

// WiFiNetwork describes one access point found by wifi_scan
type WiFiNetwork struct {
	SSID    string `json:"ssid"`
	RSSI    int    `json:"rssi"`
	Channel int    `json:"channel"`
	Auth    string `json:"auth,omitempty"`
}

// WiFiScanResult is the payload of a wifi_scan response
type WiFiScanResult struct {
	Networks []WiFiNetwork `json:"networks"`
}

// FileInfo describes one file on the device filesystem
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// FileListResult is the payload of a file_list response
type FileListResult struct {
	Files []FileInfo `json:"files"`
}

// OTAChunkAck is the payload acknowledging one ota_chunk
type OTAChunkAck struct {
	Index    int `json:"index"`
	Received int `json:"received"`
}

// UnknownPayload carries a payload the service has no shape for
type UnknownPayload struct {
	Command string          `json:"command"`
	Raw     json.RawMessage `json:"raw"`
}

type payloadDecoder func(raw json.RawMessage) (interface{}, error)

func decodeInto[T any](raw json.RawMessage) (interface{}, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

var payloadDecoders = map[string]payloadDecoder{
	CmdPing:       decodeInto[PingResult],
	CmdVersion:    decodeInto[VersionInfo],
	CmdSystemInfo: decodeInto[SystemInfo],
	CmdGPIORead:   decodeInto[GPIOState],
	CmdGPIOWrite:  decodeInto[GPIOState],
	CmdADCRead:    decodeInto[ADCReading],
	CmdI2CScan:    decodeInto[I2CScanResult],
	CmdWiFiScan:   decodeInto[WiFiScanResult],
	CmdFileList:   decodeInto[FileListResult],
	CmdOTAChunk:   decodeInto[OTAChunkAck],
}

// DecodePayload decodes a response payload for the given command. A nil
// payload decodes to nil; a command without a registered shape yields an
// UnknownPayload.
func DecodePayload(command string, raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	decode, ok := payloadDecoders[command]
	if !ok {
		return &UnknownPayload{Command: command, Raw: raw}, nil
	}

	result, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", command, err)
	}
	return result, nil
}
