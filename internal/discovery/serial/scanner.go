// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"device-link/internal/discovery"
	"device-link/internal/model"
)

// bridgeInfo describes a known USB-serial bridge or native USB stack
// and the board family it usually means
type bridgeInfo struct {
	name        string
	boardFamily model.BoardFamily
	confidence  float64
}

// knownBridges maps "VID:PID" (uppercase hex, no 0x) to the bridge
// identity. USB-serial bridges are shared across vendors, so family
// guesses from a bridge alone carry moderate confidence; native USB
// stacks identify the chip directly.
var knownBridges = map[string]bridgeInfo{
	// Silicon Labs CP210x, the usual ESP32 devkit bridge
	"10C4:EA60": {name: "CP210x UART Bridge", boardFamily: model.BoardFamilyESP32, confidence: 0.7},
	// WCH CH340/CH341, common on ESP8266 and Arduino clones
	"1A86:7523": {name: "CH340 UART Bridge", boardFamily: model.BoardFamilyESP8266, confidence: 0.5},
	"1A86:55D4": {name: "CH9102 UART Bridge", boardFamily: model.BoardFamilyESP32, confidence: 0.6},
	// FTDI
	"0403:6001": {name: "FT232R UART Bridge", boardFamily: model.BoardFamilyGeneric, confidence: 0.4},
	"0403:6015": {name: "FT231X UART Bridge", boardFamily: model.BoardFamilyGeneric, confidence: 0.4},
	// Espressif native USB
	"303A:1001": {name: "ESP32-S3 Native USB", boardFamily: model.BoardFamilyESP32, confidence: 0.95},
	"303A:0002": {name: "ESP32-S2 Native USB", boardFamily: model.BoardFamilyESP32, confidence: 0.95},
	// Raspberry Pi Pico CDC
	"2E8A:0005": {name: "Raspberry Pi Pico", boardFamily: model.BoardFamilyRP2040, confidence: 0.95},
	"2E8A:000A": {name: "Raspberry Pi Pico W", boardFamily: model.BoardFamilyRP2040, confidence: 0.95},
	// Arduino
	"2341:0043": {name: "Arduino Uno", boardFamily: model.BoardFamilyAVR, confidence: 0.95},
	"2341:0042": {name: "Arduino Mega 2560", boardFamily: model.BoardFamilyAVR, confidence: 0.95},
	// STMicroelectronics Virtual COM
	"0483:5740": {name: "STM32 Virtual COM", boardFamily: model.BoardFamilySTM32, confidence: 0.9},
}

// Scanner discovers boards exposed as serial ports
type Scanner struct {
	logger  *zap.Logger
	timeout time.Duration
}

// NewScanner creates a new serial port scanner
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{
		logger:  logger.With(zap.String("scanner", "serial")),
		timeout: 5 * time.Second,
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable checks if serial enumeration works on this system
func (s *Scanner) IsAvailable() bool {
	_, err := enumerator.GetDetailedPortsList()
	return err == nil
}

// Scan enumerates serial ports and identifies attached boards
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredBoard, error) {
	startTime := time.Now()
	s.logger.Info("Starting serial port scan")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var boards []*discovery.DiscoveredBoard
	for _, port := range ports {
		if !port.IsUSB {
			// Legacy UARTs cannot be identified; skip rather than guess.
			continue
		}
		boards = append(boards, s.identifyPort(port))
	}

	s.logger.Info("Serial scan completed",
		zap.Int("boards_found", len(boards)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return boards, nil
}

// identifyPort builds a discovery entry for one USB serial port
func (s *Scanner) identifyPort(port *enumerator.PortDetails) *discovery.DiscoveredBoard {
	key := strings.ToUpper(port.VID) + ":" + strings.ToUpper(port.PID)

	board := &discovery.DiscoveredBoard{
		ConnectionType: model.ConnectionTypeSerial,
		ConnectionInfo: map[string]interface{}{
			"port":      port.Name,
			"baud_rate": 115200,
		},
		BoardFamily:  model.BoardFamilyGeneric,
		Name:         fmt.Sprintf("USB Serial %s", key),
		Confidence:   0.2,
		SerialNumber: port.SerialNumber,
		Location:     port.Name,
	}

	if bridge, known := knownBridges[key]; known {
		board.BoardFamily = bridge.boardFamily
		board.Name = bridge.name
		board.Confidence = bridge.confidence
	}

	s.logger.Debug("Serial port examined",
		zap.String("port", port.Name),
		zap.String("vid_pid", key),
		zap.String("family", string(board.BoardFamily)),
	)
	return board
}
