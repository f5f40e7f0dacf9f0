// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"device-link/internal/model"
)

// BoardScanner discovers attachable development boards
type BoardScanner interface {
	Scan(ctx context.Context) ([]*DiscoveredBoard, error)
	GetScannerType() string
	IsAvailable() bool
}

// DiscoveredBoard represents a board found on the host
type DiscoveredBoard struct {
	ConnectionType model.ConnectionType   `json:"connection_type"`
	ConnectionInfo map[string]interface{} `json:"connection_info"`
	BoardFamily    model.BoardFamily      `json:"board_family"`
	Name           string                 `json:"name"`
	Confidence     float64                `json:"confidence"` // 0.0-1.0
	SerialNumber   string                 `json:"serial_number,omitempty"`
	Location       string                 `json:"location,omitempty"`
}

// ScannerManager runs every registered scanner and merges results
type ScannerManager struct {
	scanners map[string]BoardScanner
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		scanners: make(map[string]BoardScanner),
		logger:   logger,
	}
}

// RegisterScanner registers a board scanner
func (sm *ScannerManager) RegisterScanner(scanner BoardScanner) {
	scannerType := scanner.GetScannerType()
	sm.scanners[scannerType] = scanner
	sm.logger.Info("Scanner registered", zap.String("type", scannerType))
}

// ScanAll runs every available scanner. Scanner failures are logged and
// skipped so one misbehaving subsystem cannot hide the others' results.
func (sm *ScannerManager) ScanAll(ctx context.Context) ([]*DiscoveredBoard, error) {
	var allBoards []*DiscoveredBoard

	for scannerType, scanner := range sm.scanners {
		if !scanner.IsAvailable() {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
			continue
		}

		boards, err := scanner.Scan(ctx)
		if err != nil {
			sm.logger.Error("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			continue
		}

		allBoards = append(allBoards, boards...)
		sm.logger.Info("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("boards_found", len(boards)),
		)
	}

	return allBoards, nil
}

// ScanByType runs one specific scanner
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]*DiscoveredBoard, error) {
	scanner, exists := sm.scanners[scannerType]
	if !exists {
		return nil, fmt.Errorf("scanner type not found: %s", scannerType)
	}

	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", scannerType)
	}

	return scanner.Scan(ctx)
}

// GetAvailableScanners returns the scanner types that can run on this
// host
func (sm *ScannerManager) GetAvailableScanners() []string {
	var available []string
	for scannerType, scanner := range sm.scanners {
		if scanner.IsAvailable() {
			available = append(available, scannerType)
		}
	}
	return available
}
