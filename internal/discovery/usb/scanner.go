// internal/discovery/usb/scanner.go
package usb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"device-link/internal/discovery"
	"device-link/internal/model"
)

// Scanner identifies development boards on the USB bus. It complements
// the serial scanner: boards in bootloader mode or without an active
// CDC interface still show up here.
type Scanner struct {
	logger      *zap.Logger
	knownBoards *BoardDatabase
	timeout     time.Duration
}

// NewScanner creates a new USB scanner
func NewScanner(logger *zap.Logger) *Scanner {
	return &Scanner{
		logger:      logger.With(zap.String("scanner", "usb")),
		knownBoards: NewBoardDatabase(),
		timeout:     10 * time.Second,
	}
}

// GetScannerType returns scanner type identifier
func (s *Scanner) GetScannerType() string {
	return "usb"
}

// IsAvailable checks if the USB subsystem is accessible
func (s *Scanner) IsAvailable() bool {
	testCtx := gousb.NewContext()
	defer testCtx.Close()

	_, err := testCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return false
	})
	return err == nil
}

// Scan enumerates the USB bus for known boards
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredBoard, error) {
	startTime := time.Now()
	s.logger.Info("Starting USB bus scan")

	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	usbCtx := gousb.NewContext()
	defer func() {
		if err := usbCtx.Close(); err != nil {
			s.logger.Warn("Failed to close USB context", zap.Error(err))
		}
	}()

	devices, err := usbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return s.knownBoards.IsKnownVendor(desc.Vendor)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate USB devices: %w", err)
	}
	defer s.closeAllDevices(devices)

	var boards []*discovery.DiscoveredBoard
	for _, device := range devices {
		if err := scanCtx.Err(); err != nil {
			return boards, err
		}
		if board := s.identifyBoard(device); board != nil {
			boards = append(boards, board)
		}
	}

	boards = dedupe(boards)

	s.logger.Info("USB scan completed",
		zap.Int("boards_found", len(boards)),
		zap.Duration("scan_duration", time.Since(startTime)),
	)
	return boards, nil
}

// identifyBoard builds a discovery entry for one USB device
func (s *Scanner) identifyBoard(device *gousb.Device) *discovery.DiscoveredBoard {
	desc := device.Desc
	if desc == nil {
		return nil
	}

	vendorInfo := s.knownBoards.GetVendorInfo(desc.Vendor)
	if vendorInfo == nil {
		return nil
	}

	board := &discovery.DiscoveredBoard{
		ConnectionType: model.ConnectionTypeSerial,
		ConnectionInfo: map[string]interface{}{
			"vendor_id":  fmt.Sprintf("0x%04X", uint16(desc.Vendor)),
			"product_id": fmt.Sprintf("0x%04X", uint16(desc.Product)),
			"bus":        desc.Bus,
			"address":    desc.Address,
		},
		BoardFamily:  model.BoardFamilyGeneric,
		Confidence:   0.3,
		SerialNumber: s.getSerialNumber(device),
		Location:     fmt.Sprintf("USB-Bus%d-Port%d", desc.Bus, desc.Address),
	}

	productInfo := vendorInfo.GetProductInfo(desc.Product)
	if productInfo == nil {
		// Known vendor, unknown product.
		board.Name = fmt.Sprintf("%s Unknown-%04X", vendorInfo.Name, uint16(desc.Product))
		return board
	}

	board.Name = productInfo.Name
	board.BoardFamily = productInfo.BoardFamily
	board.Confidence = productInfo.Confidence
	return board
}

// getSerialNumber reads the device serial descriptor, falling back to a
// synthetic identifier when the device has none
func (s *Scanner) getSerialNumber(device *gousb.Device) string {
	serial, err := device.SerialNumber()
	if err == nil {
		if trimmed := strings.TrimSpace(serial); trimmed != "" {
			return trimmed
		}
	}
	return fmt.Sprintf("USB-%04X%04X-%d",
		uint16(device.Desc.Vendor), uint16(device.Desc.Product), device.Desc.Address)
}

// closeAllDevices safely closes all opened USB devices
func (s *Scanner) closeAllDevices(devices []*gousb.Device) {
	for i, device := range devices {
		if device != nil {
			if err := device.Close(); err != nil {
				s.logger.Warn("Failed to close USB device",
					zap.Int("device_index", i),
					zap.Error(err),
				)
			}
		}
	}
}

// dedupe removes duplicate boards (same VID:PID and serial)
func dedupe(boards []*discovery.DiscoveredBoard) []*discovery.DiscoveredBoard {
	seen := make(map[string]bool)
	var unique []*discovery.DiscoveredBoard
	for _, board := range boards {
		key := fmt.Sprintf("%v:%v:%s",
			board.ConnectionInfo["vendor_id"], board.ConnectionInfo["product_id"], board.SerialNumber)
		if !seen[key] {
			seen[key] = true
			unique = append(unique, board)
		}
	}
	return unique
}
