// internal/session/commands.go
package session

import (
	"context"
	"fmt"

	"device-link/internal/protocol"
)

// Typed wrappers over Request for the commands the firmware contract
// defines. Each returns the decoded payload shape for its command.

func typedResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %T", result)
	}
	return typed, nil
}

// Ping checks device liveness and returns firmware uptime
func (s *Session) Ping(ctx context.Context) (*protocol.PingResult, error) {
	return typedResult[protocol.PingResult](s.Request(ctx, protocol.CmdPing, nil))
}

// Version reports the firmware version
func (s *Session) Version(ctx context.Context) (*protocol.VersionInfo, error) {
	return typedResult[protocol.VersionInfo](s.Request(ctx, protocol.CmdVersion, nil))
}

// SystemInfo reports chip model, heap and flash figures
func (s *Session) SystemInfo(ctx context.Context) (*protocol.SystemInfo, error) {
	return typedResult[protocol.SystemInfo](s.Request(ctx, protocol.CmdSystemInfo, nil))
}

// GPIORead reads a digital pin
func (s *Session) GPIORead(ctx context.Context, pin int) (*protocol.GPIOState, error) {
	return typedResult[protocol.GPIOState](s.Request(ctx, protocol.CmdGPIORead, map[string]interface{}{
		"pin": pin,
	}))
}

// GPIOWrite sets a digital pin
func (s *Session) GPIOWrite(ctx context.Context, pin, value int) (*protocol.GPIOState, error) {
	return typedResult[protocol.GPIOState](s.Request(ctx, protocol.CmdGPIOWrite, map[string]interface{}{
		"pin":   pin,
		"value": value,
	}))
}

// ADCRead samples an analog pin once
func (s *Session) ADCRead(ctx context.Context, pin int) (*protocol.ADCReading, error) {
	return typedResult[protocol.ADCReading](s.Request(ctx, protocol.CmdADCRead, map[string]interface{}{
		"pin": pin,
	}))
}

// I2CScan lists responding bus addresses
func (s *Session) I2CScan(ctx context.Context) (*protocol.I2CScanResult, error) {
	return typedResult[protocol.I2CScanResult](s.Request(ctx, protocol.CmdI2CScan, nil))
}

// WiFiScan lists visible access points
func (s *Session) WiFiScan(ctx context.Context) (*protocol.WiFiScanResult, error) {
	return typedResult[protocol.WiFiScanResult](s.Request(ctx, protocol.CmdWiFiScan, nil))
}

// FileList lists files on the device filesystem
func (s *Session) FileList(ctx context.Context) (*protocol.FileListResult, error) {
	return typedResult[protocol.FileListResult](s.Request(ctx, protocol.CmdFileList, nil))
}

// FileDelete removes a file from the device filesystem
func (s *Session) FileDelete(ctx context.Context, name string) error {
	_, err := s.Request(ctx, protocol.CmdFileDelete, map[string]interface{}{
		"name": name,
	})
	return err
}

// Reboot restarts the device. The firmware acknowledges before
// resetting; expect the link to drop right after.
func (s *Session) Reboot(ctx context.Context) error {
	_, err := s.Request(ctx, protocol.CmdReboot, nil)
	return err
}
