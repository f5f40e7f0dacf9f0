// internal/protocol/commands.go
package protocol

// Commands understood by device firmware. Their semantics are owned by
// the firmware; the service only frames and correlates them.
const (
	CmdPing        = "ping"
	CmdVersion     = "version"
	CmdSystemInfo  = "system_info"
	CmdGPIORead    = "gpio_read"
	CmdGPIOWrite   = "gpio_write"
	CmdADCRead     = "adc_read"
	CmdI2CScan     = "i2c_scan"
	CmdWiFiScan    = "wifi_scan"
	CmdFileList    = "file_list"
	CmdFileDelete  = "file_delete"
	CmdReboot      = "reboot"
	CmdOTABegin    = "ota_begin"
	CmdOTAChunk    = "ota_chunk"
	CmdOTAComplete = "ota_complete"
	CmdOTAAbort    = "ota_abort"
)

// Event types pushed by firmware
const (
	EventTypeEvent = "event"
	EventTypeLog   = "log"
	EventTypeData  = "data"
)
