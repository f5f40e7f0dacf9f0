// internal/service/session_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"device-link/internal/config"
	"device-link/internal/model"
	"device-link/internal/protocol"
	"device-link/internal/repository"
	"device-link/internal/session"
	"device-link/internal/transport"
	"device-link/internal/utils"
)

// SessionEvent is published to the UI feed when something happens on a
// device session
type SessionEvent struct {
	DeviceID  string                 `json:"device_id"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
}

// Session event types
const (
	EventStatusChanged = "status_changed"
	EventDevicePush    = "device_event"
	EventDeviceLog     = "device_log"
	EventADCSample     = "adc_sample"
	EventOTAProgress   = "ota_progress"
)

// EventSink receives session events for distribution
type EventSink func(event SessionEvent)

// Telemetry batching bounds. Samples are buffered and written in one
// statement; a full buffer flushes immediately, a ticker catches the
// trailing partial batch.
const (
	telemetryFlushSize     = 32
	telemetryFlushInterval = 5 * time.Second
)

// managedSession pairs a registered device with its live session
type managedSession struct {
	device  *model.Device
	session *session.Session
}

// SessionService owns the device registry and the live sessions over
// it. History repositories are optional; without a database the service
// runs with the in-memory registry only.
type SessionService struct {
	mutex    sync.RWMutex
	sessions map[string]*managedSession

	config        *config.Config
	logger        *utils.ServiceLogger
	zapLogger     *zap.Logger
	commandRepo   repository.CommandRepository
	telemetryRepo repository.TelemetryRepository
	otaRepo       repository.OTARepository

	sinkMutex sync.RWMutex
	sink      EventSink

	telemetryMutex sync.Mutex
	telemetryBuf   []*model.TelemetrySample

	stop     chan struct{}
	workerWG sync.WaitGroup
}

// NewSessionService creates a new session service instance. The
// repositories may be nil when history persistence is disabled.
func NewSessionService(
	cfg *config.Config,
	commandRepo repository.CommandRepository,
	telemetryRepo repository.TelemetryRepository,
	otaRepo repository.OTARepository,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		sessions:      make(map[string]*managedSession),
		config:        cfg,
		logger:        utils.NewServiceLogger(logger, "session-service"),
		zapLogger:     logger,
		commandRepo:   commandRepo,
		telemetryRepo: telemetryRepo,
		otaRepo:       otaRepo,
		stop:          make(chan struct{}),
	}
}

// Start launches the background history workers. No-op when history
// persistence is disabled.
func (ss *SessionService) Start() {
	if ss.telemetryRepo != nil {
		ss.workerWG.Add(1)
		go ss.telemetryFlushLoop()
	}
	if retention := ss.config.Database.Retention; retention > 0 && (ss.commandRepo != nil || ss.telemetryRepo != nil) {
		ss.workerWG.Add(1)
		go ss.retentionLoop(retention)
	}
}

// SetEventSink wires the UI feed. Only one sink is supported; the
// websocket layer fans out to its own clients.
func (ss *SessionService) SetEventSink(sink EventSink) {
	ss.sinkMutex.Lock()
	defer ss.sinkMutex.Unlock()
	ss.sink = sink
}

// RegisterDeviceRequest describes a device to register
type RegisterDeviceRequest struct {
	DeviceID         string                 `json:"device_id" binding:"required"`
	Name             string                 `json:"name"`
	BoardFamily      model.BoardFamily      `json:"board_family"`
	ConnectionType   model.ConnectionType   `json:"connection_type" binding:"required"`
	ConnectionConfig map[string]interface{} `json:"connection_config" binding:"required"`
}

// RegisterDevice registers a device and prepares its session. The
// session starts disconnected.
func (ss *SessionService) RegisterDevice(req *RegisterDeviceRequest) (*model.Device, error) {
	if err := ss.validateRegisterRequest(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	if _, exists := ss.sessions[req.DeviceID]; exists {
		return nil, fmt.Errorf("device with ID %s already exists", req.DeviceID)
	}

	boardFamily := req.BoardFamily
	if boardFamily == "" {
		boardFamily = model.BoardFamilyGeneric
	}

	device := &model.Device{
		ID:               uuid.New(),
		DeviceID:         req.DeviceID,
		Name:             req.Name,
		BoardFamily:      boardFamily,
		ConnectionType:   req.ConnectionType,
		ConnectionConfig: model.JSONObject(req.ConnectionConfig),
		State:            model.StateDisconnected,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	link, err := transport.Create(req.ConnectionType, req.ConnectionConfig, ss.zapLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	sess := session.New(session.Config{
		DeviceID:       req.DeviceID,
		RequestTimeout: ss.config.Session.RequestTimeout,
		Reconnect:      ss.config.Session.AutoReconnect,
		RateLimit:      ss.config.Session.RateLimit,
		Heartbeat:      ss.config.Session.Heartbeat,
		ADCStream:      ss.config.Session.ADCStream,
		OTA:            ss.config.Session.OTA,
	}, link, ss.zapLogger)

	managed := &managedSession{device: device, session: sess}
	ss.attachSessionListeners(managed)
	ss.sessions[req.DeviceID] = managed

	ss.logger.Info("Device registered",
		zap.String("device_id", device.DeviceID),
		zap.String("connection_type", string(device.ConnectionType)),
	)
	return device, nil
}

// UnregisterDevice disconnects and removes a device
func (ss *SessionService) UnregisterDevice(deviceID string) error {
	ss.mutex.Lock()
	managed, exists := ss.sessions[deviceID]
	if exists {
		delete(ss.sessions, deviceID)
	}
	ss.mutex.Unlock()

	if !exists {
		return fmt.Errorf("device not found: %s", deviceID)
	}

	managed.session.Disconnect()
	ss.logger.Info("Device unregistered", zap.String("device_id", deviceID))
	return nil
}

// GetDevice returns the registered device with its live state
func (ss *SessionService) GetDevice(deviceID string) (*model.Device, error) {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return nil, err
	}
	snapshot := *managed.device
	snapshot.State = managed.session.State()
	return &snapshot, nil
}

// ListDevices returns every registered device with its live state
func (ss *SessionService) ListDevices() []*model.Device {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()

	devices := make([]*model.Device, 0, len(ss.sessions))
	for _, managed := range ss.sessions {
		snapshot := *managed.device
		snapshot.State = managed.session.State()
		devices = append(devices, &snapshot)
	}
	return devices
}

// Connect establishes the device session
func (ss *SessionService) Connect(ctx context.Context, deviceID string) error {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return err
	}
	return managed.session.Connect(ctx)
}

// Disconnect tears the device session down
func (ss *SessionService) Disconnect(deviceID string) error {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return err
	}
	return managed.session.Disconnect()
}

// ExecuteCommand dispatches a raw command on a device session and
// records the round trip in history
func (ss *SessionService) ExecuteCommand(ctx context.Context, deviceID, command string, params map[string]interface{}) (interface{}, error) {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, correlationID, err := managed.session.RequestTraced(ctx, command, params)
	ss.recordCommand(deviceID, command, params, correlationID, err, time.Since(started))

	if err != nil {
		return nil, err
	}
	return result, nil
}

// Ping checks device liveness
func (ss *SessionService) Ping(ctx context.Context, deviceID string) (*protocol.PingResult, error) {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return nil, err
	}
	return managed.session.Ping(ctx)
}

// Version reports a device's firmware version
func (ss *SessionService) Version(ctx context.Context, deviceID string) (*protocol.VersionInfo, error) {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return nil, err
	}
	return managed.session.Version(ctx)
}

// SystemInfo reports chip model, heap and flash figures for a device
func (ss *SessionService) SystemInfo(ctx context.Context, deviceID string) (*protocol.SystemInfo, error) {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return nil, err
	}
	return managed.session.SystemInfo(ctx)
}

// GPIORead reads a digital pin on a device
func (ss *SessionService) GPIORead(ctx context.Context, deviceID string, pin int) (*protocol.GPIOState, error) {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return nil, err
	}
	return managed.session.GPIORead(ctx, pin)
}

// GPIOWrite sets a digital pin on a device
func (ss *SessionService) GPIOWrite(ctx context.Context, deviceID string, pin, value int) (*protocol.GPIOState, error) {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return nil, err
	}
	return managed.session.GPIOWrite(ctx, pin, value)
}

// ADCRead samples an analog pin once on a device
func (ss *SessionService) ADCRead(ctx context.Context, deviceID string, pin int) (*protocol.ADCReading, error) {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return nil, err
	}
	return managed.session.ADCRead(ctx, pin)
}

// I2CScan lists responding bus addresses on a device
func (ss *SessionService) I2CScan(ctx context.Context, deviceID string) (*protocol.I2CScanResult, error) {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return nil, err
	}
	return managed.session.I2CScan(ctx)
}

// WiFiScan lists the access points a device can see
func (ss *SessionService) WiFiScan(ctx context.Context, deviceID string) (*protocol.WiFiScanResult, error) {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return nil, err
	}
	return managed.session.WiFiScan(ctx)
}

// FileList lists files on a device's filesystem
func (ss *SessionService) FileList(ctx context.Context, deviceID string) (*protocol.FileListResult, error) {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return nil, err
	}
	return managed.session.FileList(ctx)
}

// FileDelete removes a file from a device's filesystem
func (ss *SessionService) FileDelete(ctx context.Context, deviceID, name string) error {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return err
	}
	return managed.session.FileDelete(ctx, name)
}

// Reboot restarts a device. The link is expected to drop right after
// the acknowledgement.
func (ss *SessionService) Reboot(ctx context.Context, deviceID string) error {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return err
	}
	return managed.session.Reboot(ctx)
}

// SessionStatus describes a live session for the API
type SessionStatus struct {
	DeviceID     string                `json:"device_id"`
	State        model.ConnectionState `json:"state"`
	Transport    model.ConnectionType  `json:"transport"`
	PendingCalls int                   `json:"pending_calls"`
	OTA          *session.OTAStatus    `json:"ota,omitempty"`
}

// GetSessionStatus returns a live snapshot of the session
func (ss *SessionService) GetSessionStatus(deviceID string) (*SessionStatus, error) {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return nil, err
	}
	return &SessionStatus{
		DeviceID:     deviceID,
		State:        managed.session.State(),
		Transport:    managed.session.TransportType(),
		PendingCalls: managed.session.PendingCalls(),
		OTA:          managed.session.OTAStatusSnapshot(),
	}, nil
}

// StartADCStream starts the analog sampling stream on a device
func (ss *SessionService) StartADCStream(deviceID string, pin int, interval time.Duration) error {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return err
	}
	managed.session.StartADCStream(pin, interval)
	return nil
}

// StopADCStream stops the analog sampling stream on a device
func (ss *SessionService) StopADCStream(deviceID string) error {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return err
	}
	managed.session.StopADCStream()
	return nil
}

// StartHeartbeat starts the liveness probe on a device
func (ss *SessionService) StartHeartbeat(deviceID string, interval time.Duration, failureThreshold int) error {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return err
	}
	managed.session.StartHeartbeat(interval, failureThreshold)
	return nil
}

// StopHeartbeat stops the liveness probe on a device
func (ss *SessionService) StopHeartbeat(deviceID string) error {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return err
	}
	managed.session.StopHeartbeat()
	return nil
}

// OTAUpdate pushes a firmware image to a device, publishing progress to
// the UI feed and recording the transfer in history
func (ss *SessionService) OTAUpdate(ctx context.Context, deviceID, fileName string, content []byte) error {
	managed, err := ss.getSession(deviceID)
	if err != nil {
		return err
	}

	chunkSize := ss.config.Session.OTA.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 512
	}

	recordID := uuid.New()
	if ss.otaRepo != nil {
		record := &model.OTATransferRecord{
			ID:         recordID,
			DeviceID:   deviceID,
			FileName:   fileName,
			TotalBytes: len(content),
			ChunkSize:  chunkSize,
			StartedAt:  time.Now(),
		}
		if err := ss.otaRepo.Create(context.Background(), record); err != nil {
			ss.logger.Warn("Failed to record OTA start", zap.Error(err))
		}
	}

	transferErr := managed.session.OTAUpdate(ctx, fileName, content, func(percent int) {
		ss.publish(SessionEvent{
			DeviceID: deviceID,
			Type:     EventOTAProgress,
			Data: map[string]interface{}{
				"file_name": fileName,
				"progress":  percent,
			},
			Timestamp: time.Now(),
		})
	})

	if ss.otaRepo != nil {
		var errorMessage *string
		if transferErr != nil {
			msg := transferErr.Error()
			errorMessage = &msg
		}
		if err := ss.otaRepo.Complete(context.Background(), recordID, transferErr == nil, errorMessage); err != nil {
			ss.logger.Warn("Failed to record OTA outcome", zap.Error(err))
		}
	}

	return transferErr
}

// GetCommandHistory returns recent command records for a device
func (ss *SessionService) GetCommandHistory(ctx context.Context, deviceID string, limit int) ([]*model.CommandRecord, error) {
	if ss.commandRepo == nil {
		return nil, errors.New("command history is not enabled")
	}
	return ss.commandRepo.ListByDevice(ctx, deviceID, limit)
}

// GetTelemetryHistory returns recent telemetry samples for a device
func (ss *SessionService) GetTelemetryHistory(ctx context.Context, deviceID string, since time.Time, limit int) ([]*model.TelemetrySample, error) {
	if ss.telemetryRepo == nil {
		return nil, errors.New("telemetry history is not enabled")
	}
	return ss.telemetryRepo.ListByDevice(ctx, deviceID, since, limit)
}

// GetCommandStats aggregates command outcomes for a device over a period
func (ss *SessionService) GetCommandStats(ctx context.Context, deviceID string, period time.Duration) (*repository.CommandStats, error) {
	if ss.commandRepo == nil {
		return nil, errors.New("command history is not enabled")
	}
	return ss.commandRepo.GetCommandStats(ctx, deviceID, period)
}

// GetCommandRecord returns one command record by its UUID
func (ss *SessionService) GetCommandRecord(ctx context.Context, id uuid.UUID) (*model.CommandRecord, error) {
	if ss.commandRepo == nil {
		return nil, errors.New("command history is not enabled")
	}
	return ss.commandRepo.GetByID(ctx, id)
}

// ListCommandRecords returns command records matching the filter along
// with the total match count
func (ss *SessionService) ListCommandRecords(ctx context.Context, filter *repository.CommandFilter) ([]*model.CommandRecord, int, error) {
	if ss.commandRepo == nil {
		return nil, 0, errors.New("command history is not enabled")
	}
	return ss.commandRepo.List(ctx, filter)
}

// GetOTAHistory returns recent firmware transfers for a device
func (ss *SessionService) GetOTAHistory(ctx context.Context, deviceID string, limit int) ([]*model.OTATransferRecord, error) {
	if ss.otaRepo == nil {
		return nil, errors.New("ota history is not enabled")
	}
	return ss.otaRepo.ListByDevice(ctx, deviceID, limit)
}

// DisconnectAll tears every session down. Used during shutdown.
func (ss *SessionService) DisconnectAll() {
	ss.mutex.RLock()
	sessions := make([]*managedSession, 0, len(ss.sessions))
	for _, managed := range ss.sessions {
		sessions = append(sessions, managed)
	}
	ss.mutex.RUnlock()

	for _, managed := range sessions {
		managed.session.Disconnect()
	}
	ss.logger.Info("All sessions disconnected", zap.Int("count", len(sessions)))
}

// Shutdown stops the background workers, tears every session down and
// flushes any buffered telemetry. Used during shutdown.
func (ss *SessionService) Shutdown() {
	close(ss.stop)
	ss.workerWG.Wait()

	ss.DisconnectAll()

	if ss.telemetryRepo != nil {
		ss.flushTelemetry()
	}
}

// attachSessionListeners wires session callbacks into the UI feed and
// the history store
func (ss *SessionService) attachSessionListeners(managed *managedSession) {
	deviceID := managed.device.DeviceID

	managed.session.OnStatusChange(func(prev, cur model.ConnectionState) {
		now := time.Now()
		ss.mutex.Lock()
		managed.device.State = cur
		managed.device.UpdatedAt = now
		if cur == model.StateConnected {
			managed.device.LastSeen = &now
		}
		ss.mutex.Unlock()

		ss.publish(SessionEvent{
			DeviceID: deviceID,
			Type:     EventStatusChanged,
			Data: map[string]interface{}{
				"previous": string(prev),
				"current":  string(cur),
			},
			Timestamp: now,
		})
	})

	managed.session.OnEvent(func(event protocol.Event) {
		eventType := EventDevicePush
		data := map[string]interface{}{
			"event_type": event.Type,
			"topic":      event.Topic,
			"message":    event.Message,
		}
		if event.Type == protocol.EventTypeLog {
			eventType = EventDeviceLog
			data["level"] = event.Level
		}
		ss.publish(SessionEvent{
			DeviceID:  deviceID,
			Type:      eventType,
			Data:      data,
			Timestamp: time.Now(),
		})
	})

	managed.session.OnADCSample(func(sample protocol.ADCReading) {
		ss.publish(SessionEvent{
			DeviceID: deviceID,
			Type:     EventADCSample,
			Data: map[string]interface{}{
				"pin":       sample.Pin,
				"raw_value": sample.RawValue,
				"voltage":   sample.Voltage,
			},
			Timestamp: time.Now(),
		})
		ss.recordTelemetry(deviceID, sample)
	})
}

// recordCommand persists one command round trip when history is
// enabled. The correlation id is the envelope id that went over the
// wire; it is empty when the call was rejected before being sent.
func (ss *SessionService) recordCommand(deviceID, command string, params map[string]interface{}, correlationID string, cmdErr error, duration time.Duration) {
	if ss.commandRepo == nil {
		return
	}

	record := &model.CommandRecord{
		ID:            uuid.New(),
		DeviceID:      deviceID,
		Command:       command,
		Params:        model.JSONObject(params),
		Status:        model.CommandStatusSuccess,
		DurationMs:    int(duration.Milliseconds()),
		CorrelationID: correlationID,
		CreatedAt:     time.Now(),
	}

	if cmdErr != nil {
		record.Status = model.CommandStatusFailed
		if errors.Is(cmdErr, session.ErrTimeout) {
			record.Status = model.CommandStatusTimeout
		}
		msg := cmdErr.Error()
		record.ErrorMessage = &msg
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ss.commandRepo.Create(ctx, record); err != nil {
		ss.logger.Warn("Failed to record command", zap.Error(err))
	}
}

// recordTelemetry buffers one analog sample for batched persistence
// when history is enabled. Samples arrive at stream rate, so they are
// written in batches rather than one row per sample.
func (ss *SessionService) recordTelemetry(deviceID string, sample protocol.ADCReading) {
	if ss.telemetryRepo == nil {
		return
	}

	pin := sample.Pin
	rawValue := sample.RawValue
	voltage := decimal.NewNullDecimal(decimal.NewFromFloat(sample.Voltage))

	record := &model.TelemetrySample{
		ID:         uuid.New(),
		DeviceID:   deviceID,
		Topic:      "adc",
		Pin:        &pin,
		RawValue:   &rawValue,
		Voltage:    voltage,
		RecordedAt: time.Now(),
	}

	ss.telemetryMutex.Lock()
	ss.telemetryBuf = append(ss.telemetryBuf, record)
	full := len(ss.telemetryBuf) >= telemetryFlushSize
	ss.telemetryMutex.Unlock()

	if full {
		ss.flushTelemetry()
	}
}

// flushTelemetry writes the buffered samples in one batch
func (ss *SessionService) flushTelemetry() {
	ss.telemetryMutex.Lock()
	batch := ss.telemetryBuf
	ss.telemetryBuf = nil
	ss.telemetryMutex.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ss.telemetryRepo.CreateBatch(ctx, batch); err != nil {
		ss.logger.Warn("Failed to persist telemetry batch",
			zap.Error(err),
			zap.Int("samples", len(batch)),
		)
	}
}

// telemetryFlushLoop periodically flushes the trailing partial batch
func (ss *SessionService) telemetryFlushLoop() {
	defer ss.workerWG.Done()

	ticker := time.NewTicker(telemetryFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ss.flushTelemetry()
		case <-ss.stop:
			return
		}
	}
}

// retentionLoop periodically deletes history rows older than the
// configured retention window
func (ss *SessionService) retentionLoop(retention time.Duration) {
	defer ss.workerWG.Done()

	interval := ss.config.Database.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ss.sweepHistory(retention)
		case <-ss.stop:
			return
		}
	}
}

// sweepHistory deletes command records and telemetry samples past the
// retention window
func (ss *SessionService) sweepHistory(retention time.Duration) {
	cutoff := time.Now().Add(-retention)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if ss.commandRepo != nil {
		if _, err := ss.commandRepo.DeleteOldRecords(ctx, cutoff); err != nil {
			ss.logger.Warn("Command history sweep failed", zap.Error(err))
		}
	}
	if ss.telemetryRepo != nil {
		if _, err := ss.telemetryRepo.DeleteOldSamples(ctx, cutoff); err != nil {
			ss.logger.Warn("Telemetry history sweep failed", zap.Error(err))
		}
	}
}

// publish delivers one event to the UI feed sink
func (ss *SessionService) publish(event SessionEvent) {
	ss.sinkMutex.RLock()
	sink := ss.sink
	ss.sinkMutex.RUnlock()
	if sink != nil {
		sink(event)
	}
}

// getSession looks a managed session up by device ID
func (ss *SessionService) getSession(deviceID string) (*managedSession, error) {
	ss.mutex.RLock()
	defer ss.mutex.RUnlock()
	managed, exists := ss.sessions[deviceID]
	if !exists {
		return nil, fmt.Errorf("device not found: %s", deviceID)
	}
	return managed, nil
}

// validateRegisterRequest checks a registration request
func (ss *SessionService) validateRegisterRequest(req *RegisterDeviceRequest) error {
	if req.DeviceID == "" {
		return errors.New("device_id is required")
	}
	switch req.ConnectionType {
	case model.ConnectionTypeSerial, model.ConnectionTypeSocket, model.ConnectionTypeCloud:
	default:
		return fmt.Errorf("unsupported connection type: %s", req.ConnectionType)
	}
	if err := transport.ValidateConfig(req.ConnectionType, req.ConnectionConfig); err != nil {
		return err
	}
	return nil
}
