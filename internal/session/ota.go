// internal/session/ota.go
package session

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"device-link/internal/model"
	"device-link/internal/protocol"
)

const (
	defaultOTAChunkSize  = 512
	defaultOTAAckTimeout = 10 * time.Second
)

// OTAStatus is a snapshot of the current or last firmware transfer
type OTAStatus struct {
	FileName   string `json:"file_name"`
	TotalBytes int    `json:"total_bytes"`
	BytesSent  int    `json:"bytes_sent"`
	ChunkSize  int    `json:"chunk_size"`
	Chunks     int    `json:"chunks"`
	State      string `json:"state"` // sending, verifying, complete, failed
	Progress   int    `json:"progress"`
}

// OTAProgressFunc receives transfer progress in whole percent. Values
// are strictly increasing per transfer and end at 100 on success.
type OTAProgressFunc func(percent int)

// OTAStatusSnapshot returns the status of the current or most recent
// transfer, or nil if none has run
func (s *Session) OTAStatusSnapshot() *OTAStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.otaStatus == nil {
		return nil
	}
	snapshot := *s.otaStatus
	return &snapshot
}

// OTAUpdate pushes a firmware image to the device in base64 chunks.
// Each chunk waits for its acknowledgment before the next is sent, so
// firmware never buffers more than one chunk. A failed or aborted
// transfer sends a best-effort ota_abort so the device can discard
// partial state. Only one transfer may run per session.
func (s *Session) OTAUpdate(ctx context.Context, fileName string, content []byte, onProgress OTAProgressFunc) error {
	chunkSize := s.config.OTA.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultOTAChunkSize
	}
	ackTimeout := s.config.OTA.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = defaultOTAAckTimeout
	}

	totalChunks := (len(content) + chunkSize - 1) / chunkSize

	s.mutex.Lock()
	if s.state != model.StateConnected {
		s.mutex.Unlock()
		return ErrNotConnected
	}
	if s.otaActive {
		s.mutex.Unlock()
		return ErrOTAInProgress
	}
	s.otaActive = true
	s.otaStatus = &OTAStatus{
		FileName:   fileName,
		TotalBytes: len(content),
		ChunkSize:  chunkSize,
		Chunks:     totalChunks,
		State:      "sending",
	}
	s.mutex.Unlock()

	err := s.runOTATransfer(ctx, fileName, content, chunkSize, totalChunks, ackTimeout, onProgress)

	s.mutex.Lock()
	s.otaActive = false
	if s.otaStatus != nil {
		if err != nil {
			s.otaStatus.State = "failed"
		} else {
			s.otaStatus.State = "complete"
			s.otaStatus.Progress = 100
		}
	}
	s.mutex.Unlock()

	if err != nil {
		s.abortOTA()
		return err
	}
	return nil
}

// runOTATransfer performs the begin / chunk / complete exchange
func (s *Session) runOTATransfer(ctx context.Context, fileName string, content []byte, chunkSize, totalChunks int, ackTimeout time.Duration, onProgress OTAProgressFunc) error {
	checksum := sha256.Sum256(content)

	s.logger.Info("Starting OTA transfer",
		zap.String("file", fileName),
		zap.Int("size", len(content)),
		zap.Int("chunks", totalChunks),
	)

	_, err := s.RequestWithTimeout(ctx, protocol.CmdOTABegin, map[string]interface{}{
		"file_name": fileName,
		"size":      len(content),
		"chunks":    totalChunks,
	}, ackTimeout)
	if err != nil {
		return &OTAError{Stage: "begin", Err: err}
	}

	lastReported := 0
	for index := 0; index < totalChunks; index++ {
		start := index * chunkSize
		end := start + chunkSize
		if end > len(content) {
			end = len(content)
		}

		_, err := s.RequestWithTimeout(ctx, protocol.CmdOTAChunk, map[string]interface{}{
			"index": index,
			"data":  base64.StdEncoding.EncodeToString(content[start:end]),
		}, ackTimeout)
		if err != nil {
			return &OTAError{Stage: "chunk", Chunk: index, Err: err}
		}

		sent := end
		percent := sent * 100 / len(content)
		if totalChunks > 0 && index == totalChunks-1 {
			percent = 100
		}

		s.mutex.Lock()
		if s.otaStatus != nil {
			s.otaStatus.BytesSent = sent
			s.otaStatus.Progress = percent
		}
		s.mutex.Unlock()

		// Duplicate percentages from small chunk steps are suppressed so
		// callers see a strictly increasing sequence.
		if onProgress != nil && percent > lastReported {
			lastReported = percent
			onProgress(percent)
		}
	}

	s.mutex.Lock()
	if s.otaStatus != nil {
		s.otaStatus.State = "verifying"
	}
	s.mutex.Unlock()

	_, err = s.RequestWithTimeout(ctx, protocol.CmdOTAComplete, map[string]interface{}{
		"checksum": hex.EncodeToString(checksum[:]),
	}, ackTimeout)
	if err != nil {
		return &OTAError{Stage: "complete", Err: err}
	}

	s.logger.Info("OTA transfer complete", zap.String("file", fileName))
	return nil
}

// abortOTA tells the device to discard partial transfer state. Best
// effort: the link may already be gone.
func (s *Session) abortOTA() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.RequestWithTimeout(ctx, protocol.CmdOTAAbort, nil, 2*time.Second); err != nil {
		s.logger.Debug("OTA abort not delivered", zap.Error(err))
	}
}
