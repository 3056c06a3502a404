package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/models"
	"github.com/consign-next/internal/repository"

	"github.com/klauspost/compress/zstd"
	"gorm.io/gorm"
)

// 超过该大小的字段变更压缩存储
const historyCompressThreshold = 4 * 1024

var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdInitErr error
)

func zstdCodec() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdInitErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdInitErr != nil {
			zstdInitErr = fmt.Errorf("create zstd encoder: %w", zstdInitErr)
			return
		}
		zstdDecoder, zstdInitErr = zstd.NewReader(nil)
		if zstdInitErr != nil {
			zstdInitErr = fmt.Errorf("create zstd decoder: %w", zstdInitErr)
		}
	})
	return zstdEncoder, zstdDecoder, zstdInitErr
}

// FieldChange 单个字段的变更
type FieldChange struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// historyEntry 待写入的历史记录
type historyEntry struct {
	BookingID   uint
	Action      string
	OldStatus   string
	NewStatus   string
	PerformedBy uint
	Remarks     string
	Changes     map[string]FieldChange
}

// appendHistory 在调用方事务内追加一条历史
func appendHistory(tx *gorm.DB, repo repository.BookingHistoryRepository, entry historyEntry, at time.Time) error {
	row := &models.BookingHistory{
		BookingID:   entry.BookingID,
		Action:      entry.Action,
		OldStatus:   entry.OldStatus,
		NewStatus:   entry.NewStatus,
		PerformedBy: entry.PerformedBy,
		Remarks:     entry.Remarks,
		CreatedAt:   at,
	}
	if len(entry.Changes) > 0 {
		raw, err := json.Marshal(entry.Changes)
		if err != nil {
			return err
		}
		if err := encodeChanges(row, raw); err != nil {
			return err
		}
	}
	return repo.WithTx(tx).Append(row)
}

func encodeChanges(row *models.BookingHistory, raw []byte) error {
	if len(raw) <= historyCompressThreshold {
		row.Changes = string(raw)
		return nil
	}
	encoder, _, err := zstdCodec()
	if err != nil {
		return err
	}
	row.ChangesCompressed = encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))
	row.Compression = constants.CompressionZstd
	return nil
}

// decodeHistory 还原压缩的字段变更，供跟踪接口输出
func decodeHistory(rows []models.BookingHistory) {
	for i := range rows {
		row := &rows[i]
		if row.Compression != constants.CompressionZstd || len(row.ChangesCompressed) == 0 {
			continue
		}
		_, decoder, err := zstdCodec()
		if err != nil {
			logger.Warnw("history_decoder_unavailable", "error", err)
			return
		}
		raw, err := decoder.DecodeAll(row.ChangesCompressed, nil)
		if err != nil {
			logger.Warnw("history_changes_decode_failed", "history_id", row.ID, "error", err)
			continue
		}
		row.Changes = string(raw)
		row.ChangesCompressed = nil
	}
}
