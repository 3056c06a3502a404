package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/consign-next/internal/logger"

	"github.com/google/uuid"
)

// UploadFile 待上传的附件
type UploadFile struct {
	Bytes       []byte
	Filename    string
	ContentType string
}

// UploadedFile 上传结果
type UploadedFile struct {
	Key       string `json:"key"`
	SecureURL string `json:"secure_url"`
}

// DocumentStore 运单附件存储
type DocumentStore struct {
	driver      Driver
	maxFileSize int64
	urlExpires  time.Duration
}

// NewDocumentStore 创建附件存储
func NewDocumentStore(driver Driver, maxFileSize int64, urlExpires time.Duration) *DocumentStore {
	return &DocumentStore{driver: driver, maxFileSize: maxFileSize, urlExpires: urlExpires}
}

// UploadMany 依次上传，任一失败时删除已上传部分并返回错误
func (s *DocumentStore) UploadMany(ctx context.Context, files []UploadFile) ([]UploadedFile, error) {
	uploaded := make([]UploadedFile, 0, len(files))
	for _, file := range files {
		item, err := s.upload(ctx, file)
		if err != nil {
			s.DeleteMany(context.WithoutCancel(ctx), uploaded)
			return nil, err
		}
		uploaded = append(uploaded, item)
	}
	return uploaded, nil
}

func (s *DocumentStore) upload(ctx context.Context, file UploadFile) (UploadedFile, error) {
	if len(file.Bytes) == 0 {
		return UploadedFile{}, fmt.Errorf("file %q is empty", file.Filename)
	}
	if s.maxFileSize > 0 && int64(len(file.Bytes)) > s.maxFileSize {
		return UploadedFile{}, fmt.Errorf("file %q exceeds %d bytes", file.Filename, s.maxFileSize)
	}
	contentType := strings.TrimSpace(file.ContentType)
	if contentType == "" {
		contentType = http.DetectContentType(file.Bytes)
	}
	key := uuid.NewString() + strings.ToLower(filepath.Ext(file.Filename))
	if err := s.driver.Save(ctx, key, bytes.NewReader(file.Bytes), contentType); err != nil {
		return UploadedFile{}, err
	}
	url, err := s.driver.URL(ctx, key, s.urlExpires)
	if err != nil {
		_ = s.driver.Delete(context.WithoutCancel(ctx), key)
		return UploadedFile{}, err
	}
	return UploadedFile{Key: key, SecureURL: url}, nil
}

// DeleteMany 尽力删除，失败只记录日志
func (s *DocumentStore) DeleteMany(ctx context.Context, files []UploadedFile) {
	for _, file := range files {
		if file.Key == "" {
			continue
		}
		if err := s.driver.Delete(ctx, file.Key); err != nil {
			logger.Warnw("document_cleanup_failed", "key", file.Key, "error", err)
		}
	}
}
