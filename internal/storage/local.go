package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalDriver 本地磁盘存储，按键名前四位分两级目录
type LocalDriver struct {
	baseDir   string
	publicURL string
}

// NewLocalDriver 创建本地存储
func NewLocalDriver(baseDir, publicURL string) (*LocalDriver, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("local storage dir is empty")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir failed: %w", err)
	}
	return &LocalDriver{baseDir: baseDir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

func (d *LocalDriver) path(key string) (string, error) {
	clean := filepath.Base(filepath.Clean("/" + key))
	if clean == "/" || clean == "." || clean != key {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	if len(clean) < 4 {
		return filepath.Join(d.baseDir, clean), nil
	}
	return filepath.Join(d.baseDir, clean[0:2], clean[2:4], clean), nil
}

// Save 写入文件并记录内容类型
func (d *LocalDriver) Save(ctx context.Context, key string, body io.Reader, contentType string) error {
	fullPath, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("create storage subdir failed: %w", err)
	}
	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}
	if _, err := io.Copy(file, body); err != nil {
		_ = file.Close()
		_ = os.Remove(fullPath)
		return fmt.Errorf("write file failed: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(fullPath)
		return fmt.Errorf("close file failed: %w", err)
	}
	if err := os.WriteFile(fullPath+".meta", []byte(contentType), 0o644); err != nil {
		_ = os.Remove(fullPath)
		return fmt.Errorf("write metadata failed: %w", err)
	}
	return nil
}

// Get 读取文件
func (d *LocalDriver) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	fullPath, err := d.path(key)
	if err != nil {
		return nil, "", err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, "", err
	}
	contentType := "application/octet-stream"
	if meta, err := os.ReadFile(fullPath + ".meta"); err == nil && len(meta) > 0 {
		contentType = string(meta)
	}
	return file, contentType, nil
}

// Delete 删除文件
func (d *LocalDriver) Delete(ctx context.Context, key string) error {
	fullPath, err := d.path(key)
	if err != nil {
		return err
	}
	_ = os.Remove(fullPath + ".meta")
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// URL 本地文件通过 publicURL 暴露
func (d *LocalDriver) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if d.publicURL == "" {
		return key, nil
	}
	return d.publicURL + "/" + key, nil
}
