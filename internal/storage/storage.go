package storage

import (
	"context"
	"io"
	"time"
)

// Driver 附件二进制存储
type Driver interface {
	// Save 写入内容
	Save(ctx context.Context, key string, body io.Reader, contentType string) error
	// Get 读取内容与类型
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	// Delete 删除，不存在时视为成功
	Delete(ctx context.Context, key string) error
	// URL 返回可访问地址
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}
