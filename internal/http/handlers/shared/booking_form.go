package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/consign-next/internal/service"
	"github.com/consign-next/internal/storage"

	"github.com/gin-gonic/gin"
)

const (
	bookingPayloadField   = "payload"
	bookingDocumentsField = "documents[]"
	maxMultipartMemory    = 32 << 20
)

// BindCreateBooking 解析 JSON 或 multipart 下单请求；multipart 时 payload 为 JSON，附件在 documents[]。
func BindCreateBooking(c *gin.Context) (service.CreateBookingInput, error) {
	var in service.CreateBookingInput
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.ShouldBindJSON(&in); err != nil {
			return in, err
		}
		return in, nil
	}

	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		return in, err
	}
	payload := strings.TrimSpace(c.Request.FormValue(bookingPayloadField))
	if payload == "" {
		return in, errors.New("payload is required")
	}
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return in, fmt.Errorf("payload is invalid: %w", err)
	}
	form := c.Request.MultipartForm
	if form == nil {
		return in, nil
	}
	headers := form.File[bookingDocumentsField]
	if len(headers) == 0 {
		headers = form.File["documents"]
	}
	files := make([]storage.UploadFile, 0, len(headers))
	for _, header := range headers {
		file, err := readUploadFile(header)
		if err != nil {
			return in, err
		}
		files = append(files, file)
	}
	in.Files = files
	return in, nil
}

func readUploadFile(header *multipart.FileHeader) (storage.UploadFile, error) {
	src, err := header.Open()
	if err != nil {
		return storage.UploadFile{}, fmt.Errorf("open %s: %w", header.Filename, err)
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return storage.UploadFile{}, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	return storage.UploadFile{
		Bytes:       data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, nil
}
