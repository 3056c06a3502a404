package service

import (
	"errors"
	"fmt"
)

// 业务错误哨兵，使用 errors.Is 判断
var (
	ErrValidation         = errors.New("validation failed")
	ErrResolution         = errors.New("reference resolution conflict")
	ErrAllocationConflict = errors.New("cn allocation conflict")
	ErrDuplicateCN        = errors.New("cn already in use")
	ErrIllegalTransition  = errors.New("illegal state transition")
	ErrUpload             = errors.New("document upload failed")
	ErrTryAgain           = errors.New("temporarily unavailable, try again")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrBatchNotFound      = errors.New("batch not found")
	ErrBatchNotActive     = errors.New("batch is not active")
	ErrForbidden          = errors.New("forbidden")
)

// ValidationError 入参校验失败，写库之前返回
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// Is 匹配 ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ResolutionError 基础资料解析遇到无法自动处理的编码冲突
type ResolutionError struct {
	Kind       string
	Identifier string
	Code       string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s %q: code %s already belongs to another entity", e.Kind, e.Identifier, e.Code)
}

// Is 匹配 ErrResolution
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}

// DuplicateCnError 调用方指定的运单号已被占用
type DuplicateCnError struct {
	CN string
}

func (e *DuplicateCnError) Error() string {
	return fmt.Sprintf("cn %s already in use", e.CN)
}

// Is 匹配 ErrDuplicateCN
func (e *DuplicateCnError) Is(target error) bool {
	return target == ErrDuplicateCN
}

// IllegalTransitionError 当前状态不允许该操作
type IllegalTransitionError struct {
	Current string
	Target  string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal state transition from %s to %s", e.Current, e.Target)
}

// Is 匹配 ErrIllegalTransition
func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// UploadError 附件上传失败（可重试）
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string {
	return "document upload failed: " + e.Err.Error()
}

// Unwrap 返回底层错误
func (e *UploadError) Unwrap() error {
	return e.Err
}

// Is 匹配 ErrUpload
func (e *UploadError) Is(target error) bool {
	return target == ErrUpload
}

// IsRetryable 判断调用方是否可以重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTryAgain) || errors.Is(err, ErrUpload) || errors.Is(err, ErrAllocationConflict)
}
