package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/models"
	"github.com/consign-next/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/consign-next/internal/service")

// TxOptions 事务超时配置
type TxOptions struct {
	Timeout          time.Duration
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	MaxAttempts      int
}

// txRunner 以统一的超时、追踪与错误归类执行事务
type txRunner struct {
	opts TxOptions
}

func newTxRunner(opts TxOptions) *txRunner {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &txRunner{opts: opts}
}

// run 执行单次事务
func (r *txRunner) run(ctx context.Context, name string, fn func(tx *gorm.DB) error) error {
	ctx, span := tracer.Start(ctx, "booking."+name)
	defer span.End()

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	err := models.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.applyTimeouts(tx); err != nil {
			return err
		}
		return fn(tx)
	})
	if err != nil {
		err = classifyTxError(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// runWithRetry 遇到运单号分配冲突时整体重试，attempt 从 0 开始
func (r *txRunner) runWithRetry(ctx context.Context, name string, fn func(tx *gorm.DB, attempt int) error) error {
	var err error
	for attempt := 0; attempt < r.opts.MaxAttempts; attempt++ {
		current := attempt
		err = r.run(ctx, name, func(tx *gorm.DB) error {
			return fn(tx, current)
		})
		if !errors.Is(err, ErrAllocationConflict) {
			return err
		}
		trace.SpanFromContext(ctx).AddEvent("cn_allocation_conflict", trace.WithAttributes(attribute.Int("attempt", attempt)))
		logger.Warnw("cn_allocation_conflict_retry", "operation", name, "attempt", attempt+1, "error", err)
	}
	logger.Errorw("cn_allocation_retries_exhausted", "operation", name, "attempts", r.opts.MaxAttempts)
	return fmt.Errorf("%w: %v", ErrTryAgain, err)
}

func (r *txRunner) applyTimeouts(tx *gorm.DB) error {
	if !repository.IsPostgres(tx) {
		return nil
	}
	if r.opts.LockTimeout > 0 {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.opts.LockTimeout.Milliseconds())).Error; err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}
	if r.opts.StatementTimeout > 0 {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", r.opts.StatementTimeout.Milliseconds())).Error; err != nil {
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}
	return nil
}

var businessErrors = []error{
	ErrValidation,
	ErrResolution,
	ErrAllocationConflict,
	ErrDuplicateCN,
	ErrIllegalTransition,
	ErrUpload,
	ErrTryAgain,
	ErrBookingNotFound,
	ErrBatchNotFound,
	ErrBatchNotActive,
	ErrForbidden,
}

// postgres SQLSTATE: 锁等待超时、语句超时、序列化失败、死锁
var transientMarkers = []string{
	"55p03",
	"57014",
	"40001",
	"40p01",
	"deadlock",
	"lock timeout",
	"database is locked",
}

// classifyTxError 将超时、锁等待等基础设施错误归为可重试
func classifyTxError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTryAgain, err)
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrTryAgain, err)
		}
	}
	return err
}
