package worker

import (
	"context"
	"strings"

	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/provider"
	"github.com/consign-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCnReservationExpire, c.handleCnReservationExpire)
}

func (c *Consumer) handleCnReservationExpire(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_cn_reservation_expire_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseCnReservationExpirePayload(task)
	if err != nil {
		logger.Warnw("worker_cn_reservation_expire_unmarshal_failed", "error", err)
		return err
	}
	cn := strings.TrimSpace(payload.CN)
	if cn == "" {
		logger.Debugw("worker_cn_reservation_expire_skip_invalid_payload")
		return nil
	}
	if c.BookingService == nil {
		logger.Warnw("worker_cn_reservation_expire_skip_booking_service_nil", "cn", cn)
		return nil
	}
	expired, err := c.BookingService.ExpireReservation(ctx, cn)
	if err != nil {
		logger.Warnw("worker_cn_reservation_expire_failed", "cn", cn, "error", err)
		return err
	}
	if !expired {
		// 已被运单消费，或被重新预留尚未到期
		logger.Debugw("worker_cn_reservation_expire_skip_not_due", "cn", cn)
	}
	return nil
}
