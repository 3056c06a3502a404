package worker

import (
	"context"
	"errors"
	"time"

	"github.com/consign-next/internal/config"
	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/queue"

	"github.com/hibiken/asynq"
)

const (
	defaultReservationSweepInterval = time.Minute
)

// Service 异步队列与定时清理服务
type Service struct {
	name          string
	server        *asynq.Server
	mux           *asynq.ServeMux
	consumer      *Consumer
	sweepInterval time.Duration
}

// NewService 创建后台服务；队列未启用时仅运行预留清理循环
func NewService(cfg *config.QueueConfig, sweepInterval time.Duration, consumer *Consumer) (*Service, error) {
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultReservationSweepInterval
	}
	svc := &Service{
		name:          "worker",
		consumer:      consumer,
		sweepInterval: sweepInterval,
	}
	if cfg != nil && cfg.Enabled {
		opt, serverCfg := queue.BuildServerConfig(cfg)
		svc.server = asynq.NewServer(opt, serverCfg)
		svc.mux = asynq.NewServeMux()
		consumer.Register(svc.mux)
	} else {
		logger.Infow("worker_queue_disabled", "sweep_interval", sweepInterval.String())
	}
	return svc, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.consumer == nil {
		return errors.New("worker not initialized")
	}
	if s.server == nil || s.mux == nil {
		s.runReservationSweepLoop(ctx)
		return nil
	}
	go s.runReservationSweepLoop(ctx)
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// sweepReservationsOnce 清理过期预留，作为队列任务丢失时的兜底
func (s *Service) sweepReservationsOnce(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.BookingService == nil {
		return
	}
	if _, err := s.consumer.BookingService.ExpireReservations(ctx); err != nil {
		logger.Warnw("worker_cn_reservation_sweep_failed", "error", err)
	}
}

func (s *Service) runReservationSweepLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.BookingService == nil {
		return
	}
	s.sweepReservationsOnce(ctx)

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepReservationsOnce(ctx)
		}
	}
}
