package provider

import (
	"context"
	"time"

	"github.com/consign-next/internal/authz"
	"github.com/consign-next/internal/cache"
	"github.com/consign-next/internal/config"
	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/models"
	"github.com/consign-next/internal/queue"
	"github.com/consign-next/internal/repository"
	"github.com/consign-next/internal/service"
	"github.com/consign-next/internal/storage"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	BookingRepo        repository.BookingRepository
	BookingHistoryRepo repository.BookingHistoryRepository
	ReferenceRepo      repository.ReferenceRepository
	PricingRuleRepo    repository.PricingRuleRepository
	CustomerRepo       repository.CustomerRepository
	CnRepo             repository.CnRepository
	BatchRepo          repository.BatchRepository

	// Services
	AuthzService   *authz.Service
	DocumentStore  *storage.DocumentStore
	BookingService *service.BookingService
	CatalogService *service.CatalogService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端，未启用时为空实现
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.BookingRepo = repository.NewBookingRepository(db)
	c.BookingHistoryRepo = repository.NewBookingHistoryRepository(db)
	c.ReferenceRepo = repository.NewReferenceRepository(db)
	c.PricingRuleRepo = repository.NewPricingRuleRepository(db)
	c.CustomerRepo = repository.NewCustomerRepository(db)
	c.CnRepo = repository.NewCnRepository(db)
	c.BatchRepo = repository.NewBatchRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	driver, err := storage.NewDriverFromConfig(context.Background(), c.Config.Storage)
	if err != nil {
		logger.Errorw("provider_init_storage_failed", "type", c.Config.Storage.Type, "error", err)
		panic(err)
	}
	presign := time.Duration(c.Config.Storage.PresignMinutes) * time.Minute
	c.DocumentStore = storage.NewDocumentStore(driver, c.Config.Storage.MaxFileSize, presign)

	booking := c.Config.Booking
	c.BookingService = service.NewBookingService(
		c.BookingRepo,
		c.BookingHistoryRepo,
		c.ReferenceRepo,
		c.PricingRuleRepo,
		c.CustomerRepo,
		c.CnRepo,
		c.BatchRepo,
		c.DocumentStore,
		c.QueueClient,
		service.BookingServiceOptions{
			Tx: service.TxOptions{
				Timeout:          booking.TxTimeout(),
				LockTimeout:      time.Duration(booking.LockTimeoutMS) * time.Millisecond,
				StatementTimeout: time.Duration(booking.StatementTimeoutMS) * time.Millisecond,
				MaxAttempts:      booking.AllocationRetries,
			},
			CN: service.CNAllocatorOptions{
				Prefix:         booking.CNPrefix,
				Width:          booking.CNWidth,
				ReservationTTL: booking.ReservationTTL(),
				Location:       booking.Location(),
			},
			PricingCacheTTL: time.Duration(c.Config.Pricing.CacheTTLSeconds) * time.Second,
			MaxDocuments:    booking.MaxDocuments,
		},
	)
	c.CatalogService = service.NewCatalogService(c.PricingRuleRepo, c.ReferenceRepo)
}

// Close 释放外部连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if err := c.QueueClient.Close(); err != nil {
		logger.Warnw("provider_close_queue_client_failed", "error", err)
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}
