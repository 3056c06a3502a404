package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/consign-next/internal/authz"
	"github.com/consign-next/internal/cache"
	"github.com/consign-next/internal/config"
	adminhandlers "github.com/consign-next/internal/http/handlers/admin"
	publichandlers "github.com/consign-next/internal/http/handlers/public"
	"github.com/consign-next/internal/http/response"
	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按用户端/员工端分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "consign"
	}
	redisClient := cache.Client()
	createRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:booking_create", redisPrefix),
		WindowSeconds: cfg.Security.CreateRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CreateRateLimit.MaxRequests,
		BlockSeconds:  cfg.Security.CreateRateLimit.BlockSeconds,
		Message:       "too many bookings, retry in %d seconds",
	}
	createLimiter := RateLimitMiddleware(redisClient, createRule, KeyByActor)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// 本地存储的运单附件
	if strings.EqualFold(strings.TrimSpace(cfg.Storage.Type), "local") && strings.HasPrefix(cfg.Storage.PublicURL, "/") {
		r.Static(cfg.Storage.PublicURL, cfg.Storage.LocalDir)
	}

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/track/:cn", publicHandler.TrackBooking)
		}

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(SessionAuthMiddleware(cfg.JWT.SecretKey, cfg.JWT.Issuer))
		{
			user.POST("/bookings", createLimiter, publicHandler.CreateBooking)
			user.GET("/bookings", publicHandler.ListMyBookings)
			user.PATCH("/bookings/:id", publicHandler.UpdateBooking)
			user.POST("/bookings/:id/cancel", publicHandler.CancelBooking)
		}

		// 员工接口
		admin := apiV1.Group("/admin")
		authorized := admin.Use(SessionAuthMiddleware(cfg.JWT.SecretKey, cfg.JWT.Issuer), StaffOnlyMiddleware(), RBACMiddleware(c.AuthzService))
		{
			// 运单
			authorized.POST("/bookings", createLimiter, adminHandler.CreateBooking)
			authorized.GET("/bookings", adminHandler.ListBookings)
			authorized.PATCH("/bookings/:id", adminHandler.UpdateBooking)
			authorized.POST("/bookings/:id/approve", adminHandler.ApproveBooking)
			authorized.POST("/bookings/:id/cancel", adminHandler.CancelBooking)
			authorized.POST("/bookings/:id/status", adminHandler.ChangeBookingStatus)
			authorized.POST("/bookings/void", adminHandler.VoidBooking)
			authorized.POST("/cn/cod-next", adminHandler.NextCodCN)

			// 批次
			authorized.GET("/batches", adminHandler.ListBatches)
			authorized.POST("/batches/:id/close", adminHandler.CloseBatch)

			// 价格规则与基础资料
			authorized.GET("/pricing-rules", adminHandler.ListPricingRules)
			authorized.POST("/pricing-rules", adminHandler.CreatePricingRule)
			authorized.GET("/references/:kind", adminHandler.ListReferences)
			authorized.POST("/references/:kind/resolve", adminHandler.ResolveReference)

			// 权限管理
			authorized.GET("/authz/me", adminHandler.GetAuthzMe)
			authorized.GET("/authz/roles", adminHandler.ListAuthzRoles)
			authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
				response.Success(ctx, buildAdminPermissionCatalog(r))
			})
			authorized.POST("/authz/roles", adminHandler.CreateAuthzRole)
			authorized.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
			authorized.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
			authorized.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	if segments[1] == "authz" {
		return "authz"
	}
	return segments[1]
}
