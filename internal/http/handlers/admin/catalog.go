package admin

import (
	"strings"

	"github.com/consign-next/internal/http/handlers/shared"
	"github.com/consign-next/internal/http/response"
	"github.com/consign-next/internal/repository"
	"github.com/consign-next/internal/service"

	"github.com/gin-gonic/gin"
)

// ListPricingRules 价格规则列表
func (h *Handler) ListPricingRules(c *gin.Context) {
	page, pageSize := shared.QueryPagination(c)
	rules, total, err := h.CatalogService.ListPricingRules(c.Request.Context(), repository.PricingRuleListFilter{
		Page:              page,
		PageSize:          pageSize,
		ServiceID:         shared.QueryUint(c, "service_id"),
		OriginCityID:      shared.QueryUint(c, "origin_city_id"),
		DestinationCityID: shared.QueryUint(c, "destination_city_id"),
		Status:            strings.TrimSpace(c.Query("status")),
	})
	if err != nil {
		respondServiceError(c, err, "list pricing rules failed")
		return
	}
	response.SuccessWithPage(c, rules, response.BuildPagination(page, pageSize, total))
}

// CreatePricingRule 新建价格规则
func (h *Handler) CreatePricingRule(c *gin.Context) {
	actor, ok := shared.CurrentActor(c)
	if !ok {
		return
	}
	var req service.CreatePricingRuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid pricing rule", err)
		return
	}
	rule, err := h.CatalogService.CreatePricingRule(c.Request.Context(), actor, req)
	if err != nil {
		respondServiceError(c, err, "create pricing rule failed")
		return
	}
	response.Success(c, rule)
}

// ListReferences 城市 / 服务 / 产品列表
func (h *Handler) ListReferences(c *gin.Context) {
	page, pageSize := shared.QueryPagination(c)
	items, total, err := h.CatalogService.ListReferences(c.Request.Context(), c.Param("kind"), repository.ReferenceListFilter{
		Page:       page,
		PageSize:   pageSize,
		Search:     strings.TrimSpace(c.Query("search")),
		OnlyActive: c.Query("only_active") == "true",
	})
	if err != nil {
		respondServiceError(c, err, "list references failed")
		return
	}
	response.SuccessWithPage(c, items, response.BuildPagination(page, pageSize, total))
}

type resolveReferenceRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// ResolveReference 按名称或编码解析基础资料，不存在时创建
func (h *Handler) ResolveReference(c *gin.Context) {
	var req resolveReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "identifier is required", err)
		return
	}
	resolution, err := h.CatalogService.ResolveReference(c.Request.Context(), c.Param("kind"), req.Identifier)
	if err != nil {
		respondServiceError(c, err, "resolve reference failed")
		return
	}
	response.Success(c, resolution)
}
