package admin

import (
	"strings"

	"github.com/consign-next/internal/http/handlers/shared"
	"github.com/consign-next/internal/http/response"
	"github.com/consign-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListBatches 批次列表
func (h *Handler) ListBatches(c *gin.Context) {
	page, pageSize := shared.QueryPagination(c)
	batches, total, err := h.BookingService.Batches().ListBatches(c.Request.Context(), repository.BatchListFilter{
		Page:          page,
		PageSize:      pageSize,
		Status:        strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		StationCode:   strings.ToUpper(strings.TrimSpace(c.Query("station"))),
		OwnerUsername: strings.TrimSpace(c.Query("owner")),
	})
	if err != nil {
		respondServiceError(c, err, "list batches failed")
		return
	}
	response.SuccessWithPage(c, batches, response.BuildPagination(page, pageSize, total))
}

// CloseBatch 关闭批次，后续运单将进入新批次
func (h *Handler) CloseBatch(c *gin.Context) {
	actor, ok := shared.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	batch, err := h.BookingService.Batches().CloseBatch(c.Request.Context(), id, actor)
	if err != nil {
		respondServiceError(c, err, "close batch failed")
		return
	}
	response.Success(c, batch)
}
