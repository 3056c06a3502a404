package public

import (
	"strings"

	"github.com/consign-next/internal/http/handlers/shared"
	"github.com/consign-next/internal/http/response"
	"github.com/consign-next/internal/repository"
	"github.com/consign-next/internal/service"

	"github.com/gin-gonic/gin"
)

type cancelBookingRequest struct {
	Reason string `json:"reason"`
}

// CreateBooking 用户自助下单（JSON 或 multipart）
func (h *Handler) CreateBooking(c *gin.Context) {
	actor, ok := shared.CurrentActor(c)
	if !ok {
		return
	}
	in, err := shared.BindCreateBooking(c)
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid booking request", err)
		return
	}
	booking, err := h.BookingService.CreateBooking(c.Request.Context(), actor, in)
	if err != nil {
		respondServiceError(c, err, "create booking failed")
		return
	}
	response.Success(c, booking)
}

// ListMyBookings 本人运单列表
func (h *Handler) ListMyBookings(c *gin.Context) {
	actor, ok := shared.CurrentActor(c)
	if !ok {
		return
	}
	page, pageSize := shared.QueryPagination(c)
	bookings, total, err := h.BookingService.ListMyBookings(c.Request.Context(), actor, repository.BookingListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		Search:   strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respondServiceError(c, err, "list bookings failed")
		return
	}
	response.SuccessWithPage(c, bookings, response.BuildPagination(page, pageSize, total))
}

// UpdateBooking 修改本人运单
func (h *Handler) UpdateBooking(c *gin.Context) {
	actor, ok := shared.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var patch service.BookingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, response.CodeBadRequest, "invalid booking patch", err)
		return
	}
	booking, err := h.BookingService.Update(c.Request.Context(), id, patch, actor)
	if err != nil {
		respondServiceError(c, err, "update booking failed")
		return
	}
	response.Success(c, booking)
}

// CancelBooking 取消本人运单
func (h *Handler) CancelBooking(c *gin.Context) {
	actor, ok := shared.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req cancelBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "invalid cancel request", err)
			return
		}
	}
	booking, err := h.BookingService.Cancel(c.Request.Context(), id, req.Reason, actor)
	if err != nil {
		respondServiceError(c, err, "cancel booking failed")
		return
	}
	response.Success(c, booking)
}
