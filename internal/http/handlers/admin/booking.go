package admin

import (
	"strings"
	"time"

	"github.com/consign-next/internal/http/handlers/shared"
	"github.com/consign-next/internal/http/response"
	"github.com/consign-next/internal/repository"
	"github.com/consign-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/now"
)

type bookingRemarksRequest struct {
	Reason string `json:"reason"`
}

type changeStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Remarks string `json:"remarks"`
}

type voidBookingRequest struct {
	CN     string `json:"cn" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// CreateBooking 员工代客下单
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

// ListBookings 运单列表（支持状态、付款方式、批次、日期筛选）
func (h *Handler) ListBookings(c *gin.Context) {
	actor, ok := shared.CurrentActor(c)
	if !ok {
		return
	}
	page, pageSize := shared.QueryPagination(c)
	filter := repository.BookingListFilter{
		Page:        page,
		PageSize:    pageSize,
		Status:      strings.ToUpper(strings.TrimSpace(c.Query("status"))),
		PaymentMode: strings.ToUpper(strings.TrimSpace(c.Query("payment_mode"))),
		BatchID:     shared.QueryUint(c, "batch_id"),
		CreatedBy:   shared.QueryUint(c, "created_by"),
		Search:      strings.TrimSpace(c.Query("search")),
	}
	from, to, err := parseDateRange(c.Query("created_from"), c.Query("created_to"))
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid date range", err)
		return
	}
	filter.CreatedFrom = from
	filter.CreatedTo = to

	bookings, total, err := h.BookingService.ListBookings(c.Request.Context(), actor, filter)
	if err != nil {
		respondServiceError(c, err, "list bookings failed")
		return
	}
	response.SuccessWithPage(c, bookings, response.BuildPagination(page, pageSize, total))
}

// UpdateBooking 修改运单
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

// ApproveBooking 审核待处理运单
func (h *Handler) ApproveBooking(c *gin.Context) {
	actor, ok := shared.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req service.ApproveInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "invalid approve request", err)
			return
		}
	}
	booking, err := h.BookingService.Approve(c.Request.Context(), id, req, actor)
	if err != nil {
		respondServiceError(c, err, "approve booking failed")
		return
	}
	response.Success(c, booking)
}

// CancelBooking 取消运单
func (h *Handler) CancelBooking(c *gin.Context) {
	actor, ok := shared.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req bookingRemarksRequest
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

// ChangeBookingStatus 推进物流状态
func (h *Handler) ChangeBookingStatus(c *gin.Context) {
	actor, ok := shared.CurrentActor(c)
	if !ok {
		return
	}
	id, ok := shared.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid status request", err)
		return
	}
	booking, err := h.BookingService.ChangeStatus(c.Request.Context(), id, req.Status, req.Remarks, actor)
	if err != nil {
		respondServiceError(c, err, "change booking status failed")
		return
	}
	response.Success(c, booking)
}

// VoidBooking 按运单号作废
func (h *Handler) VoidBooking(c *gin.Context) {
	actor, ok := shared.CurrentActor(c)
	if !ok {
		return
	}
	var req voidBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "cn and reason are required", err)
		return
	}
	booking, err := h.BookingService.Void(c.Request.Context(), req.CN, req.Reason, actor)
	if err != nil {
		respondServiceError(c, err, "void booking failed")
		return
	}
	requestLog(c).Infow("admin_booking_voided", "cn", req.CN, "actor_id", actor.ID)
	response.Success(c, booking)
}

// NextCodCN 预留下一个代收货款运单号
func (h *Handler) NextCodCN(c *gin.Context) {
	actor, ok := shared.CurrentActor(c)
	if !ok {
		return
	}
	reservation, err := h.BookingService.GetNextCnForCod(c.Request.Context(), actor)
	if err != nil {
		respondServiceError(c, err, "reserve cn failed")
		return
	}
	response.Success(c, reservation)
}

// parseDateRange 解析 YYYY-MM-DD 日期区间，结束日期包含当天
func parseDateRange(fromRaw, toRaw string) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if value := strings.TrimSpace(fromRaw); value != "" {
		parsed, err := time.ParseInLocation("2006-01-02", value, time.Local)
		if err != nil {
			return nil, nil, err
		}
		start := now.With(parsed).BeginningOfDay()
		from = &start
	}
	if value := strings.TrimSpace(toRaw); value != "" {
		parsed, err := time.ParseInLocation("2006-01-02", value, time.Local)
		if err != nil {
			return nil, nil, err
		}
		end := now.With(parsed).EndOfDay()
		to = &end
	}
	return from, to, nil
}
