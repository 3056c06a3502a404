package public

import (
	"github.com/consign-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// TrackBooking 按运单号公开查询运单与历史
func (h *Handler) TrackBooking(c *gin.Context) {
	booking, err := h.BookingService.Track(c.Request.Context(), c.Param("cn"))
	if err != nil {
		respondServiceError(c, err, "track booking failed")
		return
	}
	response.Success(c, booking)
}
