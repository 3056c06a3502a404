package shared

import (
	"errors"

	"github.com/consign-next/internal/http/response"
	"github.com/consign-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

var bookingErrorRules = []mappedHandlerError{
	{target: service.ErrBookingNotFound, code: response.CodeNotFound, msg: "booking not found"},
	{target: service.ErrBatchNotFound, code: response.CodeNotFound, msg: "batch not found"},
	{target: service.ErrBatchNotActive, code: response.CodeConflict, msg: "batch is not active"},
	{target: service.ErrForbidden, code: response.CodeForbidden, msg: "forbidden"},
	{target: service.ErrResolution, code: response.CodeConflict, msg: "reference conflict"},
	{target: service.ErrAllocationConflict, code: response.CodeServiceUnavailable, msg: "cn allocation conflict, try again"},
	{target: service.ErrUpload, code: response.CodeServiceUnavailable, msg: "document upload failed, try again"},
	{target: service.ErrTryAgain, code: response.CodeServiceUnavailable, msg: "temporarily unavailable, try again"},
}

// RespondServiceError 将业务错误映射为统一响应，未识别的错误按 fallbackMsg 返回 500。
func RespondServiceError(c *gin.Context, err error, fallbackMsg string) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		RespondErrorWithData(c, response.CodeBadRequest, validationErr.Error(), gin.H{"field": validationErr.Field}, nil)
		return
	}
	var transitionErr *service.IllegalTransitionError
	if errors.As(err, &transitionErr) {
		RespondErrorWithData(c, response.CodeConflict, transitionErr.Error(), gin.H{
			"current_status": transitionErr.Current,
			"target":         transitionErr.Target,
		}, nil)
		return
	}
	var duplicateErr *service.DuplicateCnError
	if errors.As(err, &duplicateErr) {
		RespondErrorWithData(c, response.CodeConflict, duplicateErr.Error(), gin.H{"cn": duplicateErr.CN}, nil)
		return
	}
	var resolutionErr *service.ResolutionError
	if errors.As(err, &resolutionErr) {
		RespondErrorWithData(c, response.CodeConflict, resolutionErr.Error(), gin.H{
			"kind": resolutionErr.Kind,
			"code": resolutionErr.Code,
		}, nil)
		return
	}
	for _, rule := range bookingErrorRules {
		if errors.Is(err, rule.target) {
			var logged error
			if rule.code >= response.CodeInternal {
				logged = err
			}
			RespondError(c, rule.code, rule.msg, logged)
			return
		}
	}
	RespondError(c, response.CodeInternal, fallbackMsg, err)
}
