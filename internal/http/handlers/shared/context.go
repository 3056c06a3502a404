package shared

import (
	"strconv"
	"strings"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/http/response"
	"github.com/consign-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetContextUint 从上下文读取 uint 值并统一处理错误响应。
func GetContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, key+" is invalid", nil)
			return 0, false
		}
		return uint(v), true
	case float64:
		if v < 0 {
			RespondError(c, response.CodeBadRequest, key+" is invalid", nil)
			return 0, false
		}
		return uint(v), true
	default:
		RespondError(c, response.CodeInternal, key+" has an unexpected type", nil)
		return 0, false
	}
}

// CurrentActor 组装当前操作人，缺失身份时已写入 401 响应。
func CurrentActor(c *gin.Context) (service.Actor, bool) {
	id, ok := GetContextUint(c, constants.ContextKeyUserID)
	if !ok {
		return service.Actor{}, false
	}
	actor := service.Actor{
		ID:          id,
		Username:    c.GetString(constants.ContextKeyUsername),
		Role:        c.GetString(constants.ContextKeyRole),
		StationCode: c.GetString(constants.ContextKeyStation),
	}
	if strings.TrimSpace(actor.Role) == "" {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return service.Actor{}, false
	}
	return actor, true
}

// ParseIDParam 解析路径中的数字 ID。
func ParseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		RespondError(c, response.CodeBadRequest, name+" is invalid", nil)
		return 0, false
	}
	return uint(id), true
}
