package admin

import "github.com/consign-next/internal/provider"

// Handler 员工端接口处理器入口
// 说明：该处理器仅用于员工端 API，角色权限由路由中间件校验。
type Handler struct {
	*provider.Container
}

// New 创建员工端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
