package public

import "github.com/consign-next/internal/provider"

// Handler 用户端/公开接口处理器入口
// 说明：该处理器仅用于自助下单用户与公开运单查询。
type Handler struct {
	*provider.Container
}

// New 创建用户端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
