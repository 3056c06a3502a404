package authz

import (
	"fmt"

	"github.com/consign-next/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 员工角色矩阵：审计只读，操作员处理运单，主管可作废与维护价格，管理员全部
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.RoleAuditor,
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
			},
		},
		{
			Role:     constants.RoleOperator,
			Inherits: []string{constants.RoleAuditor},
			Policies: []Policy{
				{Object: "/admin/bookings", Action: "POST"},
				{Object: "/admin/bookings/:id", Action: "PATCH"},
				{Object: "/admin/bookings/:id/approve", Action: "POST"},
				{Object: "/admin/bookings/:id/cancel", Action: "POST"},
				{Object: "/admin/bookings/:id/status", Action: "POST"},
				{Object: "/admin/cn/cod-next", Action: "POST"},
				{Object: "/admin/references/:kind/resolve", Action: "POST"},
			},
		},
		{
			Role:     constants.RoleSupervisor,
			Inherits: []string{constants.RoleOperator},
			Policies: []Policy{
				{Object: "/admin/bookings/void", Action: "POST"},
				{Object: "/admin/batches/:id/close", Action: "POST"},
				{Object: "/admin/pricing-rules", Action: "POST"},
			},
		},
		{
			Role: constants.RoleAdmin,
			Policies: []Policy{
				{Object: "/admin/*", Action: "*"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略，重复执行无副作用
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}

		for _, parent := range seed.Inherits {
			parentRole, err := s.EnsureRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}

		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
