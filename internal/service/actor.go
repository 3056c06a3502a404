package service

import (
	"strings"

	"github.com/consign-next/internal/constants"
)

const defaultStationCode = "HQ"

// Actor 当前操作人（来自会话令牌）
type Actor struct {
	ID          uint
	Username    string
	Role        string
	StationCode string
}

// IsCustomer 是否为自助下单用户
func (a Actor) IsCustomer() bool {
	return strings.EqualFold(strings.TrimSpace(a.Role), constants.RoleCustomer)
}

// IsStaff 是否为员工
func (a Actor) IsStaff() bool {
	return strings.TrimSpace(a.Role) != "" && !a.IsCustomer()
}

// Station 员工所属站点，缺省为总部
func (a Actor) Station() string {
	station := strings.ToUpper(strings.TrimSpace(a.StationCode))
	if station == "" {
		return defaultStationCode
	}
	return station
}

func (a Actor) validate() error {
	if a.ID == 0 {
		return invalid("actor", "is required")
	}
	if a.IsCustomer() && strings.TrimSpace(a.Username) == "" {
		return invalid("actor.username", "is required for self-service bookings")
	}
	return nil
}
