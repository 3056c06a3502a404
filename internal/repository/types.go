package repository

import "time"

// BookingListFilter 查询运单列表的过滤条件
type BookingListFilter struct {
	Page        int
	PageSize    int
	Status      string
	PaymentMode string
	BatchID     uint
	CreatedBy   uint
	Search      string // 运单号 / 收件人手机号 / 收件人姓名
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// ReferenceListFilter 查询基础资料列表的过滤条件
type ReferenceListFilter struct {
	Page       int
	PageSize   int
	Search     string
	OnlyActive bool
}

// PricingRuleListFilter 查询价格规则列表的过滤条件
type PricingRuleListFilter struct {
	Page              int
	PageSize          int
	ServiceID         uint
	OriginCityID      uint
	DestinationCityID uint
	Status            string
}

// BatchListFilter 查询批次列表的过滤条件
type BatchListFilter struct {
	Page          int
	PageSize      int
	Status        string
	StationCode   string
	OwnerUsername string
}
