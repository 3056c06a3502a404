package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingRule 重量阶梯价格规则
type PricingRule struct {
	ID                uint       `gorm:"primarykey" json:"id"`                                                          // 主键
	OriginCityID      *uint      `gorm:"index:idx_pricing_rules_route" json:"origin_city_id,omitempty"`                 // 始发城市（按件计费服务可为空）
	DestinationCityID *uint      `gorm:"index:idx_pricing_rules_route" json:"destination_city_id,omitempty"`            // 目的城市
	ServiceID         uint       `gorm:"index:idx_pricing_rules_route;not null" json:"service_id"`                      // 服务
	Category          string     `gorm:"type:varchar(64);index" json:"category,omitempty"`                              // 分类（按件计费服务使用）
	WeightFrom        Weight     `gorm:"type:decimal(12,3);not null;default:0" json:"weight_from"`                      // 阶梯下限（含）
	WeightTo          Weight     `gorm:"type:decimal(12,3);not null;default:0" json:"weight_to"`                        // 阶梯上限（不含）
	BaseRate          Money      `gorm:"type:decimal(20,2);not null;default:0" json:"base_rate"`                        // 基础运费
	AdditionalCharges Money      `gorm:"type:decimal(20,2);not null;default:0" json:"additional_charges"`               // 附加费
	EffectiveFrom     *time.Time `gorm:"index" json:"effective_from,omitempty"`                                         // 生效时间
	Status            string     `gorm:"type:varchar(16);index;not null;default:active" json:"status"`                  // active / inactive
	CreatedBy         uint       `json:"created_by"`                                                                    // 创建人
	CreatedAt         time.Time  `json:"created_at"`                                                                    // 创建时间
	UpdatedAt         time.Time  `json:"updated_at"`                                                                    // 更新时间
}

// TableName 指定表名
func (PricingRule) TableName() string {
	return "pricing_rules"
}

// Contains 判断重量是否落在 [WeightFrom, WeightTo) 区间
func (r PricingRule) Contains(w decimal.Decimal) bool {
	return w.GreaterThanOrEqual(r.WeightFrom.Decimal) && w.LessThan(r.WeightTo.Decimal)
}

// UnitRate 单件运费 = 基础运费 + 附加费
func (r PricingRule) UnitRate() Money {
	return NewMoneyFromDecimal(r.BaseRate.Add(r.AdditionalCharges.Decimal))
}

// EffectiveAt 判断规则在 at 时刻是否已生效
func (r PricingRule) EffectiveAt(at time.Time) bool {
	return r.EffectiveFrom == nil || !r.EffectiveFrom.After(at)
}
