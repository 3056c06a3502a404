package models

import "time"

// ReferenceBase 基础资料公共字段（城市、服务、产品）
type ReferenceBase struct {
	ID        uint      `gorm:"primarykey" json:"id"`                             // 主键
	Code      string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"code"` // 唯一编码
	Name      string    `gorm:"type:varchar(190);index;not null" json:"name"`     // 名称
	Status    string    `gorm:"type:varchar(16);index;not null" json:"status"`    // active / inactive
	CreatedAt time.Time `json:"created_at"`                                       // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                                       // 更新时间
}

// City 城市表
type City struct {
	ReferenceBase
}

// TableName 指定表名
func (City) TableName() string {
	return "cities"
}

// Service 服务表（如 Over Night、Blue Box）
type Service struct {
	ReferenceBase
	PricingMode string `gorm:"type:varchar(16);not null;default:weight" json:"pricing_mode"` // weight / flat
	Category    string `gorm:"type:varchar(64)" json:"category,omitempty"`                   // 服务分类
}

// TableName 指定表名
func (Service) TableName() string {
	return "services"
}

// Product 产品表（如 General、Documents）
type Product struct {
	ReferenceBase
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// Reference 解析结果中使用的统一视图
type Reference struct {
	ID          uint   `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	PricingMode string `json:"pricing_mode,omitempty"`
}
