package models

import "time"

// Batch 日常作业批次
//
// ActiveScope 仅在 ACTIVE 时等于 ScopeKey，关闭后置空，
// 依靠其唯一索引保证同一作用域最多一个 ACTIVE 批次。
type Batch struct {
	ID            uint       `gorm:"primarykey" json:"id"`                                       // 主键
	BatchCode     string     `gorm:"type:varchar(96);uniqueIndex;not null" json:"batch_code"`    // 批次编号
	Status        string     `gorm:"type:varchar(16);index;not null" json:"status"`              // ACTIVE / CLOSED
	ScopeKey      string     `gorm:"type:varchar(128);index;not null" json:"scope_key"`          // 作用域
	ActiveScope   *string    `gorm:"type:varchar(128);uniqueIndex" json:"-"`                     // 活跃作用域（唯一）
	StationCode   string     `gorm:"type:varchar(32);index" json:"station_code,omitempty"`       // 站点编码（员工批次）
	OwnerUsername string     `gorm:"type:varchar(64);index" json:"owner_username,omitempty"`     // 用户名（自助批次）
	BatchDate     string     `gorm:"type:varchar(8);index" json:"batch_date"`                    // 业务日期 YYYYMMDD
	CreatedBy     uint       `gorm:"index" json:"created_by"`                                    // 创建人
	ClosedBy      *uint      `json:"closed_by,omitempty"`                                        // 关闭人
	ClosedAt      *time.Time `json:"closed_at,omitempty"`                                        // 关闭时间
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`                                    // 创建时间
	UpdatedAt     time.Time  `json:"updated_at"`                                                 // 更新时间
}

// TableName 指定表名
func (Batch) TableName() string {
	return "batches"
}
