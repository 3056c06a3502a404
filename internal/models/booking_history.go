package models

import "time"

// BookingHistory 运单历史（只追加）
type BookingHistory struct {
	ID                uint      `gorm:"primarykey" json:"id"`                                 // 主键
	BookingID         uint      `gorm:"index;not null" json:"booking_id"`                     // 运单ID
	Action            string    `gorm:"type:varchar(32);index;not null" json:"action"`        // 动作
	OldStatus         string    `gorm:"type:varchar(32)" json:"old_status"`                   // 变更前状态
	NewStatus         string    `gorm:"type:varchar(32)" json:"new_status"`                   // 变更后状态
	PerformedBy       uint      `gorm:"index;not null" json:"performed_by"`                   // 操作人
	Remarks           string    `gorm:"type:varchar(1000)" json:"remarks,omitempty"`          // 备注 / 作废原因
	Changes           string    `gorm:"type:text" json:"changes,omitempty"`                   // 字段变更（JSON）
	ChangesCompressed []byte    `json:"-"`                                                    // 压缩后的字段变更
	Compression       string    `gorm:"type:varchar(16)" json:"-"`                            // 压缩算法
	CreatedAt         time.Time `gorm:"index" json:"created_at"`                              // 创建时间
}

// TableName 指定表名
func (BookingHistory) TableName() string {
	return "booking_histories"
}
