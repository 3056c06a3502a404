package models

import "time"

// CnReservation 运单号预留
type CnReservation struct {
	ID         uint      `gorm:"primarykey" json:"id"`                                    // 主键
	CnNumber   string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"cn_number"`  // 预留的运单号
	Scheme     string    `gorm:"type:varchar(16);not null" json:"scheme"`                 // 编号方案
	ReservedBy uint      `gorm:"index;not null" json:"reserved_by"`                       // 预留人
	ReservedAt time.Time `gorm:"not null" json:"reserved_at"`                             // 预留时间
	ExpiresAt  time.Time `gorm:"index;not null" json:"expires_at"`                        // 过期时间
}

// TableName 指定表名
func (CnReservation) TableName() string {
	return "cn_reservations"
}

// CnSequence 持久化递增计数器
type CnSequence struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	SeqKey     string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"seq_key"`
	CurrentVal int64     `gorm:"not null;default:0" json:"current_val"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (CnSequence) TableName() string {
	return "cn_sequences"
}
