package models

import "time"

// Customer 发件客户（按手机号唯一）
type Customer struct {
	ID        uint      `gorm:"primarykey" json:"id"`                              // 主键
	Phone     string    `gorm:"type:varchar(32);uniqueIndex;not null" json:"phone"` // 手机号
	Name      string    `gorm:"type:varchar(120)" json:"name"`                     // 姓名
	Address   string    `gorm:"type:varchar(500)" json:"address"`                  // 地址
	Email     string    `gorm:"type:varchar(190)" json:"email,omitempty"`          // 邮箱
	Company   string    `gorm:"type:varchar(120)" json:"company,omitempty"`        // 公司
	Landline  string    `gorm:"type:varchar(32)" json:"landline,omitempty"`        // 座机
	CNIC      string    `gorm:"type:varchar(32)" json:"cnic,omitempty"`            // 身份证号
	CreatedAt time.Time `json:"created_at"`                                        // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                                        // 更新时间
}

// TableName 指定表名
func (Customer) TableName() string {
	return "customers"
}
