package models

import (
	"time"

	"gorm.io/gorm"
)

// ContactBlock 发件人/收件人联系信息
type ContactBlock struct {
	Name     string `gorm:"type:varchar(120)" json:"name"`
	Phone    string `gorm:"type:varchar(32);index" json:"phone"`
	Address  string `gorm:"type:varchar(500)" json:"address"`
	Company  string `gorm:"type:varchar(120)" json:"company,omitempty"`
	Landline string `gorm:"type:varchar(32)" json:"landline,omitempty"`
	Email    string `gorm:"type:varchar(190)" json:"email,omitempty"`
	CNIC     string `gorm:"type:varchar(32)" json:"cnic,omitempty"`
}

// Booking 运单表
type Booking struct {
	ID                uint               `gorm:"primarykey" json:"id"`                                                 // 主键
	CN                *string            `gorm:"column:cn;type:varchar(32);uniqueIndex" json:"cn"`                     // 运单号（待审核时可为空）
	Status            string             `gorm:"type:varchar(32);index;not null" json:"status"`                        // 运单状态
	OriginCityID      uint               `gorm:"index;not null" json:"origin_city_id"`                                 // 始发城市
	DestinationCityID uint               `gorm:"index;not null" json:"destination_city_id"`                            // 目的城市
	ServiceID         uint               `gorm:"index;not null" json:"service_id"`                                     // 服务
	ProductID         uint               `gorm:"index;not null" json:"product_id"`                                     // 产品
	CustomerID        uint               `gorm:"index" json:"customer_id"`                                             // 发件客户
	Shipper           ContactBlock       `gorm:"embedded;embeddedPrefix:shipper_" json:"shipper"`                      // 发件人
	Consignee         ContactBlock       `gorm:"embedded;embeddedPrefix:consignee_" json:"consignee"`                  // 收件人
	Weight            Weight             `gorm:"type:decimal(12,3);not null;default:0" json:"weight"`                  // 实际重量
	VolumetricWeight  Weight             `gorm:"type:decimal(12,3);not null;default:0" json:"volumetric_weight"`       // 体积重
	ChargeableWeight  Weight             `gorm:"type:decimal(12,3);not null;default:0" json:"chargeable_weight"`       // 计费重量
	Pieces            int                `gorm:"not null;default:1" json:"pieces"`                                     // 件数
	PaymentMode       string             `gorm:"type:varchar(32);index;not null" json:"payment_mode"`                  // 付款方式
	Rate              Money              `gorm:"type:decimal(20,2);not null;default:0" json:"rate"`                    // 单件运费
	OtherAmount       Money              `gorm:"type:decimal(20,2);not null;default:0" json:"other_amount"`            // 其他费用
	DocumentCharges   Money              `gorm:"type:decimal(20,2);not null;default:0" json:"document_charges"`        // 文件费用合计
	SubserviceCharges Money              `gorm:"type:decimal(20,2);not null;default:0" json:"subservice_charges"`      // 附加服务费用合计
	TotalAmount       Money              `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`            // 总金额
	CODAmount         *Money             `gorm:"column:cod_amount;type:decimal(20,2)" json:"cod_amount,omitempty"`     // 代收货款
	PricingPending    bool               `gorm:"not null;default:false" json:"pricing_pending"`                        // 未匹配价格规则，待人工定价
	PricingRuleID     *uint              `gorm:"index" json:"pricing_rule_id,omitempty"`                               // 命中的价格规则
	Documents         BookingDocuments   `gorm:"type:text" json:"documents"`                                           // 附带文件
	Subservices       BookingSubservices `gorm:"type:text" json:"subservices"`                                         // 附加服务
	BatchID           *uint              `gorm:"index" json:"batch_id,omitempty"`                                      // 所属批次
	Remarks           string             `gorm:"type:varchar(1000)" json:"remarks,omitempty"`                          // 备注
	CreatedBy         uint               `gorm:"index;not null" json:"created_by"`                                     // 创建人
	ApprovedBy        *uint              `gorm:"index" json:"approved_by,omitempty"`                                   // 审核人
	ApprovedAt        *time.Time         `gorm:"index" json:"approved_at,omitempty"`                                   // 审核时间
	CanceledAt        *time.Time         `gorm:"index" json:"canceled_at,omitempty"`                                   // 取消时间
	VoidedAt          *time.Time         `gorm:"index" json:"voided_at,omitempty"`                                     // 作废时间
	DeliveredAt       *time.Time         `gorm:"index" json:"delivered_at,omitempty"`                                  // 签收时间
	CreatedAt         time.Time          `gorm:"index" json:"created_at"`                                              // 创建时间
	UpdatedAt         time.Time          `gorm:"index" json:"updated_at"`                                              // 更新时间
	DeletedAt         gorm.DeletedAt     `gorm:"index" json:"-"`                                                       // 软删除时间

	OriginCity      *City            `gorm:"foreignKey:OriginCityID" json:"origin_city,omitempty"`
	DestinationCity *City            `gorm:"foreignKey:DestinationCityID" json:"destination_city,omitempty"`
	Service         *Service         `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
	Product         *Product         `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Batch           *Batch           `gorm:"foreignKey:BatchID" json:"batch,omitempty"`
	History         []BookingHistory `gorm:"foreignKey:BookingID" json:"history,omitempty"`
}

// TableName 指定表名
func (Booking) TableName() string {
	return "bookings"
}

// CNValue 返回运单号，未分配时为空串
func (b *Booking) CNValue() string {
	if b == nil || b.CN == nil {
		return ""
	}
	return *b.CN
}
