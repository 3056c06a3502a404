package constants

// 运单状态常量
const (
	BookingStatusPending         = "PENDING"
	BookingStatusBooked          = "BOOKED"
	BookingStatusPickupRequested = "PICKUP_REQUESTED"
	BookingStatusOutForDelivery  = "OUT_FOR_DELIVERY"
	BookingStatusDelivered       = "DELIVERED"
	BookingStatusReturned        = "RETURNED"
	BookingStatusCancelled       = "CANCELLED"
	BookingStatusVoided          = "VOIDED"
)

// 运单历史动作常量
const (
	HistoryActionCreated       = "CREATED"
	HistoryActionApproved      = "APPROVED"
	HistoryActionUpdated       = "UPDATED"
	HistoryActionCancelled     = "CANCELLED"
	HistoryActionVoided        = "VOIDED"
	HistoryActionStatusChanged = "STATUS_CHANGED"
)

// 付款方式常量
const (
	PaymentModeCash    = "CASH"
	PaymentModeCredit  = "CREDIT"
	PaymentModeCOD     = "COD"
	PaymentModeToPay   = "TO_PAY"
	PaymentModeAccount = "ACCOUNT"
)

// 运单号编号方案
const (
	CNSchemeGeneral   = "general"
	CNSchemeDateCoded = "date_coded"
)

// 批次状态常量
const (
	BatchStatusActive = "ACTIVE"
	BatchStatusClosed = "CLOSED"
)

// 基础资料状态与类型
const (
	ReferenceStatusActive   = "active"
	ReferenceStatusInactive = "inactive"

	ReferenceKindCity    = "city"
	ReferenceKindService = "service"
	ReferenceKindProduct = "product"
)

// 服务计价方式
const (
	PricingModeWeight = "weight"
	PricingModeFlat   = "flat"
)

// 价格规则状态
const (
	PricingRuleStatusActive   = "active"
	PricingRuleStatusInactive = "inactive"
)

// 角色常量
const (
	RoleCustomer   = "customer"
	RoleOperator   = "operator"
	RoleSupervisor = "supervisor"
	RoleAuditor    = "auditor"
	RoleAdmin      = "admin"
)

// 历史变更压缩算法
const (
	CompressionNone = ""
	CompressionZstd = "zstd"
)

// 上下文键
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUsername  = "username"
	ContextKeyRole      = "role"
	ContextKeyStation   = "station"
	ContextKeyRequestID = "request_id"
)
