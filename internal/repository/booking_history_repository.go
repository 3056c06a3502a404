package repository

import (
	"github.com/consign-next/internal/models"

	"gorm.io/gorm"
)

// BookingHistoryRepository 运单历史数据访问接口（只追加）
type BookingHistoryRepository interface {
	Append(entry *models.BookingHistory) error
	ListByBooking(bookingID uint) ([]models.BookingHistory, error)
	CountByAction(bookingID uint, action string) (int64, error)
	WithTx(tx *gorm.DB) *GormBookingHistoryRepository
}

// GormBookingHistoryRepository GORM 实现
type GormBookingHistoryRepository struct {
	db *gorm.DB
}

// NewBookingHistoryRepository 创建运单历史仓库
func NewBookingHistoryRepository(db *gorm.DB) *GormBookingHistoryRepository {
	return &GormBookingHistoryRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBookingHistoryRepository) WithTx(tx *gorm.DB) *GormBookingHistoryRepository {
	if tx == nil {
		return r
	}
	return &GormBookingHistoryRepository{db: tx}
}

// Append 追加历史记录
func (r *GormBookingHistoryRepository) Append(entry *models.BookingHistory) error {
	return r.db.Create(entry).Error
}

// ListByBooking 按写入顺序列出运单历史
func (r *GormBookingHistoryRepository) ListByBooking(bookingID uint) ([]models.BookingHistory, error) {
	var rows []models.BookingHistory
	err := r.db.Where("booking_id = ?", bookingID).Order("id asc").Find(&rows).Error
	return rows, err
}

// CountByAction 统计运单某类动作的历史条数
func (r *GormBookingHistoryRepository) CountByAction(bookingID uint, action string) (int64, error) {
	var count int64
	err := r.db.Model(&models.BookingHistory{}).
		Where("booking_id = ? AND action = ?", bookingID, action).
		Count(&count).Error
	return count, err
}
