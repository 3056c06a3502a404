package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/consign-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CnRepository 运单号序列与预留数据访问接口
type CnRepository interface {
	NextSequence(key string) (int64, error)
	LockScope(key string) error
	BookingCNExists(cn string) (bool, error)
	CountBookingsWithPrefix(prefix string) (int64, error)
	CountReservationsWithPrefix(prefix string) (int64, error)
	GetReservation(cn string) (*models.CnReservation, error)
	CreateReservation(reservation *models.CnReservation) error
	DeleteReservation(cn string) error
	DeleteExpiredReservation(cn string, now time.Time) (int64, error)
	DeleteExpiredReservations(now time.Time) (int64, error)
	WithTx(tx *gorm.DB) *GormCnRepository
}

// GormCnRepository GORM 实现
type GormCnRepository struct {
	db *gorm.DB
}

// NewCnRepository 创建运单号仓库
func NewCnRepository(db *gorm.DB) *GormCnRepository {
	return &GormCnRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCnRepository) WithTx(tx *gorm.DB) *GormCnRepository {
	if tx == nil {
		return r
	}
	return &GormCnRepository{db: tx}
}

// NextSequence 递增并返回计数器的新值。
// upsert 持有该行锁直至事务结束，并发调用方因此串行。
func (r *GormCnRepository) NextSequence(key string) (int64, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, errors.New("sequence key is empty")
	}
	seq := models.CnSequence{SeqKey: key, CurrentVal: 1, UpdatedAt: time.Now()}
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "seq_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"current_val": gorm.Expr("cn_sequences.current_val + 1"),
			"updated_at":  seq.UpdatedAt,
		}),
	}).Create(&seq).Error
	if err != nil {
		return 0, err
	}

	var current models.CnSequence
	if err := r.db.Where("seq_key = ?", key).First(&current).Error; err != nil {
		return 0, err
	}
	return current.CurrentVal, nil
}

// LockScope 对编号作用域加事务级锁（仅 postgres 生效）
func (r *GormCnRepository) LockScope(key string) error {
	return acquireXactLock(r.db, key)
}

// BookingCNExists 判断运单号是否已被运单占用
func (r *GormCnRepository) BookingCNExists(cn string) (bool, error) {
	var count int64
	if err := r.db.Unscoped().Model(&models.Booking{}).Where("cn = ?", cn).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountBookingsWithPrefix 统计已提交的指定前缀运单号数量
func (r *GormCnRepository) CountBookingsWithPrefix(prefix string) (int64, error) {
	var count int64
	err := r.db.Unscoped().Model(&models.Booking{}).
		Where(`cn LIKE ? ESCAPE '\'`, prefixLikePattern(prefix)).
		Count(&count).Error
	return count, err
}

// CountReservationsWithPrefix 统计指定前缀的预留数量
func (r *GormCnRepository) CountReservationsWithPrefix(prefix string) (int64, error) {
	var count int64
	err := r.db.Model(&models.CnReservation{}).
		Where(`cn_number LIKE ? ESCAPE '\'`, prefixLikePattern(prefix)).
		Count(&count).Error
	return count, err
}

// GetReservation 获取预留记录
func (r *GormCnRepository) GetReservation(cn string) (*models.CnReservation, error) {
	var reservation models.CnReservation
	result := r.db.Where("cn_number = ?", cn).Limit(1).Find(&reservation)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &reservation, nil
}

// CreateReservation 写入预留，唯一索引冲突由调用方识别
func (r *GormCnRepository) CreateReservation(reservation *models.CnReservation) error {
	return r.db.Create(reservation).Error
}

// DeleteReservation 删除预留（运单提交后消费）
func (r *GormCnRepository) DeleteReservation(cn string) error {
	return r.db.Where("cn_number = ?", cn).Delete(&models.CnReservation{}).Error
}

// DeleteExpiredReservation 删除单条已过期预留
func (r *GormCnRepository) DeleteExpiredReservation(cn string, now time.Time) (int64, error) {
	result := r.db.Where("cn_number = ? AND expires_at <= ?", cn, now).Delete(&models.CnReservation{})
	return result.RowsAffected, result.Error
}

// DeleteExpiredReservations 批量清理过期预留
func (r *GormCnRepository) DeleteExpiredReservations(now time.Time) (int64, error) {
	result := r.db.Where("expires_at <= ?", now).Delete(&models.CnReservation{})
	return result.RowsAffected, result.Error
}
