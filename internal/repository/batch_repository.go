package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BatchRepository 批次数据访问接口
type BatchRepository interface {
	GetByID(id uint) (*models.Batch, error)
	GetActiveByScope(scope string) (*models.Batch, error)
	CreateIfAbsent(batch *models.Batch) error
	CountByOwnerAndDate(username, date string) (int64, error)
	Close(id uint, closedBy uint, closedAt time.Time) (int64, error)
	List(filter BatchListFilter) ([]models.Batch, int64, error)
	WithTx(tx *gorm.DB) *GormBatchRepository
}

// GormBatchRepository GORM 实现
type GormBatchRepository struct {
	db *gorm.DB
}

// NewBatchRepository 创建批次仓库
func NewBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBatchRepository) WithTx(tx *gorm.DB) *GormBatchRepository {
	if tx == nil {
		return r
	}
	return &GormBatchRepository{db: tx}
}

// GetByID 根据 ID 获取批次
func (r *GormBatchRepository) GetByID(id uint) (*models.Batch, error) {
	var batch models.Batch
	if err := r.db.First(&batch, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// GetActiveByScope 获取作用域下的 ACTIVE 批次
func (r *GormBatchRepository) GetActiveByScope(scope string) (*models.Batch, error) {
	var batch models.Batch
	if err := r.db.Where("active_scope = ?", scope).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &batch, nil
}

// CreateIfAbsent 作用域无 ACTIVE 批次时插入，冲突时忽略（调用方需回读）
func (r *GormBatchRepository) CreateIfAbsent(batch *models.Batch) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "active_scope"}},
		DoNothing: true,
	}).Create(batch).Error
}

// CountByOwnerAndDate 统计用户某日已创建的批次数量
func (r *GormBatchRepository) CountByOwnerAndDate(username, date string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Batch{}).
		Where("owner_username = ? AND batch_date = ?", username, date).
		Count(&count).Error
	return count, err
}

// Close 关闭 ACTIVE 批次，返回影响行数
func (r *GormBatchRepository) Close(id uint, closedBy uint, closedAt time.Time) (int64, error) {
	result := r.db.Model(&models.Batch{}).
		Where("id = ? AND status = ?", id, constants.BatchStatusActive).
		Updates(map[string]interface{}{
			"status":       constants.BatchStatusClosed,
			"active_scope": gorm.Expr("NULL"),
			"closed_by":    closedBy,
			"closed_at":    closedAt,
			"updated_at":   closedAt,
		})
	return result.RowsAffected, result.Error
}

// List 分页查询批次
func (r *GormBatchRepository) List(filter BatchListFilter) ([]models.Batch, int64, error) {
	query := r.db.Model(&models.Batch{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if station := strings.TrimSpace(filter.StationCode); station != "" {
		query = query.Where("station_code = ?", station)
	}
	if owner := strings.TrimSpace(filter.OwnerUsername); owner != "" {
		query = query.Where("owner_username = ?", owner)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var batches []models.Batch
	if err := applyPagination(query.Order("id desc"), filter.Page, filter.PageSize).Find(&batches).Error; err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}
