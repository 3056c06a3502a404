package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/consign-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingRepository 运单数据访问接口
type BookingRepository interface {
	Create(booking *models.Booking) error
	GetByID(id uint) (*models.Booking, error)
	GetByIDForUpdate(id uint) (*models.Booking, error)
	GetByCN(cn string) (*models.Booking, error)
	GetByCNForUpdate(cn string) (*models.Booking, error)
	GetDetailByCN(cn string) (*models.Booking, error)
	UpdateIfStatus(id uint, fromStatuses []string, updates map[string]interface{}) (int64, error)
	ListAdmin(filter BookingListFilter) ([]models.Booking, int64, error)
	ListByCreator(filter BookingListFilter) ([]models.Booking, int64, error)
	WithTx(tx *gorm.DB) *GormBookingRepository
}

// GormBookingRepository GORM 实现
type GormBookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository 创建运单仓库
func NewBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBookingRepository) WithTx(tx *gorm.DB) *GormBookingRepository {
	if tx == nil {
		return r
	}
	return &GormBookingRepository{db: tx}
}

func (r *GormBookingRepository) withReferences(query *gorm.DB) *gorm.DB {
	return query.Preload("OriginCity").
		Preload("DestinationCity").
		Preload("Service").
		Preload("Product").
		Preload("Batch")
}

func takeBooking(query *gorm.DB) (*models.Booking, error) {
	var booking models.Booking
	if err := query.Take(&booking).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

// Create 创建运单
func (r *GormBookingRepository) Create(booking *models.Booking) error {
	return r.db.Omit(clause.Associations).Create(booking).Error
}

// GetByID 根据 ID 获取运单（含基础资料）
func (r *GormBookingRepository) GetByID(id uint) (*models.Booking, error) {
	return takeBooking(r.withReferences(r.db).Where("id = ?", id))
}

// GetByIDForUpdate 加行锁读取运单
func (r *GormBookingRepository) GetByIDForUpdate(id uint) (*models.Booking, error) {
	return takeBooking(r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

// GetByCN 根据运单号获取运单
func (r *GormBookingRepository) GetByCN(cn string) (*models.Booking, error) {
	cn = strings.TrimSpace(cn)
	if cn == "" {
		return nil, nil
	}
	return takeBooking(r.db.Where("cn = ?", cn))
}

// GetByCNForUpdate 按运单号加行锁读取
func (r *GormBookingRepository) GetByCNForUpdate(cn string) (*models.Booking, error) {
	cn = strings.TrimSpace(cn)
	if cn == "" {
		return nil, nil
	}
	return takeBooking(r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("cn = ?", cn))
}

// GetDetailByCN 运单跟踪详情：基础资料、批次与完整历史
func (r *GormBookingRepository) GetDetailByCN(cn string) (*models.Booking, error) {
	cn = strings.TrimSpace(cn)
	if cn == "" {
		return nil, nil
	}
	query := r.withReferences(r.db).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("id asc")
		}).
		Where("cn = ?", cn)
	return takeBooking(query)
}

// UpdateIfStatus 仅在当前状态属于 fromStatuses 时更新，返回影响行数
func (r *GormBookingRepository) UpdateIfStatus(id uint, fromStatuses []string, updates map[string]interface{}) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	query := r.db.Model(&models.Booking{}).Where("id = ?", id)
	if len(fromStatuses) > 0 {
		query = query.Where("status IN ?", fromStatuses)
	}
	result := query.Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *GormBookingRepository) applyFilter(query *gorm.DB, filter BookingListFilter) *gorm.DB {
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if mode := strings.TrimSpace(filter.PaymentMode); mode != "" {
		query = query.Where("payment_mode = ?", mode)
	}
	if filter.BatchID != 0 {
		query = query.Where("batch_id = ?", filter.BatchID)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		op := likeOperatorByDialect(dbDialectName(r.db))
		like := "%" + search + "%"
		query = query.Where(
			fmt.Sprintf("(cn %s ? OR consignee_phone %s ? OR consignee_name %s ?)", op, op, op),
			like, like, like,
		)
	}
	return query
}

func (r *GormBookingRepository) list(query *gorm.DB, filter BookingListFilter) ([]models.Booking, int64, error) {
	query = r.applyFilter(query, filter)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var bookings []models.Booking
	query = r.withReferences(query.Order("id desc"))
	if err := applyPagination(query, filter.Page, filter.PageSize).Find(&bookings).Error; err != nil {
		return nil, 0, err
	}
	return bookings, total, nil
}

// ListAdmin 员工端运单列表
func (r *GormBookingRepository) ListAdmin(filter BookingListFilter) ([]models.Booking, int64, error) {
	query := r.db.Model(&models.Booking{})
	if filter.CreatedBy != 0 {
		query = query.Where("created_by = ?", filter.CreatedBy)
	}
	return r.list(query, filter)
}

// ListByCreator 用户端运单列表（仅本人创建）
func (r *GormBookingRepository) ListByCreator(filter BookingListFilter) ([]models.Booking, int64, error) {
	if filter.CreatedBy == 0 {
		return []models.Booking{}, 0, nil
	}
	query := r.db.Model(&models.Booking{}).Where("created_by = ?", filter.CreatedBy)
	return r.list(query, filter)
}
