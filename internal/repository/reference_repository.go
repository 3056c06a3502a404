package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrUnknownReferenceKind 未知的基础资料类型
var ErrUnknownReferenceKind = errors.New("unknown reference kind")

// ReferenceRepository 基础资料（城市/服务/产品）数据访问接口
type ReferenceRepository interface {
	GetByID(kind string, id uint) (*models.Reference, error)
	FindActiveByName(kind, name string) (*models.Reference, error)
	FindActiveByCode(kind, code string) (*models.Reference, error)
	FindByCode(kind, code string) (*models.Reference, error)
	CreateIfAbsent(kind string, ref models.Reference) (bool, error)
	List(kind string, filter ReferenceListFilter) ([]models.Reference, int64, error)
	WithTx(tx *gorm.DB) *GormReferenceRepository
}

// GormReferenceRepository GORM 实现
type GormReferenceRepository struct {
	db *gorm.DB
}

// NewReferenceRepository 创建基础资料仓库
func NewReferenceRepository(db *gorm.DB) *GormReferenceRepository {
	return &GormReferenceRepository{db: db}
}

// WithTx 绑定事务
func (r *GormReferenceRepository) WithTx(tx *gorm.DB) *GormReferenceRepository {
	if tx == nil {
		return r
	}
	return &GormReferenceRepository{db: tx}
}

func referenceTable(kind string) (string, error) {
	switch kind {
	case constants.ReferenceKindCity:
		return models.City{}.TableName(), nil
	case constants.ReferenceKindService:
		return models.Service{}.TableName(), nil
	case constants.ReferenceKindProduct:
		return models.Product{}.TableName(), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownReferenceKind, kind)
	}
}

func (r *GormReferenceRepository) query(kind string) (*gorm.DB, error) {
	table, err := referenceTable(kind)
	if err != nil {
		return nil, err
	}
	return r.db.Table(table), nil
}

func referenceColumns(kind string) []string {
	columns := []string{"id", "code", "name", "status"}
	if kind == constants.ReferenceKindService {
		columns = append(columns, "pricing_mode")
	}
	return columns
}

func (r *GormReferenceRepository) first(kind string, query *gorm.DB) (*models.Reference, error) {
	var row models.Reference
	result := query.Select(referenceColumns(kind)).Order("id asc").Limit(1).Find(&row)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

// GetByID 根据主键获取
func (r *GormReferenceRepository) GetByID(kind string, id uint) (*models.Reference, error) {
	if id == 0 {
		return nil, nil
	}
	query, err := r.query(kind)
	if err != nil {
		return nil, err
	}
	return r.first(kind, query.Where("id = ?", id))
}

// FindActiveByName 按名称（忽略大小写）查找启用记录
func (r *GormReferenceRepository) FindActiveByName(kind, name string) (*models.Reference, error) {
	query, err := r.query(kind)
	if err != nil {
		return nil, err
	}
	return r.first(kind, query.Where("LOWER(name) = LOWER(?) AND status = ?", strings.TrimSpace(name), constants.ReferenceStatusActive))
}

// FindActiveByCode 按编码（忽略大小写）查找启用记录
func (r *GormReferenceRepository) FindActiveByCode(kind, code string) (*models.Reference, error) {
	query, err := r.query(kind)
	if err != nil {
		return nil, err
	}
	return r.first(kind, query.Where("LOWER(code) = LOWER(?) AND status = ?", strings.TrimSpace(code), constants.ReferenceStatusActive))
}

// FindByCode 按编码（忽略大小写，不限状态）查找
func (r *GormReferenceRepository) FindByCode(kind, code string) (*models.Reference, error) {
	query, err := r.query(kind)
	if err != nil {
		return nil, err
	}
	return r.first(kind, query.Where("LOWER(code) = LOWER(?)", strings.TrimSpace(code)))
}

// CreateIfAbsent 编码不存在时插入，已存在则忽略（调用方需回读）；返回是否实际插入
func (r *GormReferenceRepository) CreateIfAbsent(kind string, ref models.Reference) (bool, error) {
	base := models.ReferenceBase{
		Code:   ref.Code,
		Name:   ref.Name,
		Status: ref.Status,
	}
	if base.Status == "" {
		base.Status = constants.ReferenceStatusActive
	}
	onConflict := clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}

	var row interface{}
	switch kind {
	case constants.ReferenceKindCity:
		row = &models.City{ReferenceBase: base}
	case constants.ReferenceKindService:
		mode := ref.PricingMode
		if mode == "" {
			mode = constants.PricingModeWeight
		}
		row = &models.Service{ReferenceBase: base, PricingMode: mode}
	case constants.ReferenceKindProduct:
		row = &models.Product{ReferenceBase: base}
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownReferenceKind, kind)
	}
	result := r.db.Clauses(onConflict).Create(row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// List 分页查询基础资料
func (r *GormReferenceRepository) List(kind string, filter ReferenceListFilter) ([]models.Reference, int64, error) {
	query, err := r.query(kind)
	if err != nil {
		return nil, 0, err
	}
	if filter.OnlyActive {
		query = query.Where("status = ?", constants.ReferenceStatusActive)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		op := likeOperatorByDialect(dbDialectName(r.db))
		like := "%" + search + "%"
		query = query.Where(fmt.Sprintf("(code %s ? OR name %s ?)", op, op), like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Reference
	if err := applyPagination(query.Select(referenceColumns(kind)).Order("name asc"), filter.Page, filter.PageSize).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
