package repository

import (
	"errors"
	"strings"

	"github.com/consign-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerRepository 发件客户数据访问接口
type CustomerRepository interface {
	GetByPhone(phone string) (*models.Customer, error)
	UpsertByPhone(customer *models.Customer) (*models.Customer, error)
	WithTx(tx *gorm.DB) *GormCustomerRepository
}

// GormCustomerRepository GORM 实现
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository 创建客户仓库
func NewCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCustomerRepository) WithTx(tx *gorm.DB) *GormCustomerRepository {
	if tx == nil {
		return r
	}
	return &GormCustomerRepository{db: tx}
}

// GetByPhone 根据手机号获取客户
func (r *GormCustomerRepository) GetByPhone(phone string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.Where("phone = ?", strings.TrimSpace(phone)).First(&customer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &customer, nil
}

// UpsertByPhone 按手机号插入或刷新可变字段，返回最新记录
func (r *GormCustomerRepository) UpsertByPhone(customer *models.Customer) (*models.Customer, error) {
	if customer == nil {
		return nil, errors.New("customer is nil")
	}
	customer.Phone = strings.TrimSpace(customer.Phone)
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "address", "email", "company", "landline", "cnic", "updated_at"}),
	}).Create(customer).Error
	if err != nil {
		return nil, err
	}
	return r.GetByPhone(customer.Phone)
}
