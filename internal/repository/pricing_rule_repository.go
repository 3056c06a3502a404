package repository

import (
	"strings"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/models"

	"gorm.io/gorm"
)

// PricingRuleRepository 价格规则数据访问接口
type PricingRuleRepository interface {
	ListForRoute(originID, destinationID, serviceID uint) ([]models.PricingRule, error)
	ListForService(serviceID uint) ([]models.PricingRule, error)
	Create(rule *models.PricingRule) error
	List(filter PricingRuleListFilter) ([]models.PricingRule, int64, error)
	WithTx(tx *gorm.DB) *GormPricingRuleRepository
}

// GormPricingRuleRepository GORM 实现
type GormPricingRuleRepository struct {
	db *gorm.DB
}

// NewPricingRuleRepository 创建价格规则仓库
func NewPricingRuleRepository(db *gorm.DB) *GormPricingRuleRepository {
	return &GormPricingRuleRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPricingRuleRepository) WithTx(tx *gorm.DB) *GormPricingRuleRepository {
	if tx == nil {
		return r
	}
	return &GormPricingRuleRepository{db: tx}
}

// active 启用中的规则，包含尚未到生效时间的，生效时间由调用方判断
func (r *GormPricingRuleRepository) active() *gorm.DB {
	return r.db.Model(&models.PricingRule{}).
		Where("status = ?", constants.PricingRuleStatusActive)
}

// ListForRoute 获取线路（始发、目的、服务）上启用的规则
func (r *GormPricingRuleRepository) ListForRoute(originID, destinationID, serviceID uint) ([]models.PricingRule, error) {
	var rules []models.PricingRule
	err := r.active().
		Where("origin_city_id = ? AND destination_city_id = ? AND service_id = ?", originID, destinationID, serviceID).
		Order("weight_from asc, id asc").
		Find(&rules).Error
	return rules, err
}

// ListForService 获取服务下启用的全部规则（不区分线路）
func (r *GormPricingRuleRepository) ListForService(serviceID uint) ([]models.PricingRule, error) {
	var rules []models.PricingRule
	err := r.active().
		Where("service_id = ?", serviceID).
		Order("id asc").
		Find(&rules).Error
	return rules, err
}

// Create 创建价格规则
func (r *GormPricingRuleRepository) Create(rule *models.PricingRule) error {
	return r.db.Create(rule).Error
}

// List 分页查询价格规则
func (r *GormPricingRuleRepository) List(filter PricingRuleListFilter) ([]models.PricingRule, int64, error) {
	query := r.db.Model(&models.PricingRule{})
	if filter.ServiceID != 0 {
		query = query.Where("service_id = ?", filter.ServiceID)
	}
	if filter.OriginCityID != 0 {
		query = query.Where("origin_city_id = ?", filter.OriginCityID)
	}
	if filter.DestinationCityID != 0 {
		query = query.Where("destination_city_id = ?", filter.DestinationCityID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rules []models.PricingRule
	if err := applyPagination(query.Order("service_id asc, weight_from asc, id asc"), filter.Page, filter.PageSize).Find(&rules).Error; err != nil {
		return nil, 0, err
	}
	return rules, total, nil
}
