package service

import (
	"context"
	"strings"
	"time"

	"github.com/consign-next/internal/cache"
	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/models"
	"github.com/consign-next/internal/repository"

	"github.com/shopspring/decimal"
)

// CatalogService 价格规则与基础资料维护
type CatalogService struct {
	pricingRepo   repository.PricingRuleRepository
	referenceRepo repository.ReferenceRepository
}

// NewCatalogService 创建资料维护服务
func NewCatalogService(pricingRepo repository.PricingRuleRepository, referenceRepo repository.ReferenceRepository) *CatalogService {
	return &CatalogService{pricingRepo: pricingRepo, referenceRepo: referenceRepo}
}

// CreatePricingRuleInput 新建价格规则入参
type CreatePricingRuleInput struct {
	OriginCityID      *uint           `json:"origin_city_id"`
	DestinationCityID *uint           `json:"destination_city_id"`
	ServiceID         uint            `json:"service_id"`
	Category          string          `json:"category"`
	WeightFrom        decimal.Decimal `json:"weight_from"`
	WeightTo          decimal.Decimal `json:"weight_to"`
	BaseRate          decimal.Decimal `json:"base_rate"`
	AdditionalCharges decimal.Decimal `json:"additional_charges"`
	EffectiveFrom     *time.Time      `json:"effective_from"`
}

// CreatePricingRule 新建价格规则并清理对应缓存
func (s *CatalogService) CreatePricingRule(ctx context.Context, actor Actor, in CreatePricingRuleInput) (*models.PricingRule, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	if in.ServiceID == 0 {
		return nil, invalid("service_id", "is required")
	}
	if in.WeightFrom.IsNegative() {
		return nil, invalid("weight_from", "must not be negative")
	}
	if !in.WeightTo.GreaterThan(in.WeightFrom) {
		return nil, invalid("weight_to", "must be greater than weight_from")
	}
	if in.BaseRate.IsNegative() || in.AdditionalCharges.IsNegative() {
		return nil, invalid("base_rate", "rates must not be negative")
	}
	refs := s.referenceRepo.WithTx(models.DB.WithContext(ctx))
	service, err := refs.GetByID(constants.ReferenceKindService, in.ServiceID)
	if err != nil {
		return nil, err
	}
	if service == nil {
		return nil, invalid("service_id", "does not exist")
	}
	if service.PricingMode != constants.PricingModeFlat && (in.OriginCityID == nil || in.DestinationCityID == nil) {
		return nil, invalid("route", "origin_city_id and destination_city_id are required for weight priced services")
	}
	for _, cityID := range []*uint{in.OriginCityID, in.DestinationCityID} {
		if cityID == nil {
			continue
		}
		city, err := refs.GetByID(constants.ReferenceKindCity, *cityID)
		if err != nil {
			return nil, err
		}
		if city == nil {
			return nil, invalid("city_id", "does not exist")
		}
	}

	var effectiveFrom *time.Time
	if in.EffectiveFrom != nil {
		at := in.EffectiveFrom.UTC()
		effectiveFrom = &at
	}
	rule := &models.PricingRule{
		OriginCityID:      in.OriginCityID,
		DestinationCityID: in.DestinationCityID,
		ServiceID:         in.ServiceID,
		Category:          strings.TrimSpace(in.Category),
		WeightFrom:        models.NewWeight(in.WeightFrom),
		WeightTo:          models.NewWeight(in.WeightTo),
		BaseRate:          models.NewMoneyFromDecimal(in.BaseRate),
		AdditionalCharges: models.NewMoneyFromDecimal(in.AdditionalCharges),
		EffectiveFrom:     effectiveFrom,
		Status:            constants.PricingRuleStatusActive,
		CreatedBy:         actor.ID,
	}
	if err := s.pricingRepo.WithTx(models.DB.WithContext(ctx)).Create(rule); err != nil {
		return nil, err
	}
	if err := cache.InvalidatePricingRules(ctx, rule); err != nil {
		logger.Warnw("pricing_rules_cache_invalidate_failed", "rule_id", rule.ID, "error", err)
	}
	logger.Infow("pricing_rule_created", "rule_id", rule.ID, "service_id", rule.ServiceID, "actor_id", actor.ID)
	return rule, nil
}

// ListPricingRules 价格规则列表
func (s *CatalogService) ListPricingRules(ctx context.Context, filter repository.PricingRuleListFilter) ([]models.PricingRule, int64, error) {
	return s.pricingRepo.WithTx(models.DB.WithContext(ctx)).List(filter)
}

// ListReferences 基础资料列表
func (s *CatalogService) ListReferences(ctx context.Context, kind string, filter repository.ReferenceListFilter) ([]models.Reference, int64, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case constants.ReferenceKindCity, constants.ReferenceKindService, constants.ReferenceKindProduct:
	default:
		return nil, 0, invalid("kind", "must be city, service or product")
	}
	return s.referenceRepo.WithTx(models.DB.WithContext(ctx)).List(kind, filter)
}

// ResolveReference 按松散标识解析（必要时创建）基础资料
func (s *CatalogService) ResolveReference(ctx context.Context, kind, identifier string) (Resolution, error) {
	return ResolveReference(s.referenceRepo.WithTx(models.DB.WithContext(ctx)), kind, identifier)
}
