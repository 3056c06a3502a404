package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/consign-next/internal/cache"
	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/models"

	"github.com/shopspring/decimal"
)

// 固定重量箱型服务，如 "Blue Box 5kg"
var fixedWeightServicePattern = regexp.MustCompile(`(?i)^\s*(.*\S)\s+(\d+(?:\.\d+)?)\s*kg\s*$`)

// PricingRuleSource 价格规则读取能力
type PricingRuleSource interface {
	ListForRoute(originID, destinationID, serviceID uint) ([]models.PricingRule, error)
	ListForService(serviceID uint) ([]models.PricingRule, error)
}

// QuoteInput 询价入参
type QuoteInput struct {
	OriginCityID      uint
	DestinationCityID uint
	Service           models.Reference
	ProductName       string
	ChargeableWeight  decimal.Decimal
}

// Quote 询价结果；Matched 为 false 时 Rate 为 0，表示待人工定价
type Quote struct {
	Rate             models.Money    `json:"rate"`
	PricingWeight    decimal.Decimal `json:"pricing_weight"`
	PricingServiceID uint            `json:"pricing_service_id"`
	RuleID           *uint           `json:"rule_id,omitempty"`
	Matched          bool            `json:"matched"`
	Fallback         bool            `json:"fallback"`
}

// RateResolver 按重量阶梯查找价格，只读
type RateResolver struct {
	cacheTTL time.Duration
	now      func() time.Time
}

// NewRateResolver 创建价格解析器
func NewRateResolver(cacheTTL time.Duration) *RateResolver {
	return &RateResolver{cacheTTL: cacheTTL, now: time.Now}
}

// Quote 计算单件运费
func (r *RateResolver) Quote(ctx context.Context, refs ReferenceStore, rules PricingRuleSource, in QuoteInput) (Quote, error) {
	service := in.Service
	weight := in.ChargeableWeight

	// 箱型服务按家族名称定价，重量取名称中的公斤数
	if family, boxWeight, ok := parseFixedWeightService(service.Name); ok {
		weight = boxWeight
		familyRef, err := refs.FindActiveByName(constants.ReferenceKindService, family)
		if err != nil {
			return Quote{}, err
		}
		if familyRef != nil {
			service = *familyRef
		}
	}

	quote := Quote{
		Rate:             models.NewMoneyFromDecimal(decimal.Zero),
		PricingWeight:    weight,
		PricingServiceID: service.ID,
	}
	at := r.now().UTC()

	var (
		rule     *models.PricingRule
		fallback bool
	)
	if service.PricingMode == constants.PricingModeFlat {
		candidates, err := r.loadRules(ctx, cache.PricingServiceKey(service.ID), func() ([]models.PricingRule, error) {
			return rules.ListForService(service.ID)
		})
		if err != nil {
			return Quote{}, err
		}
		rule = selectFlatRule(effectiveRules(candidates, at), in.ProductName)
	} else {
		candidates, err := r.loadRules(ctx, cache.PricingRouteKey(in.OriginCityID, in.DestinationCityID, service.ID), func() ([]models.PricingRule, error) {
			return rules.ListForRoute(in.OriginCityID, in.DestinationCityID, service.ID)
		})
		if err != nil {
			return Quote{}, err
		}
		rule, fallback = selectWeightRule(effectiveRules(candidates, at), weight)
	}

	if rule == nil {
		logger.Infow("pricing_rule_not_found",
			"service_id", service.ID,
			"origin_city_id", in.OriginCityID,
			"destination_city_id", in.DestinationCityID,
			"weight", weight.String(),
		)
		return quote, nil
	}
	ruleID := rule.ID
	quote.Rate = rule.UnitRate()
	quote.RuleID = &ruleID
	quote.Matched = true
	quote.Fallback = fallback
	return quote, nil
}

func (r *RateResolver) loadRules(ctx context.Context, key string, load func() ([]models.PricingRule, error)) ([]models.PricingRule, error) {
	if cached, hit, err := cache.GetPricingRules(ctx, key); err != nil {
		logger.Warnw("pricing_rules_cache_get_failed", "key", key, "error", err)
	} else if hit {
		return cached, nil
	}
	rules, err := load()
	if err != nil {
		return nil, err
	}
	if err := cache.SetPricingRules(ctx, key, rules, r.cacheTTL); err != nil {
		logger.Warnw("pricing_rules_cache_set_failed", "key", key, "error", err)
	}
	return rules, nil
}

// parseFixedWeightService 拆分 "<Family> <N>kg"
func parseFixedWeightService(name string) (string, decimal.Decimal, bool) {
	match := fixedWeightServicePattern.FindStringSubmatch(name)
	if match == nil {
		return "", decimal.Zero, false
	}
	w, err := decimal.NewFromString(match[2])
	if err != nil || !w.IsPositive() {
		return "", decimal.Zero, false
	}
	return strings.TrimSpace(match[1]), w, true
}

// selectWeightRule 选出区间 [from, to) 包含重量的规则；重叠时取下限最高、生效最晚、ID 最大者。
// 无包含规则时回退到上限最高的规则，超重件永远不报错。
// effectiveRules 过滤出 at 时刻已生效的规则；缓存中保留未生效规则，到点即可命中
func effectiveRules(rules []models.PricingRule, at time.Time) []models.PricingRule {
	out := make([]models.PricingRule, 0, len(rules))
	for _, rule := range rules {
		if rule.EffectiveAt(at) {
			out = append(out, rule)
		}
	}
	return out
}

func selectWeightRule(rules []models.PricingRule, weight decimal.Decimal) (*models.PricingRule, bool) {
	var best *models.PricingRule
	for i := range rules {
		rule := &rules[i]
		if !rule.Contains(weight) {
			continue
		}
		if best == nil || preferContaining(rule, best) {
			best = rule
		}
	}
	if best != nil {
		return best, false
	}

	for i := range rules {
		rule := &rules[i]
		if best == nil || preferFallback(rule, best) {
			best = rule
		}
	}
	return best, best != nil
}

func preferContaining(a, b *models.PricingRule) bool {
	if cmp := a.WeightFrom.Cmp(b.WeightFrom.Decimal); cmp != 0 {
		return cmp > 0
	}
	return newerRule(a, b)
}

func preferFallback(a, b *models.PricingRule) bool {
	if cmp := a.WeightTo.Cmp(b.WeightTo.Decimal); cmp != 0 {
		return cmp > 0
	}
	return newerRule(a, b)
}

func newerRule(a, b *models.PricingRule) bool {
	switch {
	case a.EffectiveFrom != nil && b.EffectiveFrom == nil:
		return true
	case a.EffectiveFrom == nil && b.EffectiveFrom != nil:
		return false
	case a.EffectiveFrom != nil && b.EffectiveFrom != nil && !a.EffectiveFrom.Equal(*b.EffectiveFrom):
		return a.EffectiveFrom.After(*b.EffectiveFrom)
	}
	return a.ID > b.ID
}

// selectFlatRule 按件计费服务：优先匹配产品分类，其次通用规则，取生效最晚者
func selectFlatRule(rules []models.PricingRule, category string) *models.PricingRule {
	category = strings.TrimSpace(category)
	var exact, generic *models.PricingRule
	for i := range rules {
		rule := &rules[i]
		ruleCategory := strings.TrimSpace(rule.Category)
		switch {
		case ruleCategory != "" && strings.EqualFold(ruleCategory, category):
			if exact == nil || newerRule(rule, exact) {
				exact = rule
			}
		case ruleCategory == "":
			if generic == nil || newerRule(rule, generic) {
				generic = rule
			}
		}
	}
	if exact != nil {
		return exact
	}
	return generic
}
