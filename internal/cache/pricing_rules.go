package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/consign-next/internal/models"
)

const defaultPricingRulesTTL = time.Minute

// PricingRouteKey 线路规则缓存键
func PricingRouteKey(originID, destinationID, serviceID uint) string {
	return fmt.Sprintf("pricing:rules:%d:%d:%d", originID, destinationID, serviceID)
}

// PricingServiceKey 按件计费服务规则缓存键
func PricingServiceKey(serviceID uint) string {
	return fmt.Sprintf("pricing:rules:service:%d", serviceID)
}

// GetPricingRules 读取缓存的规则列表
func GetPricingRules(ctx context.Context, key string) ([]models.PricingRule, bool, error) {
	var rules []models.PricingRule
	hit, err := GetJSON(ctx, key, &rules)
	if err != nil || !hit {
		return nil, false, err
	}
	return rules, true, nil
}

// SetPricingRules 写入规则列表缓存
func SetPricingRules(ctx context.Context, key string, rules []models.PricingRule, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = defaultPricingRulesTTL
	}
	if rules == nil {
		rules = []models.PricingRule{}
	}
	return SetJSON(ctx, key, rules, ttl)
}

// InvalidatePricingRules 规则变更后清理相关缓存
func InvalidatePricingRules(ctx context.Context, rule *models.PricingRule) error {
	if rule == nil {
		return nil
	}
	keys := []string{PricingServiceKey(rule.ServiceID)}
	if rule.OriginCityID != nil && rule.DestinationCityID != nil {
		keys = append(keys, PricingRouteKey(*rule.OriginCityID, *rule.DestinationCityID, rule.ServiceID))
	}
	return Del(ctx, keys...)
}
