package main

import (
	"context"

	"github.com/consign-next/internal/config"
	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/models"
	"github.com/consign-next/internal/repository"
	"github.com/consign-next/internal/service"

	"github.com/shopspring/decimal"
)

type seedTier struct {
	from, to, rate string
}

type seedRoute struct {
	origin, destination, service string
	tiers                        []seedTier
}

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}, false); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	refs := repository.NewReferenceRepository(models.DB)
	seeds := []struct {
		kind string
		ref  models.Reference
	}{
		{constants.ReferenceKindCity, models.Reference{Code: "KHI", Name: "Karachi"}},
		{constants.ReferenceKindCity, models.Reference{Code: "LHE", Name: "Lahore"}},
		{constants.ReferenceKindCity, models.Reference{Code: "ISB", Name: "Islamabad"}},
		{constants.ReferenceKindService, models.Reference{Code: "OVER_NIGHT", Name: "Over Night", PricingMode: constants.PricingModeWeight}},
		{constants.ReferenceKindService, models.Reference{Code: "SECOND_DAY", Name: "Second Day", PricingMode: constants.PricingModeWeight}},
		{constants.ReferenceKindService, models.Reference{Code: "BLUE_BOX", Name: "Blue Box", PricingMode: constants.PricingModeFlat}},
		{constants.ReferenceKindProduct, models.Reference{Code: "GENERAL", Name: "General"}},
		{constants.ReferenceKindProduct, models.Reference{Code: "DOCUMENTS", Name: "Documents"}},
	}
	for _, item := range seeds {
		created, err := refs.CreateIfAbsent(item.kind, item.ref)
		if err != nil {
			stdLog.Printf("Failed to create %s %s: %v", item.kind, item.ref.Code, err)
			continue
		}
		if created {
			stdLog.Printf("Created %s: %s", item.kind, item.ref.Code)
		} else {
			stdLog.Printf("%s already exists: %s", item.kind, item.ref.Code)
		}
	}

	catalog := service.NewCatalogService(repository.NewPricingRuleRepository(models.DB), refs)
	seeder := service.Actor{ID: 1, Username: "seed", Role: constants.RoleAdmin}
	routes := []seedRoute{
		{"KHI", "LHE", "OVER_NIGHT", []seedTier{{"0", "0.5", "250"}, {"0.5", "1", "350"}, {"1", "5", "825"}, {"5", "50", "1650"}}},
		{"LHE", "KHI", "OVER_NIGHT", []seedTier{{"0", "0.5", "250"}, {"0.5", "1", "350"}, {"1", "5", "825"}, {"5", "50", "1650"}}},
		{"KHI", "ISB", "SECOND_DAY", []seedTier{{"0", "1", "300"}, {"1", "10", "700"}}},
	}
	ctx := context.Background()
	for _, route := range routes {
		origin, _ := refs.FindByCode(constants.ReferenceKindCity, route.origin)
		destination, _ := refs.FindByCode(constants.ReferenceKindCity, route.destination)
		svc, _ := refs.FindByCode(constants.ReferenceKindService, route.service)
		if origin == nil || destination == nil || svc == nil {
			stdLog.Printf("Skip route %s-%s %s: reference missing", route.origin, route.destination, route.service)
			continue
		}
		_, total, err := catalog.ListPricingRules(ctx, repository.PricingRuleListFilter{
			Page:              1,
			PageSize:          1,
			ServiceID:         svc.ID,
			OriginCityID:      origin.ID,
			DestinationCityID: destination.ID,
		})
		if err != nil {
			stdLog.Printf("Failed to check route %s-%s: %v", route.origin, route.destination, err)
			continue
		}
		if total > 0 {
			stdLog.Printf("Pricing rules already exist: %s-%s %s", route.origin, route.destination, route.service)
			continue
		}
		originID, destinationID := origin.ID, destination.ID
		for _, tier := range route.tiers {
			_, err := catalog.CreatePricingRule(ctx, seeder, service.CreatePricingRuleInput{
				OriginCityID:      &originID,
				DestinationCityID: &destinationID,
				ServiceID:         svc.ID,
				WeightFrom:        decimal.RequireFromString(tier.from),
				WeightTo:          decimal.RequireFromString(tier.to),
				BaseRate:          decimal.RequireFromString(tier.rate),
			})
			if err != nil {
				stdLog.Printf("Failed to create rule %s-%s [%s,%s): %v", route.origin, route.destination, tier.from, tier.to, err)
			}
		}
		stdLog.Printf("Created pricing rules: %s-%s %s", route.origin, route.destination, route.service)
	}

	stdLog.Printf("Seed completed")
}
