package service

import (
	"context"
	"strings"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/models"

	"gorm.io/gorm"
)

// bookingDiff 收集字段变更与待写入的列
type bookingDiff struct {
	changes map[string]FieldChange
	updates map[string]interface{}
}

func newBookingDiff() *bookingDiff {
	return &bookingDiff{
		changes: map[string]FieldChange{},
		updates: map[string]interface{}{},
	}
}

func (d *bookingDiff) set(field string, oldValue, newValue interface{}, columns map[string]interface{}) {
	d.changes[field] = FieldChange{Old: oldValue, New: newValue}
	for column, value := range columns {
		d.updates[column] = value
	}
}

func contactColumns(prefix string, c models.ContactBlock) map[string]interface{} {
	return map[string]interface{}{
		prefix + "name":     c.Name,
		prefix + "phone":    c.Phone,
		prefix + "address":  c.Address,
		prefix + "company":  c.Company,
		prefix + "landline": c.Landline,
		prefix + "email":    c.Email,
		prefix + "cnic":     c.CNIC,
	}
}

// Update 稀疏更新运单，写入一条 UPDATED 历史（状态不变）
func (s *BookingService) Update(ctx context.Context, id uint, patch BookingPatch, actor Actor) (*models.Booking, error) {
	if err := patch.validateNulls(); err != nil {
		return nil, err
	}
	if actor.IsCustomer() && patch.Rate.Set {
		return nil, invalid("rate", "cannot be set by customers")
	}

	changed := false
	err := s.tx.run(ctx, "update", func(tx *gorm.DB) error {
		repo := s.bookingRepo.WithTx(tx)
		refs := s.referenceRepo.WithTx(tx)
		booking, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if booking == nil {
			return ErrBookingNotFound
		}
		if actor.IsCustomer() && booking.CreatedBy != actor.ID {
			return ErrForbidden
		}
		if !containsStatus(editableStatuses, booking.Status) {
			return &IllegalTransitionError{Current: booking.Status, Target: constants.HistoryActionUpdated}
		}

		diff := newBookingDiff()
		requote := false

		refFields := []struct {
			field  string
			kind   string
			column string
			value  Optional[string]
			target *uint
		}{
			{"service", constants.ReferenceKindService, "service_id", patch.Service, &booking.ServiceID},
			{"product", constants.ReferenceKindProduct, "product_id", patch.Product, &booking.ProductID},
			{"origin_city", constants.ReferenceKindCity, "origin_city_id", patch.OriginCity, &booking.OriginCityID},
			{"destination_city", constants.ReferenceKindCity, "destination_city_id", patch.DestinationCity, &booking.DestinationCityID},
		}
		for _, item := range refFields {
			if !item.value.HasValue() {
				continue
			}
			res, err := ResolveReference(refs, item.kind, item.value.Value)
			if err != nil {
				return err
			}
			if res.Entity.ID == *item.target {
				continue
			}
			diff.set(item.column, *item.target, res.Entity.ID, map[string]interface{}{item.column: res.Entity.ID})
			*item.target = res.Entity.ID
			requote = true
		}

		if patch.Shipper.HasValue() {
			next := normalizeContact(patch.Shipper.Value)
			if next.Name == "" || next.Phone == "" {
				return invalid("shipper", "name and phone are required")
			}
			if next != booking.Shipper {
				diff.set("shipper", booking.Shipper, next, contactColumns("shipper_", next))
				booking.Shipper = next
			}
		}
		if patch.Consignee.HasValue() {
			next := normalizeContact(patch.Consignee.Value)
			if next.Name == "" || next.Phone == "" || next.Address == "" {
				return invalid("consignee", "name, phone and address are required")
			}
			if next != booking.Consignee {
				diff.set("consignee", booking.Consignee, next, contactColumns("consignee_", next))
				booking.Consignee = next
			}
		}

		if patch.Weight.HasValue() {
			if !patch.Weight.Value.IsPositive() {
				return invalid("weight", "must be greater than 0")
			}
			next := models.NewWeight(patch.Weight.Value)
			if !next.Equal(booking.Weight.Decimal) {
				diff.set("weight", booking.Weight, next, map[string]interface{}{"weight": next})
				booking.Weight = next
				requote = true
			}
		}
		if patch.VolumetricWeight.HasValue() {
			if patch.VolumetricWeight.Value.IsNegative() {
				return invalid("volumetric_weight", "must not be negative")
			}
			next := models.NewWeight(patch.VolumetricWeight.Value)
			if !next.Equal(booking.VolumetricWeight.Decimal) {
				diff.set("volumetric_weight", booking.VolumetricWeight, next, map[string]interface{}{"volumetric_weight": next})
				booking.VolumetricWeight = next
				requote = true
			}
		}
		if patch.Pieces.HasValue() {
			if patch.Pieces.Value < 1 || patch.Pieces.Value > maxPieces {
				return invalid("pieces", "must be between 1 and 9999")
			}
			if patch.Pieces.Value != booking.Pieces {
				diff.set("pieces", booking.Pieces, patch.Pieces.Value, map[string]interface{}{"pieces": patch.Pieces.Value})
				booking.Pieces = patch.Pieces.Value
			}
		}
		if patch.PaymentMode.HasValue() {
			mode := strings.ToUpper(strings.TrimSpace(patch.PaymentMode.Value))
			if _, ok := paymentModes[mode]; !ok {
				return invalid("payment_mode", "is not supported")
			}
			if mode != booking.PaymentMode {
				diff.set("payment_mode", booking.PaymentMode, mode, map[string]interface{}{"payment_mode": mode})
				booking.PaymentMode = mode
			}
		}
		if patch.OtherAmount.HasValue() {
			if patch.OtherAmount.Value.IsNegative() {
				return invalid("other_amount", "must not be negative")
			}
			next := models.NewMoneyFromDecimal(patch.OtherAmount.Value)
			if !next.Equal(booking.OtherAmount.Decimal) {
				diff.set("other_amount", booking.OtherAmount, next, map[string]interface{}{"other_amount": next})
				booking.OtherAmount = next
			}
		}
		if patch.CODAmount.Set {
			var next *models.Money
			if !patch.CODAmount.Null {
				if patch.CODAmount.Value.IsNegative() {
					return invalid("cod_amount", "must not be negative")
				}
				value := models.NewMoneyFromDecimal(patch.CODAmount.Value)
				next = &value
			}
			if !sameMoneyPtr(booking.CODAmount, next) {
				diff.set("cod_amount", booking.CODAmount, next, map[string]interface{}{"cod_amount": next})
				booking.CODAmount = next
			}
		}
		if patch.Subservices.Set {
			next := models.BookingSubservices{}
			if !patch.Subservices.Null {
				next = patch.Subservices.Value
			}
			if err := validateSubservices(next); err != nil {
				return err
			}
			if !next.Equal(booking.Subservices) {
				diff.set("subservices", booking.Subservices, next, map[string]interface{}{"subservices": next})
				booking.Subservices = next
			}
		}
		if patch.Remarks.Set {
			next := strings.TrimSpace(patch.Remarks.Value)
			if next != booking.Remarks {
				diff.set("remarks", booking.Remarks, next, map[string]interface{}{"remarks": next})
				booking.Remarks = next
			}
		}

		chargeable := chargeableWeight(booking.Weight, booking.VolumetricWeight)
		if !chargeable.Equal(booking.ChargeableWeight.Decimal) {
			diff.set("chargeable_weight", booking.ChargeableWeight, chargeable, map[string]interface{}{"chargeable_weight": chargeable})
			booking.ChargeableWeight = chargeable
		}

		switch {
		case patch.Rate.HasValue():
			if patch.Rate.Value.IsNegative() {
				return invalid("rate", "must not be negative")
			}
			next := models.NewMoneyFromDecimal(patch.Rate.Value)
			if !next.Equal(booking.Rate.Decimal) || booking.PricingPending {
				diff.set("rate", booking.Rate, next, map[string]interface{}{"rate": next, "pricing_pending": false})
				booking.Rate = next
				booking.PricingPending = false
			}
		case requote:
			if err := s.requote(ctx, tx, booking, diff); err != nil {
				return err
			}
		}

		if len(diff.changes) == 0 {
			return nil
		}

		totals := computeTotals(Charges{
			Rate:        booking.Rate,
			Pieces:      booking.Pieces,
			OtherAmount: booking.OtherAmount,
			Documents:   booking.Documents,
			Subservices: booking.Subservices,
		})
		if !totals.TotalAmount.Equal(booking.TotalAmount.Decimal) {
			diff.changes["total_amount"] = FieldChange{Old: booking.TotalAmount, New: totals.TotalAmount}
		}
		diff.updates["subservice_charges"] = totals.SubserviceCharges
		diff.updates["document_charges"] = totals.DocumentCharges
		diff.updates["total_amount"] = totals.TotalAmount
		now := s.now()
		diff.updates["updated_at"] = now

		affected, err := repo.UpdateIfStatus(booking.ID, editableStatuses, diff.updates)
		if err != nil {
			return err
		}
		if affected == 0 {
			return s.staleTransition(repo, booking.ID, constants.HistoryActionUpdated)
		}
		changed = true
		return appendHistory(tx, s.historyRepo, historyEntry{
			BookingID:   booking.ID,
			Action:      constants.HistoryActionUpdated,
			OldStatus:   booking.Status,
			NewStatus:   booking.Status,
			PerformedBy: actor.ID,
			Changes:     diff.changes,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		logger.Infow("booking_updated", "booking_id", id, "actor_id", actor.ID)
	}
	return s.reload(ctx, id)
}

// requote 路线、服务或重量变化后重新询价
func (s *BookingService) requote(ctx context.Context, tx *gorm.DB, booking *models.Booking, diff *bookingDiff) error {
	refs := s.referenceRepo.WithTx(tx)
	service, err := refs.GetByID(constants.ReferenceKindService, booking.ServiceID)
	if err != nil {
		return err
	}
	if service == nil {
		return invalid("service", "no longer exists")
	}
	productName := ""
	product, err := refs.GetByID(constants.ReferenceKindProduct, booking.ProductID)
	if err != nil {
		return err
	}
	if product != nil {
		productName = product.Name
	}
	quote, err := s.rates.Quote(ctx, refs, s.pricingRepo.WithTx(tx), QuoteInput{
		OriginCityID:      booking.OriginCityID,
		DestinationCityID: booking.DestinationCityID,
		Service:           *service,
		ProductName:       productName,
		ChargeableWeight:  booking.ChargeableWeight.Decimal,
	})
	if err != nil {
		return err
	}
	if !quote.Rate.Equal(booking.Rate.Decimal) {
		diff.changes["rate"] = FieldChange{Old: booking.Rate, New: quote.Rate}
	}
	diff.updates["rate"] = quote.Rate
	diff.updates["pricing_pending"] = !quote.Matched
	diff.updates["pricing_rule_id"] = quote.RuleID
	booking.Rate = quote.Rate
	booking.PricingPending = !quote.Matched
	booking.PricingRuleID = quote.RuleID
	return nil
}

func sameMoneyPtr(a, b *models.Money) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b.Decimal)
}
