package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/models"
	"github.com/consign-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// allowedTransitions 运单状态机，终态不出现在 key 中
var allowedTransitions = map[string][]string{
	constants.BookingStatusPending: {
		constants.BookingStatusBooked,
		constants.BookingStatusCancelled,
		constants.BookingStatusVoided,
	},
	constants.BookingStatusBooked: {
		constants.BookingStatusPickupRequested,
		constants.BookingStatusOutForDelivery,
		constants.BookingStatusCancelled,
		constants.BookingStatusVoided,
	},
	constants.BookingStatusPickupRequested: {
		constants.BookingStatusBooked,
		constants.BookingStatusOutForDelivery,
		constants.BookingStatusCancelled,
		constants.BookingStatusVoided,
	},
	constants.BookingStatusOutForDelivery: {
		constants.BookingStatusDelivered,
		constants.BookingStatusReturned,
	},
}

// 允许修改内容的状态
var editableStatuses = []string{
	constants.BookingStatusPending,
	constants.BookingStatusBooked,
	constants.BookingStatusPickupRequested,
}

func canTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sourcesFor 返回可迁移到 target 的全部状态
func sourcesFor(target string) []string {
	sources := make([]string, 0, len(allowedTransitions))
	for from, targets := range allowedTransitions {
		for _, to := range targets {
			if to == target {
				sources = append(sources, from)
				break
			}
		}
	}
	return sources
}

func containsStatus(list []string, status string) bool {
	for _, item := range list {
		if item == status {
			return true
		}
	}
	return false
}

// transitionRequest 一次状态迁移
type transitionRequest struct {
	name    string
	target  string
	action  string
	remarks string
	from    []string
	extra   func(now time.Time) map[string]interface{}
}

// applyTransition 加锁读取、校验并条件更新状态，写入一条历史
func (s *BookingService) applyTransition(
	ctx context.Context,
	actor Actor,
	load func(repo *repository.GormBookingRepository) (*models.Booking, error),
	req transitionRequest,
) (*models.Booking, error) {
	var bookingID uint
	var oldStatus string
	err := s.tx.run(ctx, req.name, func(tx *gorm.DB) error {
		repo := s.bookingRepo.WithTx(tx)
		booking, err := load(repo)
		if err != nil {
			return err
		}
		if booking == nil {
			return ErrBookingNotFound
		}
		if actor.IsCustomer() && booking.CreatedBy != actor.ID {
			return ErrForbidden
		}
		if !containsStatus(req.from, booking.Status) || !canTransition(booking.Status, req.target) {
			return &IllegalTransitionError{Current: booking.Status, Target: req.target}
		}

		now := s.now()
		updates := map[string]interface{}{
			"status":     req.target,
			"updated_at": now,
		}
		if req.extra != nil {
			for k, v := range req.extra(now) {
				updates[k] = v
			}
		}
		affected, err := repo.UpdateIfStatus(booking.ID, []string{booking.Status}, updates)
		if err != nil {
			return err
		}
		if affected == 0 {
			return s.staleTransition(repo, booking.ID, req.target)
		}
		bookingID = booking.ID
		oldStatus = booking.Status
		return appendHistory(tx, s.historyRepo, historyEntry{
			BookingID:   booking.ID,
			Action:      req.action,
			OldStatus:   booking.Status,
			NewStatus:   req.target,
			PerformedBy: actor.ID,
			Remarks:     req.remarks,
		}, now)
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("booking_status_changed",
		"booking_id", bookingID,
		"action", req.action,
		"old_status", oldStatus,
		"new_status", req.target,
		"actor_id", actor.ID,
	)
	return s.reload(ctx, bookingID)
}

// staleTransition 条件更新未命中：状态已被并发请求改变
func (s *BookingService) staleTransition(repo *repository.GormBookingRepository, id uint, target string) error {
	current, err := repo.GetByIDForUpdate(id)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrBookingNotFound
	}
	return &IllegalTransitionError{Current: current.Status, Target: target}
}

func byID(id uint) func(repo *repository.GormBookingRepository) (*models.Booking, error) {
	return func(repo *repository.GormBookingRepository) (*models.Booking, error) {
		return repo.GetByIDForUpdate(id)
	}
}

// ApproveInput 审核入参，未提供的字段沿用运单原值
type ApproveInput struct {
	CN          string           `json:"cn"`
	Rate        *decimal.Decimal `json:"rate"`
	OtherAmount *decimal.Decimal `json:"other_amount"`
	TotalAmount *decimal.Decimal `json:"total_amount"`
	BatchID     *uint            `json:"batch_id"`
	Remarks     string           `json:"remarks"`
}

// Approve 审核待处理运单：确定运单号、价格与批次后置为 BOOKED
func (s *BookingService) Approve(ctx context.Context, id uint, in ApproveInput, actor Actor) (*models.Booking, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	if in.Rate != nil && in.Rate.IsNegative() {
		return nil, invalid("rate", "must not be negative")
	}
	if in.OtherAmount != nil && in.OtherAmount.IsNegative() {
		return nil, invalid("other_amount", "must not be negative")
	}
	supplied := strings.TrimSpace(in.CN)

	var approved *models.Booking
	err := s.tx.runWithRetry(ctx, "approve", func(tx *gorm.DB, attempt int) error {
		repo := s.bookingRepo.WithTx(tx)
		cnRepo := s.cnRepo.WithTx(tx)
		booking, err := repo.GetByIDForUpdate(id)
		if err != nil {
			return err
		}
		if booking == nil {
			return ErrBookingNotFound
		}
		if booking.Status != constants.BookingStatusPending {
			return &IllegalTransitionError{Current: booking.Status, Target: constants.BookingStatusBooked}
		}

		cn := booking.CNValue()
		switch {
		case supplied != "" && supplied != cn:
			cn, err = s.cns.Validate(cnRepo, supplied, actor.ID)
		case cn == "":
			var alloc CNAllocation
			alloc, err = s.cns.Allocate(cnRepo, s.cns.SchemeFor(booking.PaymentMode), actor.ID, attempt)
			cn = alloc.CN
		}
		if err != nil {
			return err
		}

		rate := booking.Rate
		pricingPending := booking.PricingPending
		if in.Rate != nil {
			rate = models.NewMoneyFromDecimal(*in.Rate)
			pricingPending = false
		}
		other := booking.OtherAmount
		if in.OtherAmount != nil {
			other = models.NewMoneyFromDecimal(*in.OtherAmount)
		}
		totals := computeTotals(Charges{
			Rate:        rate,
			Pieces:      booking.Pieces,
			OtherAmount: other,
			Documents:   booking.Documents,
			Subservices: booking.Subservices,
		})
		if in.TotalAmount != nil && !models.NewMoneyFromDecimal(*in.TotalAmount).Equal(totals.TotalAmount.Decimal) {
			return invalid("total_amount", fmt.Sprintf("does not match computed total %s", totals.TotalAmount.String()))
		}

		var batch *models.Batch
		if in.BatchID != nil {
			batch, err = s.batches.RequireActive(tx, *in.BatchID)
		} else {
			batch, err = s.batches.EnsureActiveBatch(tx, s.batches.ScopeFor(actor), actor.ID)
		}
		if err != nil {
			return err
		}

		now := s.now()
		updates := map[string]interface{}{
			"status":             constants.BookingStatusBooked,
			"cn":                 cn,
			"rate":               rate,
			"other_amount":       other,
			"document_charges":   totals.DocumentCharges,
			"subservice_charges": totals.SubserviceCharges,
			"total_amount":       totals.TotalAmount,
			"pricing_pending":    pricingPending,
			"batch_id":           batch.ID,
			"approved_by":        actor.ID,
			"approved_at":        now,
			"updated_at":         now,
		}
		affected, err := repo.UpdateIfStatus(booking.ID, []string{constants.BookingStatusPending}, updates)
		if err != nil {
			return s.mapCNWriteError(err, supplied, cn)
		}
		if affected == 0 {
			return s.staleTransition(repo, booking.ID, constants.BookingStatusBooked)
		}
		if err := cnRepo.DeleteReservation(cn); err != nil {
			return err
		}
		if err := appendHistory(tx, s.historyRepo, historyEntry{
			BookingID:   booking.ID,
			Action:      constants.HistoryActionApproved,
			OldStatus:   constants.BookingStatusPending,
			NewStatus:   constants.BookingStatusBooked,
			PerformedBy: actor.ID,
			Remarks:     strings.TrimSpace(in.Remarks),
		}, now); err != nil {
			return err
		}
		approved = booking
		approved.CN = &cn
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("booking_approved", "booking_id", approved.ID, "cn", approved.CNValue(), "actor_id", actor.ID)
	return s.reload(ctx, approved.ID)
}

// Cancel 取消运单，用户只能取消本人的运单
func (s *BookingService) Cancel(ctx context.Context, id uint, reason string, actor Actor) (*models.Booking, error) {
	return s.applyTransition(ctx, actor, byID(id), transitionRequest{
		name:    "cancel",
		target:  constants.BookingStatusCancelled,
		action:  constants.HistoryActionCancelled,
		remarks: strings.TrimSpace(reason),
		from:    editableStatuses,
		extra: func(now time.Time) map[string]interface{} {
			return map[string]interface{}{"canceled_at": now}
		},
	})
}

// Void 作废运单，必须填写原因
func (s *BookingService) Void(ctx context.Context, cn, reason string, actor Actor) (*models.Booking, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	cn = strings.TrimSpace(cn)
	reason = strings.TrimSpace(reason)
	if cn == "" {
		return nil, invalid("cn", "is required")
	}
	if reason == "" {
		return nil, invalid("reason", "is required")
	}
	return s.applyTransition(ctx, actor, func(repo *repository.GormBookingRepository) (*models.Booking, error) {
		return repo.GetByCNForUpdate(cn)
	}, transitionRequest{
		name:    "void",
		target:  constants.BookingStatusVoided,
		action:  constants.HistoryActionVoided,
		remarks: reason,
		from:    editableStatuses,
		extra: func(now time.Time) map[string]interface{} {
			return map[string]interface{}{"voided_at": now}
		},
	})
}

// ChangeStatus 员工推进物流状态；审核、取消与作废走各自的入口
func (s *BookingService) ChangeStatus(ctx context.Context, id uint, target, remarks string, actor Actor) (*models.Booking, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	target = strings.ToUpper(strings.TrimSpace(target))
	switch target {
	case constants.BookingStatusCancelled, constants.BookingStatusVoided:
		return nil, invalid("status", "use the cancel or void operation")
	case constants.BookingStatusBooked,
		constants.BookingStatusPickupRequested,
		constants.BookingStatusOutForDelivery,
		constants.BookingStatusDelivered,
		constants.BookingStatusReturned:
	default:
		return nil, invalid("status", "is not a known booking status")
	}
	from := sourcesFor(target)
	if target == constants.BookingStatusBooked {
		// PENDING -> BOOKED 只能通过审核
		from = []string{constants.BookingStatusPickupRequested}
	}
	return s.applyTransition(ctx, actor, byID(id), transitionRequest{
		name:    "change_status",
		target:  target,
		action:  constants.HistoryActionStatusChanged,
		remarks: strings.TrimSpace(remarks),
		from:    from,
		extra: func(now time.Time) map[string]interface{} {
			if target == constants.BookingStatusDelivered {
				return map[string]interface{}{"delivered_at": now}
			}
			return nil
		},
	})
}
