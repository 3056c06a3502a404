package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/logger"
	"github.com/consign-next/internal/models"
	"github.com/consign-next/internal/queue"
	"github.com/consign-next/internal/repository"
	"github.com/consign-next/internal/storage"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultMaxDocuments = 10
	maxPieces           = 9999
)

var paymentModes = map[string]struct{}{
	constants.PaymentModeCash:    {},
	constants.PaymentModeCredit:  {},
	constants.PaymentModeCOD:     {},
	constants.PaymentModeToPay:   {},
	constants.PaymentModeAccount: {},
}

// DocumentUploader 附件存储能力
type DocumentUploader interface {
	UploadMany(ctx context.Context, files []storage.UploadFile) ([]storage.UploadedFile, error)
	DeleteMany(ctx context.Context, files []storage.UploadedFile)
}

// ReservationNotifier 预留到期通知
type ReservationNotifier interface {
	EnqueueCnReservationExpire(payload queue.CnReservationExpirePayload) error
}

// BookingServiceOptions 运单服务配置
type BookingServiceOptions struct {
	Tx              TxOptions
	CN              CNAllocatorOptions
	PricingCacheTTL time.Duration
	MaxDocuments    int
}

// BookingService 运单创建、状态流转与查询
type BookingService struct {
	bookingRepo   repository.BookingRepository
	historyRepo   repository.BookingHistoryRepository
	referenceRepo repository.ReferenceRepository
	pricingRepo   repository.PricingRuleRepository
	customerRepo  repository.CustomerRepository
	cnRepo        repository.CnRepository
	rates         *RateResolver
	cns           *CNAllocator
	batches       *BatchAssigner
	documents     DocumentUploader
	notifier      ReservationNotifier
	tx            *txRunner
	maxDocuments  int
	now           func() time.Time
}

// NewBookingService 创建运单服务
func NewBookingService(
	bookingRepo repository.BookingRepository,
	historyRepo repository.BookingHistoryRepository,
	referenceRepo repository.ReferenceRepository,
	pricingRepo repository.PricingRuleRepository,
	customerRepo repository.CustomerRepository,
	cnRepo repository.CnRepository,
	batchRepo repository.BatchRepository,
	documents DocumentUploader,
	notifier ReservationNotifier,
	opts BookingServiceOptions,
) *BookingService {
	tx := newTxRunner(opts.Tx)
	cns := NewCNAllocator(opts.CN)
	maxDocuments := opts.MaxDocuments
	if maxDocuments <= 0 {
		maxDocuments = defaultMaxDocuments
	}
	return &BookingService{
		bookingRepo:   bookingRepo,
		historyRepo:   historyRepo,
		referenceRepo: referenceRepo,
		pricingRepo:   pricingRepo,
		customerRepo:  customerRepo,
		cnRepo:        cnRepo,
		rates:         NewRateResolver(opts.PricingCacheTTL),
		cns:           cns,
		batches:       NewBatchAssigner(batchRepo, cnRepo, cns.loc, tx),
		documents:     documents,
		notifier:      notifier,
		tx:            tx,
		maxDocuments:  maxDocuments,
		now:           time.Now,
	}
}

// Batches 批次分配器
func (s *BookingService) Batches() *BatchAssigner {
	return s.batches
}

// DocumentInput 附件描述，与上传文件按下标对应
type DocumentInput struct {
	Name  string       `json:"name"`
	Price models.Money `json:"price"`
}

// CreateBookingInput 创建运单入参
type CreateBookingInput struct {
	Service          string                    `json:"service"`
	Product          string                    `json:"product"`
	OriginCity       string                    `json:"origin_city"`
	DestinationCity  string                    `json:"destination_city"`
	Shipper          models.ContactBlock       `json:"shipper"`
	Consignee        models.ContactBlock       `json:"consignee"`
	Weight           decimal.Decimal           `json:"weight"`
	VolumetricWeight decimal.Decimal           `json:"volumetric_weight"`
	Pieces           int                       `json:"pieces"`
	PaymentMode      string                    `json:"payment_mode"`
	CN               string                    `json:"cn"`
	Rate             *decimal.Decimal          `json:"rate"`
	OtherAmount      decimal.Decimal           `json:"other_amount"`
	CODAmount        *decimal.Decimal          `json:"cod_amount"`
	Subservices      models.BookingSubservices `json:"subservices"`
	Documents        []DocumentInput           `json:"documents"`
	Remarks          string                    `json:"remarks"`
	ApproveNow       bool                      `json:"approve_now"`
	Files            []storage.UploadFile      `json:"-"`
}

func (in *CreateBookingInput) normalize() {
	in.Service = strings.TrimSpace(in.Service)
	in.Product = strings.TrimSpace(in.Product)
	in.OriginCity = strings.TrimSpace(in.OriginCity)
	in.DestinationCity = strings.TrimSpace(in.DestinationCity)
	in.PaymentMode = strings.ToUpper(strings.TrimSpace(in.PaymentMode))
	in.CN = strings.TrimSpace(in.CN)
	in.Remarks = strings.TrimSpace(in.Remarks)
	in.Shipper = normalizeContact(in.Shipper)
	in.Consignee = normalizeContact(in.Consignee)
	if in.Pieces == 0 {
		in.Pieces = 1
	}
}

func normalizeContact(c models.ContactBlock) models.ContactBlock {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)
	c.Company = strings.TrimSpace(c.Company)
	c.Landline = strings.TrimSpace(c.Landline)
	c.Email = strings.TrimSpace(c.Email)
	c.CNIC = strings.TrimSpace(c.CNIC)
	return c
}

func (s *BookingService) validateCreate(actor Actor, in *CreateBookingInput) error {
	if err := actor.validate(); err != nil {
		return err
	}
	required := []struct{ field, value string }{
		{"service", in.Service},
		{"product", in.Product},
		{"origin_city", in.OriginCity},
		{"destination_city", in.DestinationCity},
		{"shipper.name", in.Shipper.Name},
		{"shipper.phone", in.Shipper.Phone},
		{"consignee.name", in.Consignee.Name},
		{"consignee.phone", in.Consignee.Phone},
		{"consignee.address", in.Consignee.Address},
	}
	for _, item := range required {
		if item.value == "" {
			return invalid(item.field, "is required")
		}
	}
	if _, ok := paymentModes[in.PaymentMode]; !ok {
		return invalid("payment_mode", "is not supported")
	}
	if !in.Weight.IsPositive() {
		return invalid("weight", "must be greater than 0")
	}
	if in.VolumetricWeight.IsNegative() {
		return invalid("volumetric_weight", "must not be negative")
	}
	if in.Pieces < 1 || in.Pieces > maxPieces {
		return invalid("pieces", "must be between 1 and 9999")
	}
	if in.OtherAmount.IsNegative() {
		return invalid("other_amount", "must not be negative")
	}
	if in.CODAmount != nil && in.CODAmount.IsNegative() {
		return invalid("cod_amount", "must not be negative")
	}
	if err := validateSubservices(in.Subservices); err != nil {
		return err
	}
	if len(in.Documents) > s.maxDocuments || len(in.Files) > s.maxDocuments {
		return invalid("documents", "too many documents")
	}
	if len(in.Files) > len(in.Documents) && len(in.Documents) > 0 {
		return invalid("documents", "every uploaded file needs a matching document entry")
	}
	for _, doc := range in.Documents {
		if doc.Price.IsNegative() {
			return invalid("documents.price", "must not be negative")
		}
	}
	if actor.IsCustomer() {
		if in.Rate != nil {
			return invalid("rate", "cannot be set by customers")
		}
		if in.CN != "" {
			return invalid("cn", "cannot be set by customers")
		}
	}
	if in.Rate != nil && in.Rate.IsNegative() {
		return invalid("rate", "must not be negative")
	}
	return nil
}

func validateSubservices(items models.BookingSubservices) error {
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			return invalid("subservices.name", "is required")
		}
		if item.Charge.IsNegative() {
			return invalid("subservices.charge", "must not be negative")
		}
	}
	return nil
}

// CreateBooking 创建运单：上传附件后在单个事务内完成解析、分配、定价与落库
func (s *BookingService) CreateBooking(ctx context.Context, actor Actor, in CreateBookingInput) (*models.Booking, error) {
	in.normalize()
	if err := s.validateCreate(actor, &in); err != nil {
		return nil, err
	}

	uploaded, err := s.uploadDocuments(ctx, in.Files)
	if err != nil {
		return nil, err
	}

	var created *models.Booking
	err = s.tx.runWithRetry(ctx, "create", func(tx *gorm.DB, attempt int) error {
		booking, err := s.createInTx(ctx, tx, actor, in, uploaded, attempt)
		if err != nil {
			return err
		}
		created = booking
		return nil
	})
	if err != nil {
		if len(uploaded) > 0 {
			s.documents.DeleteMany(context.WithoutCancel(ctx), uploaded)
		}
		logger.Warnw("booking_create_failed", "actor_id", actor.ID, "role", actor.Role, "error", err)
		return nil, err
	}

	logger.Infow("booking_created",
		"booking_id", created.ID,
		"cn", created.CNValue(),
		"status", created.Status,
		"actor_id", actor.ID,
		"pricing_pending", created.PricingPending,
	)
	return s.reload(ctx, created.ID)
}

func (s *BookingService) uploadDocuments(ctx context.Context, files []storage.UploadFile) ([]storage.UploadedFile, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if s.documents == nil {
		return nil, &UploadError{Err: errors.New("document store is not configured")}
	}
	uploaded, err := s.documents.UploadMany(ctx, files)
	if err != nil {
		logger.Warnw("booking_documents_upload_failed", "count", len(files), "error", err)
		return nil, &UploadError{Err: err}
	}
	return uploaded, nil
}

func buildDocuments(inputs []DocumentInput, files []storage.UploadFile, uploaded []storage.UploadedFile) models.BookingDocuments {
	count := len(inputs)
	if len(uploaded) > count {
		count = len(uploaded)
	}
	docs := make(models.BookingDocuments, 0, count)
	for i := 0; i < count; i++ {
		var doc models.BookingDocument
		if i < len(inputs) {
			doc.Name = strings.TrimSpace(inputs[i].Name)
			doc.Price = models.NewMoneyFromDecimal(inputs[i].Price.Decimal)
		}
		if i < len(uploaded) {
			doc.URL = uploaded[i].SecureURL
			doc.Key = uploaded[i].Key
			if doc.Name == "" && i < len(files) {
				doc.Name = files[i].Filename
			}
		}
		docs = append(docs, doc)
	}
	return docs
}

// resolvedRoute 一次解析得到的基础资料
type resolvedRoute struct {
	Service         models.Reference
	Product         models.Reference
	OriginCity      models.Reference
	DestinationCity models.Reference
}

func resolveRoute(refs ReferenceStore, service, product, origin, destination string) (resolvedRoute, error) {
	var route resolvedRoute
	steps := []struct {
		kind       string
		identifier string
		target     *models.Reference
	}{
		{constants.ReferenceKindService, service, &route.Service},
		{constants.ReferenceKindProduct, product, &route.Product},
		{constants.ReferenceKindCity, origin, &route.OriginCity},
		{constants.ReferenceKindCity, destination, &route.DestinationCity},
	}
	for _, step := range steps {
		res, err := ResolveReference(refs, step.kind, step.identifier)
		if err != nil {
			return resolvedRoute{}, err
		}
		*step.target = res.Entity
	}
	return route, nil
}

func (s *BookingService) createInTx(ctx context.Context, tx *gorm.DB, actor Actor, in CreateBookingInput, uploaded []storage.UploadedFile, attempt int) (*models.Booking, error) {
	refs := s.referenceRepo.WithTx(tx)
	cnRepo := s.cnRepo.WithTx(tx)
	now := s.now()

	route, err := resolveRoute(refs, in.Service, in.Product, in.OriginCity, in.DestinationCity)
	if err != nil {
		return nil, err
	}

	customer, err := s.customerRepo.WithTx(tx).UpsertByPhone(&models.Customer{
		Phone:    in.Shipper.Phone,
		Name:     in.Shipper.Name,
		Address:  in.Shipper.Address,
		Email:    in.Shipper.Email,
		Company:  in.Shipper.Company,
		Landline: in.Shipper.Landline,
		CNIC:     in.Shipper.CNIC,
	})
	if err != nil {
		return nil, err
	}

	status := constants.BookingStatusPending
	if actor.IsCustomer() || in.ApproveNow {
		status = constants.BookingStatusBooked
	}

	cn := ""
	switch {
	case in.CN != "":
		cn, err = s.cns.Validate(cnRepo, in.CN, actor.ID)
	case status == constants.BookingStatusBooked:
		var alloc CNAllocation
		alloc, err = s.cns.Allocate(cnRepo, s.cns.SchemeFor(in.PaymentMode), actor.ID, attempt)
		cn = alloc.CN
	}
	if err != nil {
		return nil, err
	}

	weight := models.NewWeight(in.Weight)
	volumetric := models.NewWeight(in.VolumetricWeight)
	chargeable := chargeableWeight(weight, volumetric)

	rate := models.NewMoneyFromInt(0)
	pricingPending := false
	var ruleID *uint
	if in.Rate != nil {
		rate = models.NewMoneyFromDecimal(*in.Rate)
	} else {
		quote, err := s.rates.Quote(ctx, refs, s.pricingRepo.WithTx(tx), QuoteInput{
			OriginCityID:      route.OriginCity.ID,
			DestinationCityID: route.DestinationCity.ID,
			Service:           route.Service,
			ProductName:       route.Product.Name,
			ChargeableWeight:  chargeable.Decimal,
		})
		if err != nil {
			return nil, err
		}
		rate = quote.Rate
		pricingPending = !quote.Matched
		ruleID = quote.RuleID
	}

	documents := buildDocuments(in.Documents, in.Files, uploaded)
	subservices := in.Subservices
	if subservices == nil {
		subservices = models.BookingSubservices{}
	}
	other := models.NewMoneyFromDecimal(in.OtherAmount)
	totals := computeTotals(Charges{
		Rate:        rate,
		Pieces:      in.Pieces,
		OtherAmount: other,
		Documents:   documents,
		Subservices: subservices,
	})

	batch, err := s.batches.EnsureActiveBatch(tx, s.batches.ScopeFor(actor), actor.ID)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		Status:            status,
		OriginCityID:      route.OriginCity.ID,
		DestinationCityID: route.DestinationCity.ID,
		ServiceID:         route.Service.ID,
		ProductID:         route.Product.ID,
		CustomerID:        customer.ID,
		Shipper:           in.Shipper,
		Consignee:         in.Consignee,
		Weight:            weight,
		VolumetricWeight:  volumetric,
		ChargeableWeight:  chargeable,
		Pieces:            in.Pieces,
		PaymentMode:       in.PaymentMode,
		Rate:              rate,
		OtherAmount:       other,
		DocumentCharges:   totals.DocumentCharges,
		SubserviceCharges: totals.SubserviceCharges,
		TotalAmount:       totals.TotalAmount,
		PricingPending:    pricingPending,
		PricingRuleID:     ruleID,
		Documents:         documents,
		Subservices:       subservices,
		BatchID:           &batch.ID,
		Remarks:           in.Remarks,
		CreatedBy:         actor.ID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if cn != "" {
		booking.CN = &cn
	}
	if in.CODAmount != nil {
		cod := models.NewMoneyFromDecimal(*in.CODAmount)
		booking.CODAmount = &cod
	}
	if status == constants.BookingStatusBooked && actor.IsStaff() {
		booking.ApprovedBy = &actor.ID
		booking.ApprovedAt = &now
	}

	if err := s.bookingRepo.WithTx(tx).Create(booking); err != nil {
		return nil, s.mapCNWriteError(err, in.CN, cn)
	}
	if cn != "" {
		if err := cnRepo.DeleteReservation(cn); err != nil {
			return nil, err
		}
	}
	if err := appendHistory(tx, s.historyRepo, historyEntry{
		BookingID:   booking.ID,
		Action:      constants.HistoryActionCreated,
		NewStatus:   status,
		PerformedBy: actor.ID,
		Remarks:     in.Remarks,
	}, now); err != nil {
		return nil, err
	}
	return booking, nil
}

// mapCNWriteError 运单号唯一索引冲突：调用方指定的号码直接报重复，自动分配的号码触发重试
func (s *BookingService) mapCNWriteError(err error, supplied, cn string) error {
	if !repository.IsUniqueViolation(err) {
		return err
	}
	if supplied != "" {
		return &DuplicateCnError{CN: cn}
	}
	return ErrAllocationConflict
}

func (s *BookingService) reload(ctx context.Context, id uint) (*models.Booking, error) {
	booking, err := s.bookingRepo.WithTx(models.DB.WithContext(ctx)).GetByID(id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

// CodCNReservation 代收货款预留单号
type CodCNReservation struct {
	CN        string    `json:"cn"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetNextCnForCod 预留下一个日期编码单号，仅提交预留记录
func (s *BookingService) GetNextCnForCod(ctx context.Context, actor Actor) (*CodCNReservation, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	var alloc CNAllocation
	err := s.tx.runWithRetry(ctx, "reserve_cod_cn", func(tx *gorm.DB, attempt int) error {
		var err error
		alloc, err = s.cns.Allocate(s.cnRepo.WithTx(tx), constants.CNSchemeDateCoded, actor.ID, attempt)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.notifier != nil {
		payload := queue.CnReservationExpirePayload{CN: alloc.CN, ExpiresAt: alloc.ExpiresAt}
		if err := s.notifier.EnqueueCnReservationExpire(payload); err != nil {
			logger.Warnw("cn_reservation_expire_enqueue_failed", "cn", alloc.CN, "error", err)
		}
	}
	logger.Infow("cn_reserved", "cn", alloc.CN, "actor_id", actor.ID, "expires_at", alloc.ExpiresAt)
	return &CodCNReservation{CN: alloc.CN, ExpiresAt: alloc.ExpiresAt}, nil
}

// ExpireReservation 删除单个已过期的预留，未过期或已被消费时返回 false
func (s *BookingService) ExpireReservation(ctx context.Context, cn string) (bool, error) {
	affected, err := s.cnRepo.WithTx(models.DB.WithContext(ctx)).DeleteExpiredReservation(strings.TrimSpace(cn), s.now().UTC())
	if err != nil {
		return false, err
	}
	if affected > 0 {
		logger.Infow("cn_reservation_expired", "cn", cn)
	}
	return affected > 0, nil
}

// ExpireReservations 批量清理过期预留
func (s *BookingService) ExpireReservations(ctx context.Context) (int64, error) {
	affected, err := s.cnRepo.WithTx(models.DB.WithContext(ctx)).DeleteExpiredReservations(s.now().UTC())
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		logger.Infow("cn_reservations_swept", "count", affected)
	}
	return affected, nil
}

// Track 按运单号查询运单详情与完整历史
func (s *BookingService) Track(ctx context.Context, cn string) (*models.Booking, error) {
	cn = strings.TrimSpace(cn)
	if cn == "" {
		return nil, invalid("cn", "is required")
	}
	booking, err := s.bookingRepo.WithTx(models.DB.WithContext(ctx)).GetDetailByCN(cn)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	decodeHistory(booking.History)
	return booking, nil
}

// ListBookings 员工端运单列表
func (s *BookingService) ListBookings(ctx context.Context, actor Actor, filter repository.BookingListFilter) ([]models.Booking, int64, error) {
	if !actor.IsStaff() {
		return nil, 0, ErrForbidden
	}
	return s.bookingRepo.WithTx(models.DB.WithContext(ctx)).ListAdmin(filter)
}

// ListMyBookings 用户端运单列表（仅本人创建）
func (s *BookingService) ListMyBookings(ctx context.Context, actor Actor, filter repository.BookingListFilter) ([]models.Booking, int64, error) {
	filter.CreatedBy = actor.ID
	return s.bookingRepo.WithTx(models.DB.WithContext(ctx)).ListByCreator(filter)
}
