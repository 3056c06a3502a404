package service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/consign-next/internal/constants"
	"github.com/consign-next/internal/models"
	"github.com/consign-next/internal/repository"

	"github.com/jinzhu/now"
)

const (
	generalSequenceKey  = "cn:general"
	generalSkipLimit    = 16
	defaultCNWidth      = 9
	dateCodedSeqWidth   = 2
	dateCodedLayout     = "20060102"
	defaultGeneralCNPfx = "CN"
)

var cnFormatPattern = regexp.MustCompile(`^[A-Za-z0-9-]{4,32}$`)

// CNAllocation 分配结果
type CNAllocation struct {
	CN        string
	Scheme    string
	Reserved  bool
	ExpiresAt time.Time
}

// CNAllocatorOptions 运单号分配配置
type CNAllocatorOptions struct {
	Prefix         string
	Width          int
	ReservationTTL time.Duration
	Location       *time.Location
}

// CNAllocator 生成全局唯一运单号
type CNAllocator struct {
	prefix string
	width  int
	ttl    time.Duration
	loc    *time.Location
	now    func() time.Time
}

// NewCNAllocator 创建运单号分配器
func NewCNAllocator(opts CNAllocatorOptions) *CNAllocator {
	a := &CNAllocator{
		prefix: strings.TrimSpace(opts.Prefix),
		width:  opts.Width,
		ttl:    opts.ReservationTTL,
		loc:    opts.Location,
		now:    time.Now,
	}
	if a.prefix == "" {
		a.prefix = defaultGeneralCNPfx
	}
	if a.width <= 0 {
		a.width = defaultCNWidth
	}
	if a.ttl <= 0 {
		a.ttl = 30 * time.Minute
	}
	if a.loc == nil {
		a.loc = time.Local
	}
	return a
}

// SchemeFor 付款方式对应的编号方案：代收货款走日期编码，其余走通用序列
func (a *CNAllocator) SchemeFor(paymentMode string) string {
	if strings.EqualFold(strings.TrimSpace(paymentMode), constants.PaymentModeCOD) {
		return constants.CNSchemeDateCoded
	}
	return constants.CNSchemeGeneral
}

// Allocate 在调用方事务内分配运单号；attempt 为重试次数，用于错开日期编码的探测位置
func (a *CNAllocator) Allocate(repo repository.CnRepository, scheme string, actorID uint, attempt int) (CNAllocation, error) {
	switch scheme {
	case constants.CNSchemeDateCoded:
		return a.allocateDateCoded(repo, actorID, attempt)
	default:
		return a.allocateGeneral(repo)
	}
}

func (a *CNAllocator) allocateGeneral(repo repository.CnRepository) (CNAllocation, error) {
	for i := 0; i < generalSkipLimit; i++ {
		seq, err := repo.NextSequence(generalSequenceKey)
		if err != nil {
			return CNAllocation{}, err
		}
		cn := fmt.Sprintf("%s%0*d", a.prefix, a.width, seq)
		exists, err := repo.BookingCNExists(cn)
		if err != nil {
			return CNAllocation{}, err
		}
		if !exists {
			return CNAllocation{CN: cn, Scheme: constants.CNSchemeGeneral}, nil
		}
	}
	return CNAllocation{}, ErrAllocationConflict
}

// allocateDateCoded YYYYMMDD + 两位序号：当日已提交数 + 预留数 + 1
func (a *CNAllocator) allocateDateCoded(repo repository.CnRepository, actorID uint, attempt int) (CNAllocation, error) {
	current := a.now().In(a.loc)
	day := now.With(current).BeginningOfDay().Format(dateCodedLayout)
	if err := repo.LockScope("cn:" + day); err != nil {
		return CNAllocation{}, err
	}

	committed, err := repo.CountBookingsWithPrefix(day)
	if err != nil {
		return CNAllocation{}, err
	}
	reserved, err := repo.CountReservationsWithPrefix(day)
	if err != nil {
		return CNAllocation{}, err
	}
	candidate := fmt.Sprintf("%s%0*d", day, dateCodedSeqWidth, committed+reserved+1+int64(attempt))

	taken, err := a.isTaken(repo, candidate)
	if err != nil {
		return CNAllocation{}, err
	}
	if taken {
		return CNAllocation{}, ErrAllocationConflict
	}

	reservedAt := current.UTC()
	reservation := &models.CnReservation{
		CnNumber:   candidate,
		Scheme:     constants.CNSchemeDateCoded,
		ReservedBy: actorID,
		ReservedAt: reservedAt,
		ExpiresAt:  reservedAt.Add(a.ttl),
	}
	if err := repo.CreateReservation(reservation); err != nil {
		if repository.IsUniqueViolation(err) {
			return CNAllocation{}, ErrAllocationConflict
		}
		return CNAllocation{}, err
	}
	return CNAllocation{CN: candidate, Scheme: constants.CNSchemeDateCoded, Reserved: true, ExpiresAt: reservation.ExpiresAt}, nil
}

func (a *CNAllocator) isTaken(repo repository.CnRepository, cn string) (bool, error) {
	exists, err := repo.BookingCNExists(cn)
	if err != nil || exists {
		return exists, err
	}
	reservation, err := repo.GetReservation(cn)
	if err != nil {
		return false, err
	}
	return reservation != nil, nil
}

// Validate 校验调用方指定的运单号：格式、未被运单使用、未被他人有效预留
func (a *CNAllocator) Validate(repo repository.CnRepository, candidate string, actorID uint) (string, error) {
	cn := strings.TrimSpace(candidate)
	if !cnFormatPattern.MatchString(cn) {
		return "", invalid("cn", "must be 4-32 letters, digits or dashes")
	}
	exists, err := repo.BookingCNExists(cn)
	if err != nil {
		return "", err
	}
	if exists {
		return "", &DuplicateCnError{CN: cn}
	}
	reservation, err := repo.GetReservation(cn)
	if err != nil {
		return "", err
	}
	if reservation != nil && reservation.ReservedBy != actorID && reservation.ExpiresAt.After(a.now().UTC()) {
		return "", &DuplicateCnError{CN: cn}
	}
	return cn, nil
}

// ExpiresAt 预留到期时间
func (a *CNAllocator) ExpiresAt(from time.Time) time.Time {
	return from.UTC().Add(a.ttl)
}
