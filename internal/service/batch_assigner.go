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

	"github.com/jinzhu/now"
	"gorm.io/gorm"
)

// BatchScope 批次作用域：员工按站点，自助用户按用户名 + 日期
type BatchScope struct {
	Key           string
	StationCode   string
	OwnerUsername string
	Date          string
}

// BatchAssigner 保证每个作用域最多一个 ACTIVE 批次
type BatchAssigner struct {
	batchRepo repository.BatchRepository
	cnRepo    repository.CnRepository
	loc       *time.Location
	now       func() time.Time
	tx        *txRunner
}

// NewBatchAssigner 创建批次分配器
func NewBatchAssigner(batchRepo repository.BatchRepository, cnRepo repository.CnRepository, loc *time.Location, tx *txRunner) *BatchAssigner {
	if loc == nil {
		loc = time.Local
	}
	return &BatchAssigner{
		batchRepo: batchRepo,
		cnRepo:    cnRepo,
		loc:       loc,
		now:       time.Now,
		tx:        tx,
	}
}

// ScopeFor 根据操作人推导批次作用域
func (b *BatchAssigner) ScopeFor(actor Actor) BatchScope {
	day := now.With(b.now().In(b.loc)).BeginningOfDay().Format(dateCodedLayout)
	if actor.IsCustomer() {
		username := strings.TrimSpace(actor.Username)
		return BatchScope{
			Key:           fmt.Sprintf("user:%s:%s", username, day),
			OwnerUsername: username,
			Date:          day,
		}
	}
	station := actor.Station()
	return BatchScope{
		Key:         "station:" + station,
		StationCode: station,
		Date:        day,
	}
}

// EnsureActiveBatch 在调用方事务内返回作用域的 ACTIVE 批次，不存在则创建
func (b *BatchAssigner) EnsureActiveBatch(tx *gorm.DB, scope BatchScope, actorID uint) (*models.Batch, error) {
	batchRepo := b.batchRepo.WithTx(tx)
	existing, err := batchRepo.GetActiveByScope(scope.Key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	code, err := b.nextBatchCode(tx, scope)
	if err != nil {
		return nil, err
	}
	activeScope := scope.Key
	batch := &models.Batch{
		BatchCode:     code,
		Status:        constants.BatchStatusActive,
		ScopeKey:      scope.Key,
		ActiveScope:   &activeScope,
		StationCode:   scope.StationCode,
		OwnerUsername: scope.OwnerUsername,
		BatchDate:     scope.Date,
		CreatedBy:     actorID,
	}
	if err := batchRepo.CreateIfAbsent(batch); err != nil {
		// 批次编号冲突会中止 postgres 事务，只能整体重试
		if repository.IsUniqueViolation(err) {
			return nil, ErrAllocationConflict
		}
		return nil, err
	}

	// 并发创建时失败方读取胜出方的批次
	active, err := batchRepo.GetActiveByScope(scope.Key)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrAllocationConflict
	}
	if active.ID == batch.ID {
		logger.Infow("batch_created", "batch_id", active.ID, "batch_code", active.BatchCode, "scope", scope.Key)
	}
	return active, nil
}

func (b *BatchAssigner) nextBatchCode(tx *gorm.DB, scope BatchScope) (string, error) {
	if scope.OwnerUsername != "" {
		count, err := b.batchRepo.WithTx(tx).CountByOwnerAndDate(scope.OwnerUsername, scope.Date)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s-%s-%d", scope.OwnerUsername, scope.Date, count+1), nil
	}
	seq, err := b.cnRepo.WithTx(tx).NextSequence("batch:" + scope.StationCode)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%05d", scope.StationCode, seq), nil
}

// RequireActive 校验员工指定的批次存在且处于 ACTIVE
func (b *BatchAssigner) RequireActive(tx *gorm.DB, batchID uint) (*models.Batch, error) {
	batch, err := b.batchRepo.WithTx(tx).GetByID(batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, ErrBatchNotFound
	}
	if batch.Status != constants.BatchStatusActive {
		return nil, ErrBatchNotActive
	}
	return batch, nil
}

// CloseBatch 关闭批次，之后同作用域的下一次分配会新建批次
func (b *BatchAssigner) CloseBatch(ctx context.Context, batchID uint, actor Actor) (*models.Batch, error) {
	if !actor.IsStaff() {
		return nil, ErrForbidden
	}
	var closed *models.Batch
	err := b.tx.run(ctx, "close_batch", func(tx *gorm.DB) error {
		batchRepo := b.batchRepo.WithTx(tx)
		batch, err := batchRepo.GetByID(batchID)
		if err != nil {
			return err
		}
		if batch == nil {
			return ErrBatchNotFound
		}
		affected, err := batchRepo.Close(batchID, actor.ID, b.now())
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrBatchNotActive
		}
		closed, err = batchRepo.GetByID(batchID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("batch_closed", "batch_id", batchID, "closed_by", actor.ID)
	return closed, nil
}

// ListBatches 批次列表
func (b *BatchAssigner) ListBatches(ctx context.Context, filter repository.BatchListFilter) ([]models.Batch, int64, error) {
	return b.batchRepo.WithTx(models.DB.WithContext(ctx)).List(filter)
}
