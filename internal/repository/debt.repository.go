package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrDebtNotFound = errors.New("debt not found")

type DebtRepository struct {
	*pg.DB
}

func NewDebtRepository(db *pg.DB) *DebtRepository {
	return &DebtRepository{
		db,
	}
}

func (r *DebtRepository) Create(ctx context.Context, debt *model.Debt) (*model.Debt, error) {
	entity := toDebtEntity(debt)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toDebtModel(entity), nil
}

func (r *DebtRepository) GetByID(ctx context.Context, id int64) (*model.Debt, error) {
	var entity DebtEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebtNotFound
		}
		return nil, err
	}
	return toDebtModel(&entity), nil
}

// FindOpenByKind locks and returns the newest open debt of the given kind.
func (r *DebtRepository) FindOpenByKind(ctx context.Context, kind model.DebtKind) (*model.Debt, error) {
	statuses := make([]string, len(model.OpenDebtStatuses))
	for i, s := range model.OpenDebtStatuses {
		statuses[i] = string(s)
	}

	var entity DebtEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("kind = ? AND status IN ?", string(kind), statuses).
		Order("id DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDebtNotFound
		}
		return nil, err
	}
	return toDebtModel(&entity), nil
}

// Update persists the mutable balance fields of a debt.
func (r *DebtRepository) Update(ctx context.Context, debt *model.Debt) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&DebtEntity{}).
		Where("id = ?", debt.ID).
		Updates(map[string]any{
			"principal":         debt.Principal,
			"fees_charged":      debt.FeesCharged,
			"total_outstanding": debt.TotalOutstanding,
			"status":            string(debt.Status),
			"due_date":          utcPtr(debt.DueDate),
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrDebtNotFound
	}
	return nil
}

func (r *DebtRepository) AddPayment(ctx context.Context, p *model.DebtPayment) (*model.DebtPayment, error) {
	entity := &DebtPaymentEntity{
		DebtID:        p.DebtID,
		Amount:        p.Amount,
		TransactionID: p.TransactionID,
		PaidAt:        p.PaidAt.UTC(),
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toDebtPaymentModel(entity), nil
}

func (r *DebtRepository) ListPayments(ctx context.Context, debtID int64) ([]*model.DebtPayment, error) {
	var entities []*DebtPaymentEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("debt_id = ?", debtID).
		Order("paid_at ASC, id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	payments := make([]*model.DebtPayment, len(entities))
	for i, e := range entities {
		payments[i] = toDebtPaymentModel(e)
	}
	return payments, nil
}

func (r *DebtRepository) List(ctx context.Context, f model.DebtFilter) ([]*model.Debt, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&DebtEntity{})

	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		q = q.Where("kind IN ?", kinds)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit, offset := page(f.Limit, f.Offset)

	var entities []*DebtEntity
	if err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	debts := make([]*model.Debt, len(entities))
	for i, e := range entities {
		debts[i] = toDebtModel(e)
	}
	return debts, total, nil
}

// MarkOverdue flips active and partially paid debts whose due date is
// before now. Already overdue rows are not touched, so repeated runs are no-ops.
func (r *DebtRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	result := r.Write(ctx).WithContext(ctx).
		Model(&DebtEntity{}).
		Where("status IN ? AND due_date IS NOT NULL AND due_date < ?",
			[]string{string(model.DebtStatusActive), string(model.DebtStatusPartiallyPaid)}, now).
		Updates(map[string]any{
			"status":     string(model.DebtStatusOverdue),
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}
