package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/pkg/pg"
	"gorm.io/gorm"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateReference  = errors.New("transaction reference already exists")
	ErrTransactionArchived = errors.New("transaction is archived")
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// Create inserts a ledger entry. A clash on the reference code unique index
// is reported as ErrDuplicateReference.
func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	entity := toTransactionEntity(txn)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateReference
		}
		return nil, err
	}

	return toTransactionModel(entity), nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *TransactionRepository) GetByReference(ctx context.Context, code string) (*model.Transaction, error) {
	return r.first(ctx, "reference_code = ?", code)
}

func (r *TransactionRepository) first(ctx context.Context, query string, args ...any) (*model.Transaction, error) {
	var entity TransactionEntity
	err := r.Read(ctx).WithContext(ctx).Where(query, args...).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return toTransactionModel(&entity), nil
}

// ApplyMerge overwrites the non-nil fields. Archived entries are left
// untouched and reported as ErrTransactionArchived.
func (r *TransactionRepository) ApplyMerge(ctx context.Context, id int64, u model.MergeUpdate) error {
	fields := map[string]any{}
	if u.Name != nil {
		fields["counterparty_name"] = *u.Name
	}
	if u.Account != nil {
		fields["counterparty_account"] = *u.Account
	}
	if u.Source != nil {
		fields["source"] = string(*u.Source)
	}
	if u.Amount != nil {
		fields["amount"] = *u.Amount
	}
	if u.Fee != nil {
		fields["fee"] = *u.Fee
	}
	if u.OccurredAt != nil {
		fields["occurred_at"] = u.OccurredAt.UTC()
	}
	if len(fields) == 0 {
		return nil
	}
	return r.updateMutable(ctx, id, fields)
}

func (r *TransactionRepository) Classify(ctx context.Context, req model.ClassifyRequest) error {
	return r.updateMutable(ctx, req.TransactionID, map[string]any{
		"category":           req.Category,
		"confidence":         req.Confidence,
		"is_auto_classified": req.Auto,
		"status":             string(model.TransactionStatusClassified),
	})
}

func (r *TransactionRepository) Archive(ctx context.Context, id int64) error {
	return r.updateMutable(ctx, id, map[string]any{
		"status": string(model.TransactionStatusArchived),
	})
}

func (r *TransactionRepository) updateMutable(ctx context.Context, id int64, fields map[string]any) error {
	fields["updated_at"] = time.Now()

	result := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ? AND status <> ?", id, string(model.TransactionStatusArchived)).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// distinguish a missing row from an archived one
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrTransactionArchived
}

func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{})

	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		q = q.Where("type IN ?", types)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("status IN ?", statuses)
	}
	if f.Source != nil {
		q = q.Where("source = ?", string(*f.Source))
	}
	if f.From != nil {
		q = q.Where("occurred_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("occurred_at < ?", f.To.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "occurred_at ASC, id ASC"
	if f.Desc {
		order = "occurred_at DESC, id DESC"
	}
	limit, offset := page(f.Limit, f.Offset)

	var entities []*TransactionEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toTransactionModels(entities), total, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}
