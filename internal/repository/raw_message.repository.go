package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/pkg/pg"
	"gorm.io/gorm"
)

var ErrRawMessageNotFound = errors.New("raw message not found")

type RawMessageRepository struct {
	*pg.DB
}

func NewRawMessageRepository(db *pg.DB) *RawMessageRepository {
	return &RawMessageRepository{
		db,
	}
}

func (r *RawMessageRepository) Create(ctx context.Context, msg *model.RawMessage) (*model.RawMessage, error) {
	entity := toRawMessageEntity(msg)
	if entity.ParseStatus == "" {
		entity.ParseStatus = string(model.ParseStatusPending)
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toRawMessageModel(entity), nil
}

func (r *RawMessageRepository) GetByID(ctx context.Context, id int64) (*model.RawMessage, error) {
	var entity RawMessageEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRawMessageNotFound
		}
		return nil, err
	}
	return toRawMessageModel(&entity), nil
}

// UpdateStatus sets the parse status; reason is stored for failed messages
// and cleared otherwise.
func (r *RawMessageRepository) UpdateStatus(ctx context.Context, id int64, status model.ParseStatus, reason *string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&RawMessageEntity{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"parse_status": string(status),
			"parse_error":  reason,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRawMessageNotFound
	}
	return nil
}

func (r *RawMessageRepository) SetLinkedReference(ctx context.Context, id int64, code string) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&RawMessageEntity{}).
		Where("id = ?", id).
		Update("linked_reference", code)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRawMessageNotFound
	}
	return nil
}

// ListByReference returns every message tagged with code, oldest first.
func (r *RawMessageRepository) ListByReference(ctx context.Context, code string) ([]*model.RawMessage, error) {
	var entities []*RawMessageEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("linked_reference = ?", code).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toRawMessageModels(entities), nil
}

func (r *RawMessageRepository) List(ctx context.Context, f model.RawMessageFilter) ([]*model.RawMessage, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&RawMessageEntity{})

	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		q = q.Where("parse_status IN ?", statuses)
	}
	if f.Sender != nil && *f.Sender != "" {
		q = q.Where("sender = ?", *f.Sender)
	}
	if f.From != nil {
		q = q.Where("received_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("received_at < ?", f.To.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "received_at ASC, id ASC"
	if f.Desc {
		order = "received_at DESC, id DESC"
	}
	limit, offset := page(f.Limit, f.Offset)

	var entities []*RawMessageEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toRawMessageModels(entities), total, nil
}

// CountByStatus aggregates messages per parse status.
func (r *RawMessageRepository) CountByStatus(ctx context.Context) (model.ParseStats, error) {
	var rows []struct {
		ParseStatus string
		Total       int64
	}
	err := r.Read(ctx).WithContext(ctx).
		Model(&RawMessageEntity{}).
		Select("parse_status, COUNT(*) AS total").
		Group("parse_status").
		Scan(&rows).Error
	if err != nil {
		return model.ParseStats{}, err
	}

	var stats model.ParseStats
	for _, row := range rows {
		switch model.ParseStatus(row.ParseStatus) {
		case model.ParseStatusPending:
			stats.Pending = row.Total
		case model.ParseStatusParsed:
			stats.Parsed = row.Total
		case model.ParseStatusFailed:
			stats.Failed = row.Total
		case model.ParseStatusIgnored:
			stats.Ignored = row.Total
		}
	}
	return stats, nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
