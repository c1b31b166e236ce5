package repository

import (
	"context"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/pkg/pg"
	"gorm.io/gorm/clause"
)

type LinkRepository struct {
	*pg.DB
}

func NewLinkRepository(db *pg.DB) *LinkRepository {
	return &LinkRepository{
		db,
	}
}

// CreateIfAbsent stores an edge between two messages. The pair is stored in
// ascending id order so (a,b) and (b,a) collapse into one row; created is
// false when the edge already existed.
func (r *LinkRepository) CreateIfAbsent(ctx context.Context, link *model.RelatedMessageLink) (bool, error) {
	entity := toLinkEntity(link)
	if entity.MessageID > entity.RelatedID {
		entity.MessageID, entity.RelatedID = entity.RelatedID, entity.MessageID
	}

	result := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entity)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *LinkRepository) ListByReference(ctx context.Context, code string) ([]*model.RelatedMessageLink, error) {
	var entities []*LinkEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("reference_code = ?", code).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	links := make([]*model.RelatedMessageLink, len(entities))
	for i, e := range entities {
		links[i] = toLinkModel(e)
	}
	return links, nil
}

// AttachTransaction records the ledger entry a group of linked messages resolved to.
func (r *LinkRepository) AttachTransaction(ctx context.Context, code string, transactionID int64) error {
	return r.Write(ctx).WithContext(ctx).
		Model(&LinkEntity{}).
		Where("reference_code = ? AND transaction_id IS NULL", code).
		Update("transaction_id", transactionID).Error
}
