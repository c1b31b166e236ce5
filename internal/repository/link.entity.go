package repository

import (
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
)

type LinkEntity struct {
	ID            int64     `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	MessageID     int64     `db:"message_id"     gorm:"column:message_id;not null;uniqueIndex:uq_link_pair,priority:1"`
	RelatedID     int64     `db:"related_id"     gorm:"column:related_id;not null;uniqueIndex:uq_link_pair,priority:2"`
	ReferenceCode string    `db:"reference_code" gorm:"column:reference_code;not null;index;uniqueIndex:uq_link_pair,priority:3"`
	TransactionID *int64    `db:"transaction_id" gorm:"column:transaction_id"`
	CreatedAt     time.Time `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (LinkEntity) TableName() string {
	return "related_message_links"
}

func toLinkEntity(m *model.RelatedMessageLink) *LinkEntity {
	if m == nil {
		return nil
	}
	return &LinkEntity{
		ID:            m.ID,
		MessageID:     m.MessageID,
		RelatedID:     m.RelatedID,
		ReferenceCode: m.ReferenceCode,
		TransactionID: m.TransactionID,
		CreatedAt:     m.CreatedAt,
	}
}

func toLinkModel(e *LinkEntity) *model.RelatedMessageLink {
	if e == nil {
		return nil
	}
	return &model.RelatedMessageLink{
		ID:            e.ID,
		MessageID:     e.MessageID,
		RelatedID:     e.RelatedID,
		ReferenceCode: e.ReferenceCode,
		TransactionID: e.TransactionID,
		CreatedAt:     e.CreatedAt,
	}
}
