package repository

import (
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
)

type RawMessageEntity struct {
	ID              int64     `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	Sender          string    `db:"sender"           gorm:"column:sender;not null"`
	Body            string    `db:"body"             gorm:"column:body;not null"`
	ReceivedAt      time.Time `db:"received_at"      gorm:"column:received_at;not null;index"`
	ParseStatus     string    `db:"parse_status"     gorm:"column:parse_status;not null;index"`
	ParseError      *string   `db:"parse_error"      gorm:"column:parse_error"`
	LinkedReference *string   `db:"linked_reference" gorm:"column:linked_reference;index"`
	CreatedAt       time.Time `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
}

func (RawMessageEntity) TableName() string {
	return "raw_messages"
}

func toRawMessageEntity(m *model.RawMessage) *RawMessageEntity {
	if m == nil {
		return nil
	}
	return &RawMessageEntity{
		ID:              m.ID,
		Sender:          m.Sender,
		Body:            m.Body,
		ReceivedAt:      m.ReceivedAt.UTC(),
		ParseStatus:     string(m.ParseStatus),
		ParseError:      m.ParseError,
		LinkedReference: m.LinkedReference,
		CreatedAt:       m.CreatedAt,
	}
}

func toRawMessageModel(e *RawMessageEntity) *model.RawMessage {
	if e == nil {
		return nil
	}
	return &model.RawMessage{
		ID:              e.ID,
		Sender:          e.Sender,
		Body:            e.Body,
		ReceivedAt:      e.ReceivedAt,
		ParseStatus:     model.ParseStatus(e.ParseStatus),
		ParseError:      e.ParseError,
		LinkedReference: e.LinkedReference,
		CreatedAt:       e.CreatedAt,
	}
}

func toRawMessageModels(entities []*RawMessageEntity) []*model.RawMessage {
	if entities == nil {
		return nil
	}
	models := make([]*model.RawMessage, len(entities))
	for i, e := range entities {
		models[i] = toRawMessageModel(e)
	}
	return models
}
