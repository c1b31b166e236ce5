package repository

import (
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
)

type TransactionEntity struct {
	ID                  int64     `db:"id"                   gorm:"primaryKey;autoIncrement;column:id"`
	ReferenceCode       string    `db:"reference_code"       gorm:"column:reference_code;not null;uniqueIndex"`
	SecondaryReference  *string   `db:"secondary_reference"  gorm:"column:secondary_reference"`
	Type                string    `db:"type"                 gorm:"column:type;not null;index"`
	Source              string    `db:"source"               gorm:"column:source;not null"`
	Amount              int64     `db:"amount"               gorm:"column:amount;not null"`
	Currency            string    `db:"currency"             gorm:"column:currency;not null;default:KES"`
	Fee                 int64     `db:"fee"                  gorm:"column:fee;not null;default:0"`
	CounterpartyName    string    `db:"counterparty_name"    gorm:"column:counterparty_name;not null"`
	CounterpartyPhone   *string   `db:"counterparty_phone"   gorm:"column:counterparty_phone"`
	CounterpartyAccount *string   `db:"counterparty_account" gorm:"column:counterparty_account"`
	Category            *string   `db:"category"             gorm:"column:category"`
	IsAutoClassified    bool      `db:"is_auto_classified"   gorm:"column:is_auto_classified;not null;default:false"`
	Confidence          float64   `db:"confidence"           gorm:"column:confidence;not null;default:0"`
	Balance             *int64    `db:"balance"              gorm:"column:balance"`
	RawMessageID        *int64    `db:"raw_message_id"       gorm:"column:raw_message_id;index"`
	Status              string    `db:"status"               gorm:"column:status;not null;index"`
	OccurredAt          time.Time `db:"occurred_at"          gorm:"column:occurred_at;not null;index"`
	CreatedAt           time.Time `db:"created_at"           gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time `db:"updated_at"           gorm:"column:updated_at;autoUpdateTime"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	return &TransactionEntity{
		ID:                  m.ID,
		ReferenceCode:       m.ReferenceCode,
		SecondaryReference:  m.SecondaryReference,
		Type:                string(m.Type),
		Source:              string(m.Source),
		Amount:              m.Amount,
		Currency:            m.Currency,
		Fee:                 m.Fee,
		CounterpartyName:    m.CounterpartyName,
		CounterpartyPhone:   m.CounterpartyPhone,
		CounterpartyAccount: m.CounterpartyAccount,
		Category:            m.Category,
		IsAutoClassified:    m.IsAutoClassified,
		Confidence:          m.Confidence,
		Balance:             m.Balance,
		RawMessageID:        m.RawMessageID,
		Status:              string(m.Status),
		OccurredAt:          m.OccurredAt.UTC(),
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	return &model.Transaction{
		ID:                  e.ID,
		ReferenceCode:       e.ReferenceCode,
		SecondaryReference:  e.SecondaryReference,
		Type:                model.TransactionType(e.Type),
		Source:              model.SourceChannel(e.Source),
		Amount:              e.Amount,
		Currency:            e.Currency,
		Fee:                 e.Fee,
		CounterpartyName:    e.CounterpartyName,
		CounterpartyPhone:   e.CounterpartyPhone,
		CounterpartyAccount: e.CounterpartyAccount,
		Category:            e.Category,
		IsAutoClassified:    e.IsAutoClassified,
		Confidence:          e.Confidence,
		Balance:             e.Balance,
		RawMessageID:        e.RawMessageID,
		Status:              model.TransactionStatus(e.Status),
		OccurredAt:          e.OccurredAt,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}
