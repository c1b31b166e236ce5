package repository

import (
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
)

type DebtEntity struct {
	ID                  int64      `db:"id"                    gorm:"primaryKey;autoIncrement;column:id"`
	Kind                string     `db:"kind"                  gorm:"column:kind;not null;index"`
	Principal           int64      `db:"principal"             gorm:"column:principal;not null;default:0"`
	FeesCharged         int64      `db:"fees_charged"          gorm:"column:fees_charged;not null;default:0"`
	TotalOutstanding    int64      `db:"total_outstanding"     gorm:"column:total_outstanding;not null;default:0"`
	Currency            string     `db:"currency"              gorm:"column:currency;not null;default:KES"`
	Counterparty        *string    `db:"counterparty"          gorm:"column:counterparty"`
	CounterpartyPhone   *string    `db:"counterparty_phone"    gorm:"column:counterparty_phone"`
	Status              string     `db:"status"                gorm:"column:status;not null;index"`
	DueDate             *time.Time `db:"due_date"              gorm:"column:due_date;index"`
	OriginTransactionID *int64     `db:"origin_transaction_id" gorm:"column:origin_transaction_id"`
	Notes               *string    `db:"notes"                 gorm:"column:notes"`
	CreatedAt           time.Time  `db:"created_at"            gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `db:"updated_at"            gorm:"column:updated_at;autoUpdateTime"`
}

func (DebtEntity) TableName() string {
	return "debts"
}

type DebtPaymentEntity struct {
	ID            int64     `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	DebtID        int64     `db:"debt_id"        gorm:"column:debt_id;not null;index"`
	Amount        int64     `db:"amount"         gorm:"column:amount;not null"`
	TransactionID *int64    `db:"transaction_id" gorm:"column:transaction_id"`
	PaidAt        time.Time `db:"paid_at"        gorm:"column:paid_at;not null"`
	CreatedAt     time.Time `db:"created_at"     gorm:"column:created_at;autoCreateTime"`
}

func (DebtPaymentEntity) TableName() string {
	return "debt_payments"
}

func toDebtEntity(m *model.Debt) *DebtEntity {
	if m == nil {
		return nil
	}
	return &DebtEntity{
		ID:                  m.ID,
		Kind:                string(m.Kind),
		Principal:           m.Principal,
		FeesCharged:         m.FeesCharged,
		TotalOutstanding:    m.TotalOutstanding,
		Currency:            m.Currency,
		Counterparty:        m.Counterparty,
		CounterpartyPhone:   m.CounterpartyPhone,
		Status:              string(m.Status),
		DueDate:             utcPtr(m.DueDate),
		OriginTransactionID: m.OriginTransactionID,
		Notes:               m.Notes,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func toDebtModel(e *DebtEntity) *model.Debt {
	if e == nil {
		return nil
	}
	return &model.Debt{
		ID:                  e.ID,
		Kind:                model.DebtKind(e.Kind),
		Principal:           e.Principal,
		FeesCharged:         e.FeesCharged,
		TotalOutstanding:    e.TotalOutstanding,
		Currency:            e.Currency,
		Counterparty:        e.Counterparty,
		CounterpartyPhone:   e.CounterpartyPhone,
		Status:              model.DebtStatus(e.Status),
		DueDate:             e.DueDate,
		OriginTransactionID: e.OriginTransactionID,
		Notes:               e.Notes,
		CreatedAt:           e.CreatedAt,
		UpdatedAt:           e.UpdatedAt,
	}
}

func toDebtPaymentModel(e *DebtPaymentEntity) *model.DebtPayment {
	if e == nil {
		return nil
	}
	return &model.DebtPayment{
		ID:            e.ID,
		DebtID:        e.DebtID,
		Amount:        e.Amount,
		TransactionID: e.TransactionID,
		PaidAt:        e.PaidAt,
		CreatedAt:     e.CreatedAt,
	}
}

// timestamps are stored in UTC so range predicates compare correctly on
// stores without a zoned timestamp type
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
