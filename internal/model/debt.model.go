package model

import (
	"errors"
	"time"
)

type DebtKind string

const (
	DebtKindRevolvingFacility DebtKind = "revolving_facility"
	DebtKindLoan              DebtKind = "loan"
	DebtKindOwedToPerson      DebtKind = "owed_to_person"
	DebtKindOwedByPerson      DebtKind = "owed_by_person"
)

type DebtStatus string

const (
	DebtStatusActive        DebtStatus = "active"
	DebtStatusPartiallyPaid DebtStatus = "partially_paid"
	DebtStatusPaid          DebtStatus = "paid"
	DebtStatusOverdue       DebtStatus = "overdue"
	DebtStatusWrittenOff    DebtStatus = "written_off"
)

// OpenDebtStatuses are the states in which a debt still accepts draws and repayments.
var OpenDebtStatuses = []DebtStatus{DebtStatusActive, DebtStatusPartiallyPaid, DebtStatusOverdue}

func (s DebtStatus) IsOpen() bool {
	for _, o := range OpenDebtStatuses {
		if s == o {
			return true
		}
	}
	return false
}

// Debt is a running-balance ledger entity. All amounts are minor units and
// TotalOutstanding never goes below zero.
type Debt struct {
	ID                  int64      `json:"id"`
	Kind                DebtKind   `json:"kind"`
	Principal           int64      `json:"principal"`
	FeesCharged         int64      `json:"fees_charged"`
	TotalOutstanding    int64      `json:"total_outstanding"`
	Currency            string     `json:"currency"`
	Counterparty        *string    `json:"counterparty,omitempty"`
	CounterpartyPhone   *string    `json:"counterparty_phone,omitempty"`
	Status              DebtStatus `json:"status"`
	DueDate             *time.Time `json:"due_date,omitempty"`
	OriginTransactionID *int64     `json:"origin_transaction_id,omitempty"`
	Notes               *string    `json:"notes,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DebtPayment is an append-only record of an amount applied against a Debt.
type DebtPayment struct {
	ID            int64     `json:"id"`
	DebtID        int64     `json:"debt_id"`
	Amount        int64     `json:"amount"`
	TransactionID *int64    `json:"transaction_id,omitempty"`
	PaidAt        time.Time `json:"paid_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// PeerDebtRequest is the input for recording a person-to-person debt.
type PeerDebtRequest struct {
	Kind          DebtKind   `json:"kind"`
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	Counterparty  string     `json:"counterparty"`
	Phone         *string    `json:"phone,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	TransactionID *int64     `json:"transaction_id,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

func (r PeerDebtRequest) Validate() error {
	if r.Kind != DebtKindOwedToPerson && r.Kind != DebtKindOwedByPerson {
		return errors.New("kind must be owed_to_person or owed_by_person")
	}
	if r.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	if r.Counterparty == "" {
		return errors.New("counterparty is required")
	}
	return nil
}

// DebtFilter controls List queries.
type DebtFilter struct {
	Kinds    []DebtKind
	Statuses []DebtStatus
	Limit    int
	Offset   int
}
