package model

import "time"

type TransactionType string

const (
	TransactionTypeIncome        TransactionType = "income"
	TransactionTypeExpense       TransactionType = "expense"
	TransactionTypeTransfer      TransactionType = "transfer"
	TransactionTypeDebt          TransactionType = "debt"
	TransactionTypeDebtRepayment TransactionType = "debt_repayment"
)

type SourceChannel string

const (
	SourceMobileMoney SourceChannel = "mobile_money"
	SourceBank        SourceChannel = "bank"
	SourceCard        SourceChannel = "card"
	SourceManual      SourceChannel = "manual"
)

type TransactionStatus string

const (
	TransactionStatusPendingClassification TransactionStatus = "pending_classification"
	TransactionStatusClassified            TransactionStatus = "classified"
	TransactionStatusArchived              TransactionStatus = "archived"
	TransactionStatusDuplicate             TransactionStatus = "duplicate"
)

// SystemCategoryDebt tags ledger entries emitted by the debt reconciler.
const SystemCategoryDebt = "Debt & Loans"

// Transaction is the canonical ledger entry. Amount, Fee and Balance are
// integral minor currency units.
type Transaction struct {
	ID                  int64             `json:"id"`
	ReferenceCode       string            `json:"reference_code"`
	SecondaryReference  *string           `json:"secondary_reference,omitempty"`
	Type                TransactionType   `json:"type"`
	Source              SourceChannel     `json:"source"`
	Amount              int64             `json:"amount"`
	Currency            string            `json:"currency"`
	Fee                 int64             `json:"fee"`
	CounterpartyName    string            `json:"counterparty_name"`
	CounterpartyPhone   *string           `json:"counterparty_phone,omitempty"`
	CounterpartyAccount *string           `json:"counterparty_account,omitempty"`
	Category            *string           `json:"category,omitempty"`
	IsAutoClassified    bool              `json:"is_auto_classified"`
	Confidence          float64           `json:"confidence"`
	Balance             *int64            `json:"balance,omitempty"`
	RawMessageID        *int64            `json:"raw_message_id,omitempty"`
	Status              TransactionStatus `json:"status"`
	OccurredAt          time.Time         `json:"occurred_at"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func (t *Transaction) IsArchived() bool {
	return t.Status == TransactionStatusArchived
}

// TransactionFilter controls List queries.
type TransactionFilter struct {
	Types    []TransactionType
	Statuses []TransactionStatus
	Source   *SourceChannel
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
	Desc     bool
}

// MergeUpdate carries enrichment from a correlated message. Nil fields are
// left as stored.
type MergeUpdate struct {
	Name       *string
	Account    *string
	Source     *SourceChannel
	Amount     *int64
	Fee        *int64
	OccurredAt *time.Time
}

func (u MergeUpdate) IsEmpty() bool {
	return u.Name == nil && u.Account == nil && u.Source == nil &&
		u.Amount == nil && u.Fee == nil && u.OccurredAt == nil
}

// ClassifyRequest assigns a category to a pending transaction.
type ClassifyRequest struct {
	TransactionID int64   `json:"transaction_id"`
	Category      string  `json:"category"`
	Confidence    float64 `json:"confidence"`
	Auto          bool    `json:"auto"`
}

// RelatedMessageLink is an edge between two raw messages sharing a reference code.
type RelatedMessageLink struct {
	ID            int64     `json:"id"`
	MessageID     int64     `json:"message_id"`
	RelatedID     int64     `json:"related_id"`
	ReferenceCode string    `json:"reference_code"`
	TransactionID *int64    `json:"transaction_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
