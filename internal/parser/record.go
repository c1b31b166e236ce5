package parser

import (
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
)

// Record is the structured result of one recognised message. Optional
// monetary fields are nil when the message did not carry them; OccurredAt
// is zero when the message has no usable timestamp.
type Record struct {
	Kind              Kind
	Type              model.TransactionType
	Channel           model.SourceChannel
	ReferenceCode     string
	Amount            int64
	Currency          string
	CounterpartyName  string
	CounterpartyPhone string
	Account           string
	Fee               *int64
	Balance           *int64
	OccurredAt        time.Time

	// facility draws only
	Outstanding *int64
	DueDate     *time.Time

	// "to" or "from" for savings transfers
	Direction string
}

// FeeOrZero returns the fee in minor units, zero when absent.
func (r *Record) FeeOrZero() int64 {
	if r.Fee == nil {
		return 0
	}
	return *r.Fee
}

// IsPersonToPerson is true when the counterparty is identified by a phone number.
func (r *Record) IsPersonToPerson() bool {
	return r.CounterpartyPhone != ""
}

// OccurredOr returns the message timestamp, or fallback when the message had none.
func (r *Record) OccurredOr(fallback time.Time) time.Time {
	if r.OccurredAt.IsZero() {
		return fallback
	}
	return r.OccurredAt
}
