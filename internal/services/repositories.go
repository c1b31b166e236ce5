package services

import (
	"context"
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/parser"
)

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type RawMessageRepository interface {
	Create(ctx context.Context, msg *model.RawMessage) (*model.RawMessage, error)
	GetByID(ctx context.Context, id int64) (*model.RawMessage, error)
	UpdateStatus(ctx context.Context, id int64, status model.ParseStatus, reason *string) error
	SetLinkedReference(ctx context.Context, id int64, code string) error
	ListByReference(ctx context.Context, code string) ([]*model.RawMessage, error)
	List(ctx context.Context, f model.RawMessageFilter) ([]*model.RawMessage, int64, error)
	CountByStatus(ctx context.Context) (model.ParseStats, error)
}

type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetByID(ctx context.Context, id int64) (*model.Transaction, error)
	GetByReference(ctx context.Context, code string) (*model.Transaction, error)
	ApplyMerge(ctx context.Context, id int64, u model.MergeUpdate) error
	Classify(ctx context.Context, req model.ClassifyRequest) error
	Archive(ctx context.Context, id int64) error
	List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) // results, totalCount
}

type LinkRepository interface {
	CreateIfAbsent(ctx context.Context, link *model.RelatedMessageLink) (bool, error)
	AttachTransaction(ctx context.Context, code string, transactionID int64) error
}

type DebtRepository interface {
	Create(ctx context.Context, debt *model.Debt) (*model.Debt, error)
	GetByID(ctx context.Context, id int64) (*model.Debt, error)
	FindOpenByKind(ctx context.Context, kind model.DebtKind) (*model.Debt, error)
	Update(ctx context.Context, debt *model.Debt) error
	AddPayment(ctx context.Context, p *model.DebtPayment) (*model.DebtPayment, error)
	ListPayments(ctx context.Context, debtID int64) ([]*model.DebtPayment, error)
	List(ctx context.Context, f model.DebtFilter) ([]*model.Debt, int64, error)
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

type RecordParser interface {
	Parse(body string) (*parser.Record, error)
}

type MessageFilter interface {
	ShouldProcess(sender, body string) bool
	IsFailedTransaction(body string) bool
}
