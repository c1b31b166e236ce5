package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/parser"
	"github.com/nimasrn/sms-ledger/internal/repository"
	"github.com/nimasrn/sms-ledger/pkg/logger"
)

var (
	ErrDebtNotFound = errors.New("debt not found")
	ErrDebtClosed   = errors.New("debt is already settled")
	ErrInvalidDebt  = errors.New("invalid debt request")
	ErrNotDebtEvent = errors.New("record is not a debt event")
)

const facilityName = "Fuliza M-PESA"

// DebtService maintains running balances for debt instruments. Draw and
// repayment handlers expect to run inside the caller's unit of work.
type DebtService struct {
	debts DebtRepository
	txns  TransactionRepository
}

func NewDebtService(debts DebtRepository, txns TransactionRepository) *DebtService {
	return &DebtService{
		debts: debts,
		txns:  txns,
	}
}

// ApplyDraw books a facility draw. An open facility is updated in place:
// fees accumulate, outstanding is replaced by the reported total and the due
// date refreshed. Otherwise a new facility is opened.
func (s *DebtService) ApplyDraw(ctx context.Context, rec *parser.Record, rawID int64, occurred time.Time) (*model.Transaction, *model.Debt, error) {
	if rec.Kind != parser.KindFulizaDraw {
		return nil, nil, ErrNotDebtEvent
	}

	txn, err := s.txns.Create(ctx, debtTransaction(rec, rawID, occurred))
	if err != nil {
		return nil, nil, fmt.Errorf("create draw transaction: %w", err)
	}

	fee := rec.FeeOrZero()

	open, err := s.debts.FindOpenByKind(ctx, model.DebtKindRevolvingFacility)
	switch {
	case errors.Is(err, repository.ErrDebtNotFound):
		outstanding := rec.Amount + fee
		if rec.Outstanding != nil {
			outstanding = *rec.Outstanding
		}
		name := facilityName
		debt, err := s.debts.Create(ctx, &model.Debt{
			Kind:                model.DebtKindRevolvingFacility,
			Principal:           rec.Amount,
			FeesCharged:         fee,
			TotalOutstanding:    outstanding,
			Currency:            rec.Currency,
			Counterparty:        &name,
			Status:              model.DebtStatusActive,
			DueDate:             rec.DueDate,
			OriginTransactionID: &txn.ID,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open facility: %w", err)
		}
		logger.Info("facility opened", "debt_id", debt.ID, "outstanding", parser.FormatMinor(outstanding))
		return txn, debt, nil
	case err != nil:
		return nil, nil, fmt.Errorf("find open facility: %w", err)
	}

	// the message reports the new total, not a delta
	outstanding := open.TotalOutstanding + rec.Amount + fee
	if rec.Outstanding != nil {
		outstanding = *rec.Outstanding
	}
	open.Principal += rec.Amount
	open.FeesCharged += fee
	open.TotalOutstanding = outstanding
	if rec.DueDate != nil {
		open.DueDate = rec.DueDate
		if open.Status == model.DebtStatusOverdue && rec.DueDate.After(occurred) {
			open.Status = model.DebtStatusActive
		}
	}
	if err := s.debts.Update(ctx, open); err != nil {
		return nil, nil, fmt.Errorf("update facility %d: %w", open.ID, err)
	}
	logger.Info("facility drawn", "debt_id", open.ID, "outstanding", parser.FormatMinor(outstanding))
	return txn, open, nil
}

// ApplyRepayment books a repayment against the open facility. Without an
// open facility the event is dropped and (nil, nil, nil) returned.
func (s *DebtService) ApplyRepayment(ctx context.Context, rec *parser.Record, rawID int64, occurred time.Time) (*model.Transaction, *model.Debt, error) {
	if !rec.Kind.IsRepayment() {
		return nil, nil, ErrNotDebtEvent
	}

	open, err := s.debts.FindOpenByKind(ctx, model.DebtKindRevolvingFacility)
	if errors.Is(err, repository.ErrDebtNotFound) {
		logger.Warn("repayment without open facility dropped", "reference", rec.ReferenceCode, "amount", parser.FormatMinor(rec.Amount))
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("find open facility: %w", err)
	}

	txn, err := s.txns.Create(ctx, debtTransaction(rec, rawID, occurred))
	if err != nil {
		return nil, nil, fmt.Errorf("create repayment transaction: %w", err)
	}

	if _, err := s.debts.AddPayment(ctx, &model.DebtPayment{
		DebtID:        open.ID,
		Amount:        rec.Amount,
		TransactionID: &txn.ID,
		PaidAt:        occurred,
	}); err != nil {
		return nil, nil, fmt.Errorf("record payment: %w", err)
	}

	open.TotalOutstanding = max(0, open.TotalOutstanding-rec.Amount)
	if open.TotalOutstanding == 0 {
		open.Status = model.DebtStatusPaid
	} else {
		open.Status = model.DebtStatusPartiallyPaid
	}
	if err := s.debts.Update(ctx, open); err != nil {
		return nil, nil, fmt.Errorf("update facility %d: %w", open.ID, err)
	}
	logger.Info("facility repaid", "debt_id", open.ID, "status", open.Status, "outstanding", parser.FormatMinor(open.TotalOutstanding))
	return txn, open, nil
}

func debtTransaction(rec *parser.Record, rawID int64, occurred time.Time) *model.Transaction {
	txType := model.TransactionTypeDebt
	if rec.Kind.IsRepayment() {
		txType = model.TransactionTypeDebtRepayment
	}
	category := model.SystemCategoryDebt
	return &model.Transaction{
		ReferenceCode:    rec.ReferenceCode,
		Type:             txType,
		Source:           rec.Channel,
		Amount:           rec.Amount,
		Currency:         rec.Currency,
		Fee:              rec.FeeOrZero(),
		CounterpartyName: rec.CounterpartyName,
		Category:         &category,
		IsAutoClassified: true,
		Confidence:       1,
		Balance:          rec.Balance,
		RawMessageID:     &rawID,
		Status:           model.TransactionStatusClassified,
		OccurredAt:       occurred,
	}
}

// CreatePeerDebt records a person-to-person debt. When it originates from a
// ledger entry still awaiting classification, that entry is classified as a
// debt movement.
func (s *DebtService) CreatePeerDebt(ctx context.Context, req model.PeerDebtRequest) (*model.Debt, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDebt, err)
	}
	if req.Currency == "" {
		req.Currency = parser.DefaultCurrency
	}

	if req.TransactionID != nil {
		txn, err := s.txns.GetByID(ctx, *req.TransactionID)
		if err != nil {
			if errors.Is(err, repository.ErrTransactionNotFound) {
				return nil, ErrTransactionNotFound
			}
			return nil, err
		}
		if txn.Status == model.TransactionStatusPendingClassification {
			if err := s.txns.Classify(ctx, model.ClassifyRequest{
				TransactionID: txn.ID,
				Category:      model.SystemCategoryDebt,
				Confidence:    1,
			}); err != nil {
				return nil, fmt.Errorf("classify origin transaction: %w", err)
			}
		}
	}

	counterparty := req.Counterparty
	return s.debts.Create(ctx, &model.Debt{
		Kind:                req.Kind,
		Principal:           req.Amount,
		TotalOutstanding:    req.Amount,
		Currency:            req.Currency,
		Counterparty:        &counterparty,
		CounterpartyPhone:   req.Phone,
		Status:              model.DebtStatusActive,
		DueDate:             req.DueDate,
		OriginTransactionID: req.TransactionID,
		Notes:               req.Notes,
	})
}

// SweepOverdue marks open debts past their due date as overdue.
func (s *DebtService) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.debts.MarkOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep overdue: %w", err)
	}
	if n > 0 {
		logger.Info("debts marked overdue", "count", n)
	}
	return n, nil
}

func (s *DebtService) MarkPaid(ctx context.Context, id int64) (*model.Debt, error) {
	debt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch debt.Status {
	case model.DebtStatusPaid:
		return debt, nil
	case model.DebtStatusWrittenOff:
		return nil, ErrDebtClosed
	}

	debt.TotalOutstanding = 0
	debt.Status = model.DebtStatusPaid
	if err := s.debts.Update(ctx, debt); err != nil {
		return nil, err
	}
	return debt, nil
}

// WriteOff closes a debt as uncollectible; the outstanding amount is kept
// for reporting.
func (s *DebtService) WriteOff(ctx context.Context, id int64) (*model.Debt, error) {
	debt, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch debt.Status {
	case model.DebtStatusWrittenOff:
		return debt, nil
	case model.DebtStatusPaid:
		return nil, ErrDebtClosed
	}

	debt.Status = model.DebtStatusWrittenOff
	if err := s.debts.Update(ctx, debt); err != nil {
		return nil, err
	}
	return debt, nil
}

func (s *DebtService) ListDebts(ctx context.Context, f model.DebtFilter) ([]*model.Debt, int64, error) {
	return s.debts.List(ctx, f)
}

func (s *DebtService) ListPayments(ctx context.Context, debtID int64) ([]*model.DebtPayment, error) {
	if _, err := s.get(ctx, debtID); err != nil {
		return nil, err
	}
	return s.debts.ListPayments(ctx, debtID)
}

func (s *DebtService) get(ctx context.Context, id int64) (*model.Debt, error) {
	debt, err := s.debts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDebtNotFound) {
			return nil, ErrDebtNotFound
		}
		return nil, err
	}
	return debt, nil
}
