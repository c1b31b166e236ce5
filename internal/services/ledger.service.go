package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/repository"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionArchived = errors.New("transaction is archived")
	ErrInvalidCategory     = errors.New("category is required")
	ErrInvalidConfidence   = errors.New("confidence must be between 0 and 1")
)

// LedgerService is the read and classification surface over the ledger.
type LedgerService struct {
	txns     TransactionRepository
	messages RawMessageRepository
}

func NewLedgerService(txns TransactionRepository, messages RawMessageRepository) *LedgerService {
	return &LedgerService{
		txns:     txns,
		messages: messages,
	}
}

func (s *LedgerService) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	return s.txns.List(ctx, f)
}

func (s *LedgerService) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	txn, err := s.txns.GetByID(ctx, id)
	return txn, mapTransactionErr(err)
}

// Classify assigns a category. Archived entries are rejected.
func (s *LedgerService) Classify(ctx context.Context, req model.ClassifyRequest) (*model.Transaction, error) {
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		return nil, ErrInvalidCategory
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return nil, ErrInvalidConfidence
	}

	if err := s.txns.Classify(ctx, req); err != nil {
		return nil, fmt.Errorf("classify %d: %w", req.TransactionID, mapTransactionErr(err))
	}
	return s.GetTransaction(ctx, req.TransactionID)
}

func (s *LedgerService) Archive(ctx context.Context, id int64) error {
	if err := s.txns.Archive(ctx, id); err != nil {
		return fmt.Errorf("archive %d: %w", id, mapTransactionErr(err))
	}
	return nil
}

// ParseStats backs the "messages could not be parsed" surface.
func (s *LedgerService) ParseStats(ctx context.Context) (model.ParseStats, error) {
	return s.messages.CountByStatus(ctx)
}

func (s *LedgerService) ListMessages(ctx context.Context, f model.RawMessageFilter) ([]*model.RawMessage, int64, error) {
	return s.messages.List(ctx, f)
}

func mapTransactionErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrTransactionNotFound):
		return ErrTransactionNotFound
	case errors.Is(err, repository.ErrTransactionArchived):
		return ErrTransactionArchived
	}
	return err
}
