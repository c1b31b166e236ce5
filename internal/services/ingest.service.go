package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/parser"
	"github.com/nimasrn/sms-ledger/internal/repository"
	"github.com/nimasrn/sms-ledger/pkg/logger"
)

type OutcomeKind string

const (
	OutcomeNotFinancial  OutcomeKind = "not_financial"
	OutcomeFailedSkipped OutcomeKind = "failed_transaction_skipped"
	OutcomeParseFailed   OutcomeKind = "parse_failed"
	OutcomeDuplicate     OutcomeKind = "duplicate"
	OutcomeProcessed     OutcomeKind = "processed"
)

const (
	reasonNoOpenFacility = "repayment without an open facility"
	maxDuplicateRetries  = 1
)

// Outcome describes what happened to one inbound message.
type Outcome struct {
	Kind                OutcomeKind `json:"kind"`
	RawMessageID        int64       `json:"raw_message_id,omitempty"`
	TransactionID       int64       `json:"transaction_id,omitempty"`
	NeedsClassification bool        `json:"needs_classification"`
	IsPersonToPerson    bool        `json:"is_person_to_person"`
	Reason              string      `json:"reason,omitempty"`
}

type BatchSummary struct {
	Found         int `json:"found"`
	Processed     int `json:"processed"`
	Duplicates    int `json:"duplicates"`
	ParseFailed   int `json:"parse_failed"`
	NotFinancial  int `json:"not_financial"`
	FailedSkipped int `json:"failed_skipped"`
	Errors        int `json:"errors"`
}

func (b *BatchSummary) add(o *Outcome) {
	switch o.Kind {
	case OutcomeProcessed:
		b.Processed++
	case OutcomeDuplicate:
		b.Duplicates++
	case OutcomeParseFailed:
		b.ParseFailed++
	case OutcomeNotFinancial:
		b.NotFinancial++
	case OutcomeFailedSkipped:
		b.FailedSkipped++
	}
}

// Progress is reported after every message of a historical import.
type Progress struct {
	Done    int
	Total   int
	Summary BatchSummary
}

type ProgressFunc func(Progress)

// IngestService runs the filter, parse, dedupe, link and persist pipeline.
// Messages are applied one at a time; each message's writes commit together.
type IngestService struct {
	db       Transactor
	filter   MessageFilter
	parser   RecordParser
	messages RawMessageRepository
	txns     TransactionRepository
	linker   *LinkerService
	debts    *DebtService

	// single writer: duplicate detection is a check-then-insert
	mu sync.Mutex
}

func NewIngestService(db Transactor, filter MessageFilter, p RecordParser, messages RawMessageRepository, txns TransactionRepository, linker *LinkerService, debts *DebtService) *IngestService {
	return &IngestService{
		db:       db,
		filter:   filter,
		parser:   p,
		messages: messages,
		txns:     txns,
		linker:   linker,
		debts:    debts,
	}
}

func (s *IngestService) ProcessMessage(ctx context.Context, sender, body string, receivedAt time.Time) (*Outcome, error) {
	if !s.filter.ShouldProcess(sender, body) {
		return &Outcome{Kind: OutcomeNotFinancial}, nil
	}
	if s.filter.IsFailedTransaction(body) {
		return &Outcome{Kind: OutcomeFailedSkipped}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		out *Outcome
		err error
	)
	// another process may insert the same reference between our lookup and
	// insert; the unique index rejects it and the retry takes the duplicate path
	for attempt := 0; attempt <= maxDuplicateRetries; attempt++ {
		err = s.db.WithinTransaction(ctx, func(ctx context.Context) error {
			o, perr := s.process(ctx, sender, body, receivedAt)
			out = o
			return perr
		})
		if !errors.Is(err, repository.ErrDuplicateReference) {
			break
		}
		logger.Warn("reference inserted concurrently, retrying", "sender", sender)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("message ingested", "outcome", out.Kind, "raw_message_id", out.RawMessageID, "transaction_id", out.TransactionID)
	return out, nil
}

func (s *IngestService) process(ctx context.Context, sender, body string, receivedAt time.Time) (*Outcome, error) {
	raw, err := s.messages.Create(ctx, &model.RawMessage{
		Sender:      sender,
		Body:        body,
		ReceivedAt:  receivedAt,
		ParseStatus: model.ParseStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("store raw message: %w", err)
	}
	out := &Outcome{RawMessageID: raw.ID}

	rec, err := s.parser.Parse(body)
	if err != nil {
		if !errors.Is(err, parser.ErrNoMatch) {
			return nil, err
		}
		reason := err.Error()
		if err := s.messages.UpdateStatus(ctx, raw.ID, model.ParseStatusFailed, &reason); err != nil {
			return nil, err
		}
		out.Kind = OutcomeParseFailed
		out.Reason = reason
		return out, nil
	}
	occurred := rec.OccurredOr(receivedAt)

	existing, err := s.txns.GetByReference(ctx, rec.ReferenceCode)
	switch {
	case err == nil:
		if err := s.enrichDuplicate(ctx, raw.ID, body, existing); err != nil {
			return nil, err
		}
		out.Kind = OutcomeDuplicate
		out.TransactionID = existing.ID
		return out, s.markParsed(ctx, raw.ID)
	case !errors.Is(err, repository.ErrTransactionNotFound):
		return nil, fmt.Errorf("lookup %s: %w", rec.ReferenceCode, err)
	}

	if rec.Kind.IsDebtEvent() {
		var txn *model.Transaction
		if rec.Kind.IsRepayment() {
			txn, _, err = s.debts.ApplyRepayment(ctx, rec, raw.ID, occurred)
		} else {
			txn, _, err = s.debts.ApplyDraw(ctx, rec, raw.ID, occurred)
		}
		if err != nil {
			return nil, err
		}
		merged, err := s.linker.Link(ctx, raw.ID, body)
		if err != nil {
			return nil, err
		}
		out.Kind = OutcomeProcessed
		if txn != nil {
			out.TransactionID = txn.ID
			if merged != nil {
				if err := s.linker.Attach(ctx, merged.ReferenceCode, txn.ID); err != nil {
					return nil, err
				}
			}
		} else {
			out.Reason = reasonNoOpenFacility
		}
		return out, s.markParsed(ctx, raw.ID)
	}

	merged, err := s.linker.Link(ctx, raw.ID, body)
	if err != nil {
		return nil, err
	}

	txn, err := s.txns.Create(ctx, newLedgerTransaction(rec, merged, raw.ID, occurred))
	if err != nil {
		return nil, fmt.Errorf("create transaction %s: %w", rec.ReferenceCode, err)
	}
	if merged != nil {
		if err := s.linker.Attach(ctx, merged.ReferenceCode, txn.ID); err != nil {
			return nil, err
		}
	}

	out.Kind = OutcomeProcessed
	out.TransactionID = txn.ID
	out.NeedsClassification = true
	out.IsPersonToPerson = rec.IsPersonToPerson()
	return out, s.markParsed(ctx, raw.ID)
}

// enrichDuplicate links the new message into its group and lets a better
// display name or a missing account flow into the existing entry. When the
// entry was created from a bank or card message and the group now has a
// mobile-money record, that record's money fields take over.
func (s *IngestService) enrichDuplicate(ctx context.Context, rawID int64, body string, existing *model.Transaction) error {
	merged, err := s.linker.Link(ctx, rawID, body)
	if err != nil || merged == nil {
		return err
	}
	if err := s.linker.Attach(ctx, merged.ReferenceCode, existing.ID); err != nil {
		return err
	}
	if existing.IsArchived() {
		return nil
	}

	update := mergeUpdate(existing, merged)
	if update.IsEmpty() {
		return nil
	}

	err = s.txns.ApplyMerge(ctx, existing.ID, update)
	if errors.Is(err, repository.ErrTransactionArchived) {
		return nil
	}
	return err
}

func mergeUpdate(existing *model.Transaction, merged *MergedFields) model.MergeUpdate {
	var u model.MergeUpdate
	if utf8.RuneCountInString(merged.CounterpartyName) > utf8.RuneCountInString(existing.CounterpartyName) {
		u.Name = &merged.CounterpartyName
	}
	if existing.CounterpartyAccount == nil && merged.Account != "" {
		u.Account = &merged.Account
	}

	if merged.Channel != model.SourceMobileMoney || existing.Source == model.SourceMobileMoney {
		return u
	}
	source := merged.Channel
	u.Source = &source
	if merged.Amount != existing.Amount {
		amount := merged.Amount
		u.Amount = &amount
	}
	if merged.Fee != nil && *merged.Fee != existing.Fee {
		fee := *merged.Fee
		u.Fee = &fee
	}
	if !merged.OccurredAt.IsZero() && !merged.OccurredAt.Equal(existing.OccurredAt) {
		occurred := merged.OccurredAt
		u.OccurredAt = &occurred
	}
	return u
}

func (s *IngestService) markParsed(ctx context.Context, rawID int64) error {
	return s.messages.UpdateStatus(ctx, rawID, model.ParseStatusParsed, nil)
}

func newLedgerTransaction(rec *parser.Record, merged *MergedFields, rawID int64, occurred time.Time) *model.Transaction {
	txn := &model.Transaction{
		ReferenceCode:    rec.ReferenceCode,
		Type:             rec.Type,
		Source:           rec.Channel,
		Amount:           rec.Amount,
		Currency:         rec.Currency,
		Fee:              rec.FeeOrZero(),
		CounterpartyName: rec.CounterpartyName,
		Balance:          rec.Balance,
		RawMessageID:     &rawID,
		Status:           model.TransactionStatusPendingClassification,
		OccurredAt:       occurred,
	}
	phone, account := rec.CounterpartyPhone, rec.Account

	if merged != nil {
		txn.Source = merged.Channel
		txn.Amount = merged.Amount
		if merged.Fee != nil {
			txn.Fee = *merged.Fee
		}
		if !merged.OccurredAt.IsZero() {
			txn.OccurredAt = merged.OccurredAt
		}
		txn.CounterpartyName = merged.CounterpartyName
		if merged.CounterpartyPhone != "" {
			phone = merged.CounterpartyPhone
		}
		if merged.Account != "" {
			account = merged.Account
		}
	}
	if phone != "" {
		txn.CounterpartyPhone = &phone
	}
	if account != "" {
		txn.CounterpartyAccount = &account
	}
	return txn
}

// ImportHistorical replays a backlog in timestamp order. Cancellation is
// checked between messages; a message already started runs to completion.
// The first persistence error aborts the run and is returned together with
// the counts so far.
func (s *IngestService) ImportHistorical(ctx context.Context, msgs []model.InboundMessage, progress ProgressFunc) (BatchSummary, error) {
	ordered := make([]model.InboundMessage, len(msgs))
	copy(ordered, msgs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ReceivedAt.Before(ordered[j].ReceivedAt)
	})

	summary := BatchSummary{Found: len(ordered)}
	for i, m := range ordered {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		out, err := s.ProcessMessage(context.WithoutCancel(ctx), m.Sender, m.Body, m.ReceivedAt)
		if err != nil {
			summary.Errors++
			logger.Error("historical import aborted", "index", i, "sender", m.Sender, "error", err)
			return summary, fmt.Errorf("message %d of %d: %w", i+1, len(ordered), err)
		}
		summary.add(out)

		if progress != nil {
			progress(Progress{Done: i + 1, Total: len(ordered), Summary: summary})
		}
	}

	logger.Info("historical import finished",
		"found", summary.Found,
		"processed", summary.Processed,
		"duplicates", summary.Duplicates,
		"parse_failed", summary.ParseFailed)
	return summary, nil
}
