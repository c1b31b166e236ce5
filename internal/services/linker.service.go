package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/parser"
	"github.com/nimasrn/sms-ledger/pkg/logger"
)

var referenceToken = regexp.MustCompile(`\b[A-Z]{2,3}[A-Z0-9]{7,8}\b`)

// ExtractReferenceCodes returns the distinct reference codes in body in the
// order they first appear. Tokens without a digit are ignored.
func ExtractReferenceCodes(body string) []string {
	var codes []string
	seen := map[string]struct{}{}
	for _, tok := range referenceToken.FindAllString(parser.Normalize(body), -1) {
		if !strings.ContainsAny(tok, "0123456789") {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		codes = append(codes, tok)
	}
	return codes
}

// MergedFields is the combined view of every message sharing a reference code.
type MergedFields struct {
	ReferenceCode     string
	Channel           model.SourceChannel
	Amount            int64
	Fee               *int64
	OccurredAt        time.Time
	CounterpartyName  string
	CounterpartyPhone string
	Account           string
	MessageIDs        []int64
}

// Merge folds records of one group together. The first mobile-money record
// (or the first record when there is none) supplies amount, reference, date
// and fee. Any other record replaces the display name only with a strictly
// longer one and fills an empty account.
func Merge(records []*parser.Record) *MergedFields {
	if len(records) == 0 {
		return nil
	}

	base := records[0]
	for _, r := range records {
		if r.Channel == model.SourceMobileMoney {
			base = r
			break
		}
	}

	m := &MergedFields{
		ReferenceCode:     base.ReferenceCode,
		Channel:           base.Channel,
		Amount:            base.Amount,
		Fee:               base.Fee,
		OccurredAt:        base.OccurredAt,
		CounterpartyName:  base.CounterpartyName,
		CounterpartyPhone: base.CounterpartyPhone,
		Account:           base.Account,
	}
	for _, r := range records {
		if r == base {
			continue
		}
		if utf8.RuneCountInString(r.CounterpartyName) > utf8.RuneCountInString(m.CounterpartyName) {
			m.CounterpartyName = r.CounterpartyName
		}
		if m.Account == "" && r.Account != "" {
			m.Account = r.Account
		}
		if m.CounterpartyPhone == "" && r.CounterpartyPhone != "" {
			m.CounterpartyPhone = r.CounterpartyPhone
		}
	}
	return m
}

type LinkerService struct {
	messages RawMessageRepository
	links    LinkRepository
	parser   RecordParser
}

func NewLinkerService(messages RawMessageRepository, links LinkRepository, p RecordParser) *LinkerService {
	return &LinkerService{
		messages: messages,
		links:    links,
		parser:   p,
	}
}

// Link tags the raw message with its primary reference code, records an
// edge to every earlier message carrying the same code and returns the
// merge of the whole group. It returns nil when body has no code.
func (s *LinkerService) Link(ctx context.Context, rawID int64, body string) (*MergedFields, error) {
	codes := ExtractReferenceCodes(body)
	if len(codes) == 0 {
		return nil, nil
	}
	primary := codes[0]

	if err := s.messages.SetLinkedReference(ctx, rawID, primary); err != nil {
		return nil, fmt.Errorf("tag message %d: %w", rawID, err)
	}

	group, err := s.messages.ListByReference(ctx, primary)
	if err != nil {
		return nil, fmt.Errorf("list group %s: %w", primary, err)
	}

	records := make([]*parser.Record, 0, len(group))
	ids := make([]int64, 0, len(group))
	for _, msg := range group {
		ids = append(ids, msg.ID)
		if msg.ID != rawID {
			_, err := s.links.CreateIfAbsent(ctx, &model.RelatedMessageLink{
				MessageID:     rawID,
				RelatedID:     msg.ID,
				ReferenceCode: primary,
			})
			if err != nil {
				return nil, fmt.Errorf("link %d-%d: %w", rawID, msg.ID, err)
			}
		}

		rec, err := s.parser.Parse(msg.Body)
		if err != nil {
			logger.Debug("linked message does not parse", "raw_message_id", msg.ID, "error", err)
			continue
		}
		records = append(records, rec)
	}

	merged := Merge(records)
	if merged == nil {
		return nil, nil
	}
	merged.MessageIDs = ids
	return merged, nil
}

// Attach points the group's edges at the ledger entry they resolved to.
func (s *LinkerService) Attach(ctx context.Context, code string, transactionID int64) error {
	return s.links.AttachTransaction(ctx, code, transactionID)
}
