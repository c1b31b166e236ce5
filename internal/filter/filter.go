package filter

import (
	"strings"

	"github.com/nimasrn/sms-ledger/internal/model"
)

type Institution string

const (
	InstitutionMobileMoney Institution = "mobile_money"
	InstitutionBank        Institution = "bank"
	InstitutionCard        Institution = "card"
	InstitutionUnknown     Institution = "unknown"
)

// Channel maps an institution onto the ledger's source channel.
func (i Institution) Channel() (model.SourceChannel, bool) {
	switch i {
	case InstitutionMobileMoney:
		return model.SourceMobileMoney, true
	case InstitutionBank:
		return model.SourceBank, true
	case InstitutionCard:
		return model.SourceCard, true
	}
	return "", false
}

// Filter is the pre-storage gate in front of the parser. All lookups are
// lowercased once at construction; the zero value is not usable.
type Filter struct {
	mobileMoney []string
	bank        []string
	card        []string
	financial   []string
	failed      []string
}

func New(list AllowList) *Filter {
	return &Filter{
		mobileMoney: lower(list.MobileMoney),
		bank:        lower(list.Bank),
		card:        lower(list.Card),
		financial:   lower(list.FinancialKeywords),
		failed:      lower(list.FailedKeywords),
	}
}

var defaultFilter = New(DefaultAllowList())

// Classify uses the built-in allow-list.
func Classify(sender string) Institution {
	return defaultFilter.Classify(sender)
}

// Classify reports which institution class a sender belongs to. Mobile-money
// tokens are checked first.
func (f *Filter) Classify(sender string) Institution {
	s := strings.ToLower(strings.TrimSpace(sender))
	if s == "" {
		return InstitutionUnknown
	}
	switch {
	case containsAny(s, f.mobileMoney):
		return InstitutionMobileMoney
	case containsAny(s, f.bank):
		return InstitutionBank
	case containsAny(s, f.card):
		return InstitutionCard
	}
	return InstitutionUnknown
}

// ShouldProcess is true for a known financial sender or a body carrying a
// financial keyword.
func (f *Filter) ShouldProcess(sender, body string) bool {
	if f.Classify(sender) != InstitutionUnknown {
		return true
	}
	return containsAny(strings.ToLower(body), f.financial)
}

// IsFailedTransaction detects notices about transactions that never happened.
func (f *Filter) IsFailedTransaction(body string) bool {
	return containsAny(strings.ToLower(body), f.failed)
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func lower(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}
