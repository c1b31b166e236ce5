package filter

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// AllowList holds the institution tokens and keyword sets used by the
// message gate. Tokens and keywords are matched case-insensitively.
type AllowList struct {
	MobileMoney       []string `yaml:"mobile_money"`
	Bank              []string `yaml:"bank"`
	Card              []string `yaml:"card"`
	FinancialKeywords []string `yaml:"financial_keywords"`
	FailedKeywords    []string `yaml:"failed_keywords"`
}

func DefaultAllowList() AllowList {
	return AllowList{
		MobileMoney: []string{"MPESA", "M-PESA", "SAFARICOM", "AIRTEL", "T-KASH", "TKASH"},
		Bank: []string{
			"KCB", "EQUITY", "COOP", "CO-OP", "NCBA", "ABSA", "STANBIC", "DTB",
			"FAMILY", "I&M", "STANCHART", "SCB", "NBK", "CBA",
		},
		Card: []string{"VISA", "MASTERCARD", "AMEX"},
		FinancialKeywords: []string{
			"ksh", "kes", "confirmed", "received", "sent to", "paid to", "withdraw",
			"credited", "debited", "transaction cost", "balance is", "fuliza", "card ending",
		},
		FailedKeywords: []string{
			"failed", "declined", "insufficient funds", "insufficient balance",
			"timed out", "timeout", "wrong pin", "incorrect pin", "not successful", "unsuccessful",
		},
	}
}

// LoadAllowList reads a YAML allow-list and appends its entries to the
// built-in defaults. An empty path returns the defaults.
func LoadAllowList(path string) (AllowList, error) {
	list := DefaultAllowList()
	if path == "" {
		return list, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return list, fmt.Errorf("read allow-list %s: %w", path, err)
	}

	var extra AllowList
	if err := yaml.Unmarshal(raw, &extra); err != nil {
		return list, fmt.Errorf("decode allow-list %s: %w", path, err)
	}

	list.MobileMoney = merge(list.MobileMoney, extra.MobileMoney)
	list.Bank = merge(list.Bank, extra.Bank)
	list.Card = merge(list.Card, extra.Card)
	list.FinancialKeywords = merge(list.FinancialKeywords, extra.FinancialKeywords)
	list.FailedKeywords = merge(list.FailedKeywords, extra.FailedKeywords)
	return list, nil
}

func merge(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, v := range append(base, extra...) {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if v == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
