package parser

import (
	"regexp"
	"strings"

	"github.com/nimasrn/sms-ledger/internal/model"
)

type Kind string

const (
	KindFulizaDraw         Kind = "fuliza_draw"
	KindFulizaAutoRepay    Kind = "fuliza_auto_repayment"
	KindFulizaRepayment    Kind = "fuliza_repayment"
	KindMshwariTransfer    Kind = "mshwari_transfer"
	KindMpesaReceive       Kind = "mpesa_receive"
	KindBankIncome         Kind = "bank_income"
	KindMpesaPaybill       Kind = "mpesa_paybill"
	KindMpesaTill          Kind = "mpesa_till"
	KindMpesaAirtime       Kind = "mpesa_airtime"
	KindMpesaAgentWithdraw Kind = "mpesa_agent_withdraw"
	KindBankTransfer       Kind = "bank_transfer"
	KindMpesaSend          Kind = "mpesa_send"
	KindBankConfirmation   Kind = "bank_confirmation"
	KindCardTransaction    Kind = "card_transaction"
)

// IsDebtEvent reports whether records of this kind feed the debt reconciler
// instead of the ordinary ledger.
func (k Kind) IsDebtEvent() bool {
	switch k {
	case KindFulizaDraw, KindFulizaAutoRepay, KindFulizaRepayment:
		return true
	}
	return false
}

// IsRepayment is true for both explicit and automatic facility repayments.
func (k Kind) IsRepayment() bool {
	return k == KindFulizaAutoRepay || k == KindFulizaRepayment
}

type dateStyle int

const (
	dateNone dateStyle = iota
	dateMobile
	dateBank
)

// Dialect is one message shape. Pattern uses named groups; a match whose
// Required groups are empty is treated as no match.
type Dialect struct {
	Kind        Kind
	Type        model.TransactionType
	Channel     model.SourceChannel
	Pattern     *regexp.Regexp
	Required    []string
	Optional    []string
	DefaultName string
	dates       dateStyle
}

// Capture fragments shared by the dialects.
const (
	reCode     = `(?P<code>[A-Z]{2,3}[A-Z0-9]{7,8})`
	reAmount   = `\d[\d,]*(?:\.\d{1,2})?`
	reMDate    = `(?P<date>\d{1,2}/\d{1,2}/\d{2})`
	reMTime    = `(?P<time>\d{1,2}:\d{2} ?[AP]M)`
	reBankDT   = `(?P<datetime>\d{2}-\d{2}-\d{4} \d{2}:\d{2})`
	rePhone    = `(?P<phone>(?:\+?254|0)[0-9*]{9})`
	reMBalance = `(?:.*?M-PESA balance is Ksh ?(?P<balance>` + reAmount + `))?`
	reMFee     = `(?:.*?Transaction cost,? Ksh ?(?P<fee>` + reAmount + `))?`
	reKBalance = `(?:.*?(?:Balance|Avail(?:able)? bal(?:ance)?):? ?KES ?(?P<balance>` + reAmount + `))?`
)

func amountGroup(name string) string {
	return `(?P<` + name + `>` + reAmount + `)`
}

func compile(parts ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?s)` + strings.Join(parts, ""))
}

var library = []Dialect{
	{
		Kind:    KindFulizaDraw,
		Type:    model.TransactionTypeDebt,
		Channel: model.SourceMobileMoney,
		Pattern: compile(reCode, ` Confirmed\..*?Fuliza M-PESA amount is Ksh ?`, amountGroup("amount"),
			`\. ?Access Fee charged Ksh ?`, amountGroup("fee"),
			`\. ?Total Fuliza M-PESA outstanding amount is Ksh ?`, amountGroup("outstanding"),
			` due on (?P<due>\d{1,2}/\d{1,2}/\d{2})`),
		Required:    []string{"code", "amount", "fee", "outstanding", "due"},
		DefaultName: "Fuliza M-PESA",
	},
	{
		Kind:    KindFulizaAutoRepay,
		Type:    model.TransactionTypeDebtRepayment,
		Channel: model.SourceMobileMoney,
		Pattern: compile(reCode, ` Confirmed\. ?Ksh ?`, amountGroup("amount"),
			` from your M-PESA has been used to (?:fully|partially) pay your outstanding Fuliza M-PESA`, reMBalance),
		Required:    []string{"code", "amount"},
		Optional:    []string{"balance"},
		DefaultName: "Fuliza M-PESA",
	},
	{
		Kind:    KindFulizaRepayment,
		Type:    model.TransactionTypeDebtRepayment,
		Channel: model.SourceMobileMoney,
		Pattern: compile(reCode, ` Confirmed\. ?Ksh ?`, amountGroup("amount"),
			` (?:has been )?paid to Fuliza M-PESA on `, reMDate, ` at `, reMTime, reMBalance, reMFee),
		Required:    []string{"code", "amount", "date", "time"},
		Optional:    []string{"balance", "fee"},
		DefaultName: "Fuliza M-PESA",
		dates:       dateMobile,
	},
	{
		Kind:    KindMshwariTransfer,
		Type:    model.TransactionTypeTransfer,
		Channel: model.SourceMobileMoney,
		Pattern: compile(reCode, ` Confirmed\. ?Ksh ?`, amountGroup("amount"),
			` transferred (?P<direction>to|from) M-Shwari account on `, reMDate, ` at `, reMTime, reMBalance, reMFee),
		Required:    []string{"code", "amount", "direction", "date", "time"},
		Optional:    []string{"balance", "fee"},
		DefaultName: "M-Shwari",
		dates:       dateMobile,
	},
	{
		Kind:    KindMpesaReceive,
		Type:    model.TransactionTypeIncome,
		Channel: model.SourceMobileMoney,
		Pattern: compile(reCode, ` Confirmed\. ?You have received Ksh ?`, amountGroup("amount"),
			` from (?P<name>.+?)(?: `, rePhone, `)? on `, reMDate, ` at `, reMTime, reMBalance),
		Required: []string{"code", "amount", "name", "date", "time"},
		Optional: []string{"phone", "balance"},
		dates:    dateMobile,
	},
	{
		Kind:    KindBankIncome,
		Type:    model.TransactionTypeIncome,
		Channel: model.SourceBank,
		Pattern: compile(`account [0-9X*]{4,} has been credited with KES ?`, amountGroup("amount"),
			` on `, reBankDT, `(?: from (?P<name>.+?))?\. ?Ref:? ?`, reCode, reKBalance),
		Required:    []string{"amount", "code", "datetime"},
		Optional:    []string{"name", "balance"},
		DefaultName: "Bank credit",
		dates:       dateBank,
	},
	{
		Kind:    KindMpesaPaybill,
		Type:    model.TransactionTypeExpense,
		Channel: model.SourceMobileMoney,
		Pattern: compile(reCode, ` Confirmed\. ?Ksh ?`, amountGroup("amount"),
			` sent to (?P<name>.+?) for account (?P<account>\S+) on `, reMDate, ` at `, reMTime, reMBalance, reMFee),
		Required: []string{"code", "amount", "name", "account", "date", "time"},
		Optional: []string{"balance", "fee"},
		dates:    dateMobile,
	},
	{
		Kind:    KindMpesaTill,
		Type:    model.TransactionTypeExpense,
		Channel: model.SourceMobileMoney,
		Pattern: compile(reCode, ` Confirmed\. ?Ksh ?`, amountGroup("amount"),
			` paid to (?P<name>.+?)\.?(?: Till (?:No\.? ?)?(?P<till>\d{5,7})\.?)? on `, reMDate, ` at `, reMTime, reMBalance, reMFee),
		Required: []string{"code", "amount", "name", "date", "time"},
		Optional: []string{"till", "balance", "fee"},
		dates:    dateMobile,
	},
	{
		Kind:    KindMpesaAirtime,
		Type:    model.TransactionTypeExpense,
		Channel: model.SourceMobileMoney,
		Pattern: compile(reCode, ` [Cc]onfirmed\. ?You bought Ksh ?`, amountGroup("amount"),
			` of airtime(?: for `, rePhone, `)? on `, reMDate, ` at `, reMTime, reMBalance, reMFee),
		Required:    []string{"code", "amount", "date", "time"},
		Optional:    []string{"phone", "balance", "fee"},
		DefaultName: "Safaricom Airtime",
		dates:       dateMobile,
	},
	{
		Kind:    KindMpesaAgentWithdraw,
		Type:    model.TransactionTypeExpense,
		Channel: model.SourceMobileMoney,
		Pattern: compile(reCode, ` Confirmed\. ?on `, reMDate, ` at `, reMTime, ` ?Withdraw Ksh ?`, amountGroup("amount"),
			` from (?P<agent>\d{5,7}) - (?P<name>.+?)(?: New M-PESA balance is Ksh ?(?P<balance>`, reAmount, `)|\.? ?$)`, reMFee),
		Required: []string{"code", "amount", "agent", "name", "date", "time"},
		Optional: []string{"balance", "fee"},
		dates:    dateMobile,
	},
	{
		Kind:    KindBankTransfer,
		Type:    model.TransactionTypeExpense,
		Channel: model.SourceBank,
		Pattern: compile(`KES ?`, amountGroup("amount"), ` has been debited from your account [0-9X*]{4,} on `, reBankDT,
			` to (?P<name>.+?)\. ?Ref:? ?`, reCode, reKBalance),
		Required: []string{"amount", "name", "code", "datetime"},
		Optional: []string{"balance"},
		dates:    dateBank,
	},
	{
		Kind:    KindMpesaSend,
		Type:    model.TransactionTypeExpense,
		Channel: model.SourceMobileMoney,
		Pattern: compile(reCode, ` Confirmed\. ?Ksh ?`, amountGroup("amount"),
			` sent to (?P<name>.+?)(?: `, rePhone, `)? on `, reMDate, ` at `, reMTime, reMBalance, reMFee),
		Required: []string{"code", "amount", "name", "date", "time"},
		Optional: []string{"phone", "balance", "fee"},
		dates:    dateMobile,
	},
	{
		Kind:    KindBankConfirmation,
		Type:    model.TransactionTypeExpense,
		Channel: model.SourceBank,
		Pattern: compile(`[Yy]ou have sent KES ?`, amountGroup("amount"), ` to (?P<name>.+?)(?: account (?P<account>\S+?))? on `,
			reBankDT, `\.? ?Ref:? ?`, reCode),
		Required: []string{"amount", "name", "code", "datetime"},
		Optional: []string{"account"},
		dates:    dateBank,
	},
	{
		Kind:    KindCardTransaction,
		Type:    model.TransactionTypeExpense,
		Channel: model.SourceCard,
		Pattern: compile(`card ending (?P<card>\d{4}) was used for KES ?`, amountGroup("amount"), ` at (?P<name>.+?) on `,
			reBankDT, `\.? ?Ref:? ?`, reCode, reKBalance),
		Required: []string{"card", "amount", "name", "code", "datetime"},
		Optional: []string{"balance"},
		dates:    dateBank,
	},
}

// Library returns the dialects in match precedence order. More specific
// shapes come first: a Fuliza draw also reads as a plain send, and a
// facility repayment also reads as a till payment.
func Library() []Dialect {
	out := make([]Dialect, len(library))
	copy(out, library)
	return out
}
