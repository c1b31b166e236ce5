package services

import (
	"testing"
	"time"

	"github.com/nimasrn/sms-ledger/internal/filter"
	"github.com/nimasrn/sms-ledger/internal/parser"
	"github.com/nimasrn/sms-ledger/internal/repository"
	"github.com/nimasrn/sms-ledger/pkg/pg"
)

var eat = time.FixedZone("EAT", 3*60*60)

const (
	smsSend         = "QJK3ABCD22 Confirmed. Ksh 500.00 sent to JOHN DOE 0712345678 on 10/11/26 at 4:00 PM. New M-PESA balance is Ksh 1,100.00. Transaction cost, Ksh 7.00."
	smsPaybill      = "QJK3ABCD18 Confirmed. Ksh 1,500.00 sent to KCB Paybill A/C for account 1234567890 on 6/11/26 at 8:45 AM New M-PESA balance is Ksh 3,000.00. Transaction cost, Ksh 15.00."
	smsConfirmation = "Dear JOHN, you have sent KES 1,500.00 to KCB PAYBILL ACCOUNT FULL NAME LTD account 1234567890 on 06-11-2026 08:45. Ref QJK3ABCD18."
	smsConfLate     = "Dear JOHN, you have sent KES 1,500.00 to KCB PAYBILL ACCOUNT FULL NAME LTD account 1234567890 on 06-11-2026 08:47. Ref QJK3ABCD18."
	smsDraw         = "QJK3ABCD12 Confirmed. Fuliza M-PESA amount is Ksh 500.00. Access Fee charged Ksh 7.17. Total Fuliza M-PESA outstanding amount is Ksh 716.62 due on 15/11/26."
	smsDraw2        = "QJK3ABCD30 Confirmed. Fuliza M-PESA amount is Ksh 200.00. Access Fee charged Ksh 2.00. Total Fuliza M-PESA outstanding amount is Ksh 918.62 due on 20/11/26."
	smsRepay        = "QJK3ABCD15 Confirmed. Ksh 300.00 paid to Fuliza M-PESA on 16/11/26 at 10:15 AM. New M-PESA balance is Ksh 1,200.00. Transaction cost, Ksh 0.00."
	smsRepayLarge   = "QJK3ABCD31 Confirmed. Ksh 500.00 paid to Fuliza M-PESA on 15/11/26 at 9:00 AM. New M-PESA balance is Ksh 700.00. Transaction cost, Ksh 0.00."
	smsAutoRepay    = "QJK3ABCD14 Confirmed. Ksh 618.62 from your M-PESA has been used to fully pay your outstanding Fuliza M-PESA. M-PESA balance is Ksh 0.00."
	smsReceive      = "QJK3ABCD17 Confirmed.You have received Ksh 2,500.00 from JANE WANJIKU 0722000111 on 4/11/26 at 1:05 PM New M-PESA balance is Ksh 4,500.00."
	smsTill         = "QJK3ABCD19 Confirmed. Ksh 250.00 paid to NAIVAS SUPERMARKET. on 7/11/26 at 6:10 PM.New M-PESA balance is Ksh 2,750.00. Transaction cost, Ksh 0.00."
)

type pipeline struct {
	db       *pg.DB
	messages *repository.RawMessageRepository
	txns     *repository.TransactionRepository
	links    *repository.LinkRepository
	debtRepo *repository.DebtRepository
	linker   *LinkerService
	debts    *DebtService
	ledger   *LedgerService
	ingest   *IngestService
}

func setupPipeline(t *testing.T) *pipeline {
	db := repository.NewTestDB(t)
	p := &pipeline{
		db:       db,
		messages: repository.NewRawMessageRepository(db),
		txns:     repository.NewTransactionRepository(db),
		links:    repository.NewLinkRepository(db),
		debtRepo: repository.NewDebtRepository(db),
	}
	prs := parser.New(eat)
	p.linker = NewLinkerService(p.messages, p.links, prs)
	p.debts = NewDebtService(p.debtRepo, p.txns)
	p.ledger = NewLedgerService(p.txns, p.messages)
	p.ingest = NewIngestService(db, filter.New(filter.DefaultAllowList()), prs, p.messages, p.txns, p.linker, p.debts)
	return p
}

func ptr[T any](v T) *T {
	return &v
}
