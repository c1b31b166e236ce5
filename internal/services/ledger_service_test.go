package services

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_Classify(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()

	out, err := p.ingest.ProcessMessage(ctx, "MPESA", smsTill, time.Now())
	require.NoError(t, err)

	t.Run("classifies pending entry", func(t *testing.T) {
		txn, err := p.ledger.Classify(ctx, model.ClassifyRequest{
			TransactionID: out.TransactionID,
			Category:      " Groceries ",
			Confidence:    0.9,
			Auto:          true,
		})
		require.NoError(t, err)
		assert.Equal(t, model.TransactionStatusClassified, txn.Status)
		assert.Equal(t, "Groceries", *txn.Category)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := p.ledger.Classify(ctx, model.ClassifyRequest{TransactionID: out.TransactionID})
		assert.ErrorIs(t, err, ErrInvalidCategory)

		_, err = p.ledger.Classify(ctx, model.ClassifyRequest{TransactionID: out.TransactionID, Category: "Food", Confidence: 1.5})
		assert.ErrorIs(t, err, ErrInvalidConfidence)
	})

	t.Run("unknown entry", func(t *testing.T) {
		_, err := p.ledger.Classify(ctx, model.ClassifyRequest{TransactionID: 9999, Category: "Food"})
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})

	t.Run("archived entry", func(t *testing.T) {
		require.NoError(t, p.ledger.Archive(ctx, out.TransactionID))

		_, err := p.ledger.Classify(ctx, model.ClassifyRequest{TransactionID: out.TransactionID, Category: "Food"})
		assert.ErrorIs(t, err, ErrTransactionArchived)

		err = p.ledger.Archive(ctx, out.TransactionID)
		assert.ErrorIs(t, err, ErrTransactionArchived)
	})
}

func TestLedgerService_ListAndStats(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()

	for _, body := range []string{smsSend, smsReceive, smsTill, "M-PESA notice"} {
		_, err := p.ingest.ProcessMessage(ctx, "MPESA", body, time.Now())
		require.NoError(t, err)
	}

	list, total, err := p.ledger.ListTransactions(ctx, model.TransactionFilter{
		Statuses: []model.TransactionStatus{model.TransactionStatusPendingClassification},
		Desc:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "QJK3ABCD22", list[0].ReferenceCode)

	stats, err := p.ledger.ParseStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Parsed)
	assert.Equal(t, int64(1), stats.Failed)

	failed, _, err := p.ledger.ListMessages(ctx, model.RawMessageFilter{Statuses: []model.ParseStatus{model.ParseStatusFailed}})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "M-PESA notice", failed[0].Body)
}
