package services

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractReferenceCodes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"single code", smsSend, []string{"QJK3ABCD22"}},
		{"encounter order and dedupe", "QJK3ABCD12 reversal of QJK3ABCD11. Ref QJK3ABCD12", []string{"QJK3ABCD12", "QJK3ABCD11"}},
		{"bank reference", "Ref: FT26309ABC. Balance", []string{"FT26309ABC"}},
		{"letters only is not a code", "CONFIRMED TRANSACTION", nil},
		{"masked account is not a code", "account 1234XXXX5678 credited", nil},
		{"wrapped code", "QJK3AB\nCD24 Confirmed.", []string{"QJK3ABCD24"}},
		{"no codes", "hello", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractReferenceCodes(tt.body))
		})
	}
}

func TestMerge(t *testing.T) {
	fee := int64(1500)
	mobile := &parser.Record{
		Kind:             parser.KindMpesaPaybill,
		Channel:          model.SourceMobileMoney,
		ReferenceCode:    "QJK3ABCD18",
		Amount:           150000,
		Fee:              &fee,
		CounterpartyName: "KCB Paybill A/C",
		OccurredAt:       time.Date(2026, time.November, 6, 8, 45, 0, 0, eat),
	}
	bank := &parser.Record{
		Kind:             parser.KindBankConfirmation,
		Channel:          model.SourceBank,
		ReferenceCode:    "QJK3ABCD18",
		Amount:           150001,
		CounterpartyName: "KCB PAYBILL ACCOUNT FULL NAME LTD",
		Account:          "1234567890",
	}

	t.Run("mobile money is authoritative regardless of order", func(t *testing.T) {
		for _, order := range [][]*parser.Record{{mobile, bank}, {bank, mobile}} {
			m := Merge(order)
			require.NotNil(t, m)
			assert.Equal(t, model.SourceMobileMoney, m.Channel)
			assert.Equal(t, int64(150000), m.Amount)
			assert.Equal(t, &fee, m.Fee)
			assert.Equal(t, "KCB PAYBILL ACCOUNT FULL NAME LTD", m.CounterpartyName)
			assert.Equal(t, "1234567890", m.Account)
		}
	})

	t.Run("equal length keeps primary name", func(t *testing.T) {
		other := &parser.Record{Channel: model.SourceBank, CounterpartyName: "KCB PAYBILL A/C"}
		m := Merge([]*parser.Record{mobile, other})
		assert.Equal(t, "KCB Paybill A/C", m.CounterpartyName)
	})

	t.Run("no mobile money falls back to first", func(t *testing.T) {
		m := Merge([]*parser.Record{bank})
		assert.Equal(t, int64(150001), m.Amount)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, Merge(nil))
	})
}

func TestLinkerService_Link(t *testing.T) {
	p := setupPipeline(t)
	ctx := context.Background()

	store := func(body string) int64 {
		raw, err := p.messages.Create(ctx, &model.RawMessage{Sender: "MPESA", Body: body, ReceivedAt: time.Now()})
		require.NoError(t, err)
		return raw.ID
	}

	t.Run("no code", func(t *testing.T) {
		id := store("hello there")
		merged, err := p.linker.Link(ctx, id, "hello there")
		require.NoError(t, err)
		assert.Nil(t, merged)
	})

	first := store(smsPaybill)
	merged, err := p.linker.Link(ctx, first, smsPaybill)
	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.Equal(t, []int64{first}, merged.MessageIDs)
	assert.Equal(t, "KCB Paybill A/C", merged.CounterpartyName)

	second := store(smsConfirmation)
	merged, err = p.linker.Link(ctx, second, smsConfirmation)
	require.NoError(t, err)
	assert.Equal(t, []int64{first, second}, merged.MessageIDs)
	assert.Equal(t, "KCB PAYBILL ACCOUNT FULL NAME LTD", merged.CounterpartyName)
	assert.Equal(t, int64(150000), merged.Amount)

	t.Run("relinking is idempotent", func(t *testing.T) {
		_, err := p.linker.Link(ctx, second, smsConfirmation)
		require.NoError(t, err)

		links, err := p.links.ListByReference(ctx, "QJK3ABCD18")
		require.NoError(t, err)
		assert.Len(t, links, 1)
	})

	t.Run("a third message links to both", func(t *testing.T) {
		third := store(smsPaybill)
		merged, err := p.linker.Link(ctx, third, smsPaybill)
		require.NoError(t, err)
		assert.Len(t, merged.MessageIDs, 3)

		links, err := p.links.ListByReference(ctx, "QJK3ABCD18")
		require.NoError(t, err)
		assert.Len(t, links, 3)
	})
}
