package handlers

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestTransactionHandler_ListTransactions(t *testing.T) {
	svc := new(MockTransactionService)
	handler := NewTransactionHandler(svc)

	svc.On("ListTransactions", mock.Anything, mock.MatchedBy(func(f model.TransactionFilter) bool {
		return len(f.Types) == 1 && f.Types[0] == model.TransactionTypeExpense &&
			len(f.Statuses) == 1 && f.Statuses[0] == model.TransactionStatusPendingClassification &&
			f.Source != nil && *f.Source == model.SourceMobileMoney &&
			f.From != nil && f.To != nil &&
			f.Limit == 5 && !f.Desc
	})).Return([]*model.Transaction{{ID: 3, ReferenceCode: "QGH7XK2LM1", Amount: 150000}}, int64(7), nil)

	ctx := setupTestContext("GET", "/api/v1/transactions?type=expense&status=pending_classification&source=mobile_money&from=2024-03-01&to=2024-03-31T23:59:59Z&limit=5", nil)
	handler.ListTransactions(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response listResponse[*model.Transaction]
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, int64(7), response.Total)
	require.Len(t, response.Items, 1)
	assert.Equal(t, int64(150000), response.Items[0].Amount)
	svc.AssertExpectations(t)
}

func TestTransactionHandler_GetTransaction(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		svc.On("GetTransaction", mock.Anything, int64(3)).Return(&model.Transaction{ID: 3, ReferenceCode: "QGH7XK2LM1"}, nil)

		ctx := setupTestContext("GET", "/api/v1/transactions/item?id=3", nil)
		handler.GetTransaction(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Body()), "QGH7XK2LM1")
	})

	t.Run("bad id", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		ctx := setupTestContext("GET", "/api/v1/transactions/item?id=abc", nil)
		handler.GetTransaction(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("missing", func(t *testing.T) {
		svc := new(MockTransactionService)
		handler := NewTransactionHandler(svc)

		svc.On("GetTransaction", mock.Anything, int64(99)).Return(nil, services.ErrTransactionNotFound)

		ctx := setupTestContext("GET", "/api/v1/transactions/item?id=99", nil)
		handler.GetTransaction(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})
}

func TestTransactionHandler_Classify(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
	}{
		{"classified", `{"transaction_id":3,"category":"Groceries","confidence":0.9,"auto":true}`, nil, 200},
		{"missing id", `{"category":"Groceries"}`, nil, 400},
		{"invalid confidence", `{"transaction_id":3,"category":"Groceries","confidence":2}`, services.ErrInvalidConfidence, 400},
		{"not found", `{"transaction_id":3,"category":"Groceries"}`, fmt.Errorf("classify 3: %w", services.ErrTransactionNotFound), 404},
		{"archived", `{"transaction_id":3,"category":"Groceries"}`, fmt.Errorf("classify 3: %w", services.ErrTransactionArchived), 409},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockTransactionService)
			handler := NewTransactionHandler(svc)

			if tt.svcErr != nil {
				svc.On("Classify", mock.Anything, mock.Anything).Return(nil, tt.svcErr)
			} else {
				svc.On("Classify", mock.Anything, mock.MatchedBy(func(r model.ClassifyRequest) bool {
					return r.TransactionID == 3 && r.Category == "Groceries" && r.Auto
				})).Return(&model.Transaction{ID: 3, Category: ptr("Groceries"), Status: model.TransactionStatusClassified}, nil)
			}

			ctx := setupTestContext("POST", "/api/v1/transactions/classify", []byte(tt.body))
			handler.Classify(ctx)

			assert.Equal(t, tt.wantStatus, ctx.Response.StatusCode())
		})
	}
}

func TestTransactionHandler_Archive(t *testing.T) {
	svc := new(MockTransactionService)
	handler := NewTransactionHandler(svc)

	svc.On("Archive", mock.Anything, int64(3)).Return(nil)

	ctx := setupTestContext("POST", "/api/v1/transactions/archive?id=3", nil)
	handler.Archive(ctx)

	assert.Equal(t, 204, ctx.Response.StatusCode())
	svc.AssertExpectations(t)
}
