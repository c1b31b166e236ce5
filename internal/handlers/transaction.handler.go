package handlers

import (
	"context"
	"strings"

	"github.com/fasthttp/router"
	"github.com/nimasrn/sms-ledger/internal/model"
	xhttp "github.com/nimasrn/sms-ledger/pkg/http"
)

type TransactionService interface {
	ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error)
	GetTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	Classify(ctx context.Context, req model.ClassifyRequest) (*model.Transaction, error)
	Archive(ctx context.Context, id int64) error
}

type TransactionHandler struct {
	svc TransactionService
}

func RegisterTransactionRoutes(e *router.Group, h *TransactionHandler) {
	e.GET("/transactions", h.ListTransactions)
	e.GET("/transactions/item", h.GetTransaction)
	e.POST("/transactions/classify", h.Classify)
	e.POST("/transactions/archive", h.Archive)
}

func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

func (h *TransactionHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	var f model.TransactionFilter

	f.Types = queryList[model.TransactionType](ctx, "type")
	f.Statuses = queryList[model.TransactionStatus](ctx, "status")
	if v := query(ctx, "source"); v != "" {
		src := model.SourceChannel(v)
		f.Source = &src
	}
	f.From, f.To = queryRange(ctx)
	f.Limit, f.Offset = queryPage(ctx)
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.ListTransactions(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.Transaction]{Items: items, Total: total})
}

func (h *TransactionHandler) GetTransaction(ctx *xhttp.RequestCtx) {
	id, err := paramInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid id")
		return
	}
	txn, err := h.svc.GetTransaction(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, txn)
}

func (h *TransactionHandler) Classify(ctx *xhttp.RequestCtx) {
	var req model.ClassifyRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.TransactionID <= 0 {
		writeError(ctx, xhttp.StatusBadRequest, "transaction_id is required")
		return
	}
	txn, err := h.svc.Classify(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, txn)
}

func (h *TransactionHandler) Archive(ctx *xhttp.RequestCtx) {
	id, err := paramInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid id")
		return
	}
	if err := h.svc.Archive(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}
