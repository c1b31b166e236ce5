package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/sms-ledger/internal/model"
	xhttp "github.com/nimasrn/sms-ledger/pkg/http"
)

type DebtService interface {
	ListDebts(ctx context.Context, f model.DebtFilter) ([]*model.Debt, int64, error)
	CreatePeerDebt(ctx context.Context, req model.PeerDebtRequest) (*model.Debt, error)
	MarkPaid(ctx context.Context, id int64) (*model.Debt, error)
	WriteOff(ctx context.Context, id int64) (*model.Debt, error)
	ListPayments(ctx context.Context, debtID int64) ([]*model.DebtPayment, error)
}

type DebtHandler struct {
	svc DebtService
}

func RegisterDebtRoutes(e *router.Group, h *DebtHandler) {
	e.GET("/debts", h.ListDebts)
	e.POST("/debts", h.CreatePeerDebt)
	e.POST("/debts/paid", h.MarkPaid)
	e.POST("/debts/write-off", h.WriteOff)
	e.GET("/debts/payments", h.ListPayments)
}

func NewDebtHandler(svc DebtService) *DebtHandler {
	return &DebtHandler{svc: svc}
}

func (h *DebtHandler) ListDebts(ctx *xhttp.RequestCtx) {
	var f model.DebtFilter

	f.Kinds = queryList[model.DebtKind](ctx, "kind")
	f.Statuses = queryList[model.DebtStatus](ctx, "status")
	f.Limit, f.Offset = queryPage(ctx)

	items, total, err := h.svc.ListDebts(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.Debt]{Items: items, Total: total})
}

// CreatePeerDebt records a person-to-person debt entered by the user.
func (h *DebtHandler) CreatePeerDebt(ctx *xhttp.RequestCtx) {
	var req model.PeerDebtRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	debt, err := h.svc.CreatePeerDebt(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, debt)
}

func (h *DebtHandler) MarkPaid(ctx *xhttp.RequestCtx) {
	h.settle(ctx, h.svc.MarkPaid)
}

func (h *DebtHandler) WriteOff(ctx *xhttp.RequestCtx) {
	h.settle(ctx, h.svc.WriteOff)
}

func (h *DebtHandler) settle(ctx *xhttp.RequestCtx, fn func(context.Context, int64) (*model.Debt, error)) {
	id, err := paramInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid id")
		return
	}
	debt, err := fn(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, debt)
}

func (h *DebtHandler) ListPayments(ctx *xhttp.RequestCtx) {
	id, err := paramInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid id")
		return
	}
	payments, err := h.svc.ListPayments(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, payments)
}
