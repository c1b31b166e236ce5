package handlers

import (
	"context"
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/services"
	xhttp "github.com/nimasrn/sms-ledger/pkg/http"
	"github.com/stretchr/testify/mock"
	"github.com/valyala/fasthttp"
)

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Submit(ctx context.Context, msg model.InboundMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MockMessageService) ProcessMessage(ctx context.Context, sender, body string, receivedAt time.Time) (*services.Outcome, error) {
	args := m.Called(ctx, sender, body, receivedAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Outcome), args.Error(1)
}

func (m *MockMessageService) ParseStats(ctx context.Context) (model.ParseStats, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.ParseStats), args.Error(1)
}

func (m *MockMessageService) ListMessages(ctx context.Context, f model.RawMessageFilter) ([]*model.RawMessage, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.RawMessage), args.Get(1).(int64), args.Error(2)
}

type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) ListTransactions(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionService) GetTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionService) Classify(ctx context.Context, req model.ClassifyRequest) (*model.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

func (m *MockTransactionService) Archive(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type MockDebtService struct {
	mock.Mock
}

func (m *MockDebtService) ListDebts(ctx context.Context, f model.DebtFilter) ([]*model.Debt, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Debt), args.Get(1).(int64), args.Error(2)
}

func (m *MockDebtService) CreatePeerDebt(ctx context.Context, req model.PeerDebtRequest) (*model.Debt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Debt), args.Error(1)
}

func (m *MockDebtService) MarkPaid(ctx context.Context, id int64) (*model.Debt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Debt), args.Error(1)
}

func (m *MockDebtService) WriteOff(ctx context.Context, id int64) (*model.Debt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Debt), args.Error(1)
}

func (m *MockDebtService) ListPayments(ctx context.Context, debtID int64) ([]*model.DebtPayment, error) {
	args := m.Called(ctx, debtID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.DebtPayment), args.Error(1)
}

type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) Get() error {
	return m.Called().Error(0)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func ptr[T any](v T) *T {
	return &v
}
