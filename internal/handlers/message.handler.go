package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/services"
	xhttp "github.com/nimasrn/sms-ledger/pkg/http"
)

type MessageSubmitter interface {
	Submit(ctx context.Context, m model.InboundMessage) (string, error)
}

type MessageIngester interface {
	ProcessMessage(ctx context.Context, sender, body string, receivedAt time.Time) (*services.Outcome, error)
}

type MessageReader interface {
	ParseStats(ctx context.Context) (model.ParseStats, error)
	ListMessages(ctx context.Context, f model.RawMessageFilter) ([]*model.RawMessage, int64, error)
}

type MessageHandler struct {
	submitter MessageSubmitter
	ingester  MessageIngester
	reader    MessageReader
}

func RegisterMessageRoutes(e *router.Group, h *MessageHandler) {
	e.POST("/messages", h.SubmitMessage)
	e.POST("/messages/process", h.ProcessMessage)
	e.GET("/messages", h.ListMessages)
	e.GET("/messages/stats", h.Stats)
}

func NewMessageHandler(submitter MessageSubmitter, ingester MessageIngester, reader MessageReader) *MessageHandler {
	return &MessageHandler{
		submitter: submitter,
		ingester:  ingester,
		reader:    reader,
	}
}

type submitResponse struct {
	ID string `json:"id"`
}

/* --------------------------------- Routes ----------------------------------- */

// SubmitMessage enqueues a pushed message for the processor.
func (h *MessageHandler) SubmitMessage(ctx *xhttp.RequestCtx) {
	var req model.InboundMessage
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	req.Channel = model.ChannelPush

	id, err := h.submitter.Submit(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusAccepted, submitResponse{ID: id})
}

// ProcessMessage runs the pipeline inline and returns its outcome.
func (h *MessageHandler) ProcessMessage(ctx *xhttp.RequestCtx) {
	var req model.InboundMessage
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	req.Sender = strings.TrimSpace(req.Sender)
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = time.Now()
	}
	if err := req.Validate(); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}

	out, err := h.ingester.ProcessMessage(ctx, req.Sender, req.Body, req.ReceivedAt)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, out)
}

func (h *MessageHandler) ListMessages(ctx *xhttp.RequestCtx) {
	var f model.RawMessageFilter

	f.Statuses = queryList[model.ParseStatus](ctx, "status")
	if v := query(ctx, "sender"); v != "" {
		f.Sender = &v
	}
	f.From, f.To = queryRange(ctx)
	f.Limit, f.Offset = queryPage(ctx)
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.reader.ListMessages(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse[*model.RawMessage]{Items: items, Total: total})
}

func (h *MessageHandler) Stats(ctx *xhttp.RequestCtx) {
	stats, err := h.reader.ParseStats(ctx)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, stats)
}
