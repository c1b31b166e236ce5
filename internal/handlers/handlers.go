package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/sms-ledger/internal/services"
	xhttp "github.com/nimasrn/sms-ledger/pkg/http"
)

type listResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

// writeServiceError maps service sentinels onto HTTP status codes.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	writeError(ctx, errorStatus(err), err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrDebtNotFound):
		return xhttp.StatusNotFound
	case errors.Is(err, services.ErrTransactionArchived),
		errors.Is(err, services.ErrDebtClosed):
		return xhttp.StatusConflict
	case errors.Is(err, services.ErrInvalidMessage),
		errors.Is(err, services.ErrContentTooLong),
		errors.Is(err, services.ErrFutureTimestamp),
		errors.Is(err, services.ErrInvalidCategory),
		errors.Is(err, services.ErrInvalidConfidence),
		errors.Is(err, services.ErrInvalidDebt):
		return xhttp.StatusBadRequest
	default:
		return xhttp.StatusInternalServerError
	}
}

func paramInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	idStr := ctx.QueryArgs().Peek(name)
	return strconv.ParseInt(string(idStr), 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

// queryList splits a comma separated query value, dropping blanks.
func queryList[T ~string](ctx *xhttp.RequestCtx, key string) []T {
	v := query(ctx, key)
	if v == "" {
		return nil
	}
	var out []T
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, T(p))
		}
	}
	return out
}

func queryPage(ctx *xhttp.RequestCtx) (limit, offset int) {
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			offset = n
		}
	}
	return limit, offset
}

func queryRange(ctx *xhttp.RequestCtx) (from, to *time.Time) {
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			from = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			to = &t
		}
	}
	return from, to
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
