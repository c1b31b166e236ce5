package xhttp

import (
	"github.com/fasthttp/router"
	"github.com/nimasrn/sms-ledger/pkg/logger"
)

type Router = router.Router
type Group = router.Group

// NewRouter returns a router that answers unknown routes and methods with a
// JSON error body, matching the shape the handlers use.
func NewRouter() *Router {
	r := router.New()
	r.RedirectFixedPath = true
	r.RedirectTrailingSlash = true
	r.SaveMatchedRoutePath = true
	r.HandleOPTIONS = false
	r.HandleMethodNotAllowed = true
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = MethodNotAllowedHandler
	r.PanicHandler = PanicHandler
	return r
}

func NotFoundHandler(ctx *RequestCtx) {
	jsonError(ctx, StatusNotFound)
}

func MethodNotAllowedHandler(ctx *RequestCtx) {
	jsonError(ctx, StatusMethodNotAllowed)
}

func PanicHandler(ctx *RequestCtx, rcv any) {
	logger.Error("[xhttp] handler panic", "path", string(ctx.Path()), "method", string(ctx.Method()), "panic", rcv)
	jsonError(ctx, StatusInternalServerError)
}

func jsonError(ctx *RequestCtx, code int) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(code)
	ctx.SetBodyString(`{"error":"` + StatusText(code) + `"}`)
}
