package xhttp

import (
	"fmt"
	"os"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"time"

	"github.com/nimasrn/sms-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
)

// Tunables read once at start up, in milliseconds or bytes:
// HTTP_SERVER_READ_TIMEOUT, HTTP_SERVER_WRITE_TIMEOUT,
// HTTP_SERVER_REQUEST_TIMEOUT, HTTP_SERVER_READ_BUFFER_BYTE,
// HTTP_SERVER_WRITE_BUFFER_BYTE.
var (
	defaultReadBufferSize  = 1024 * 16
	defaultWriteBufferSize = 1024 * 16
	defaultReadTimeout     = time.Millisecond * 2500
	defaultWriteTimeout    = time.Millisecond * 2500
	defaultRequestTimeout  = time.Millisecond * 5000
)

func init() {
	if v, ok := envInt("HTTP_SERVER_READ_TIMEOUT", 1); ok {
		defaultReadTimeout = time.Millisecond * time.Duration(v)
	}
	if v, ok := envInt("HTTP_SERVER_WRITE_TIMEOUT", 1); ok {
		defaultWriteTimeout = time.Millisecond * time.Duration(v)
	}
	if v, ok := envInt("HTTP_SERVER_REQUEST_TIMEOUT", 1); ok {
		defaultRequestTimeout = time.Millisecond * time.Duration(v)
	}
	if v, ok := envInt("HTTP_SERVER_READ_BUFFER_BYTE", 1025); ok {
		defaultReadBufferSize = v
	}
	if v, ok := envInt("HTTP_SERVER_WRITE_BUFFER_BYTE", 1025); ok {
		defaultWriteBufferSize = v
	}
}

func envInt(name string, min int) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min {
		fmt.Fprintf(os.Stderr, "xhttp: ignoring %s=%q\n", name, raw)
		return 0, false
	}
	return v, true
}

type Server = fasthttp.Server

// ServerOption holds the subset of fasthttp.Server settings the services
// tune. Everything else keeps the fasthttp default.
type ServerOption struct {
	Name string

	// RequestTimeout bounds a single handler run, see TimeoutMiddleware.
	RequestTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// idle keep-alive connections are dropped after IdleTimeout so a burst
	// of clients cannot hold file descriptors open
	IdleTimeout        time.Duration
	TCPKeepalivePeriod time.Duration

	ReadBufferSize     int // also the max header size
	WriteBufferSize    int
	MaxRequestBodySize int
	Concurrency        int
	MaxConnsPerIP      int

	Logger logger.Logger
}

func DefaultServerOption() ServerOption {
	return ServerOption{
		Name:               "sms-ledger",
		RequestTimeout:     defaultRequestTimeout,
		ReadTimeout:        defaultReadTimeout,
		WriteTimeout:       defaultWriteTimeout,
		IdleTimeout:        time.Second * 10,
		TCPKeepalivePeriod: time.Minute * 2,
		ReadBufferSize:     defaultReadBufferSize,
		WriteBufferSize:    defaultWriteBufferSize,
		MaxRequestBodySize: 1 * 1024 * 1024,
		Concurrency:        10_000,
		MaxConnsPerIP:      1_000,
		Logger:             logger.GetLogger(),
	}
}

type Engine struct {
	*Router
	*Server
	option ServerOption
	middle []MiddlewareFunc
}

func NewServer(options ServerOption) *Engine {
	if options.Logger == nil {
		options.Logger = logger.GetLogger()
	}
	return &Engine{
		Router: NewRouter(),
		Server: &fasthttp.Server{
			Name:                         options.Name,
			Handler:                      NotFoundHandler,
			ErrorHandler:                 errorHandler,
			Concurrency:                  options.Concurrency,
			ReadBufferSize:               options.ReadBufferSize,
			WriteBufferSize:              options.WriteBufferSize,
			ReadTimeout:                  options.ReadTimeout,
			WriteTimeout:                 options.WriteTimeout,
			IdleTimeout:                  options.IdleTimeout,
			MaxConnsPerIP:                options.MaxConnsPerIP,
			TCPKeepalive:                 true,
			TCPKeepalivePeriod:           options.TCPKeepalivePeriod,
			MaxRequestBodySize:           options.MaxRequestBodySize,
			DisablePreParseMultipartForm: true,
			NoDefaultServerHeader:        true,
			NoDefaultContentType:         true,
			CloseOnShutdown:              true,
			Logger:                       options.Logger,
		},
		option: options,
	}
}

// CreateServer returns an engine with the default options and the standard
// middleware chain: recover, request log, timeout.
func CreateServer() *Engine {
	s := NewServer(DefaultServerOption())
	s.Use(RecoverMiddleware)
	s.Use(RequestLoggerMiddleware)
	s.Use(TimeoutMiddleware(s.option.RequestTimeout))
	return s
}

func errorHandler(ctx *RequestCtx, err error) {
	logger.Warn("[xhttp] request error", "error", err, "ip", ctx.RemoteIP().String())
}

// Use appends middleware. The first one registered is the outermost.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

func (e *Engine) ListenAndServe(addr string) error {
	e.DoRouting()
	e.Server.Logger.Printf("[xhttp] server is listening on %s", addr)
	return e.Server.ListenAndServe(addr)
}

// DoRouting installs the router behind the middleware chain.
func (e *Engine) DoRouting() {
	for method, routes := range e.Router.List() {
		for _, r := range routes {
			logger.Debug("[xhttp] route", "method", method, "path", r)
		}
	}

	handler := e.Router.Handler
	chain := slices.Clone(e.middle)
	slices.Reverse(chain)
	for _, m := range chain {
		handler = m(handler)
		logger.Debug("[xhttp] middleware", "name", runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
	e.Server.Handler = handler
}

// Shutdown waits for in-flight requests and closes idle connections.
func (e *Engine) Shutdown() {
	e.Server.Logger.Printf("[xhttp] server is shutting down, pid %d", os.Getpid())
	if err := e.Server.Shutdown(); err != nil {
		e.Server.Logger.Printf("[xhttp] error while shutting down: %v", err)
	}
}
