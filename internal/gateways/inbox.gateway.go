package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrInboxUnavailable = errors.New("inbox unavailable")
)

const inboxPath = "/api/v1/inbox"

// InboxMessage is the wire shape of one message held by the device inbox.
type InboxMessage struct {
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

type InboxResponse struct {
	Messages []InboxMessage `json:"messages"`
}

type ClientMetrics struct {
	TotalRequests    atomic.Int64
	FailedReqs       atomic.Int64
	ConsecutiveFails atomic.Int32
	LastLatencyMs    atomic.Int64
	LastSuccessTime  atomic.Int64
}

func (m *ClientMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())
}

func (m *ClientMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
}

type Config struct {
	URL             string
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	MaxRetryDelay   time.Duration
	PageSize        int
	MaxConns        int
	ReadBufferSize  int
	WriteBufferSize int
}

func DefaultConfig(url string) *Config {
	return &Config{
		URL:           url,
		Timeout:       10 * time.Second,
		MaxRetries:    3,
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 10 * time.Second,
		PageSize:      200,
		MaxConns:      4,
	}
}

// Client pulls batches of messages from the device inbox.
type Client struct {
	config  *Config
	http    *fasthttp.Client
	metrics *ClientMetrics
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.URL == "" {
		return nil, errors.New("inbox url is required")
	}
	if config.PageSize <= 0 {
		config.PageSize = 200
	}

	return &Client{
		config: config,
		http: &fasthttp.Client{
			MaxConnsPerHost:     max(config.MaxConns, 1),
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
		},
		metrics: &ClientMetrics{},
	}, nil
}

func (c *Client) Metrics() *ClientMetrics {
	return c.metrics
}

// FetchSince returns the messages delivered strictly after since, oldest
// first. A zero since fetches the whole inbox.
func (c *Client) FetchSince(ctx context.Context, since time.Time) ([]model.InboundMessage, error) {
	path := fmt.Sprintf("%s?limit=%d", inboxPath, c.config.PageSize)
	if !since.IsZero() {
		path += "&since=" + strconv.FormatInt(since.UnixNano(), 10)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		start := time.Now()
		body, err := c.doRequest(ctx, fasthttp.MethodGet, path)
		latency := time.Since(start).Milliseconds()
		if err != nil {
			c.metrics.RecordFailure()
			logger.Warn("inbox request failed, retrying", "error", err, "attempt", attempt+1)
			lastErr = err
			continue
		}
		c.metrics.RecordSuccess(latency)

		var resp InboxResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal inbox response: %w", err)
		}

		out := make([]model.InboundMessage, 0, len(resp.Messages))
		for _, m := range resp.Messages {
			out = append(out, model.InboundMessage{
				Sender:     m.Sender,
				Body:       m.Body,
				ReceivedAt: m.ReceivedAt,
				Channel:    model.ChannelPull,
			})
		}
		logger.Debug("inbox fetched", "count", len(out), "latency_ms", latency)
		return out, nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrInboxUnavailable, c.config.MaxRetries+1, lastErr)
}

// Healthy reports whether the inbox answers its health probe.
func (c *Client) Healthy(ctx context.Context) bool {
	body, err := c.doRequest(ctx, fasthttp.MethodGet, "/health")
	if err != nil {
		return false
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return false
	}
	return health.Status == "healthy"
}

// backoff doubles the delay per attempt up to MaxRetryDelay.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.config.RetryDelay << (attempt - 1)
	if c.config.MaxRetryDelay > 0 && (d > c.config.MaxRetryDelay || d <= 0) {
		d = c.config.MaxRetryDelay
	}
	return d
}

func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.URL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())
	return result, nil
}
