// Command inbox simulates the device-side message inbox that the processor
// pulls from. Messages can be seeded from an export file or pushed over HTTP.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nimasrn/sms-ledger/internal/importer"
	"github.com/nimasrn/sms-ledger/internal/parser"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultPageSize = 200
	maxPageSize     = 1000
)

// InboxMessage is one message held by the device.
type InboxMessage struct {
	Sender     string    `json:"sender" binding:"required"`
	Body       string    `json:"body" binding:"required"`
	ReceivedAt time.Time `json:"received_at"`
}

type InboxResponse struct {
	Messages []InboxMessage `json:"messages"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	DeviceID    string    `json:"device_id"`
	Timestamp   time.Time `json:"timestamp"`
	Messages    int       `json:"messages"`
	FailureRate float64   `json:"failure_rate"`
}

// MockInbox keeps messages ordered by arrival time.
type MockInbox struct {
	mu          sync.RWMutex
	messages    []InboxMessage
	failureRate float64
	deviceID    string
	rng         *rand.Rand
	now         func() time.Time
}

func NewMockInbox(failureRate float64) *MockInbox {
	return &MockInbox{
		failureRate: failureRate,
		deviceID:    "MOCK_DEVICE_" + uuid.New().String()[:8],
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		now:         time.Now,
	}
}

// Add stores a message, stamping it with the current time when it has none.
func (m *MockInbox) Add(msg InboxMessage) InboxMessage {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	i := sort.Search(len(m.messages), func(i int) bool {
		return m.messages[i].ReceivedAt.After(msg.ReceivedAt)
	})
	m.messages = append(m.messages, InboxMessage{})
	copy(m.messages[i+1:], m.messages[i:])
	m.messages[i] = msg
	return msg
}

// Since returns up to limit messages received strictly after since.
func (m *MockInbox) Since(since time.Time, limit int) []InboxMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i := sort.Search(len(m.messages), func(i int) bool {
		return m.messages[i].ReceivedAt.After(since)
	})
	end := min(i+limit, len(m.messages))
	out := make([]InboxMessage, end-i)
	copy(out, m.messages[i:end])
	return out
}

func (m *MockInbox) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

func (m *MockInbox) shouldFail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.failureRate
}

// Seed loads an exported history into the inbox.
func (m *MockInbox) Seed(path string) (int, error) {
	msgs, err := importer.ReadFile(path, parser.DefaultLocation())
	if err != nil {
		return 0, err
	}
	for _, msg := range msgs {
		m.Add(InboxMessage{Sender: msg.Sender, Body: msg.Body, ReceivedAt: msg.ReceivedAt})
	}
	return len(msgs), nil
}

type Handler struct {
	inbox *MockInbox
}

func NewHandler(inbox *MockInbox) *Handler {
	return &Handler{inbox: inbox}
}

// ListInbox serves GET /api/v1/inbox?since=<unix nanos>&limit=<n>.
func (h *Handler) ListInbox(c *gin.Context) {
	if h.inbox.shouldFail() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "device unreachable"})
		return
	}

	var since time.Time
	if v := c.Query("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be unix nanoseconds"})
			return
		}
		since = time.Unix(0, n)
	}

	limit := defaultPageSize
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxPageSize)
	}

	msgs := h.inbox.Since(since, limit)
	log.Debug().Time("since", since).Int("returned", len(msgs)).Msg("inbox listed")
	c.JSON(http.StatusOK, InboxResponse{Messages: msgs})
}

// Deliver simulates a new SMS landing on the device.
func (h *Handler) Deliver(c *gin.Context) {
	var req InboxMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	msg := h.inbox.Add(req)
	log.Info().
		Str("sender", msg.Sender).
		Time("received_at", msg.ReceivedAt).
		Msg("message delivered to inbox")
	c.JSON(http.StatusCreated, msg)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		DeviceID:    h.inbox.deviceID,
		Timestamp:   time.Now(),
		Messages:    h.inbox.Len(),
		FailureRate: h.inbox.failureRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/inbox", handler.ListInbox)
		v1.POST("/inbox", handler.Deliver)
		v1.GET("/health", handler.HealthCheck)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8089")
	seed := getEnv("INBOX_SEED_FILE", "")
	failureRate := getEnvFloat("FAILURE_RATE", 0)

	log.Info().
		Str("port", port).
		Str("seed", seed).
		Float64("failure_rate", failureRate).
		Msg("Starting mock device inbox")

	inbox := NewMockInbox(failureRate)
	if seed != "" {
		n, err := inbox.Seed(seed)
		if err != nil {
			log.Fatal().Err(err).Str("seed", seed).Msg("Failed to seed inbox")
		}
		log.Info().Int("messages", n).Msg("Inbox seeded")
	}

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      SetupRouter(NewHandler(inbox)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}
