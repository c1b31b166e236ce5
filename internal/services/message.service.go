package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nimasrn/sms-ledger/internal/model"
)

var (
	ErrInvalidMessage  = errors.New("invalid message")
	ErrContentTooLong  = fmt.Errorf("message body exceeds maximum length")
	ErrFutureTimestamp = errors.New("received_at is in the future")
)

const (
	defaultMaxBodyLen = 2048
	clockSkew         = 5 * time.Minute
)

type Publisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// MessageService accepts messages from the push channel and hands them to
// the processing queue.
type MessageService struct {
	queue      Publisher
	maxBodyLen int
	now        func() time.Time
}

func NewMessageService(queue Publisher) *MessageService {
	return &MessageService{
		queue:      queue,
		maxBodyLen: defaultMaxBodyLen,
		now:        time.Now,
	}
}

// Submit validates and enqueues one message, returning the queue id.
func (s *MessageService) Submit(ctx context.Context, m model.InboundMessage) (string, error) {
	m.Sender = strings.TrimSpace(m.Sender)
	m.Body = strings.TrimSpace(m.Body)
	if m.ReceivedAt.IsZero() {
		m.ReceivedAt = s.now()
	}
	if err := m.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if s.maxBodyLen > 0 && utf8.RuneCountInString(m.Body) > s.maxBodyLen {
		return "", ErrContentTooLong
	}
	if m.ReceivedAt.After(s.now().Add(clockSkew)) {
		return "", ErrFutureTimestamp
	}
	if m.Channel == "" {
		m.Channel = model.ChannelPush
	}

	id, err := s.queue.PublishJSON(ctx, m, map[string]string{
		"channel": string(m.Channel),
		"sender":  m.Sender,
	})
	if err != nil {
		return "", fmt.Errorf("enqueue message: %w", err)
	}
	return id, nil
}
