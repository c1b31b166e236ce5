package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// ParseStatus is the lifecycle state of an ingested raw message.
type ParseStatus string

const (
	ParseStatusPending ParseStatus = "pending"
	ParseStatusParsed  ParseStatus = "parsed"
	ParseStatusFailed  ParseStatus = "failed"
	ParseStatusIgnored ParseStatus = "ignored"
)

// Channel identifies how a message reached the ledger.
type Channel string

const (
	ChannelPush   Channel = "push"
	ChannelPull   Channel = "pull"
	ChannelImport Channel = "import"
)

type RawMessage struct {
	ID              int64       `json:"id"`
	Sender          string      `json:"sender"`
	Body            string      `json:"body"`
	ReceivedAt      time.Time   `json:"received_at"`
	ParseStatus     ParseStatus `json:"parse_status"`
	ParseError      *string     `json:"parse_error,omitempty"`
	LinkedReference *string     `json:"linked_reference,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// InboundMessage is one (sender, body, timestamp) tuple delivered by a message source.
type InboundMessage struct {
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
	Channel    Channel   `json:"channel,omitempty"`
}

func (m InboundMessage) Validate() error {
	if m.Sender == "" {
		return errors.New("sender is required")
	}
	if m.Body == "" {
		return errors.New("body is required")
	}
	if m.ReceivedAt.IsZero() {
		return errors.New("received_at is required")
	}
	return nil
}

// Fingerprint identifies the same delivery arriving over more than one
// channel. Timestamps are compared at millisecond precision.
func (m InboundMessage) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(m.Sender))
	h.Write([]byte{0})
	h.Write([]byte(m.Body))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(m.ReceivedAt.UnixMilli(), 10)))
	return hex.EncodeToString(h.Sum(nil))
}

// RawMessageFilter controls List queries.
type RawMessageFilter struct {
	Statuses []ParseStatus // IN (...)
	Sender   *string
	From     *time.Time
	To       *time.Time
	Limit    int // default 50
	Offset   int
	Desc     bool // order by received_at
}

// ParseStats aggregates raw messages by parse status.
type ParseStats struct {
	Pending int64 `json:"pending"`
	Parsed  int64 `json:"parsed"`
	Failed  int64 `json:"failed"`
	Ignored int64 `json:"ignored"`
}
