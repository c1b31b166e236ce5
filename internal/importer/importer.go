// Package importer reads SMS backups into inbound messages for a historical
// import. CSV and JSON exports are supported.
package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/pkg/logger"
)

var ErrUnsupportedFormat = errors.New("unsupported backup format")

// Row is one exported message. Column names follow the common SMS backup
// apps: address is the sender and date may be unix milliseconds.
type Row struct {
	Sender     string `csv:"address"  json:"address"`
	Body       string `csv:"body"     json:"body"`
	ReceivedAt string `csv:"date"     json:"date"`
}

// layouts tried in order for non-numeric timestamps.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
}

// ReadFile dispatches on the file extension.
func ReadFile(path string, loc *time.Location) ([]model.InboundMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open backup %s: %w", path, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("failed to close backup", "path", path, "error", err)
		}
	}()

	var msgs []model.InboundMessage
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		msgs, err = ReadCSV(f, loc)
	case ".json":
		msgs, err = ReadJSON(f, loc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", path, err)
	}
	logger.Info("backup read", "path", path, "messages", len(msgs))
	return msgs, nil
}

func ReadCSV(r io.Reader, loc *time.Location) ([]model.InboundMessage, error) {
	var rows []*Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}
	return toMessages(rows, loc)
}

// ReadJSON accepts an array of rows.
func ReadJSON(r io.Reader, loc *time.Location) ([]model.InboundMessage, error) {
	var rows []*Row
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return toMessages(rows, loc)
}

func toMessages(rows []*Row, loc *time.Location) ([]model.InboundMessage, error) {
	out := make([]model.InboundMessage, 0, len(rows))
	for i, row := range rows {
		ts, err := ParseTimestamp(row.ReceivedAt, loc)
		if err != nil {
			// header is line 1
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		m := model.InboundMessage{
			Sender:     strings.TrimSpace(row.Sender),
			Body:       row.Body,
			ReceivedAt: ts,
			Channel:    model.ChannelImport,
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// ParseTimestamp reads unix milliseconds or one of the known layouts.
// Layouts without a zone are read in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).In(loc), nil
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
