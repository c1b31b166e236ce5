package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

const (
	bankDateTimeLayout = "02-01-2006 15:04"
	// two-digit years always resolve into this century
	yearCutoverBase = 2000
)

// ParseMobileDate parses the mobile-money "D/M/YY" + "H:MM AM" pair. The
// first group is the day unless it is impossible: when the second group is
// above 12 the pair is read month-first.
func ParseMobileDate(date, clock string, loc *time.Location) (time.Time, error) {
	a, b, yy, err := splitDate(date)
	if err != nil {
		return time.Time{}, err
	}
	day, month := a, b
	if b > 12 && a <= 12 {
		day, month = b, a
	}

	hour, minute, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return buildDate(yearCutoverBase+yy, month, day, hour, minute, 0, loc, date)
}

// ParseBankDateTime parses "DD-MM-YYYY HH:MM" (24 hour).
func ParseBankDateTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(bankDateTimeLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}
	return t, nil
}

// ParseDueDate parses a facility due date "DD/MM/YY" pinned to the end of that day.
func ParseDueDate(s string, loc *time.Location) (time.Time, error) {
	day, month, yy, err := splitDate(s)
	if err != nil {
		return time.Time{}, err
	}
	return buildDate(yearCutoverBase+yy, month, day, 23, 59, 59, loc, s)
}

func splitDate(s string) (int, int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		n[i] = v
	}
	if n[2] < 0 || n[2] > 99 {
		return 0, 0, 0, fmt.Errorf("%w: %q: year must have two digits", ErrInvalidDate, s)
	}
	return n[0], n[1], n[2], nil
}

func parseClock(s string) (int, int, error) {
	s = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	var pm bool
	switch {
	case strings.HasSuffix(s, "PM"):
		pm = true
		s = strings.TrimSuffix(s, "PM")
	case strings.HasSuffix(s, "AM"):
		s = strings.TrimSuffix(s, "AM")
	default:
		return 0, 0, fmt.Errorf("%w: clock %q has no AM/PM", ErrInvalidDate, s)
	}

	hm := strings.Split(s, ":")
	if len(hm) != 2 {
		return 0, 0, fmt.Errorf("%w: clock %q", ErrInvalidDate, s)
	}
	hour, err := strconv.Atoi(hm[0])
	if err != nil || hour < 1 || hour > 12 {
		return 0, 0, fmt.Errorf("%w: clock %q", ErrInvalidDate, s)
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: clock %q", ErrInvalidDate, s)
	}

	if hour == 12 {
		hour = 0
	}
	if pm {
		hour += 12
	}
	return hour, minute, nil
}

func buildDate(year, month, day, hour, minute, second int, loc *time.Location, raw string) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, loc)
	// time.Date normalises 31/02 into March; reject instead
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}
	return t, nil
}
