package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const DefaultCurrency = "KES"

var ErrNoMatch = errors.New("message matches no known dialect")

// CaptureError reports a dialect that matched but whose captures could not
// be converted. It satisfies errors.Is(err, ErrNoMatch) so callers that only
// care about "unparsed" can treat both the same.
type CaptureError struct {
	Kind  Kind
	Field string
	Value string
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("%s: bad %s %q: %v", e.Kind, e.Field, e.Value, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

func (e *CaptureError) Is(target error) bool { return target == ErrNoMatch }

var (
	codeShape   = regexp.MustCompile(`^[A-Z]{2,3}[A-Z0-9]{7,8}$`)
	splitCode   = regexp.MustCompile(`(\A\s*|\b(?i:ref(?:erence)?)[.:]?[ \t]+)([A-Z0-9]{2,10}[ \t]*\r?\n[ \t]*[A-Z0-9]{1,9})\b`)
	whitespaces = regexp.MustCompile(`\s+`)
)

// Parser turns message bodies into Records using an ordered dialect list.
// It holds no mutable state and is safe for concurrent use.
type Parser struct {
	dialects []Dialect
	loc      *time.Location
}

func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = DefaultLocation()
	}
	return &Parser{dialects: Library(), loc: loc}
}

// DefaultLocation is East Africa Time, falling back to a fixed +3 zone when
// the tz database is unavailable.
func DefaultLocation() *time.Location {
	loc, err := time.LoadLocation("Africa/Nairobi")
	if err != nil {
		return time.FixedZone("EAT", 3*60*60)
	}
	return loc
}

func (p *Parser) Location() *time.Location { return p.loc }

// Normalize rejoins reference codes that a device wrapped across lines and
// collapses remaining whitespace runs into single spaces. A wrap is only
// repaired where a code is expected: at the start of the body or right
// after "Ref".
func Normalize(body string) string {
	body = splitCode.ReplaceAllStringFunc(body, func(s string) string {
		m := splitCode.FindStringSubmatch(s)
		if m == nil {
			return s
		}
		joined := whitespaces.ReplaceAllString(m[2], "")
		if codeShape.MatchString(joined) && hasDigit(joined) {
			return m[1] + joined
		}
		return s
	})
	return strings.TrimSpace(whitespaces.ReplaceAllString(body, " "))
}

// Parse tries every dialect in order and returns the first successful
// record. A dialect that matches but yields an invalid capture stops the
// search with a *CaptureError.
func (p *Parser) Parse(body string) (*Record, error) {
	text := Normalize(body)
	if text == "" {
		return nil, ErrNoMatch
	}

	for i := range p.dialects {
		d := &p.dialects[i]
		caps, ok := d.match(text)
		if !ok {
			continue
		}
		return d.build(caps, p.loc)
	}
	return nil, ErrNoMatch
}

func (d *Dialect) match(text string) (map[string]string, bool) {
	m := d.Pattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	caps := make(map[string]string, len(m))
	for i, name := range d.Pattern.SubexpNames() {
		if name == "" || m[i] == "" {
			continue
		}
		caps[name] = strings.TrimSpace(m[i])
	}
	for _, name := range d.Required {
		if caps[name] == "" {
			return nil, false
		}
	}
	return caps, true
}

func (d *Dialect) build(caps map[string]string, loc *time.Location) (*Record, error) {
	fail := func(field string, err error) (*Record, error) {
		return nil, &CaptureError{Kind: d.Kind, Field: field, Value: caps[field], Err: err}
	}

	rec := &Record{
		Kind:              d.Kind,
		Type:              d.Type,
		Channel:           d.Channel,
		Currency:          DefaultCurrency,
		ReferenceCode:     caps["code"],
		CounterpartyName:  caps["name"],
		CounterpartyPhone: caps["phone"],
		Direction:         caps["direction"],
	}
	if !hasDigit(rec.ReferenceCode) {
		return fail("code", errors.New("reference code has no digit"))
	}
	if rec.CounterpartyName == "" {
		rec.CounterpartyName = d.DefaultName
	}
	for _, key := range []string{"account", "till", "agent"} {
		if v := caps[key]; v != "" {
			rec.Account = v
			break
		}
	}

	amount, err := ParseAmount(caps["amount"])
	if err != nil {
		return fail("amount", err)
	}
	rec.Amount = amount

	optional := []struct {
		field string
		dst   **int64
	}{
		{"fee", &rec.Fee},
		{"balance", &rec.Balance},
		{"outstanding", &rec.Outstanding},
	}
	for _, o := range optional {
		raw, ok := caps[o.field]
		if !ok {
			continue
		}
		v, err := ParseAmount(raw)
		if err != nil {
			return fail(o.field, err)
		}
		*o.dst = &v
	}

	if raw, ok := caps["due"]; ok {
		due, err := ParseDueDate(raw, loc)
		if err != nil {
			return fail("due", err)
		}
		rec.DueDate = &due
	}

	switch d.dates {
	case dateMobile:
		if caps["date"] != "" && caps["time"] != "" {
			t, err := ParseMobileDate(caps["date"], caps["time"], loc)
			if err != nil {
				return fail("date", err)
			}
			rec.OccurredAt = t
		}
	case dateBank:
		if raw := caps["datetime"]; raw != "" {
			t, err := ParseBankDateTime(raw, loc)
			if err != nil {
				return fail("datetime", err)
			}
			rec.OccurredAt = t
		}
	}

	return rec, nil
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
