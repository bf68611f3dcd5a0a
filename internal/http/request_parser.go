package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"jizhang/internal/budget"
	"jizhang/internal/core"
)

// maxBodyBytes bounds form and JSON bodies.
const maxBodyBytes = 64 << 10

var errInvalidDate = errors.New("date must be YYYY-MM-DD")

// RequestBodyParser reads the entry and budget forms. HTMX posts them
// form-encoded; a JSON object body is accepted too for scripted clients.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	parsed   bool
	err      error
}

// NewRequestBodyParser buffers at most maxBodyBytes of the request body.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse decodes the buffered body once; later calls return the first result.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns the trimmed field value with control characters removed.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// stringValue renders a decoded JSON scalar; numbers keep their shortest form.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod returns a 405 response unless r uses one of methods.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// ParseEntry builds an entry from the date, category, amount and note
// fields. An empty date means today.
func ParseEntry(p *RequestBodyParser, today time.Time) (core.Entry, error) {
	var e core.Entry

	if raw := p.Get("date"); raw == "" {
		e.Date = core.DateOf(today)
	} else {
		t, err := time.Parse(core.DateLayout, raw)
		if err != nil {
			return e, fmt.Errorf("%w: %q", errInvalidDate, raw)
		}
		e.Date = core.DateOf(t)
	}

	cat, err := core.ParseCategory(p.Get("category"))
	if err != nil {
		return e, err
	}
	e.Category = cat

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return e, err
	}
	e.Amount = amount
	e.Note = p.Get("note")
	return e, e.Validate()
}

// ParseBudget reads a non-negative whole amount from the amount field.
func ParseBudget(p *RequestBodyParser) (int, error) {
	raw := p.Get("amount")
	if raw == "" {
		return 0, errors.New("budget amount is required")
	}
	v, ok := budget.ParseValue(raw)
	if !ok {
		return 0, budget.ErrInvalidBudget
	}
	return v, nil
}
