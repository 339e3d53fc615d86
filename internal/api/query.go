package api

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/greenhouse-iot/greenhouse-core/internal/pagination"
	"github.com/greenhouse-iot/greenhouse-core/internal/telemetry"
)

// idPattern constrains sensor and device ids accepted over HTTP.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// dateLayouts are tried in order for startDate/endDate.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// queryParser reads typed query parameters and collects every problem so
// the client gets one 400 naming all bad fields.
type queryParser struct {
	values url.Values
	errs   []telemetry.FieldError
}

func newQueryParser(values url.Values) *queryParser {
	return &queryParser{values: values}
}

func (p *queryParser) fail(field, msg string) {
	p.errs = append(p.errs, telemetry.FieldError{Field: field, Message: msg})
}

func (p *queryParser) id(field string) string {
	v := strings.TrimSpace(p.values.Get(field))
	if v != "" && !idPattern.MatchString(v) {
		p.fail(field, "may only contain letters, digits, '_' and '-'")
		return ""
	}
	return v
}

func (p *queryParser) int(field string, def int) int {
	v := p.values.Get(field)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(field, "must be an integer")
		return def
	}
	return n
}

func (p *queryParser) float(field string) *float64 {
	v := p.values.Get(field)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(field, "must be a number")
		return nil
	}
	return &f
}

func (p *queryParser) bool(field string) *bool {
	v := p.values.Get(field)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(field, "must be true or false")
		return nil
	}
	return &b
}

func (p *queryParser) time(field string) *time.Time {
	v := p.values.Get(field)
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t
		}
	}
	p.fail(field, "must be an ISO 8601 date")
	return nil
}

// page reads page, limit, sortBy and sortOrder. Range clamping is left to
// pagination.Request.Normalize.
func (p *queryParser) page() pagination.Request {
	return pagination.Request{
		Page:      p.int("page", pagination.DefaultPage),
		Limit:     p.int("limit", pagination.DefaultLimit),
		SortBy:    p.values.Get("sortBy"),
		SortOrder: pagination.ParseOrder(p.values.Get("sortOrder")),
	}
}

func (p *queryParser) dateRange() (start, end *time.Time) {
	start = p.time("startDate")
	end = p.time("endDate")
	if start != nil && end != nil && end.Before(*start) {
		p.fail("endDate", "must not be before startDate")
	}
	return start, end
}
