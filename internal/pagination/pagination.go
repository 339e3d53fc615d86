// Package pagination normalises page requests and computes page metadata
// shared by every list query.
package pagination

import (
	"math"
	"strings"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
	MaxLimit     = 1000

	DefaultSortBy = "timestamp"
)

// Order is a sort direction.
type Order string

const (
	Asc  Order = "ASC"
	Desc Order = "DESC"
)

// ParseOrder accepts asc/desc in any case. Anything else is Desc.
func ParseOrder(s string) Order {
	if strings.EqualFold(strings.TrimSpace(s), string(Asc)) {
		return Asc
	}
	return Desc
}

// Request describes the page a caller wants.
// Zero values are replaced by defaults in Normalize.
type Request struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder Order
}

// Normalize fills defaults and clamps out-of-range values.
//
// Page below 1 becomes 1 and is capped so Page*Limit fits in an int;
// Limit below 1 becomes DefaultLimit and above MaxLimit becomes MaxLimit.
// SortBy must be one of sortable, otherwise DefaultSortBy is used.
func (r Request) Normalize(sortable ...string) Request {
	switch {
	case r.Limit < 1:
		r.Limit = DefaultLimit
	case r.Limit > MaxLimit:
		r.Limit = MaxLimit
	}
	if r.Page < 1 {
		r.Page = DefaultPage
	}
	if maxPage := math.MaxInt / r.Limit; r.Page > maxPage {
		r.Page = maxPage
	}

	known := false
	for _, s := range sortable {
		if r.SortBy == s {
			known = true
			break
		}
	}
	if !known {
		r.SortBy = DefaultSortBy
	}

	if r.SortOrder != Asc {
		r.SortOrder = Desc
	}
	return r
}

// Offset is the number of rows skipped before this page. It saturates
// instead of overflowing for pages past math.MaxInt rows.
func (r Request) Offset() int {
	if r.Page < 1 || r.Limit < 1 {
		return 0
	}
	if r.Page-1 > math.MaxInt/r.Limit {
		return math.MaxInt / r.Limit * r.Limit
	}
	return (r.Page - 1) * r.Limit
}

// Info is the metadata returned alongside a page of results.
type Info struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	TotalItems  int  `json:"totalItems"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// NewInfo computes page metadata for a normalised request over total rows.
func NewInfo(r Request, total int) Info {
	info := Info{
		Page:        r.Page,
		Limit:       r.Limit,
		TotalItems:  total,
		HasPrevious: r.Page > 1,
	}
	if r.Limit > 0 {
		info.TotalPages = (total + r.Limit - 1) / r.Limit
		// Same as Page*Limit < total without the multiplication.
		info.HasNext = r.Page < info.TotalPages
	}
	return info
}
