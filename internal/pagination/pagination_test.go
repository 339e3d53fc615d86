package pagination

import (
	"math"
	"testing"
)

func TestRequest_Normalize(t *testing.T) {
	sortable := []string{"timestamp", "temperature"}

	tests := []struct {
		name string
		in   Request
		want Request
	}{
		{
			name: "zero value gets defaults",
			in:   Request{},
			want: Request{Page: 1, Limit: 100, SortBy: "timestamp", SortOrder: Desc},
		},
		{
			name: "explicit values kept",
			in:   Request{Page: 3, Limit: 20, SortBy: "temperature", SortOrder: Asc},
			want: Request{Page: 3, Limit: 20, SortBy: "temperature", SortOrder: Asc},
		},
		{
			name: "negative page and limit",
			in:   Request{Page: -2, Limit: -5},
			want: Request{Page: 1, Limit: 100, SortBy: "timestamp", SortOrder: Desc},
		},
		{
			name: "limit clamped",
			in:   Request{Page: 1, Limit: 50000},
			want: Request{Page: 1, Limit: MaxLimit, SortBy: "timestamp", SortOrder: Desc},
		},
		{
			name: "huge page capped below overflow",
			in:   Request{Page: math.MaxInt, Limit: 2},
			want: Request{Page: math.MaxInt / 2, Limit: 2, SortBy: "timestamp", SortOrder: Desc},
		},
		{
			name: "unknown sort column",
			in:   Request{SortBy: "id; DROP TABLE sensor_data", SortOrder: "sideways"},
			want: Request{Page: 1, Limit: 100, SortBy: "timestamp", SortOrder: Desc},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Normalize(sortable...); got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseOrder(t *testing.T) {
	tests := map[string]Order{
		"asc":  Asc,
		"ASC":  Asc,
		" Asc": Asc,
		"desc": Desc,
		"":     Desc,
		"up":   Desc,
	}
	for in, want := range tests {
		if got := ParseOrder(in); got != want {
			t.Errorf("ParseOrder(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewInfo(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		total int
		want  Info
	}{
		{
			name:  "first of three pages",
			req:   Request{Page: 1, Limit: 10},
			total: 25,
			want:  Info{Page: 1, Limit: 10, TotalItems: 25, TotalPages: 3, HasNext: true, HasPrevious: false},
		},
		{
			name:  "last partial page",
			req:   Request{Page: 3, Limit: 10},
			total: 25,
			want:  Info{Page: 3, Limit: 10, TotalItems: 25, TotalPages: 3, HasNext: false, HasPrevious: true},
		},
		{
			name:  "exact multiple",
			req:   Request{Page: 2, Limit: 10},
			total: 20,
			want:  Info{Page: 2, Limit: 10, TotalItems: 20, TotalPages: 2, HasNext: false, HasPrevious: true},
		},
		{
			name:  "empty result",
			req:   Request{Page: 1, Limit: 100},
			total: 0,
			want:  Info{Page: 1, Limit: 100, TotalItems: 0, TotalPages: 0},
		},
		{
			name:  "page near int overflow",
			req:   Request{Page: 1<<62 + 1, Limit: 2},
			total: 2,
			want:  Info{Page: 1<<62 + 1, Limit: 2, TotalItems: 2, TotalPages: 1, HasNext: false, HasPrevious: true},
		},
		{
			name:  "page beyond end",
			req:   Request{Page: 9, Limit: 10},
			total: 25,
			want:  Info{Page: 9, Limit: 10, TotalItems: 25, TotalPages: 3, HasNext: false, HasPrevious: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewInfo(tt.req, tt.total); got != tt.want {
				t.Errorf("NewInfo() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRequest_Offset(t *testing.T) {
	if got := (Request{Page: 3, Limit: 25}).Offset(); got != 50 {
		t.Errorf("Offset() = %d, want 50", got)
	}
	if got := (Request{Page: 0, Limit: 25}).Offset(); got != 0 {
		t.Errorf("Offset() for page 0 = %d, want 0", got)
	}

	huge := Request{Page: 1<<62 + 1, Limit: 2}
	if got := huge.Offset(); got < 0 {
		t.Errorf("Offset() for page 2^62+1 = %d, want non-negative", got)
	}
	if got := huge.Normalize().Offset(); got < 0 {
		t.Errorf("normalised Offset() = %d, want non-negative", got)
	}
}
