package model

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Pagination defaults and limits.
const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// SortField is a whitelisted field items can be ordered by.
type SortField string

const (
	SortByCreatedAt  SortField = "createdAt"
	SortByUpdatedAt  SortField = "updatedAt"
	SortByName       SortField = "name"
	SortByCategory   SortField = "category"
	SortByLocation   SortField = "location"
	SortByDepartment SortField = "department"
	SortByClaimedAt  SortField = "claimedAt"
)

var sortFields = map[SortField]bool{
	SortByCreatedAt:  true,
	SortByUpdatedAt:  true,
	SortByName:       true,
	SortByCategory:   true,
	SortByLocation:   true,
	SortByDepartment: true,
	SortByClaimedAt:  true,
}

// Valid reports whether f is an accepted sort field.
func (f SortField) Valid() bool { return sortFields[f] }

// SortOrder is ascending or descending.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ItemFilter selects items. Nil fields do not constrain the result; set fields are ANDed.
type ItemFilter struct {
	Category   *Category
	Location   *string // case-insensitive substring
	Department *string // case-insensitive substring
	Claimed    *bool
	Search     *string // case-insensitive substring of name OR description
}

// Matches reports whether item satisfies every set field of the filter.
func (f ItemFilter) Matches(item *Item) bool {
	if f.Category != nil && item.Category != *f.Category {
		return false
	}
	if f.Claimed != nil && item.Claimed != *f.Claimed {
		return false
	}
	if f.Location != nil && !containsFold(item.Location, *f.Location) {
		return false
	}
	if f.Department != nil && !containsFold(item.Department, *f.Department) {
		return false
	}
	if f.Search != nil && !containsFold(item.Name, *f.Search) && !containsFold(item.Description, *f.Search) {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ItemQuery is a filtered, sorted, paginated listing request.
type ItemQuery struct {
	Filter    ItemFilter
	Page      int
	Limit     int
	SortBy    SortField
	SortOrder SortOrder
}

// WithDefaults fills unset pagination and sort fields.
func (q ItemQuery) WithDefaults() ItemQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.SortBy == "" {
		q.SortBy = SortByCreatedAt
	}
	if q.SortOrder == "" {
		q.SortOrder = SortDesc
	}
	return q
}

// Offset is the number of matching items skipped before this page.
// It saturates at math.MaxInt64 so a page far past the end yields nothing.
func (q ItemQuery) Offset() int64 {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	skipped := int64(q.Page - 1)
	if skipped > math.MaxInt64/int64(q.Limit) {
		return math.MaxInt64
	}
	return skipped * int64(q.Limit)
}

// ParseItemQuery reads a listing request from URL query values.
// Missing values take defaults; malformed ones are reported together.
func ParseItemQuery(values url.Values) (ItemQuery, error) {
	var q ItemQuery
	v := &ValidationError{}

	if s := strings.TrimSpace(values.Get("category")); s != "" {
		c, err := ParseCategory(s)
		if err != nil {
			v.Add("category", err.Error())
		} else {
			q.Filter.Category = &c
		}
	}
	q.Filter.Location = optionalString(values, "location")
	q.Filter.Department = optionalString(values, "department")
	q.Filter.Search = optionalString(values, "search")

	if s := strings.TrimSpace(values.Get("claimed")); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			v.Add("claimed", "claimed must be true or false")
		} else {
			q.Filter.Claimed = &b
		}
	}

	q.Page = parsePositive(v, values, "page")
	q.Limit = parsePositive(v, values, "limit")

	if s := strings.TrimSpace(values.Get("sortBy")); s != "" {
		if f := SortField(s); f.Valid() {
			q.SortBy = f
		} else {
			v.Add("sortBy", "unsupported sort field "+s)
		}
	}
	if s := strings.ToLower(strings.TrimSpace(values.Get("sortOrder"))); s != "" {
		switch SortOrder(s) {
		case SortAsc, SortDesc:
			q.SortOrder = SortOrder(s)
		default:
			v.Add("sortOrder", "sortOrder must be asc or desc")
		}
	}

	if v.HasErrors() {
		return ItemQuery{}, v
	}
	return q.WithDefaults(), nil
}

func optionalString(values url.Values, key string) *string {
	s := strings.TrimSpace(values.Get(key))
	if s == "" {
		return nil
	}
	return &s
}

func parsePositive(v *ValidationError, values url.Values, key string) int {
	s := strings.TrimSpace(values.Get(key))
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		v.Add(key, key+" must be a positive integer")
		return 0
	}
	return n
}

// Pagination describes where a page sits in the filtered result set.
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasNext    bool  `json:"hasNext"`
	HasPrev    bool  `json:"hasPrev"`
}

// NewPagination computes page metadata for total matching items.
func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Page is one page of a listing.
type Page struct {
	Items      []Item     `json:"items"`
	Pagination Pagination `json:"pagination"`
}
