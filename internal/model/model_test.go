package model

import (
	"math"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("  wALLet ")
	require.NoError(t, err)
	assert.Equal(t, CategoryWallet, c)

	c, err = ParseCategory("")
	require.NoError(t, err)
	assert.Equal(t, CategoryOther, c)

	_, err = ParseCategory("Spaceship")
	assert.Error(t, err)

	all := Categories()
	all[0] = "mutated"
	assert.Equal(t, CategoryPhone, Categories()[0])
}

func TestNewItemInputValidate(t *testing.T) {
	valid := NewItemInput{
		Name:        " Wallet ",
		Location:    "Library",
		Department:  "Engineering",
		FounderName: "Alice",
	}
	in := valid
	in.Normalize()
	category, err := in.Validate(Policy{})
	require.NoError(t, err)
	assert.Equal(t, CategoryOther, category)
	assert.Equal(t, "Wallet", in.Name)

	_, err = in.Validate(Policy{RequireContactInfo: true})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "contactInfo", verr.Fields[0].Field)

	in = NewItemInput{
		Name:        strings.Repeat("n", MaxNameLength+1),
		Description: strings.Repeat("d", MaxDescriptionLength+1),
		Category:    "Spaceship",
	}
	_, err = in.Validate(Policy{})
	require.ErrorAs(t, err, &verr)

	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"name", "description", "location", "department", "founderName", "category"}, fields)

	in = valid
	in.Name = strings.Repeat("é", MaxNameLength)
	_, err = in.Validate(Policy{})
	assert.NoError(t, err, "limits count characters, not bytes")
}

func TestItemPatchValidate(t *testing.T) {
	var empty ItemPatch
	assert.True(t, empty.Empty())
	assert.Error(t, empty.Validate(Policy{}))

	blank := "   "
	cat := Category("wallet")
	p := ItemPatch{Location: &blank, Category: &cat}
	p.Normalize()
	assert.Equal(t, CategoryWallet, *p.Category)

	var verr *ValidationError
	require.ErrorAs(t, p.Validate(Policy{}), &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "location", verr.Fields[0].Field)

	bad := Category("Spaceship")
	assert.Error(t, (&ItemPatch{Category: &bad}).Validate(Policy{}))
}

func TestValidateClaimant(t *testing.T) {
	name, err := ValidateClaimant("  Bob ")
	require.NoError(t, err)
	assert.Equal(t, "Bob", name)

	_, err = ValidateClaimant(" ")
	assert.Error(t, err)
	_, err = ValidateClaimant(strings.Repeat("x", MaxClaimantLength+1))
	assert.Error(t, err)
}

func TestItemExpiry(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	item := &Item{CreatedAt: created}
	retention := 72 * time.Hour

	at, ok := item.ExpiresAt(retention)
	require.True(t, ok)
	assert.Equal(t, created.Add(retention), at)

	assert.False(t, item.Expired(at.Add(-time.Millisecond), retention))
	assert.True(t, item.Expired(at, retention), "an item expires exactly at the end of its window")

	item.Claimed = true
	assert.Equal(t, StateClaimed, item.State())
	assert.False(t, item.Expired(at.Add(time.Hour), retention))
}

func TestParseItemQuery(t *testing.T) {
	q, err := ParseItemQuery(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPage, q.Page)
	assert.Equal(t, DefaultLimit, q.Limit)
	assert.Equal(t, SortByCreatedAt, q.SortBy)
	assert.Equal(t, SortDesc, q.SortOrder)
	assert.Zero(t, q.Offset())

	q, err = ParseItemQuery(url.Values{
		"category":  {"phone"},
		"claimed":   {"false"},
		"location":  {" lib "},
		"search":    {""},
		"page":      {"3"},
		"limit":     {"500"},
		"sortBy":    {"name"},
		"sortOrder": {"ASC"},
	})
	require.NoError(t, err)
	assert.Equal(t, CategoryPhone, *q.Filter.Category)
	assert.False(t, *q.Filter.Claimed)
	assert.Equal(t, "lib", *q.Filter.Location)
	assert.Nil(t, q.Filter.Search)
	assert.Equal(t, MaxLimit, q.Limit)
	assert.Equal(t, int64(200), q.Offset())
	assert.Equal(t, SortAsc, q.SortOrder)

	q, err = ParseItemQuery(url.Values{"page": {"92233720368547760"}, "limit": {"100"}})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), q.Offset(), "offset saturates instead of wrapping negative")

	_, err = ParseItemQuery(url.Values{"page": {"-1"}, "limit": {"x"}, "sortBy": {"password"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
}

func TestItemFilterMatches(t *testing.T) {
	item := &Item{Name: "Blue Wallet", Description: "Leather", Location: "Main Library", Department: "CS", Category: CategoryWallet}
	str := func(s string) *string { return &s }
	yes, no := true, false
	wallet, phone := CategoryWallet, CategoryPhone

	assert.True(t, ItemFilter{}.Matches(item))
	assert.True(t, ItemFilter{Search: str("leATHer")}.Matches(item))
	assert.True(t, ItemFilter{Location: str("library"), Category: &wallet, Claimed: &no}.Matches(item))
	assert.False(t, ItemFilter{Category: &phone}.Matches(item))
	assert.False(t, ItemFilter{Claimed: &yes}.Matches(item))
	assert.False(t, ItemFilter{Department: str("math")}.Matches(item))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 1, 3)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	p = NewPagination(1, 20, 0)
	assert.Zero(t, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.False(t, p.HasPrev)

	p = NewPagination(5, 10, 41)
	assert.Equal(t, 5, p.TotalPages)
	assert.False(t, p.HasNext)
}
