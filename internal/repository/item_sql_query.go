package repository

import (
	"strings"

	"lostfound-rest-api/internal/model"
)

// sortColumns maps API sort fields to columns. Only these may reach ORDER BY.
var sortColumns = map[model.SortField]string{
	model.SortByCreatedAt:  "created_at",
	model.SortByUpdatedAt:  "updated_at",
	model.SortByName:       "name",
	model.SortByCategory:   "category",
	model.SortByLocation:   "location",
	model.SortByDepartment: "department",
	model.SortByClaimedAt:  "claimed_at",
}

// buildItemWhere turns a filter into a WHERE clause with ? placeholders.
// Text filters are case-insensitive substring matches; category and claimed are exact.
func buildItemWhere(f model.ItemFilter) (string, []any) {
	var conds []string
	var args []any

	if f.Category != nil {
		conds = append(conds, "category = ?")
		args = append(args, string(*f.Category))
	}
	if f.Claimed != nil {
		conds = append(conds, "claimed = ?")
		args = append(args, *f.Claimed)
	}
	if f.Location != nil {
		conds = append(conds, "LOWER(location) LIKE ? ESCAPE '!'")
		args = append(args, likePattern(*f.Location))
	}
	if f.Department != nil {
		conds = append(conds, "LOWER(department) LIKE ? ESCAPE '!'")
		args = append(args, likePattern(*f.Department))
	}
	if f.Search != nil {
		pattern := likePattern(*f.Search)
		conds = append(conds, "(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')")
		args = append(args, pattern, pattern)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// buildItemOrderBy returns a deterministic ORDER BY; id breaks ties.
func buildItemOrderBy(field model.SortField, order model.SortOrder) string {
	col, ok := sortColumns[field]
	if !ok {
		col = "created_at"
	}
	dir := "DESC"
	if order == model.SortAsc {
		dir = "ASC"
	}
	return " ORDER BY " + col + " " + dir + ", id ASC"
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePattern builds a lower-cased %substring% pattern with LIKE wildcards escaped.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}
