package repository

import (
	"strconv"
	"strings"
)

// Dialect captures the differences between the SQL engines the item store runs on.
type Dialect struct {
	Name          string // sqlite, postgres or mysql
	DriverName    string // database/sql driver
	GooseDialect  string
	MigrationsDir string
	Numbered      bool // $1, $2 placeholders instead of ?
}

var (
	SQLite = Dialect{
		Name:          "sqlite",
		DriverName:    "sqlite",
		GooseDialect:  "sqlite3",
		MigrationsDir: "sqlite",
	}
	Postgres = Dialect{
		Name:          "postgres",
		DriverName:    "pgx",
		GooseDialect:  "postgres",
		MigrationsDir: "postgres",
		Numbered:      true,
	}
	MySQL = Dialect{
		Name:          "mysql",
		DriverName:    "mysql",
		GooseDialect:  "mysql",
		MigrationsDir: "mysql",
	}
)

// Rebind rewrites ? placeholders for dialects that number them.
// Queries built by this package never contain a literal question mark.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
