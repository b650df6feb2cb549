package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported drivers.
// Queries in this package are written with '?' placeholders.
type Dialect struct {
	Name string
	// numbered placeholders ($1, $2, ...) instead of '?'
	Numbered bool
	// appended to the seed INSERT so an existing session row is left alone
	OnConflictIgnore string
	// appended to the SELECT that reads the row inside a write transaction
	LockRow string
}

var (
	Postgres = Dialect{
		Name:             "postgres",
		Numbered:         true,
		OnConflictIgnore: " ON CONFLICT (session_id) DO NOTHING",
		LockRow:          " FOR UPDATE",
	}
	MySQL = Dialect{
		Name:             "mysql",
		OnConflictIgnore: " ON DUPLICATE KEY UPDATE session_id = session_id",
		LockRow:          " FOR UPDATE",
	}
	// SQLite has no row locks; write transactions are opened IMMEDIATE, which
	// takes the database write lock up front.
	SQLite = Dialect{
		Name:             "sqlite",
		OnConflictIgnore: " ON CONFLICT (session_id) DO NOTHING",
	}
)

// Rebind rewrites '?' placeholders for dialects that number them.
func (d Dialect) Rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
