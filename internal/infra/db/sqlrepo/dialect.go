// Package sqlrepo holds the SQL repositories shared by the sqlite, mysql and
// postgres drivers. Queries are written with ? placeholders and rebound per
// dialect.
package sqlrepo

import (
	"strconv"
	"strings"
)

// Dialect captures what differs between the supported databases.
type Dialect struct {
	Name string
	// Numbered switches ? placeholders to $1, $2, ...
	Numbered bool
	// UpsertModel inserts or replaces a row of models keyed by model_prefix.
	UpsertModel string
	// UpsertSetting inserts or replaces a row of settings keyed by setting_key.
	UpsertSetting string
}

// Rebind rewrites ? placeholders for the dialect.
func (d Dialect) Rebind(q string) string {
	if !d.Numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
