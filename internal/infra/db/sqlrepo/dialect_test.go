package sqlrepo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialectRebind(t *testing.T) {
	q := `UPDATE scans SET failure_code = ?, result = ? WHERE seq = ?`

	assert.Equal(t, q, Dialect{Name: "mysql"}.Rebind(q))
	assert.Equal(t,
		`UPDATE scans SET failure_code = $1, result = $2 WHERE seq = $3`,
		Dialect{Name: "postgres", Numbered: true}.Rebind(q))
}
