package postgres

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

const (
	pqInvalidStatementName pq.ErrorCode = "26000"
	pqProtocolViolation    pq.ErrorCode = "08P01"
)

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isPreparedStatementFailure reports whether a transaction pooler lost the
// unnamed prepared statement between parse and bind. The query is safe to
// retry with inlined literals.
func isPreparedStatementFailure(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqInvalidStatementName:
			return true
		case pqProtocolViolation:
			return strings.Contains(pqErr.Message, "bind message supplies")
		}
		return false
	}

	// Some poolers rewrite the error into plain text.
	msg := err.Error()
	return strings.Contains(msg, "unnamed prepared statement does not exist") ||
		(strings.Contains(msg, "bind message supplies") && strings.Contains(msg, "prepared statement"))
}
