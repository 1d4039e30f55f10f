package mysql

import (
	"database/sql/driver"
	"errors"
	"net"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/MrSnakeDoc/checkstore/internal/store"
)

// Server error numbers, see https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
var integrityErrors = map[uint16]bool{
	1048: true, // ER_BAD_NULL_ERROR
	1062: true, // ER_DUP_ENTRY
	1169: true, // ER_DUP_UNIQUE
	1216: true, // ER_NO_REFERENCED_ROW
	1217: true, // ER_ROW_IS_REFERENCED
	1451: true, // ER_ROW_IS_REFERENCED_2
	1452: true, // ER_NO_REFERENCED_ROW_2
}

var malformedErrors = map[uint16]bool{
	1049: true, // ER_BAD_DB_ERROR
	1054: true, // ER_BAD_FIELD_ERROR
	1064: true, // ER_PARSE_ERROR
	1110: true, // ER_FIELD_SPECIFIED_TWICE
	1136: true, // ER_WRONG_VALUE_COUNT_ON_ROW
	1146: true, // ER_NO_SUCH_TABLE
}

// Classify maps a statement error to an outcome.
func Classify(err error) store.Outcome {
	if err == nil {
		return store.Applied
	}
	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		switch {
		case integrityErrors[myErr.Number]:
			return store.Integrity
		case malformedErrors[myErr.Number]:
			return store.Malformed
		}
	}
	return store.Failed
}

// IsConnectionLost reports whether err means the session is gone.
func IsConnectionLost(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, gomysql.ErrInvalidConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
