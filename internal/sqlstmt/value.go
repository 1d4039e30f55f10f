package sqlstmt

import (
	"fmt"
	"strings"
	"time"
)

// DateTimeLayout is the textual form of time values in statements.
const DateTimeLayout = "2006-01-02 15:04:05"

// DateLayout is the textual form of calendar days.
const DateLayout = "2006-01-02"

// Day marks a time value that should be rendered as a calendar date.
type Day time.Time

var escaper = strings.NewReplacer(`\`, `\\`, `'`, `''`)

// Escape doubles single quotes and backslashes.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Literal renders a value as a statement literal.
// Booleans become 1/0 and nil becomes NULL; everything else is quoted text.
func Literal(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if t {
			return "1"
		}
		return "0"
	case time.Time:
		return quote(t.Format(DateTimeLayout))
	case *time.Time:
		if t == nil {
			return "NULL"
		}
		return quote(t.Format(DateTimeLayout))
	case Day:
		return quote(time.Time(t).Format(DateLayout))
	case string:
		return quote(t)
	default:
		return quote(fmt.Sprint(t))
	}
}

func quote(s string) string {
	return "'" + Escape(s) + "'"
}
