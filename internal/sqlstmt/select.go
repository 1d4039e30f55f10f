package sqlstmt

import (
	"fmt"
	"strings"
)

// Select builds `SELECT cols FROM table WHERE f=z AND g=w`.
func Select(table string, columns []string, filter Columns) (string, error) {
	names, err := quoteNames(columns)
	if err != nil {
		return "", err
	}
	return selectFrom(table, names, filter)
}

// Count builds `SELECT COUNT(*) FROM table WHERE f=z AND g=w`.
func Count(table string, filter Columns) (string, error) {
	return selectFrom(table, "COUNT(*)", filter)
}

func selectFrom(table, what string, filter Columns) (string, error) {
	qt, err := quoteIdent(table)
	if err != nil {
		return "", fmt.Errorf("invalid table: %w", err)
	}
	stmt := fmt.Sprintf("SELECT %s FROM %s", what, qt)
	if len(filter) == 0 {
		return stmt, nil
	}
	where, err := conjunction(filter)
	if err != nil {
		return "", err
	}
	return stmt + " WHERE " + where, nil
}

// conjunction AND-joins the filter. NULL values compare with IS NULL.
func conjunction(filter Columns) (string, error) {
	conds := make([]string, len(filter))
	for i, col := range filter {
		name, err := quoteIdent(col.Name)
		if err != nil {
			return "", fmt.Errorf("invalid column name %q: %w", col.Name, err)
		}
		if lit := Literal(col.Value); lit == "NULL" {
			conds[i] = name + " IS NULL"
		} else {
			conds[i] = name + "=" + lit
		}
	}
	return strings.Join(conds, " AND "), nil
}
