// Package sqlstmt builds the INSERT and UPDATE statements written to the record store.
//
// Values are inlined as escaped literals rather than bound as parameters, so that every
// statement is a self-contained string that can be logged verbatim when it fails.
package sqlstmt

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Column is one named value of a statement.
type Column struct {
	Name  string
	Value any
}

// Columns is an ordered name → value mapping.
type Columns []Column

// Add appends a column and returns the extended list.
func (c Columns) Add(name string, value any) Columns {
	return append(c, Column{Name: name, Value: value})
}

// Has reports whether a column name is present.
func (c Columns) Has(name string) bool {
	for _, col := range c {
		if col.Name == name {
			return true
		}
	}
	return false
}

// Names returns the column names in order.
func (c Columns) Names() []string {
	names := make([]string, len(c))
	for i, col := range c {
		names[i] = col.Name
	}
	return names
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// ErrNoColumns is returned when a statement would have nothing to write.
var ErrNoColumns = errors.New("no columns provided")

func quoteIdent(ident string) (string, error) {
	trimmed := strings.TrimSpace(ident)
	if trimmed == "" {
		return "", errors.New("identifier is empty")
	}
	parts := strings.Split(trimmed, ".")
	quoted := make([]string, len(parts))
	for i, part := range parts {
		if !identPattern.MatchString(part) {
			return "", fmt.Errorf("identifier segment %q is invalid", part)
		}
		quoted[i] = "`" + part + "`"
	}
	return strings.Join(quoted, "."), nil
}

func quoteNames(names []string) (string, error) {
	if len(names) == 0 {
		return "", ErrNoColumns
	}
	quoted := make([]string, len(names))
	for i, name := range names {
		if strings.Contains(name, ".") {
			return "", fmt.Errorf("invalid column name %q", name)
		}
		q, err := quoteIdent(name)
		if err != nil {
			return "", fmt.Errorf("invalid column name %q: %w", name, err)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, ", "), nil
}

// Insert builds `INSERT INTO table (cols) VALUES (values)`.
func Insert(table string, cols Columns) (string, error) {
	qt, err := quoteIdent(table)
	if err != nil {
		return "", fmt.Errorf("invalid table: %w", err)
	}
	names, err := quoteNames(cols.Names())
	if err != nil {
		return "", err
	}
	values := make([]string, len(cols))
	for i, col := range cols {
		values[i] = Literal(col.Value)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qt, names, strings.Join(values, ", ")), nil
}

// Update builds `UPDATE table SET a=x, b=y WHERE f=z AND g=w`.
// Columns that also appear in filter are left out of the SET clause.
func Update(table string, cols Columns, filter Columns) (string, error) {
	qt, err := quoteIdent(table)
	if err != nil {
		return "", fmt.Errorf("invalid table: %w", err)
	}

	sets := make([]string, 0, len(cols))
	for _, col := range cols {
		if filter.Has(col.Name) {
			continue
		}
		assign, err := assignment(col)
		if err != nil {
			return "", err
		}
		sets = append(sets, assign)
	}
	if len(sets) == 0 {
		return "", ErrNoColumns
	}

	stmt := fmt.Sprintf("UPDATE %s SET %s", qt, strings.Join(sets, ", "))
	if len(filter) == 0 {
		return stmt, nil
	}

	where, err := conjunction(filter)
	if err != nil {
		return "", err
	}
	return stmt + " WHERE " + where, nil
}

// BulkInsert builds one multi-row INSERT. Every row must have one value per column.
func BulkInsert(table string, columns []string, rows [][]any) (string, error) {
	qt, err := quoteIdent(table)
	if err != nil {
		return "", fmt.Errorf("invalid table: %w", err)
	}
	names, err := quoteNames(columns)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", errors.New("no rows provided")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", qt, names)
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(Literal(v))
		}
		b.WriteByte(')')
	}
	return b.String(), nil
}

func assignment(col Column) (string, error) {
	name, err := quoteIdent(col.Name)
	if err != nil {
		return "", fmt.Errorf("invalid column name %q: %w", col.Name, err)
	}
	return name + "=" + Literal(col.Value), nil
}
