package ingest

import "strings"

// QuoteLiteral wraps field in single quotes, doubling any embedded quote.
func QuoteLiteral(field string) string {
	return "'" + strings.ReplaceAll(field, "'", "''") + "'"
}

// BuildInsert appends a VALUES clause holding row to insertPrefix. Every
// field is inserted as a quoted text literal regardless of the target column
// type, and the field count is not checked against the table.
func BuildInsert(insertPrefix string, row Row) string {
	values := make([]string, len(row))
	for i, field := range row {
		values[i] = QuoteLiteral(field)
	}
	return insertPrefix + " VALUES (" + strings.Join(values, ", ") + ")"
}
