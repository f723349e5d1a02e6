package models

import "strings"

// FieldRecord maps a detail table's header labels to their cell values
type FieldRecord map[string]string

// Get returns the value stored under label, or "" when the table had no such row
func (r FieldRecord) Get(label string) string {
	return r[label]
}

// OutputRow is one record projected onto the declared schema plus its website status.
// Values is aligned with the owning ResultSet's Fields.
type OutputRow struct {
	Identifier string         `json:"url"`
	Values     []string       `json:"values"`
	Status     LivenessStatus `json:"status"`
}

// ResultSet is the ordered, append-only output of a run
type ResultSet struct {
	Fields      []string    `json:"fields"`
	StatusField string      `json:"status_field"`
	Rows        []OutputRow `json:"rows"`
}

// NewResultSet creates an empty result set with a fixed schema
func NewResultSet(fields []string, statusField string) *ResultSet {
	schema := make([]string, len(fields))
	copy(schema, fields)
	return &ResultSet{
		Fields:      schema,
		StatusField: statusField,
	}
}

// Project builds a row holding every declared field, filling the ones the record lacks with "".
func (rs *ResultSet) Project(identifier string, record FieldRecord) OutputRow {
	values := make([]string, len(rs.Fields))
	for i, field := range rs.Fields {
		values[i] = record.Get(field)
	}
	return OutputRow{
		Identifier: identifier,
		Values:     values,
	}
}

// Append adds a row to the end of the set
func (rs *ResultSet) Append(row OutputRow) {
	rs.Rows = append(rs.Rows, row)
}

// Len returns the number of rows
func (rs *ResultSet) Len() int {
	return len(rs.Rows)
}

// Value returns the named field of row i, or "" if the field is not part of the schema
func (rs *ResultSet) Value(i int, field string) string {
	idx := rs.fieldIndex(field)
	if idx < 0 || idx >= len(rs.Rows[i].Values) {
		return ""
	}
	return rs.Rows[i].Values[idx]
}

// Header returns the column names written to tabular output
func (rs *ResultSet) Header() []string {
	header := make([]string, 0, len(rs.Fields)+1)
	header = append(header, rs.Fields...)
	if rs.StatusField != "" {
		header = append(header, rs.StatusField)
	}
	return header
}

// Record returns row i as a slice aligned with Header
func (rs *ResultSet) Record(i int) []string {
	row := rs.Rows[i]
	record := make([]string, 0, len(rs.Fields)+1)
	for j := range rs.Fields {
		if j < len(row.Values) {
			record = append(record, row.Values[j])
		} else {
			record = append(record, "")
		}
	}
	if rs.StatusField != "" {
		record = append(record, row.Status.String())
	}
	return record
}

// Map returns row i keyed by column name
func (rs *ResultSet) Map(i int) map[string]string {
	header := rs.Header()
	record := rs.Record(i)
	m := make(map[string]string, len(header))
	for j, name := range header {
		m[name] = record[j]
	}
	return m
}

func (rs *ResultSet) fieldIndex(field string) int {
	for i, f := range rs.Fields {
		if strings.EqualFold(f, field) {
			return i
		}
	}
	return -1
}

// Summary reports how many identifiers a run attempted and how many produced a row
type Summary struct {
	Attempted int `json:"attempted"`
	Scraped   int `json:"scraped"`
}

// Skipped returns the number of identifiers that contributed no row
func (s Summary) Skipped() int {
	return s.Attempted - s.Scraped
}
