// File path: internal/tabular/table.go
package tabular

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/nexa-ai/nexa/internal/kb"
)

// ErrMalformedSource reports that a tabular entry group could not be
// reconstructed into a table. The assembler skips the table and continues.
var ErrMalformedSource = errors.New("malformed table source")

// Dtype is the inferred column type.
type Dtype string

const (
	DtypeNumber Dtype = "number"
	DtypeString Dtype = "string"
)

// Table is an in-memory row-by-column reconstruction of one tabular file.
// Cells are kept as rendered strings; numeric columns are re-parsed on
// demand for aggregation.
type Table struct {
	FileKey string
	Columns []string
	Rows    [][]string

	dtypes []Dtype
}

// Reconstruct builds a table from a group of knowledge entries that share a
// file key. Three source shapes are accepted: a serialized whole-table blob,
// per-row record entries, and delimited text rows with header metadata.
func Reconstruct(group kb.TableGroup) (*Table, error) {
	if len(group.Entries) == 0 {
		return nil, fmt.Errorf("%w: empty entry group for %q", ErrMalformedSource, group.FileKey)
	}
	for _, entry := range group.Entries {
		if len(entry.DataJSON) > 0 {
			return fromDataJSON(group.FileKey, entry.DataJSON)
		}
	}
	return fromRowEntries(group)
}

// fromDataJSON accepts the two column-oriented serializations seen in
// practice: {"columns": [...], "data": [[...], ...]} and the default
// {"col": {"0": v, "1": v}, ...} orientation.
func fromDataJSON(fileKey string, blob json.RawMessage) (*Table, error) {
	var split struct {
		Columns []string          `json:"columns"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(blob, &split); err == nil && len(split.Columns) > 0 && split.Data != nil {
		table := &Table{FileKey: fileKey, Columns: split.Columns}
		for i, raw := range split.Data {
			var cells []json.RawMessage
			if err := json.Unmarshal(raw, &cells); err != nil {
				return nil, fmt.Errorf("%w: row %d of %q: %v", ErrMalformedSource, i, fileKey, err)
			}
			if len(cells) != len(split.Columns) {
				return nil, fmt.Errorf("%w: row %d of %q has %d cells for %d columns", ErrMalformedSource, i, fileKey, len(cells), len(split.Columns))
			}
			row := make([]string, len(cells))
			for j, cell := range cells {
				row[j] = renderJSONCell(cell)
			}
			table.Rows = append(table.Rows, row)
		}
		table.inferTypes()
		return table, nil
	}

	var byColumn map[string]map[string]json.RawMessage
	if err := json.Unmarshal(blob, &byColumn); err != nil || len(byColumn) == 0 {
		return nil, fmt.Errorf("%w: unrecognized table serialization for %q", ErrMalformedSource, fileKey)
	}
	columns := make([]string, 0, len(byColumn))
	for col := range byColumn {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	indexSet := make(map[int]struct{})
	for _, cells := range byColumn {
		for key := range cells {
			idx, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("%w: non-numeric row index %q in %q", ErrMalformedSource, key, fileKey)
			}
			indexSet[idx] = struct{}{}
		}
	}
	indexes := make([]int, 0, len(indexSet))
	for idx := range indexSet {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	table := &Table{FileKey: fileKey, Columns: columns}
	for _, idx := range indexes {
		key := strconv.Itoa(idx)
		row := make([]string, len(columns))
		for j, col := range columns {
			if cell, ok := byColumn[col][key]; ok {
				row[j] = renderJSONCell(cell)
			}
		}
		table.Rows = append(table.Rows, row)
	}
	table.inferTypes()
	return table, nil
}

func fromRowEntries(group kb.TableGroup) (*Table, error) {
	columns := collectColumns(group)
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns resolvable for %q", ErrMalformedSource, group.FileKey)
	}
	table := &Table{FileKey: group.FileKey, Columns: columns}
	position := make(map[string]int, len(columns))
	for i, col := range columns {
		position[col] = i
	}
	for _, entry := range group.Entries {
		switch {
		case len(entry.Row) > 0:
			row := make([]string, len(columns))
			for col, value := range entry.Row {
				if i, ok := position[col]; ok {
					row[i] = renderValue(value)
				}
			}
			table.Rows = append(table.Rows, row)
		case strings.TrimSpace(entry.Text) != "":
			cells := splitDelimited(entry.Text, len(columns))
			if cells == nil {
				return nil, fmt.Errorf("%w: delimited row of %q does not align with header", ErrMalformedSource, group.FileKey)
			}
			row := make([]string, len(columns))
			copy(row, cells)
			table.Rows = append(table.Rows, row)
		}
	}
	if len(table.Rows) == 0 {
		return nil, fmt.Errorf("%w: no reconstructable rows for %q", ErrMalformedSource, group.FileKey)
	}
	table.inferTypes()
	return table, nil
}

// collectColumns resolves the stable column set for a row-entry group: the
// first header wins, otherwise the union of row keys in sorted order.
func collectColumns(group kb.TableGroup) []string {
	for _, entry := range group.Entries {
		if len(entry.Header) > 0 {
			return append([]string(nil), entry.Header...)
		}
	}
	seen := make(map[string]struct{})
	for _, entry := range group.Entries {
		for col := range entry.Row {
			seen[col] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for col := range seen {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

var rowDelimiters = []string{",", "|", "\t", ";"}

// splitDelimited splits a delimited row so that the cell count matches the
// header width, trying common delimiters in order.
func splitDelimited(text string, width int) []string {
	for _, delim := range rowDelimiters {
		parts := strings.Split(text, delim)
		if len(parts) == width {
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts
		}
	}
	if width == 1 {
		return []string{strings.TrimSpace(text)}
	}
	return nil
}

func renderJSONCell(raw json.RawMessage) string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return renderValue(value)
}

func renderValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

func (t *Table) inferTypes() {
	t.dtypes = make([]Dtype, len(t.Columns))
	for j := range t.Columns {
		dtype := DtypeString
		numeric := false
		allNumeric := true
		for _, row := range t.Rows {
			cell := strings.TrimSpace(row[j])
			if cell == "" {
				continue
			}
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				allNumeric = false
				break
			}
			numeric = true
		}
		if numeric && allNumeric {
			dtype = DtypeNumber
		}
		t.dtypes[j] = dtype
	}
}

// Dtype returns the inferred type of a column, defaulting to string for
// unknown columns.
func (t *Table) Dtype(column string) Dtype {
	for j, col := range t.Columns {
		if col == column {
			return t.dtypes[j]
		}
	}
	return DtypeString
}

// ColumnIndex returns the position of a column, or -1.
func (t *Table) ColumnIndex(column string) int {
	for j, col := range t.Columns {
		if col == column {
			return j
		}
	}
	return -1
}

// DistinctValues returns the distinct non-empty values of a column in first
// appearance order.
func (t *Table) DistinctValues(column string) []string {
	j := t.ColumnIndex(column)
	if j < 0 {
		return nil
	}
	seen := make(map[string]struct{})
	var values []string
	for _, row := range t.Rows {
		cell := strings.TrimSpace(row[j])
		if cell == "" {
			continue
		}
		if _, ok := seen[cell]; ok {
			continue
		}
		seen[cell] = struct{}{}
		values = append(values, cell)
	}
	return values
}

// NumericColumn parses the non-null cells of a column as floats.
func (t *Table) NumericColumn(column string) []float64 {
	j := t.ColumnIndex(column)
	if j < 0 {
		return nil
	}
	var out []float64
	for _, row := range t.Rows {
		cell := strings.TrimSpace(row[j])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Select returns the rows whose index passes the mask.
func (t *Table) Select(mask func(row []string) bool) [][]string {
	var out [][]string
	for _, row := range t.Rows {
		if mask(row) {
			out = append(out, row)
		}
	}
	return out
}

// formatFloat renders aggregates without artificial trailing zeros.
func formatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
