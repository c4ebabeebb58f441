// File path: internal/tabular/table_test.go
package tabular

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/nexa-ai/nexa/internal/kb"
)

func TestReconstructSplitOrient(t *testing.T) {
	blob := json.RawMessage(`{"columns":["employee","salary"],"data":[["Bob",60000],["Carol",52000]]}`)
	group := kb.TableGroup{OrgID: "org-a", FileKey: "payroll.csv", Entries: []kb.KnowledgeEntry{
		{ID: "e1", DataJSON: blob},
	}}
	table, err := Reconstruct(group)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if len(table.Columns) != 2 || table.Columns[0] != "employee" {
		t.Fatalf("unexpected columns %v", table.Columns)
	}
	if len(table.Rows) != 2 || table.Rows[0][1] != "60000" {
		t.Fatalf("unexpected rows %v", table.Rows)
	}
	if table.Dtype("salary") != DtypeNumber {
		t.Fatalf("salary should infer as number, got %s", table.Dtype("salary"))
	}
	if table.Dtype("employee") != DtypeString {
		t.Fatalf("employee should infer as string, got %s", table.Dtype("employee"))
	}
}

func TestReconstructColumnOrient(t *testing.T) {
	blob := json.RawMessage(`{"name":{"0":"Ann","1":"Bob"},"age":{"1":20,"0":30}}`)
	group := kb.TableGroup{OrgID: "org-a", FileKey: "people.csv", Entries: []kb.KnowledgeEntry{
		{ID: "e1", DataJSON: blob},
	}}
	table, err := Reconstruct(group)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	// Columns sort, row indexes sort numerically.
	if table.Columns[0] != "age" || table.Columns[1] != "name" {
		t.Fatalf("unexpected columns %v", table.Columns)
	}
	if table.Rows[0][1] != "Ann" || table.Rows[0][0] != "30" {
		t.Fatalf("row 0 should be Ann/30, got %v", table.Rows[0])
	}
	if table.Rows[1][1] != "Bob" {
		t.Fatalf("row 1 should be Bob, got %v", table.Rows[1])
	}
}

func TestReconstructRowRecords(t *testing.T) {
	group := kb.TableGroup{OrgID: "org-a", FileKey: "people.csv", Entries: []kb.KnowledgeEntry{
		{ID: "r1", Header: []string{"name", "age"}, Row: map[string]interface{}{"name": "Ann", "age": 30}},
		{ID: "r2", Row: map[string]interface{}{"name": "Bob", "age": 20}},
	}}
	table, err := Reconstruct(group)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if table.Columns[0] != "name" || table.Columns[1] != "age" {
		t.Fatalf("header order should win, got %v", table.Columns)
	}
	if table.Rows[0][0] != "Ann" || table.Rows[1][1] != "20" {
		t.Fatalf("unexpected rows %v", table.Rows)
	}
}

func TestReconstructDelimitedText(t *testing.T) {
	group := kb.TableGroup{OrgID: "org-a", FileKey: "people.csv", Entries: []kb.KnowledgeEntry{
		{ID: "r1", Header: []string{"name", "age"}, Text: "Ann, 30"},
		{ID: "r2", Text: "Bob|20"},
	}}
	table, err := Reconstruct(group)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if table.Rows[0][0] != "Ann" || table.Rows[0][1] != "30" {
		t.Fatalf("comma row not split, got %v", table.Rows[0])
	}
	if table.Rows[1][0] != "Bob" {
		t.Fatalf("pipe row not split, got %v", table.Rows[1])
	}
}

func TestReconstructMalformed(t *testing.T) {
	cases := []struct {
		name  string
		group kb.TableGroup
	}{
		{"empty group", kb.TableGroup{FileKey: "x.csv"}},
		{"bad blob", kb.TableGroup{FileKey: "x.csv", Entries: []kb.KnowledgeEntry{
			{ID: "e1", DataJSON: json.RawMessage(`"just a string"`)},
		}}},
		{"ragged row", kb.TableGroup{FileKey: "x.csv", Entries: []kb.KnowledgeEntry{
			{ID: "e1", DataJSON: json.RawMessage(`{"columns":["a","b"],"data":[["only one"]]}`)},
		}}},
		{"misaligned text", kb.TableGroup{FileKey: "x.csv", Entries: []kb.KnowledgeEntry{
			{ID: "r1", Header: []string{"a", "b", "c"}, Text: "one,two"},
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Reconstruct(tc.group); !errors.Is(err, ErrMalformedSource) {
				t.Fatalf("want ErrMalformedSource, got %v", err)
			}
		})
	}
}

func TestDistinctValuesOrder(t *testing.T) {
	group := kb.TableGroup{FileKey: "x.csv", Entries: []kb.KnowledgeEntry{
		{ID: "r1", Header: []string{"city"}, Text: "Oslo"},
		{ID: "r2", Text: "Bergen"},
		{ID: "r3", Text: "Oslo"},
	}}
	table, err := Reconstruct(group)
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	values := table.DistinctValues("city")
	if len(values) != 2 || values[0] != "Oslo" || values[1] != "Bergen" {
		t.Fatalf("want first-appearance order, got %v", values)
	}
}
