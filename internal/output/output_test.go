package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/leadhunter/pkg/lead"
)

func sampleRecords() []Record {
	return FromLeads([]lead.Lead{
		{
			Name:     "Bright Smile Dental",
			Location: "Austin, TX",
			Website:  "https://brightsmile.example",
			Rating:   "4.8",
			Contact:  lead.Found("hello@brightsmile.example"),
		},
		{
			Name:     "Corner Clinic",
			Location: "Austin, TX",
			Contact:  lead.NoWebsite(),
		},
		{
			Name:     "Lakeside Ortho",
			Location: "Austin, TX",
			Website:  "https://lakeside.example",
			Contact:  lead.Unreachable(errors.New("timeout")),
		},
	})
}

func TestFromLead(t *testing.T) {
	tests := []struct {
		name       string
		contact    lead.ContactResult
		wantEmail  string
		wantStatus string
	}{
		{"found", lead.Found("a@b.example"), "a@b.example", "found"},
		{"not found", lead.NotFound(), "no email found", "no email found"},
		{"no website", lead.NoWebsite(), "no website", "no website"},
		{"unreachable", lead.Unreachable(errors.New("x")), "unreachable", "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromLead(lead.Lead{Name: "N", Location: "L", Contact: tt.contact})
			if r.ContactEmail != tt.wantEmail {
				t.Errorf("ContactEmail = %q, want %q", r.ContactEmail, tt.wantEmail)
			}
			if r.ContactStatus != tt.wantStatus {
				t.Errorf("ContactStatus = %q, want %q", r.ContactStatus, tt.wantStatus)
			}
		})
	}
}

func TestRecord_Row(t *testing.T) {
	r := sampleRecords()[0]
	row := r.Row()
	if len(row) != len(Columns) {
		t.Fatalf("row has %d cells, want %d", len(row), len(Columns))
	}
	want := []string{"Bright Smile Dental", "Austin, TX", "https://brightsmile.example", "hello@brightsmile.example", "found", "4.8"}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("row[%d] = %q, want %q", i, row[i], want[i])
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSONL", FormatJSONL, false},
		{" yaml ", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"csv", FormatCSV, false},
		{"xlsx", FormatXLSX, false},
		{"xml", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path   string
		want   Format
		wantOK bool
	}{
		{"leads.csv", FormatCSV, true},
		{"out/leads.XLSX", FormatXLSX, true},
		{"leads.yml", FormatYAML, true},
		{"leads", "", false},
		{"leads.txt", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := FormatFromPath(tt.path)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FormatFromPath(%q) = (%q, %v), want (%q, %v)", tt.path, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNewWriter_Formats(t *testing.T) {
	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			w, err := NewWriter(&buf, f)
			if err != nil {
				t.Fatalf("NewWriter(%s) error = %v", f, err)
			}
			if w == nil {
				t.Fatal("NewWriter returned nil writer")
			}
		})
	}
}

func TestNewWriter_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	if _, err := NewWriter(&buf, Format("xml")); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestJSONWriter_AlwaysArray(t *testing.T) {
	tests := []struct {
		name  string
		count int
	}{
		{"empty", 0},
		{"single", 1},
		{"multiple", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewJSONWriter(&buf, false, "")
			if err := w.WriteAll(sampleRecords()[:tt.count]); err != nil {
				t.Fatalf("WriteAll error = %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close error = %v", err)
			}

			var got []map[string]any
			if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
				t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
			}
			if len(got) != tt.count {
				t.Errorf("got %d items, want %d", len(got), tt.count)
			}
		})
	}
}

func TestJSONWriter_Fields(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONWriter(&buf, true, "  ")
	if err := w.Write(sampleRecords()[1]); err != nil {
		t.Fatalf("Write error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, `"contact_email": "no website"`) {
		t.Errorf("expected contact_email label, got:\n%s", out)
	}
	if strings.Contains(out, `"website"`) {
		t.Errorf("empty website should be omitted, got:\n%s", out)
	}
	if !strings.Contains(out, "\n  ") {
		t.Errorf("expected indented output, got:\n%s", out)
	}
}

func TestJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf)
	if err := w.WriteAll(sampleRecords()); err != nil {
		t.Fatalf("WriteAll error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, line := range lines {
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", i, err)
		}
	}
}

func TestYAMLWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewYAMLWriter(&buf)
	if err := w.WriteAll(sampleRecords()); err != nil {
		t.Fatalf("WriteAll error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	var got []Record
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[2].ContactStatus != "unreachable" {
		t.Errorf("ContactStatus = %q, want unreachable", got[2].ContactStatus)
	}
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	if err := w.WriteAll(sampleRecords()); err != nil {
		t.Fatalf("WriteAll error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(Columns, ",") {
		t.Errorf("header = %v, want %v", rows[0], Columns)
	}
	if rows[1][1] != "Austin, TX" {
		t.Errorf("location cell = %q, want quoted comma preserved", rows[1][1])
	}
}

func TestCSVWriter_EmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != strings.Join(Columns, ",") {
		t.Errorf("output = %q, want header only", got)
	}
}

func TestXLSXWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatXLSX, WithSheetName("Dentists"))
	if err != nil {
		t.Fatalf("NewWriter error = %v", err)
	}
	if err := w.WriteAll(sampleRecords()); err != nil {
		t.Fatalf("WriteAll error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Dentists")
	if err != nil {
		t.Fatalf("GetRows error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}
	if rows[0][0] != "name" {
		t.Errorf("A1 = %q, want name", rows[0][0])
	}
	if rows[1][3] != "hello@brightsmile.example" {
		t.Errorf("D2 = %q, want address", rows[1][3])
	}
}
