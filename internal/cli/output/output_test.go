package output

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Files int    `json:"files" yaml:"files"`
}

func (s sample) Table() *Table {
	return &Table{
		Headers: []string{"NAME", "FILES"},
		Rows:    [][]string{{s.Name, "2"}},
	}
}

func TestFormatters(t *testing.T) {
	data := sample{Name: "Z1-abc", Files: 2}

	tests := []struct {
		format Format
		want   string
	}{
		{FormatTable, "NAME    FILES\nZ1-abc  2\n"},
		{FormatJSON, "{\n  \"name\": \"Z1-abc\",\n  \"files\": 2\n}\n"},
		{FormatYAML, "name: Z1-abc\nfiles: 2\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewFormatter(tt.format).Format(&buf, data); err != nil {
				t.Fatalf("Format: %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("output = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTableFormatter_Plain(t *testing.T) {
	var buf bytes.Buffer
	f := &TableFormatter{}

	if err := f.Format(&buf, []string{"42", "7"}); err != nil {
		t.Fatal(err)
	}
	if err := f.Format(&buf, KeyValue("tokens", "3", "premium_users", "1")); err != nil {
		t.Fatal(err)
	}

	want := "42\n7\ntokens:         3\npremium_users:  1\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestTable_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	tbl := &Table{Headers: []string{"A"}, Rows: [][]string{{"x"}}}
	(&TableFormatter{NoHeaders: true}).Format(&buf, tbl)

	if strings.Contains(buf.String(), "A") {
		t.Errorf("header printed with NoHeaders: %q", buf.String())
	}
}
