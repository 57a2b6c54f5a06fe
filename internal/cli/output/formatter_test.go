package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"", FormatTable, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, false).(FormatterFunc); !ok {
		t.Error("expected JSON formatter func")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("expected YAMLFormatter")
	}
	tf, ok := NewFormatter("unknown", true).(*TableFormatter)
	if !ok || !tf.Wide {
		t.Errorf("expected wide TableFormatter, got %#v", tf)
	}
}

type token struct {
	ID         string `json:"id"`
	ResourceID int64  `json:"resource_id"`
	Revoked    bool   `json:"revoked"`
	Title      string `json:"resource_title,omitempty"`
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON.Format(&buf, token{ID: "ptk-1", ResourceID: 42}); err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"id\": \"ptk-1\",\n  \"resource_id\": 42,\n  \"revoked\": false\n}\n"
	if buf.String() != want {
		t.Errorf("Format() = %q, want %q", buf.String(), want)
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := []token{
		{ID: "ptk-1", ResourceID: 42, Title: "true"},
		{ID: "ptk-2", ResourceID: 7, Revoked: true},
	}
	if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{
		"- id: ptk-1\n",
		"  resource_id: 42\n",
		"  revoked: true\n",
		`resource_title: "true"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "{") {
		t.Errorf("output should use block style:\n%s", out)
	}
	if strings.Index(out, "id:") > strings.Index(out, "resource_id:") {
		t.Errorf("field order not preserved:\n%s", out)
	}
}
