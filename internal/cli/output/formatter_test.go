package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type sample struct {
	ID      string `json:"id" yaml:"id"`
	Expires string `json:"expires" yaml:"expires"`
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"":      FormatTable,
		"table": FormatTable,
		"JSON":  FormatJSON,
		"yaml":  FormatYAML,
		"yml":   FormatYAML,
	}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) = nil error")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, "*output.JSONFormatter"},
		{FormatYAML, "*output.YAMLFormatter"},
		{FormatTable, "*output.TableFormatter"},
		{"", "*output.TableFormatter"},
	}
	for _, tt := range tests {
		got := NewFormatter(tt.format, false)
		if name := typeName(got); name != tt.want {
			t.Errorf("NewFormatter(%q) = %s, want %s", tt.format, name, tt.want)
		}
	}
	if tf, ok := NewFormatter(FormatTable, true).(*TableFormatter); !ok || !tf.Wide {
		t.Error("wide flag not passed to TableFormatter")
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := []sample{{ID: "a<b", Expires: "never"}}
	if err := (&JSONFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if !strings.Contains(buf.String(), "a<b") {
		t.Errorf("HTML was escaped: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Errorf("output not indented: %s", buf.String())
	}

	var back []sample
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil || len(back) != 1 || back[0] != data[0] {
		t.Errorf("round trip = %v, %v", back, err)
	}
}

func TestJSONFormatter_Compact(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{Compact: true}).Format(&buf, sample{ID: "x"}); err != nil {
		t.Fatalf("Format: %v", err)
	}
	if got := buf.String(); got != "{\"id\":\"x\",\"expires\":\"\"}\n" {
		t.Errorf("Format() = %q", got)
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{
		"id":    "abc",
		"attrs": map[string]any{"user": "alice", "visits": 3},
	}
	if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("Format: %v", err)
	}

	want := "attrs:\n  user: alice\n  visits: 3\nid: abc\n"
	if buf.String() != want {
		t.Errorf("Format() =\n%s\nwant\n%s", buf.String(), want)
	}

	var back map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back["id"] != "abc" {
		t.Errorf("id = %v", back["id"])
	}
}
