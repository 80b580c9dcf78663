package internal

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		name       string
		format     OutputFormat
		expectJSON bool
	}{
		{"text format", FormatText, false},
		{"json format", FormatJSON, true},
		{"unknown format defaults to text", "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := NewFormatter(tt.format, &bytes.Buffer{})
			_, isJSON := formatter.(*JSONFormatter)
			if isJSON != tt.expectJSON {
				t.Errorf("expected JSON formatter %v, got %T", tt.expectJSON, formatter)
			}
		})
	}
}

func TestTextFormatter_PrintTable(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewTextFormatter(buf).PrintTable([]string{"id", "status"}, [][]string{
		{"cfo", "online"},
		{"ciso", "offline"},
	}); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[0], "STATUS") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "--") {
		t.Errorf("unexpected separator %q", lines[1])
	}
}

func TestJSONFormatter_PrintTableStripsColour(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = prev })

	buf := &bytes.Buffer{}
	if err := NewJSONFormatter(buf).PrintTable([]string{"status"}, [][]string{{color.GreenString("online")}}); err != nil {
		t.Fatal(err)
	}

	var out struct {
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Data) != 1 || out.Data[0]["status"] != "online" {
		t.Errorf("expected plain status, got %v", out.Data)
	}
}

func TestJSONFormatter_PrintSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := NewJSONFormatter(buf).PrintSuccess("done"); err != nil {
		t.Fatal(err)
	}
	var out map[string]string
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["status"] != "success" || out["message"] != "done" {
		t.Errorf("unexpected output %v", out)
	}
}

func TestStripANSI(t *testing.T) {
	if got := stripANSI("\x1b[32monline\x1b[0m"); got != "online" {
		t.Errorf("got %q", got)
	}
	if got := stripANSI("plain"); got != "plain" {
		t.Errorf("got %q", got)
	}
}
