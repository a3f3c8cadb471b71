package output

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	BatchID string `json:"batch_id" yaml:"batch_id"`
	Records int    `json:"records" yaml:"records"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"yaml", FormatYAML, false},
		{"json", FormatJSON, false},
		{"xml", "", true},
		{"", "", true},
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

func TestWrite(t *testing.T) {
	data := sample{BatchID: "batch_1", Records: 2}

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, FormatYAML, data); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if buf.String() != "batch_id: batch_1\nrecords: 2\n" {
			t.Errorf("unexpected yaml %q", buf.String())
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := Write(&buf, FormatJSON, data); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if !strings.Contains(buf.String(), `"batch_id": "batch_1"`) {
			t.Errorf("unexpected json %q", buf.String())
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if err := Write(&bytes.Buffer{}, Format("xml"), data); err == nil {
			t.Fatal("expected error for unknown format")
		}
	})
}

func TestSetFormat(t *testing.T) {
	defer SetFormat(Default)
	SetFormat(FormatJSON)
	if current != FormatJSON {
		t.Errorf("expected json, got %s", current)
	}
}
