// Package output prints command results as YAML or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Format defines the output format for CLI commands.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Default is the default output format.
var Default Format = FormatYAML

// current is set by the root command's --output flag.
var current = Default

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatYAML, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (want yaml or json)", s)
	}
}

// SetFormat sets the process-wide output format.
func SetFormat(f Format) {
	current = f
}

// Print writes data to stdout in the configured format.
func Print(data any) error {
	return Write(os.Stdout, current, data)
}

// Write writes data to w in the given format.
func Write(w io.Writer, format Format, data any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
