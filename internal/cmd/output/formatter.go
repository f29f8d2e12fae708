// Package output renders command results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"

	"github.com/agentstation/fleetmap/internal/cmd/table"
	"github.com/agentstation/fleetmap/pkg/errors"
)

// Format names an output encoding.
type Format string

// Supported formats. Wide is a table with the optional columns.
const (
	FormatTable Format = "table"
	FormatWide  Format = "wide"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates s. The empty string selects the table.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	switch f {
	case "", FormatTable, FormatWide, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", errors.NewValidationError("format", s, "must be one of: table, json, yaml, wide")
}

// DetectFormat returns the explicit format if one was given. Otherwise it
// picks a table for terminals and JSON when stdout is piped.
func DetectFormat(explicit string) Format {
	if explicit != "" {
		return Format(strings.ToLower(explicit))
	}
	fd := os.Stdout.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return FormatTable
	}
	return FormatJSON
}

// IsTable reports whether format renders a table.
func IsTable(format Format) bool {
	return format == "" || format == FormatTable || format == FormatWide
}

// Render writes raw for the machine formats and layout's table otherwise.
func Render(w io.Writer, format Format, raw any, layout func(wide bool) table.Data) error {
	if IsTable(format) {
		return writeTable(w, layout(format == FormatWide))
	}
	return Print(w, format, raw)
}

// Print writes data in format. Table output accepts table.Data directly and
// derives a layout from structs by reflection; anything else falls back to
// JSON.
func Print(w io.Writer, format Format, data any) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, data)
	case FormatYAML:
		return writeYAML(w, data)
	}

	switch v := data.(type) {
	case table.Data:
		return writeTable(w, v)
	case *table.Data:
		return writeTable(w, *v)
	}
	if derived, ok := reflectTable(data); ok {
		return writeTable(w, derived)
	}
	return writeJSON(w, data)
}

func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeYAML(w io.Writer, data any) error {
	b, err := yaml.MarshalWithOptions(data, yaml.Indent(2), yaml.IndentSequence(false))
	if err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	_, err = w.Write(b)
	return err
}
