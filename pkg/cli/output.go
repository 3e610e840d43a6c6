package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// FormatTable renders human-readable tables. Values without a table
	// form fall back to YAML.
	FormatTable OutputFormat = "table"
	FormatYAML  OutputFormat = "yaml"
	FormatJSON  OutputFormat = "json"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatYAML, FormatJSON:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unsupported output format %q (want table, yaml or json)", s)
}

// Tabular is implemented by results that render as a table.
type Tabular interface {
	Table() (headers []string, rows [][]string)
}

// OutputOptions configures Output.
type OutputOptions struct {
	Format OutputFormat
	// File is written instead of Writer when set.
	File string
	// Writer defaults to os.Stdout.
	Writer io.Writer
}

// Output writes result in the configured format.
func Output(result any, opts OutputOptions) error {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatTable, "":
		if t, ok := result.(Tabular); ok {
			headers, rows := t.Table()
			_, err := fmt.Fprintln(w, RenderTable(headers, rows))
			return err
		}
		return writeYAML(w, result)
	case FormatYAML:
		return writeYAML(w, result)
	}
	return fmt.Errorf("unsupported output format %q", opts.Format)
}

func writeYAML(w io.Writer, v any) error {
	// Round-trip through JSON so custom MarshalJSON methods shape the YAML
	// too.
	js, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	data, err := yaml.JSONToYAML(js)
	if err != nil {
		return fmt.Errorf("format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// PrintSuccess prints a success line to stderr.
func PrintSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, successStyle.Render("✓ "+fmt.Sprintf(format, args...)))
}

// PrintInfo prints an informational line to stderr.
func PrintInfo(format string, args ...any) {
	fmt.Fprintln(os.Stderr, infoStyle.Render("ℹ "+fmt.Sprintf(format, args...)))
}

// PrintWarning prints a warning line to stderr.
func PrintWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, warnStyle.Render("⚠ "+fmt.Sprintf(format, args...)))
}

// PrintVerbose prints to stderr when verbose is set.
func PrintVerbose(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}
