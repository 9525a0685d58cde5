// Package render turns joined models and API records into text, JSON and YAML. Renderers are
// pure: they only write to the supplied writer.
package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"oci-gpu-toolkit/pkg/oci"
)

// Options carries the formatting choices of one invocation.
type Options struct {
	Color bool
}

func (o Options) paint(colors text.Colors, value string) string {
	if !o.Color {
		return value
	}

	return colors.Sprint(value)
}

// State formats a lifecycle state. raw, when set and different, is shown alongside so
// unknown API values stay visible.
func (o Options) State(state oci.LifecycleState, raw string) string {
	label := string(state)
	if state == oci.StateUnknown && raw != "" && raw != label {
		label = fmt.Sprintf("%s (%s)", label, raw)
	}

	return o.paint(stateColors(state), label)
}

func (o Options) heading(value string) string {
	return o.paint(text.Colors{text.Bold}, value)
}

func (o Options) dim(value string) string {
	return o.paint(text.Colors{text.FgHiBlack}, value)
}

func stateColors(state oci.LifecycleState) text.Colors {
	switch state {
	case oci.StateActive, oci.StateAvailable:
		return text.Colors{text.FgGreen}
	case oci.StateInactive:
		return text.Colors{text.FgYellow}
	case oci.StateCreating, oci.StateUpdating:
		return text.Colors{text.FgCyan}
	case oci.StateDeleting, oci.StateDeleted:
		return text.Colors{text.FgRed}
	default:
		return text.Colors{text.FgHiBlack}
	}
}

// Table writes a fixed-width table.
func Table(w io.Writer, header []string, rows [][]string, opts Options) {
	t := newTable(w, opts)
	t.AppendHeader(toRow(header))

	for _, row := range rows {
		t.AppendRow(toRow(row))
	}

	t.Render()
}

func newTable(w io.Writer, opts Options) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	if opts.Color {
		t.Style().Color.Header = text.Colors{text.Bold}
	}

	return t
}

func toRow(values []string) table.Row {
	row := make(table.Row, 0, len(values))
	for _, value := range values {
		row = append(row, value)
	}

	return row
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(v)
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	return nil
}

// YAML writes v as a YAML document.
func YAML(w io.Writer, v any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	err := encoder.Encode(v)
	if err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}

	err = encoder.Close()
	if err != nil {
		return fmt.Errorf("flush yaml: %w", err)
	}

	return nil
}
