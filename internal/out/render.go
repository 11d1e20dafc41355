package out

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/ggonzalez94/mfi-cli/internal/config"
	"github.com/ggonzalez94/mfi-cli/internal/model"
	"github.com/rodaine/table"
)

// Render writes env as a JSON envelope or, in plain mode, as tables.
func Render(w io.Writer, env model.Envelope, settings config.Settings) error {
	data := env.Data
	if len(settings.SelectFields) > 0 {
		data = project(data, settings.SelectFields)
	}

	if settings.OutputMode == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if settings.ResultsOnly {
			return enc.Encode(data)
		}
		env.Data = data
		return enc.Encode(env)
	}

	if env.Error != nil {
		_, err := fmt.Fprintf(w, "error code=%d type=%s message=%q command=%q\n", env.Error.Code, env.Error.Type, env.Error.Message, env.Meta.Command)
		return err
	}
	if err := renderPlain(w, data); err != nil {
		return err
	}
	if settings.ResultsOnly {
		return nil
	}
	for _, warning := range env.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", warning); err != nil {
			return err
		}
	}
	return nil
}

func renderPlain(w io.Writer, data any) error {
	switch t := normalizeValue(data).(type) {
	case nil:
		_, err := fmt.Fprintln(w, "null")
		return err
	case []any:
		if len(t) == 0 {
			_, err := fmt.Fprintln(w, "(none)")
			return err
		}
		rows := make([]map[string]any, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return renderLines(w, t)
			}
			rows = append(rows, m)
		}
		return renderRows(w, rows)
	case map[string]any:
		tbl := table.New("Field", "Value").WithWriter(w)
		for _, k := range sortedKeys(t) {
			tbl.AddRow(k, cell(t[k]))
		}
		tbl.Print()
		return nil
	default:
		_, err := fmt.Fprintln(w, cell(t))
		return err
	}
}

func renderRows(w io.Writer, rows []map[string]any) error {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	headers := make([]any, len(cols))
	for i, c := range cols {
		headers[i] = c
	}
	tbl := table.New(headers...).WithWriter(w)
	for _, row := range rows {
		vals := make([]any, len(cols))
		for i, c := range cols {
			vals[i] = cell(row[c])
		}
		tbl.AddRow(vals...)
	}
	tbl.Print()
	return nil
}

func renderLines(w io.Writer, items []any) error {
	for _, item := range items {
		if _, err := fmt.Fprintln(w, cell(item)); err != nil {
			return err
		}
	}
	return nil
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		buf, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(buf)
	default:
		return fmt.Sprint(t)
	}
}

func project(data any, fields []string) any {
	n := normalizeValue(data)
	switch t := n.(type) {
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			out = append(out, projectMap(m, fields))
		}
		return out
	case map[string]any:
		return projectMap(t, fields)
	default:
		return n
	}
}

func projectMap(m map[string]any, fields []string) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := m[f]; ok {
			out[f] = v
		}
	}
	return out
}

// normalizeValue round-trips v through JSON so structs, maps and slices
// render through the same generic shapes.
func normalizeValue(v any) any {
	buf, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return v
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
