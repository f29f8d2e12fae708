package output

import (
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/fleetmap/internal/cmd/table"
)

var alignments = map[table.Align]tw.Align{
	table.AlignLeft:   tw.AlignLeft,
	table.AlignCenter: tw.AlignCenter,
	table.AlignRight:  tw.AlignRight,
}

func writeTable(w io.Writer, data table.Data) error {
	if len(data.Rows) == 0 {
		_, err := fmt.Fprintln(w, "No results.")
		return err
	}

	var cfg tablewriter.Config
	if len(data.ColumnAlignment) > 0 {
		per := make([]tw.Align, len(data.ColumnAlignment))
		for i, a := range data.ColumnAlignment {
			if mapped, ok := alignments[a]; ok {
				per[i] = mapped
			} else {
				per[i] = tw.Skip
			}
		}
		cfg.Header.Alignment = tw.CellAlignment{PerColumn: per}
		cfg.Row.Alignment = tw.CellAlignment{PerColumn: per}
	}

	tbl := tablewriter.NewTable(w, tablewriter.WithConfig(cfg))
	if len(data.Headers) > 0 {
		tbl.Header(cells(data.Headers)...)
	}
	for _, row := range data.Rows {
		if err := tbl.Append(cells(row)...); err != nil {
			return err
		}
	}
	return tbl.Render()
}

func cells(row []string) []any {
	out := make([]any, len(row))
	for i, c := range row {
		out[i] = c
	}
	return out
}

// reflectTable lays out a struct as property/value rows and a slice of
// structs as one row per element. Unexported fields and fields tagged
// json:"-" are skipped.
func reflectTable(data any) (table.Data, bool) {
	v := reflect.Indirect(reflect.ValueOf(data))
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		var rows [][]string
		for _, i := range visibleFields(t) {
			rows = append(rows, []string{columnName(t.Field(i)), fmt.Sprint(v.Field(i).Interface())})
		}
		return table.Data{Headers: []string{"Property", "Value"}, Rows: rows}, true

	case reflect.Slice:
		if v.Len() == 0 || reflect.Indirect(v.Index(0)).Kind() != reflect.Struct {
			return table.Data{}, false
		}
		t := reflect.Indirect(v.Index(0)).Type()
		fields := visibleFields(t)
		out := table.Data{Headers: make([]string, len(fields))}
		for n, i := range fields {
			out.Headers[n] = columnName(t.Field(i))
		}
		for i := 0; i < v.Len(); i++ {
			elem := reflect.Indirect(v.Index(i))
			if !elem.IsValid() {
				continue
			}
			row := make([]string, len(fields))
			for n, f := range fields {
				row[n] = fmt.Sprint(elem.Field(f).Interface())
			}
			out.Rows = append(out.Rows, row)
		}
		return out, true
	}
	return table.Data{}, false
}

func visibleFields(t reflect.Type) []int {
	var out []int
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && f.Tag.Get("json") != "-" {
			out = append(out, i)
		}
	}
	return out
}

// columnName titles the json tag, falling back to the Go field name.
func columnName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}
