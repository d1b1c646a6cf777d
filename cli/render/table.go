package render

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
)

// Missing optional fields print as a dash so columns stay aligned.
const emptyCell = "-"

// Slices up to this length print inline; longer ones print as a count.
const inlineSliceMax = 4

var timeType = reflect.TypeFor[time.Time]()

// renderTable prints a slice as one row per element and anything else as
// name/value pairs.
func (r *Renderer) renderTable(data any) error {
	v := indirect(reflect.ValueOf(data))
	if !v.IsValid() {
		_, err := fmt.Fprintln(r.out, "(no results)")
		return err
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			_, err := fmt.Fprintln(r.out, "(no results)")
			return err
		}
		header, rows := rowsOf(v)
		fmt.Fprintln(w, strings.ToUpper(strings.Join(header, "\t")))
		for _, row := range rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
	case reflect.Struct, reflect.Map:
		for _, kv := range pairsOf(v) {
			fmt.Fprintf(w, "%s:\t%s\n", kv[0], kv[1])
		}
	default:
		fmt.Fprintln(w, cell(v))
	}
	return w.Flush()
}

// rowsOf flattens a slice of structs or maps into a header and rows. The
// header comes from the first element; map keys are sorted.
func rowsOf(v reflect.Value) ([]string, [][]string) {
	first := indirect(v.Index(0))
	var header []string
	switch first.Kind() {
	case reflect.Struct:
		for _, f := range columns(first.Type()) {
			header = append(header, columnName(f))
		}
	case reflect.Map:
		header = sortedKeys(first)
	default:
		header = []string{"value"}
	}

	rows := make([][]string, 0, v.Len())
	for i := range v.Len() {
		elem := indirect(v.Index(i))
		var row []string
		switch elem.Kind() {
		case reflect.Struct:
			for _, f := range columns(elem.Type()) {
				row = append(row, cell(elem.FieldByIndex(f.Index)))
			}
		case reflect.Map:
			for _, h := range header {
				row = append(row, cell(elem.MapIndex(reflect.ValueOf(h))))
			}
		default:
			row = []string{cell(elem)}
		}
		rows = append(rows, row)
	}
	return header, rows
}

func pairsOf(v reflect.Value) [][2]string {
	var pairs [][2]string
	if v.Kind() == reflect.Map {
		for _, k := range sortedKeys(v) {
			pairs = append(pairs, [2]string{k, cell(v.MapIndex(reflect.ValueOf(k)))})
		}
		return pairs
	}
	for _, f := range columns(v.Type()) {
		pairs = append(pairs, [2]string{columnName(f), cell(v.FieldByIndex(f.Index))})
	}
	return pairs
}

// columns lists exported fields, with embedded structs such as
// joiner.Summary flattened into their parent.
func columns(t reflect.Type) []reflect.StructField {
	var fields []reflect.StructField
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous || !f.IsExported() || f.Tag.Get("json") == "-" {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

func columnName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" {
		return name
	}
	return strings.ToLower(f.Name)
}

// sortedKeys returns the keys of a string-keyed map in order. Other key
// types yield no columns.
func sortedKeys(m reflect.Value) []string {
	if m.Type().Key().Kind() != reflect.String {
		return nil
	}
	keys := make([]string, 0, m.Len())
	for _, k := range m.MapKeys() {
		keys = append(keys, k.String())
	}
	slices.Sort(keys)
	return keys
}

func cell(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return emptyCell
	}

	if v.Type() == timeType {
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return emptyCell
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	if d, ok := v.Interface().(time.Duration); ok {
		return d.String()
	}

	switch v.Kind() {
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'g', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return fmt.Sprintf("(%d bytes)", v.Len())
		}
		if v.Len() > inlineSliceMax {
			return fmt.Sprintf("[%d items]", v.Len())
		}
		parts := make([]string, v.Len())
		for i := range v.Len() {
			parts[i] = cell(v.Index(i))
		}
		return "[" + strings.Join(parts, " ") + "]"
	case reflect.Map:
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}

// indirect follows pointers and interfaces. A nil pointer yields the zero
// Value.
func indirect(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
