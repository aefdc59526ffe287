package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

var tlvSliceType = reflect.TypeOf([]bertlv.TLV{})

// WriteStructFields writes one "    - <prefix>.<Field> (<tag>): <value>" line per
// populated field of s. Lines are newline-joined with no trailing newline; when
// sb already holds content a separating newline is written first.
//
// Byte slices render as hex. Unsigned integers render as zero-padded hex,
// followed by their name in parentheses when the type is a fmt.Stringer.
// Nested structs are walked with the field name appended to the prefix.
func WriteStructFields(sb *strings.Builder, prefix string, s interface{}) {
	val := reflect.ValueOf(s)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}

	if lines := structLines(prefix, val); len(lines) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(strings.Join(lines, "\n"))
	}
}

func structLines(prefix string, val reflect.Value) []string {
	typ := val.Type()
	var lines []string

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		meta := typ.Field(i)
		if !meta.IsExported() {
			continue
		}

		switch {
		case field.Type() == tlvSliceType:
			lines = append(lines, formatUnknownField(prefix, field)...)
		case isByteSlice(field):
			if field.Len() > 0 {
				lines = append(lines, fieldLine(prefix, meta, strings.ToUpper(hex.EncodeToString(field.Bytes()))))
			}
		case isUint(field):
			lines = append(lines, fieldLine(prefix, meta, formatUint(field)))
		case field.Kind() == reflect.Struct:
			lines = append(lines, structLines(prefix+"."+fieldName(meta), field)...)
		}
	}
	return lines
}

func fieldName(meta reflect.StructField) string {
	if tag, ok := fieldTag(meta); ok {
		return fmt.Sprintf("%s (%s)", meta.Name, tag)
	}
	return meta.Name
}

func fieldLine(prefix string, meta reflect.StructField, value string) string {
	return fmt.Sprintf("    - %s.%s: %s", prefix, fieldName(meta), value)
}

func formatUint(field reflect.Value) string {
	s := fmt.Sprintf("%0*X", int(field.Type().Size())*2, field.Uint())
	if str, ok := field.Interface().(fmt.Stringer); ok {
		s += " (" + str.String() + ")"
	}
	return s
}

func formatUnknownField(prefix string, field reflect.Value) []string {
	if field.IsNil() || field.Len() == 0 {
		return nil
	}

	var lines []string
	for _, t := range field.Interface().([]bertlv.TLV) {
		valStr := strings.ToUpper(hex.EncodeToString(rawValue(t)))
		lines = append(lines, fmt.Sprintf("    - %s.Unknown Tag %s: %s", prefix, strings.ToUpper(t.Tag), valStr))
	}
	return lines
}
