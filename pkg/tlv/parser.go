// Package tlv maps BER-TLV (Basic Encoding Rules, Tag-Length-Value) data onto Go
// structures using `tlv:"<tag>"` struct tags.
//
// Contactless readers expose card metadata this way: the historical bytes of a
// PC/SC storage-card ATR carry a TLV whose tag 4F holds the card's registered
// application identifier (see package atr).
package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Unmarshaler allows custom types to implement their own TLV parsing logic.
type Unmarshaler interface {
	UnmarshalTLV(data []byte) error
}

// Unmarshal parses raw BER-TLV data and maps it into a target Go struct.
//
// A tagged field is either a []byte receiving the raw value or a type
// implementing Unmarshaler. A []bertlv.TLV field named Unknown (or tagged
// `tlv:",unknown"`) collects the tags no other field consumed.
func Unmarshal(data []byte, target interface{}) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}

	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, got %T", target)
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("target must point to a struct, got %T", target)
	}
	t := v.Type()

	consumed := make(map[int]bool)

	for i := 0; i < v.NumField(); i++ {
		tag, ok := fieldTag(t.Field(i))
		if !ok {
			continue
		}

		for idx, packet := range packets {
			if !strings.EqualFold(packet.Tag, tag) {
				continue
			}
			if err := decodeToValue(packet, v.Field(i)); err != nil {
				return fmt.Errorf("tag %s (%s): %w", tag, t.Field(i).Name, err)
			}
			consumed[idx] = true
		}
	}

	collectUnknown(v, t, packets, consumed)
	return nil
}

// fieldTag returns the tag a struct field is bound to.
func fieldTag(f reflect.StructField) (string, bool) {
	conf := f.Tag.Get("tlv")
	if conf == "" || isUnknownField(f) {
		return "", false
	}
	return strings.ToUpper(strings.Split(conf, ",")[0]), true
}

func isUnknownField(f reflect.StructField) bool {
	return f.Tag.Get("tlv") == ",unknown" || f.Name == "Unknown"
}

func decodeToValue(packet bertlv.TLV, field reflect.Value) error {
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(Unmarshaler); ok {
			return u.UnmarshalTLV(rawValue(packet))
		}
	}
	if isByteSlice(field) {
		field.SetBytes(rawValue(packet))
		return nil
	}
	return fmt.Errorf("unsupported field type %s", field.Type())
}

func collectUnknown(v reflect.Value, t reflect.Type, packets []bertlv.TLV, consumed map[int]bool) {
	for i := 0; i < v.NumField(); i++ {
		if !isUnknownField(t.Field(i)) {
			continue
		}
		field := v.Field(i)
		var leftovers []bertlv.TLV
		for idx, packet := range packets {
			if !consumed[idx] {
				leftovers = append(leftovers, packet)
			}
		}
		if len(leftovers) > 0 && field.CanSet() {
			field.Set(reflect.ValueOf(leftovers))
		}
		return
	}
}

// rawValue returns the value bytes, re-encoding children of constructed tags.
func rawValue(p bertlv.TLV) []byte {
	if len(p.TLVs) > 0 {
		if enc, err := bertlv.Encode(p.TLVs); err == nil {
			return enc
		}
	}
	return p.Value
}

func isByteSlice(v reflect.Value) bool {
	return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
}

func isUint(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return true
	}
	return false
}
