// Package tlv maps BER-TLV data onto Go structs through `tlv:"<tag>"` field
// tags and builds TLV trees for encoding. The byte-level work is done by
// github.com/moov-io/bertlv.
package tlv

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

var tlvSliceType = reflect.TypeOf([]bertlv.TLV(nil))

// Unmarshal decodes data and maps the top-level objects onto target.
func Unmarshal(data []byte, target any) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalFromPackets(packets, target)
}

// UnmarshalTemplate is Unmarshal for data that may be wrapped in a
// constructed template such as 6F. When the first object carries the
// template tag, its children are mapped instead.
func UnmarshalTemplate(data []byte, template string, target any) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	if len(packets) > 0 && strings.EqualFold(packets[0].Tag, template) {
		packets = packets[0].TLVs
	}
	return UnmarshalFromPackets(packets, target)
}

// UnmarshalFromPackets maps decoded objects onto the fields of the struct
// target points to. Supported fields are []byte, nested structs (or
// pointers to them), slices of those for repeated tags, and one
// []bertlv.TLV field tagged `tlv:",unknown"` that collects whatever no
// other field claimed.
func UnmarshalFromPackets(packets []bertlv.TLV, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return errors.New("target must be a non-nil pointer to a struct")
	}
	v = v.Elem()

	claimed := make([]bool, len(packets))
	var unknown reflect.Value

	for i := range v.NumField() {
		field, sf := v.Field(i), v.Type().Field(i)
		tag, opts, _ := strings.Cut(sf.Tag.Get("tlv"), ",")
		if opts == "unknown" && sf.Type == tlvSliceType {
			unknown = field
			continue
		}
		if tag == "" {
			continue
		}

		for idx, p := range packets {
			if !strings.EqualFold(p.Tag, tag) {
				continue
			}
			if err := assign(p, field); err != nil {
				return fmt.Errorf("tag %s: %w", tag, err)
			}
			claimed[idx] = true
		}
	}

	if unknown.IsValid() {
		for idx, p := range packets {
			if !claimed[idx] {
				unknown.Set(reflect.Append(unknown, reflect.ValueOf(p)))
			}
		}
	}
	return nil
}

func assign(p bertlv.TLV, field reflect.Value) error {
	switch {
	case field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Uint8:
		raw, err := valueOf(p)
		if err != nil {
			return err
		}
		field.SetBytes(raw)
		return nil

	case field.Kind() == reflect.Slice:
		elem := reflect.New(field.Type().Elem()).Elem()
		if err := assign(p, elem); err != nil {
			return err
		}
		field.Set(reflect.Append(field, elem))
		return nil

	case field.Kind() == reflect.Struct:
		return nested(p, field.Addr().Interface())

	case field.Kind() == reflect.Pointer && field.Type().Elem().Kind() == reflect.Struct:
		if field.IsNil() {
			field.Set(reflect.New(field.Type().Elem()))
		}
		return nested(p, field.Interface())
	}
	return fmt.Errorf("unsupported field type %s", field.Type())
}

func nested(p bertlv.TLV, target any) error {
	if len(p.TLVs) > 0 {
		return UnmarshalFromPackets(p.TLVs, target)
	}
	return Unmarshal(p.Value, target)
}

// valueOf returns the value bytes of p, re-encoding children of a
// constructed object.
func valueOf(p bertlv.TLV) ([]byte, error) {
	if len(p.TLVs) == 0 {
		return p.Value, nil
	}
	return bertlv.Encode(p.TLVs)
}
