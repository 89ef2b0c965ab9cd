package server

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// Typed builds a Factory that binds params into a P before fn runs.
//
// When P is a struct, positional params fill the exported fields in
// declaration order and must match their count exactly, while named
// params are matched by json tag (or field name) and every field is
// required; extra members are ignored. Integer fields accept anything
// Int accepts. Any other P is decoded from the raw params with
// encoding/json. Binding failures are reported as Invalid Params; fn's
// errors are reported as Internal Error.
func Typed[P, R any](fn func(ctx context.Context, params P) (R, error)) Factory {
	return func(params Params) (Handler, error) {
		var in P
		if err := params.Bind(&in); err != nil {
			return nil, err
		}
		return ExecuteFunc(func(ctx context.Context) (any, error) {
			return fn(ctx, in)
		}), nil
	}
}

// Bind decodes the params into dst, which must be a non-nil pointer.
// See Typed for the binding rules.
func (p Params) Bind(dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("bind: destination must be a non-nil pointer, got %T", dst)
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Struct {
		if p.Shape() == ShapeAbsent {
			return fmt.Errorf("bind: params are required")
		}
		if err := json.Unmarshal(p.raw, dst); err != nil {
			return fmt.Errorf("bind: %w", err)
		}
		return nil
	}

	fields := bindableFields(elem.Type())

	switch shape := p.Shape(); shape {
	case ShapeAbsent:
		if len(fields) > 0 {
			return fmt.Errorf("bind: want %d params, got none", len(fields))
		}
		return nil
	case ShapePositional:
		elems, err := p.Positional()
		if err != nil {
			return err
		}
		if len(elems) != len(fields) {
			return fmt.Errorf("bind: want %d positional params, got %d", len(fields), len(elems))
		}
		for i, f := range fields {
			if err := decodeField(elem.Field(f.index), elems[i]); err != nil {
				return fmt.Errorf("bind: param %d (%s): %w", i, f.name, err)
			}
		}
		return nil
	case ShapeNamed:
		members, err := p.Named()
		if err != nil {
			return err
		}
		for _, f := range fields {
			raw, ok := members[f.name]
			if !ok {
				return fmt.Errorf("bind: missing param %q", f.name)
			}
			if err := decodeField(elem.Field(f.index), raw); err != nil {
				return fmt.Errorf("bind: param %q: %w", f.name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("bind: want positional or named params, got %s", shape)
	}
}

type bindField struct {
	index int
	name  string
}

func bindableFields(t reflect.Type) []bindField {
	var fields []bindField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := sf.Name
		if tag, ok := sf.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fields = append(fields, bindField{index: i, name: name})
	}
	return fields
}

func decodeField(v reflect.Value, raw json.RawMessage) error {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := Int(raw)
		if err != nil {
			return err
		}
		if v.OverflowInt(n) {
			return fmt.Errorf("%w: %d overflows %s", ErrNotInteger, n, v.Type())
		}
		v.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := Int(raw)
		if err != nil {
			return err
		}
		if n < 0 || v.OverflowUint(uint64(n)) {
			return fmt.Errorf("%w: %d overflows %s", ErrNotInteger, n, v.Type())
		}
		v.SetUint(uint64(n))
		return nil
	default:
		return json.Unmarshal(raw, v.Addr().Interface())
	}
}
