package observation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var recordValidate = validator.New()

// DecodeRecord parses one domain's JSON record. Unknown fields, absent
// fields and failed field validation are errors. A list field may be empty
// or null but must be present.
func DecodeRecord(d Domain, raw []byte) (Record, error) {
	var (
		rec Record
		err error
	)
	switch d {
	case DomainPipelineHealth:
		rec, err = decodeAs[PipelineHealth](raw)
	case DomainManpower:
		rec, err = decodeAs[Manpower](raw)
	case DomainSafety:
		rec, err = decodeAs[Safety](raw)
	case DomainBackup:
		rec, err = decodeAs[Backup](raw)
	case DomainSchedule:
		rec, err = decodeAs[Schedule](raw)
	case DomainBudget:
		rec, err = decodeAs[Budget](raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDomain, d)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", d, err)
	}
	if err := Validate(rec); err != nil {
		return nil, fmt.Errorf("validate %s: %w", d, err)
	}
	return rec, nil
}

func decodeAs[T Record](raw []byte) (Record, error) {
	var r T
	if err := strictUnmarshal(raw, &r); err != nil {
		return nil, err
	}
	if err := requireFields(raw, reflect.TypeOf(r), ""); err != nil {
		return nil, err
	}
	return r, nil
}

// DecodeSet parses a JSON object keyed by domain name into a Set.
func DecodeSet(raw []byte) (Set, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Set{}, fmt.Errorf("decode observation set: %w", err)
	}
	records := make([]Record, 0, len(fields))
	for key, body := range fields {
		rec, err := DecodeRecord(Domain(key), body)
		if err != nil {
			return Set{}, err
		}
		records = append(records, rec)
	}
	return NewSet(records...)
}

// Validate checks a record's field constraints.
func Validate(r Record) error {
	return recordValidate.Struct(r)
}

// requireFields checks that raw carries every json key of struct type t,
// descending into lists of structs. Only list fields may be null.
func requireFields(raw []byte, t reflect.Type, path string) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.TrimSuffix(path, "."))
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		key, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if key == "" || key == "-" {
			continue
		}
		val, ok := obj[key]
		if !ok {
			return fmt.Errorf("%w: %s%s", ErrMissingField, path, key)
		}
		null := bytes.Equal(bytes.TrimSpace(val), []byte("null"))
		if f.Type.Kind() != reflect.Slice {
			if null {
				return fmt.Errorf("%w: %s%s is null", ErrMissingField, path, key)
			}
			continue
		}
		if null || f.Type.Elem().Kind() != reflect.Struct {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(val, &items); err != nil {
			return err
		}
		for j, item := range items {
			if err := requireFields(item, f.Type.Elem(), fmt.Sprintf("%s%s[%d].", path, key, j)); err != nil {
				return err
			}
		}
	}
	return nil
}

func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
