package schema

import (
	"fmt"
	"strconv"
	"time"
)

// Decode converts a value scanned from the driver into the field's Go type.
// MySQL hands back []byte for text and DECIMAL columns and int64 for every
// integer width, so the conversion is driven by Kind rather than by the
// dynamic type.
func (f Field) Decode(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	switch f.Kind {
	case String, Text, Enum:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Integer:
		if n, ok := toInt(v); ok {
			return n, nil
		}
	case Decimal, Float:
		if n, ok := toFloat(v); ok {
			return n, nil
		}
		if n, ok := v.(float32); ok {
			return float64(n), nil
		}
	case Boolean:
		switch t := v.(type) {
		case bool:
			return t, nil
		case int64:
			return t != 0, nil
		case string:
			return t == "1" || t == "true", nil
		}
	}
	return nil, fmt.Errorf("field %s: cannot decode %T as %s", f.Name, v, f.Kind)
}

// DecodeID converts a scanned id column into int64.
func DecodeID(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case uint64:
		return int64(t), nil
	case []byte:
		return strconv.ParseInt(string(t), 10, 64)
	case string:
		return strconv.ParseInt(t, 10, 64)
	}
	return 0, fmt.Errorf("id: cannot decode %T", v)
}

// DecodeTime converts a scanned DATETIME column.  The pool is opened with
// parseTime=true, the string forms only show up in tests.
func DecodeTime(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case time.Time:
		return t.UTC(), nil
	case []byte:
		return parseDateTime(string(t))
	case string:
		return parseDateTime(t)
	}
	return nil, fmt.Errorf("timestamp: cannot decode %T", v)
}

func parseDateTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp: cannot parse %q", s)
}

// DecodeRow builds a Record from values scanned in Columns() order.
func (s *Schema) DecodeRow(vals []any) (Record, error) {
	if len(vals) != len(s.fields)+3 {
		return nil, fmt.Errorf("schema %s: got %d columns, want %d", s.name, len(vals), len(s.fields)+3)
	}
	rec := make(Record, len(vals))
	id, err := DecodeID(vals[0])
	if err != nil {
		return nil, err
	}
	rec[IDField] = id
	for i, f := range s.fields {
		v, err := f.Decode(vals[i+1])
		if err != nil {
			return nil, err
		}
		rec[f.Name] = v
	}
	n := len(s.fields)
	if rec[CreatedAtField], err = DecodeTime(vals[n+1]); err != nil {
		return nil, err
	}
	if rec[UpdatedAtField], err = DecodeTime(vals[n+2]); err != nil {
		return nil, err
	}
	return rec, nil
}
