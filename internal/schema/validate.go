package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Problem is one validation failure on one field.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every problem found in a body.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Field+" "+p.Message)
	}
	return strings.Join(msgs, ", ")
}

// Fields returns the names of the offending fields.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		out = append(out, p.Field)
	}
	return out
}

// Validate coerces body against the schema and returns the storable values.
// Keys that are not declared fields are dropped.  With partial=false every
// required field must be present and defaults are filled in; with
// partial=true only the supplied fields are checked (update semantics).
func (s *Schema) Validate(body map[string]any, partial bool) (Record, error) {
	out := make(Record, len(s.fields))
	var problems []Problem
	add := func(field, msg string) { problems = append(problems, Problem{Field: field, Message: msg}) }

	for _, f := range s.fields {
		raw, present := body[f.Name]
		if !present {
			switch {
			case partial:
			case f.Default != nil:
				out[f.Name] = f.Default
			case f.Required():
				add(f.Name, "is required")
			}
			continue
		}
		if raw == nil {
			if !f.Nullable {
				add(f.Name, "must not be null")
				continue
			}
			out[f.Name] = nil
			continue
		}
		v, err := coerce(f, raw)
		if err != nil {
			add(f.Name, err.Error())
			continue
		}
		failed := false
		for _, r := range f.Rules {
			if err := r.Check(v); err != nil {
				add(f.Name, err.Error())
				failed = true
				break
			}
		}
		if !failed {
			out[f.Name] = v
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return out, nil
}

func coerce(f Field, raw any) (any, error) {
	switch f.Kind {
	case String:
		if s, ok := raw.(string); ok {
			if utf8.RuneCountInString(s) > MaxStringLen {
				return nil, fmt.Errorf("must be at most %d characters", MaxStringLen)
			}
			return s, nil
		}
	case Text:
		if s, ok := raw.(string); ok {
			if len(s) > MaxTextBytes {
				return nil, fmt.Errorf("must be at most %d bytes", MaxTextBytes)
			}
			return s, nil
		}
	case Enum:
		if s, ok := raw.(string); ok {
			if !slices.Contains(f.Values, s) {
				return nil, fmt.Errorf("must be one of %s", strings.Join(f.Values, ", "))
			}
			return s, nil
		}
	case Integer:
		if n, ok := toInt(raw); ok {
			return n, nil
		}
	case Decimal:
		if n, ok := toFloat(raw); ok {
			if math.Abs(math.Round(n*100)/100) > MaxDecimal {
				return nil, fmt.Errorf("must be between %.2f and %.2f", -MaxDecimal, MaxDecimal)
			}
			return n, nil
		}
	case Float:
		if n, ok := toFloat(raw); ok {
			return n, nil
		}
	case Boolean:
		switch t := raw.(type) {
		case bool:
			return t, nil
		case string:
			if b, err := strconv.ParseBool(t); err == nil {
				return b, nil
			}
		}
	}
	return nil, fmt.Errorf("must be a %s", f.Kind)
}

func toInt(raw any) (int64, bool) {
	switch t := raw.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		// 2^63 is exactly representable; anything at or above it overflows.
		if t == math.Trunc(t) && t >= -(1<<63) && t < 1<<63 {
			return int64(t), true
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func toFloat(raw any) (float64, bool) {
	var f float64
	switch t := raw.(type) {
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case float64:
		f = t
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
