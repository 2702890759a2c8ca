// Package schema describes resources declaratively.  A Schema is an ordered
// list of fields with a storage kind and validation rules; the generic
// resource controller, the repository and the migrator all derive their
// behaviour from it, so adding a resource never needs per-resource code.
package schema

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Column names managed by the store rather than by the schema.
const (
	IDField        = "id"
	CreatedAtField = "created_at"
	UpdatedAtField = "updated_at"
	PasswordField  = "password"
)

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Kind is the semantic type of a field.  It drives input coercion, decoding
// of column values and the generated column type.
type Kind int

const (
	String  Kind = iota + 1 // VARCHAR(255)
	Text                    // TEXT, never indexed
	Integer                 // BIGINT
	Decimal                 // DECIMAL(12,2), decoded as float64
	Float                   // DOUBLE
	Boolean                 // TINYINT(1)
	Enum                    // VARCHAR(32) restricted to Field.Values
)

// Column limits of the DDL.  Validate rejects values MySQL would refuse
// in strict mode.
const (
	MaxStringLen = 255           // characters in a String column
	MaxEnumLen   = 32            // characters in an Enum value
	MaxTextBytes = 65535         // bytes in a TEXT column
	MaxDecimal   = 9999999999.99 // largest magnitude of DECIMAL(12,2)
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Decimal:
		return "decimal"
	case Float:
		return "float"
	case Boolean:
		return "boolean"
	case Enum:
		return "enum"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Field describes one storable attribute.
type Field struct {
	Name     string
	Kind     Kind
	Nullable bool
	Unique   bool
	Default  any      // applied on create when the field is absent
	Rules    []Rule   // evaluated after coercion, in order
	Example  any      // sample value for documentation and tests
	Values   []string // allowed values for Enum fields
}

// Required reports whether create must receive a value for the field.
func (f Field) Required() bool { return !f.Nullable && f.Default == nil }

// Record is one row of a resource: id, declared fields and timestamps.
type Record map[string]any

// Without returns a shallow copy of r lacking the given keys.
func (r Record) Without(keys ...string) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Schema is an immutable, ordered field list bound to a table name.
type Schema struct {
	name   string
	table  string
	fields []Field
	index  map[string]int
}

// New builds a Schema and panics when the definition is inconsistent.
// Definitions are static program data, so a bad one is a programming error.
func New(name, table string, fields ...Field) *Schema {
	if !identRe.MatchString(table) {
		panic(fmt.Sprintf("schema %s: invalid table name %q", name, table))
	}
	s := &Schema{name: name, table: table, index: make(map[string]int, len(fields))}
	for i, f := range fields {
		switch {
		case !identRe.MatchString(f.Name):
			panic(fmt.Sprintf("schema %s: invalid field name %q", name, f.Name))
		case f.Name == IDField || f.Name == CreatedAtField || f.Name == UpdatedAtField:
			panic(fmt.Sprintf("schema %s: field %q is managed by the store", name, f.Name))
		case f.Kind < String || f.Kind > Enum:
			panic(fmt.Sprintf("schema %s: field %q has no kind", name, f.Name))
		case f.Unique && f.Kind != String && f.Kind != Enum:
			panic(fmt.Sprintf("schema %s: field %q of kind %s cannot be unique", name, f.Name, f.Kind))
		case f.Kind == Enum && len(f.Values) == 0:
			panic(fmt.Sprintf("schema %s: enum field %q has no values", name, f.Name))
		}
		for _, v := range f.Values {
			if utf8.RuneCountInString(v) > MaxEnumLen {
				panic(fmt.Sprintf("schema %s: enum value %q of field %q is too long", name, v, f.Name))
			}
		}
		if _, dup := s.index[f.Name]; dup {
			panic(fmt.Sprintf("schema %s: duplicate field %q", name, f.Name))
		}
		s.index[f.Name] = i
		s.fields = append(s.fields, f)
	}
	return s
}

func (s *Schema) Name() string  { return s.name }
func (s *Schema) Table() string { return s.table }

// Fields returns a copy of the declared fields in order.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field looks a declared field up by name.
func (s *Schema) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// HasPassword reports whether the schema declares a password field.
func (s *Schema) HasPassword() bool {
	_, ok := s.index[PasswordField]
	return ok
}

// Columns lists every column of the table: id, declared fields, timestamps.
func (s *Schema) Columns() []string {
	cols := make([]string, 0, len(s.fields)+3)
	cols = append(cols, IDField)
	for _, f := range s.fields {
		cols = append(cols, f.Name)
	}
	return append(cols, CreatedAtField, UpdatedAtField)
}

// Sortable reports whether col may appear in ORDER BY.  The password column
// is never exposed, not even through ordering.
func (s *Schema) Sortable(col string) bool {
	switch col {
	case IDField, CreatedAtField, UpdatedAtField:
		return true
	case PasswordField:
		return false
	}
	_, ok := s.index[col]
	return ok
}

// Filterable reports whether name may be used as a substring filter.
func (s *Schema) Filterable(name string) bool {
	if name == PasswordField {
		return false
	}
	if name == IDField {
		return true
	}
	_, ok := s.index[name]
	return ok
}

// Example returns a body built from the Example of every field that has one.
func (s *Schema) Example() map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		if f.Example != nil {
			out[f.Name] = f.Example
		}
	}
	return out
}

// QuoteIdent quotes a MySQL identifier.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// UniqueIndexName is the name given to the unique index of table.field.
// Duplicate-key errors are mapped back to fields through it.
func UniqueIndexName(table, field string) string {
	return "uq_" + table + "_" + field
}

// FieldForIndex resolves a key name reported by MySQL ("uq_users_email" or,
// on 8.0, "users.uq_users_email") back to the field it guards.
func (s *Schema) FieldForIndex(key string) (string, bool) {
	key = strings.TrimPrefix(key, s.table+".")
	prefix := UniqueIndexName(s.table, "")
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(key, prefix)
	f, ok := s.Field(name)
	if !ok || !f.Unique {
		return "", false
	}
	return name, true
}
