package schema

import (
	"fmt"
	"strings"
)

func (f Field) columnType() string {
	switch f.Kind {
	case Text:
		return "TEXT"
	case Integer:
		return "BIGINT"
	case Decimal:
		return "DECIMAL(12,2)"
	case Float:
		return "DOUBLE"
	case Boolean:
		return "TINYINT(1)"
	case Enum:
		return fmt.Sprintf("VARCHAR(%d)", MaxEnumLen)
	}
	return fmt.Sprintf("VARCHAR(%d)", MaxStringLen)
}

func sqlLiteral(v any) string {
	switch t := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(t, "'", "''") + "'"
	case bool:
		if t {
			return "1"
		}
		return "0"
	}
	return fmt.Sprint(v)
}

// CreateTableSQL renders an idempotent MySQL CREATE TABLE statement.
func (s *Schema) CreateTableSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", QuoteIdent(s.table))
	b.WriteString("  `id` BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,\n")
	for _, f := range s.fields {
		fmt.Fprintf(&b, "  %s %s", QuoteIdent(f.Name), f.columnType())
		if f.Nullable {
			b.WriteString(" NULL")
		} else {
			b.WriteString(" NOT NULL")
		}
		if f.Default != nil {
			fmt.Fprintf(&b, " DEFAULT %s", sqlLiteral(f.Default))
		}
		b.WriteString(",\n")
	}
	b.WriteString("  `created_at` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,\n")
	b.WriteString("  `updated_at` DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,\n")
	b.WriteString("  PRIMARY KEY (`id`)")
	for _, f := range s.fields {
		if f.Unique {
			fmt.Fprintf(&b, ",\n  UNIQUE KEY %s (%s)", QuoteIdent(UniqueIndexName(s.table, f.Name)), QuoteIdent(f.Name))
		}
	}
	b.WriteString("\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4")
	return b.String()
}
