package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shepherrrd/schemasync/internal/drivers"
)

// Type is the coarse column type used in declarations.
type Type string

const (
	TypeInteger  Type = "integer"
	TypeVarchar  Type = "varchar"
	TypeDecimal  Type = "decimal"
	TypeBoolean  Type = "boolean"
	TypeDateTime Type = "datetime"
	TypeDate     Type = "date"
	TypeTime     Type = "time"
	TypeText     Type = "text"
)

// Display widths MySQL 8 omits from COLUMN_TYPE; filled back in so live
// and declared integer columns render alike.
var integerWidths = map[string]int{
	"tinyint":   4,
	"smallint":  6,
	"mediumint": 9,
	"int":       11,
	"bigint":    20,
}

const currentTimestamp = "CURRENT_TIMESTAMP"

// ColumnSpec describes one column, either declared in code or read back
// from the live database.
type ColumnSpec struct {
	Name string
	// Type is empty for live columns whose SQL type has no coarse form.
	Type            Type
	SQLType         string
	Length          int
	Precision       int
	DefaultValue    *string
	IsNullable      bool
	IsUnsigned      bool
	IsAutoIncrement bool
	EnumValues      []string

	err error
}

// NewColumn declares a column of the given coarse type. size is the length
// (and for decimals the precision); omitted sizes take the type's default.
func NewColumn(name string, typ Type, size ...int) *ColumnSpec {
	c := &ColumnSpec{Name: name, Type: typ}
	arg := func(i, def int) int {
		if i < len(size) && size[i] > 0 {
			return size[i]
		}
		return def
	}
	switch typ {
	case TypeInteger:
		c.SQLType, c.Length = "int", arg(0, 11)
	case TypeVarchar:
		c.SQLType, c.Length = "varchar", arg(0, 255)
	case TypeDecimal:
		c.SQLType, c.Length, c.Precision = "decimal", arg(0, 15), arg(1, 2)
	case TypeBoolean:
		c.SQLType, c.Length = "tinyint", 4
	case TypeDateTime, TypeDate, TypeTime, TypeText:
		c.SQLType = string(typ)
	default:
		c.err = fmt.Errorf("column %q: unknown type %q", name, typ)
	}
	return c
}

// Nullable allows NULL values.
func (c *ColumnSpec) Nullable() *ColumnSpec {
	c.IsNullable = true
	return c
}

// Unsigned marks a numeric column unsigned.
func (c *ColumnSpec) Unsigned() *ColumnSpec {
	c.IsUnsigned = true
	return c
}

// AutoIncrement marks the column AUTO_INCREMENT.
func (c *ColumnSpec) AutoIncrement() *ColumnSpec {
	c.IsAutoIncrement = true
	return c
}

// Default sets the column default. Quoting is applied at render time.
func (c *ColumnSpec) Default(value string) *ColumnSpec {
	c.DefaultValue = &value
	return c
}

// Enum restricts the column to values, rendering it as an ENUM.
func (c *ColumnSpec) Enum(values ...string) *ColumnSpec {
	c.EnumValues = append([]string(nil), values...)
	return c
}

// Err returns the declaration error, if any.
func (c *ColumnSpec) Err() error {
	return c.err
}

// ColumnFromLive builds a ColumnSpec from introspected metadata.
func ColumnFromLive(info drivers.ColumnInfo) *ColumnSpec {
	c := &ColumnSpec{
		Name:            info.Name,
		IsNullable:      info.IsNullable,
		IsAutoIncrement: strings.Contains(strings.ToLower(info.Extra), "auto_increment"),
	}
	if info.DefaultValue != nil {
		v := *info.DefaultValue
		c.DefaultValue = &v
	}
	parseColumnType(c, info.ColumnType)
	return c
}

// parseColumnType fills the type fields from a COLUMN_TYPE value such as
// "int(11) unsigned", "decimal(15,2)" or "enum('a','b')".
func parseColumnType(c *ColumnSpec, columnType string) {
	ct := strings.TrimSpace(columnType)
	lower := strings.ToLower(ct)

	base, args := lower, ""
	if open := strings.IndexByte(lower, '('); open >= 0 {
		if end := strings.LastIndexByte(lower, ')'); end > open {
			base = lower[:open]
			args = ct[open+1 : end]
			for _, attr := range strings.Fields(lower[end+1:]) {
				if attr == "unsigned" {
					c.IsUnsigned = true
				}
			}
		}
	} else {
		fields := strings.Fields(lower)
		if len(fields) > 0 {
			base = fields[0]
		}
		for _, attr := range fields[1:] {
			if attr == "unsigned" {
				c.IsUnsigned = true
			}
		}
	}
	c.SQLType = strings.TrimSpace(base)

	switch {
	case c.SQLType == "enum":
		c.EnumValues = parseEnumValues(args)
	case args != "":
		parts := strings.Split(args, ",")
		c.Length, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
		if len(parts) > 1 {
			c.Precision, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
		}
	}
	if w, ok := integerWidths[c.SQLType]; ok && c.Length == 0 {
		c.Length = w
	}

	switch c.SQLType {
	case "int", "integer", "smallint", "mediumint", "bigint":
		c.Type = TypeInteger
		c.SQLType = strings.Replace(c.SQLType, "integer", "int", 1)
	case "tinyint":
		c.Type = TypeBoolean
	case "varchar", "char":
		c.Type = TypeVarchar
	case "decimal":
		c.Type = TypeDecimal
	case "datetime", "timestamp":
		c.Type = TypeDateTime
	case "date":
		c.Type = TypeDate
	case "time":
		c.Type = TypeTime
	case "text", "tinytext", "mediumtext", "longtext":
		c.Type = TypeText
	}
}

func parseEnumValues(args string) []string {
	var (
		values []string
		cur    strings.Builder
		quoted bool
	)
	for i := 0; i < len(args); i++ {
		ch := args[i]
		switch {
		case ch == '\'' && quoted && i+1 < len(args) && args[i+1] == '\'':
			cur.WriteByte('\'')
			i++
		case ch == '\'':
			quoted = !quoted
		case ch == ',' && !quoted:
			values = append(values, cur.String())
			cur.Reset()
		case quoted:
			cur.WriteByte(ch)
		}
	}
	return append(values, cur.String())
}

// Render returns the canonical column definition used both in DDL and for
// comparing declared and live columns.
func (c *ColumnSpec) Render() string {
	var b strings.Builder
	b.WriteString(QuoteIdent(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.typeFragment())
	if c.IsUnsigned {
		b.WriteString(" unsigned")
	}
	if !c.IsNullable {
		b.WriteString(" NOT NULL")
	}
	if c.IsAutoIncrement {
		b.WriteString(" AUTO_INCREMENT")
	} else if def, ok := c.canonicalDefault(); ok {
		b.WriteString(" DEFAULT ")
		b.WriteString(def)
	}
	return b.String()
}

func (c *ColumnSpec) typeFragment() string {
	if len(c.EnumValues) > 0 {
		quoted := make([]string, len(c.EnumValues))
		for i, v := range c.EnumValues {
			quoted[i] = quoteString(v)
		}
		return "enum(" + strings.Join(quoted, ",") + ")"
	}
	switch {
	case c.Length > 0 && c.SQLType == "decimal":
		return fmt.Sprintf("decimal(%d,%d)", c.Length, c.Precision)
	case c.Length > 0:
		return fmt.Sprintf("%s(%d)", c.SQLType, c.Length)
	default:
		return c.SQLType
	}
}

// canonicalDefault normalises a default so that the declared spelling and
// every server's COLUMN_DEFAULT spelling of the same value render alike.
func (c *ColumnSpec) canonicalDefault() (string, bool) {
	if c.DefaultValue == nil {
		return "", false
	}
	v := strings.TrimSpace(*c.DefaultValue)
	if strings.EqualFold(v, "NULL") {
		return "", false
	}
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		v = strings.ReplaceAll(v[1:len(v)-1], "''", "'")
	}
	switch strings.ToLower(v) {
	case "current_timestamp", "current_timestamp()", "now()":
		return currentTimestamp, true
	}

	if _, ok := integerWidths[c.SQLType]; ok {
		switch strings.ToLower(v) {
		case "true":
			v = "1"
		case "false":
			v = "0"
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			v = strconv.FormatInt(n, 10)
		}
	} else if c.SQLType == "decimal" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			v = strconv.FormatFloat(f, 'f', c.Precision, 64)
		}
	}
	return quoteString(v), true
}

// QuoteIdent quotes a MySQL identifier.
func QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func quoteString(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// ColumnType returns the type as information_schema spells COLUMN_TYPE,
// e.g. "int(11) unsigned".
func (c *ColumnSpec) ColumnType() string {
	if c.IsUnsigned {
		return c.typeFragment() + " unsigned"
	}
	return c.typeFragment()
}
