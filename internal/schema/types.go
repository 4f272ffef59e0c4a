// Package schema holds the value types shared by the analysis engine, the SQL
// emitter and the storage sinks.
package schema

// DataType is the resolved type of a column.
type DataType string

const (
	Integer DataType = "integer"
	Float   DataType = "float"
	Boolean DataType = "boolean"
	Enum    DataType = "enum"
	Text    DataType = "text"
)

// SQLType maps a non-enum data type to its column type. Enum columns use a
// per-column named type instead; see sqlgen.EnumTypeName.
func (t DataType) SQLType() string {
	switch t {
	case Integer:
		return "INTEGER"
	case Float:
		return "NUMERIC"
	case Boolean:
		return "BOOLEAN"
	case Enum:
		return "ENUM"
	default:
		return "TEXT"
	}
}

// ColumnMetadata is the finalized per-column record exposed to callers.
type ColumnMetadata struct {
	Name         string   `json:"name" yaml:"name"`
	DataType     DataType `json:"data_type" yaml:"data_type"`
	SampleValues []string `json:"sample_values" yaml:"sample_values"`
	Nullable     bool     `json:"nullable" yaml:"nullable"`
	UniqueCount  int      `json:"unique_count" yaml:"unique_count"`
	// Summary statistics are reserved; the inference pass does not fill them.
	NumericStats *NumericStats `json:"numeric_stats,omitempty" yaml:"numeric_stats,omitempty"`
	StringStats  *StringStats  `json:"string_stats,omitempty" yaml:"string_stats,omitempty"`
}

type NumericStats struct {
	Min           int64   `json:"min" yaml:"min"`
	Max           int64   `json:"max" yaml:"max"`
	Mean          float64 `json:"mean" yaml:"mean"`
	NullCount     int     `json:"null_count" yaml:"null_count"`
	DistinctCount int     `json:"distinct_count" yaml:"distinct_count"`
}

type StringStats struct {
	MinLength     int `json:"min_length" yaml:"min_length"`
	MaxLength     int `json:"max_length" yaml:"max_length"`
	NullCount     int `json:"null_count" yaml:"null_count"`
	DistinctCount int `json:"distinct_count" yaml:"distinct_count"`
}

// SQLStatements is the generated DDL and parameterized insert template.
type SQLStatements struct {
	CreateTable    string `json:"create_table" yaml:"create_table"`
	InsertTemplate string `json:"insert_template" yaml:"insert_template"`
}
