// Package typemap implements the bidirectional mapping between semantic
// column types and Postgres store types, cell-value conversion, and
// sample-based schema inference for datasets that arrive untyped.
//
// Design constraints:
//   - Mapping and conversion are pure; nothing here touches a database.
//   - Inference is bounded by the caller-provided sample and must identify
//     the offending column when it fails (fixed-dimension vectors are the
//     one case where inference can be ambiguous).
package typemap

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"datamove/internal/schema"
)

// StoreType renders the Postgres type name for a semantic type.
//
// Vector columns use the pgvector "vector(N)" type; the dimension must be
// known by the time DDL is generated.
func StoreType(t schema.Type) string {
	switch t.Kind {
	case schema.KindText:
		return "text"
	case schema.KindInteger:
		return "bigint"
	case schema.KindFloat:
		return "double precision"
	case schema.KindBool:
		return "boolean"
	case schema.KindTimestamp:
		return "timestamptz"
	case schema.KindJSON:
		return "jsonb"
	case schema.KindVector:
		return fmt.Sprintf("vector(%d)", t.Dim)
	default:
		return "text"
	}
}

// SemanticFromStore parses a store type name (as reported by the inspector,
// e.g. format_type output) back into a semantic type. The bool result is
// false for type names the engine does not model; callers typically treat
// those columns as text.
func SemanticFromStore(storeType string) (schema.Type, bool) {
	s := strings.ToLower(strings.TrimSpace(storeType))

	if strings.HasPrefix(s, "vector(") && strings.HasSuffix(s, ")") {
		dim, err := strconv.Atoi(s[len("vector(") : len(s)-1])
		if err != nil || dim <= 0 {
			return schema.Type{}, false
		}
		return schema.Vector(dim), true
	}

	// Parenthesized modifiers on scalar types (varchar(100), numeric(10,2))
	// do not change the semantic kind.
	if i := strings.IndexByte(s, '('); i > 0 {
		s = s[:i]
	}

	switch s {
	case "text", "varchar", "character varying", "character", "char", "bpchar", "uuid":
		return schema.Text, true
	case "bigint", "int8", "integer", "int", "int4", "smallint", "int2", "serial", "bigserial":
		return schema.Integer, true
	case "double precision", "float8", "real", "float4", "numeric", "decimal", "float", "double":
		return schema.Float, true
	case "boolean", "bool":
		return schema.Bool, true
	case "timestamptz", "timestamp with time zone", "timestamp", "timestamp without time zone", "date", "datetime":
		return schema.Timestamp, true
	case "jsonb", "json":
		return schema.JSON, true
	default:
		return schema.Type{}, false
	}
}

// Convert coerces one raw cell value to the driver value for the target
// semantic type. An empty cell converts to nil (SQL NULL); whether NULL is
// acceptable for the column is the comparator's business, not Convert's.
//
// The returned values are plain driver-friendly Go types: int64, float64,
// bool, time.Time, and strings (text, json, and the pgvector "[...]"
// literal form for vectors).
func Convert(raw string, t schema.Type) (any, error) {
	if raw == "" {
		return nil, nil
	}

	switch t.Kind {
	case schema.KindText:
		return raw, nil

	case schema.KindInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", raw)
		}
		return n, nil

	case schema.KindFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("not a number: %q", raw)
		}
		return f, nil

	case schema.KindBool:
		b, ok := parseBoolLoose(raw)
		if !ok {
			return nil, fmt.Errorf("not a boolean: %q", raw)
		}
		return b, nil

	case schema.KindTimestamp:
		ts, _, ok := parseTimestampLoose(raw)
		if !ok {
			return nil, fmt.Errorf("not a timestamp: %q", raw)
		}
		return ts, nil

	case schema.KindJSON:
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("invalid json: %q", truncateForError(raw))
		}
		return raw, nil

	case schema.KindVector:
		vals, ok := parseNumericArray(raw)
		if !ok {
			return nil, fmt.Errorf("not a numeric array: %q", truncateForError(raw))
		}
		if t.Dim > 0 && len(vals) != t.Dim {
			return nil, fmt.Errorf("vector length %d does not match dimension %d", len(vals), t.Dim)
		}
		return vectorLiteral(vals), nil

	default:
		return raw, nil
	}
}

// vectorLiteral renders the pgvector input literal, e.g. "[0.1,0.2,0.3]".
func vectorLiteral(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseNumericArray parses a JSON-style array of numbers. Used both by
// inference (to recognize vector columns) and by Convert.
func parseNumericArray(raw string) ([]float64, bool) {
	s := strings.TrimSpace(raw)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, false
	}
	var vals []float64
	if err := json.Unmarshal([]byte(s), &vals); err != nil {
		return nil, false
	}
	if len(vals) == 0 {
		return nil, false
	}
	return vals, true
}

func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02",
}

func parseTimestampLoose(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range timestampLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	return time.Time{}, "", false
}

func truncateForError(s string) string {
	const max = 64
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
