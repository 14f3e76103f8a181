package typemap

import (
	"encoding/json"
	"strconv"
	"strings"

	"datamove/internal/schema"
)

// DefaultSampleSize bounds how many rows inference scans per column.
const DefaultSampleSize = 1000

// InferColumn infers a semantic type for one column from a sample of its raw
// values. First match wins, scanning the whole sample:
//
//	all boolean            -> boolean
//	all integral           -> integer
//	all numeric, any float -> float
//	all timestamps         -> timestamp
//	all numeric arrays     -> vector(dim), if the length is uniform
//	all structured values  -> json
//	otherwise              -> text
//
// Numeric arrays with mixed lengths fail with AmbiguousVectorDimensionError:
// a fixed-dimension vector column cannot be declared from them, and silently
// downgrading to text would corrupt the destination schema.
//
// The returned nullable flag is true when any sampled value is absent.
func InferColumn(column string, values []string) (schema.Type, bool, error) {
	var (
		seen     bool
		nullable bool

		allBool  = true
		allInt   = true
		allFloat = true
		allTS    = true
		allVec   = true
		allJSON  = true

		vecDim   = -1
		vecMixed bool
	)

	for _, raw := range values {
		v := strings.TrimSpace(raw)
		if v == "" {
			nullable = true
			continue
		}
		seen = true

		if allBool {
			if _, ok := parseBoolLoose(v); !ok {
				allBool = false
			}
		}
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allTS {
			if _, _, ok := parseTimestampLoose(v); !ok {
				allTS = false
			}
		}
		if allVec {
			if vals, ok := parseNumericArray(v); ok {
				if vecDim == -1 {
					vecDim = len(vals)
				} else if vecDim != len(vals) {
					vecMixed = true
				}
			} else {
				allVec = false
			}
		}
		if allJSON {
			if !isStructured(v) {
				allJSON = false
			}
		}
	}

	if !seen {
		return schema.Text, nullable, nil
	}

	switch {
	case allBool:
		return schema.Bool, nullable, nil
	case allInt:
		return schema.Integer, nullable, nil
	case allFloat:
		return schema.Float, nullable, nil
	case allTS:
		return schema.Timestamp, nullable, nil
	case allVec:
		if vecMixed {
			return schema.Type{}, nullable, &AmbiguousVectorDimensionError{Column: column}
		}
		return schema.Vector(vecDim), nullable, nil
	case allJSON:
		return schema.JSON, nullable, nil
	default:
		return schema.Text, nullable, nil
	}
}

// InferTable infers a full table schema from raw rows aligned to columns.
// sampleSize <= 0 uses DefaultSampleSize. Rows shorter than the header are
// tolerated (missing cells count as null), mirroring best-effort sampling.
func InferTable(table string, columns []string, rows [][]string, sampleSize int) (schema.Table, error) {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if sampleSize > len(rows) {
		sampleSize = len(rows)
	}

	out := schema.Table{Name: table, Columns: make([]schema.Column, 0, len(columns))}
	for i, name := range columns {
		sample := make([]string, 0, sampleSize)
		for _, r := range rows[:sampleSize] {
			if i < len(r) {
				sample = append(sample, r[i])
			} else {
				sample = append(sample, "")
			}
		}
		t, nullable, err := InferColumn(name, sample)
		if err != nil {
			return schema.Table{}, err
		}
		out.Columns = append(out.Columns, schema.Column{Name: name, Type: t, Nullable: nullable})
	}
	return out, nil
}

// isStructured reports whether a value is a nested mapping or sequence.
func isStructured(v string) bool {
	if len(v) == 0 || (v[0] != '{' && v[0] != '[') {
		return false
	}
	return json.Valid([]byte(v))
}
