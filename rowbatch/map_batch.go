package rowbatch

import (
	"fmt"
	"math"
	"strings"
)

// MapBatch is a Batch backed by one decoded JSON object per row. Dotted
// column paths navigate nested objects; a missing or null step yields
// "not present" rather than an error.
type MapBatch struct {
	rows []map[string]any
}

func NewMapBatch(rows []map[string]any) *MapBatch {
	return &MapBatch{rows: rows}
}

func (b *MapBatch) NumRows() int {
	return len(b.rows)
}

// Project returns a batch retaining only the given top-level fields of each
// row. Rows are shared, not copied.
func (b *MapBatch) Project(fields []string) *MapBatch {
	rows := make([]map[string]any, len(b.rows))
	for i, row := range b.rows {
		projected := make(map[string]any, len(fields))
		for _, f := range fields {
			if v, ok := row[f]; ok {
				projected[f] = v
			}
		}
		rows[i] = projected
	}
	return &MapBatch{rows: rows}
}

func (b *MapBatch) value(row int, col string) (any, bool) {
	if row < 0 || row >= len(b.rows) {
		panic(fmt.Sprintf("row %d out of range for batch of %d rows", row, len(b.rows)))
	}
	var current any = b.rows[row]
	for _, step := range strings.Split(col, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[step]
		if !ok || current == nil {
			return nil, false
		}
	}
	return current, true
}

func (b *MapBatch) GetString(row int, col string) (string, bool, error) {
	v, ok := b.value(row, col)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", false, typeError(col, "string", v)
	}
	return s, true, nil
}

func (b *MapBatch) GetBool(row int, col string) (bool, bool, error) {
	v, ok := b.value(row, col)
	if !ok {
		return false, false, nil
	}
	bv, ok := v.(bool)
	if !ok {
		return false, false, typeError(col, "bool", v)
	}
	return bv, true, nil
}

func (b *MapBatch) GetInt(row int, col string) (int32, bool, error) {
	n, ok, err := b.GetLong(row, col)
	if err != nil || !ok {
		return 0, ok, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false, fmt.Errorf("column %s: value %d overflows int32", col, n)
	}
	return int32(n), true, nil
}

func (b *MapBatch) GetLong(row int, col string) (int64, bool, error) {
	v, ok := b.value(row, col)
	if !ok {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	case int:
		return int64(n), true, nil
	case int32:
		return int64(n), true, nil
	case uint64:
		return int64(n), true, nil
	default:
		return 0, false, typeError(col, "long", v)
	}
}

func (b *MapBatch) GetStringList(row int, col string) ([]string, bool, error) {
	v, ok := b.value(row, col)
	if !ok {
		return nil, false, nil
	}
	switch list := v.(type) {
	case []string:
		return list, true, nil
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false, typeError(col, "string list", v)
			}
			out[i] = s
		}
		return out, true, nil
	default:
		return nil, false, typeError(col, "string list", v)
	}
}

func (b *MapBatch) GetStringMap(row int, col string) (map[string]string, bool, error) {
	v, ok := b.value(row, col)
	if !ok {
		return nil, false, nil
	}
	switch m := v.(type) {
	case map[string]string:
		return m, true, nil
	case map[string]any:
		out := make(map[string]string, len(m))
		for k, item := range m {
			if item == nil {
				continue
			}
			s, ok := item.(string)
			if !ok {
				return nil, false, typeError(col, "string map", v)
			}
			out[k] = s
		}
		return out, true, nil
	default:
		return nil, false, typeError(col, "string map", v)
	}
}

func typeError(col, want string, got any) error {
	return fmt.Errorf("column %s: expected %s, found %T", col, want, got)
}

var _ Batch = (*MapBatch)(nil)
