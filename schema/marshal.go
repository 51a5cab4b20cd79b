package schema

import "encoding/json"

func (s *StructType) MarshalJSON() ([]byte, error) {
	fields := make([]any, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = map[string]any{
			"name":     f.Name,
			"type":     f.Type,
			"nullable": f.Nullable,
			"metadata": map[string]any{},
		}
	}
	return json.Marshal(map[string]any{
		"type":   "struct",
		"fields": fields,
	})
}

func (t DataType) MarshalJSON() ([]byte, error) {
	switch {
	case t.Struct != nil:
		return t.Struct.MarshalJSON()
	case t.Array != nil:
		return json.Marshal(map[string]any{
			"type":         "array",
			"elementType":  t.Array.ElementType,
			"containsNull": t.Array.ContainsNull,
		})
	case t.Map != nil:
		return json.Marshal(map[string]any{
			"type":              "map",
			"keyType":           t.Map.KeyType,
			"valueType":         t.Map.ValueType,
			"valueContainsNull": t.Map.ValueContainsNull,
		})
	default:
		return json.Marshal(t.Primitive)
	}
}

// String renders the schema back to its schemaString form. Field metadata is
// not preserved.
func (s *StructType) String() string {
	data, err := json.Marshal(s)
	if err != nil {
		return "<unprintable schema>"
	}
	return string(data)
}
