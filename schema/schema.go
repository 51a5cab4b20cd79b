// Package schema models the Delta table logical schema as carried in the
// metaData action's schemaString. Only parsing and comparison live here; the
// physical parquet layout is a concern of the engine handlers.
package schema

import (
	"encoding/json"
	"fmt"
)

type StructType struct {
	Fields []StructField
}

type StructField struct {
	Name     string
	Type     DataType
	Nullable bool
}

// DataType is one of a primitive name, a struct, an array, or a map.
type DataType struct {
	Primitive string
	Struct    *StructType
	Array     *ArrayType
	Map       *MapType
}

type ArrayType struct {
	ElementType  DataType
	ContainsNull bool
}

type MapType struct {
	KeyType           DataType
	ValueType         DataType
	ValueContainsNull bool
}

// Parse decodes a schemaString. The top level must be a struct type.
func Parse(schemaString string) (*StructType, error) {
	var raw json.RawMessage = []byte(schemaString)
	dt, err := parseDataType(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing schema string: %w", err)
	}
	if dt.Struct == nil {
		return nil, fmt.Errorf("schema string top level is not a struct")
	}
	return dt.Struct, nil
}

func parseDataType(raw json.RawMessage) (DataType, error) {
	// A primitive type is a bare JSON string.
	var primitive string
	if err := json.Unmarshal(raw, &primitive); err == nil {
		return DataType{Primitive: primitive}, nil
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return DataType{}, fmt.Errorf("data type is neither string nor object: %w", err)
	}

	switch head.Type {
	case "struct":
		var obj struct {
			Fields []struct {
				Name     string          `json:"name"`
				Type     json.RawMessage `json:"type"`
				Nullable bool            `json:"nullable"`
			} `json:"fields"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return DataType{}, err
		}
		st := &StructType{Fields: make([]StructField, len(obj.Fields))}
		for i, f := range obj.Fields {
			ft, err := parseDataType(f.Type)
			if err != nil {
				return DataType{}, fmt.Errorf("field %s: %w", f.Name, err)
			}
			st.Fields[i] = StructField{Name: f.Name, Type: ft, Nullable: f.Nullable}
		}
		return DataType{Struct: st}, nil

	case "array":
		var obj struct {
			ElementType  json.RawMessage `json:"elementType"`
			ContainsNull bool            `json:"containsNull"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return DataType{}, err
		}
		et, err := parseDataType(obj.ElementType)
		if err != nil {
			return DataType{}, err
		}
		return DataType{Array: &ArrayType{ElementType: et, ContainsNull: obj.ContainsNull}}, nil

	case "map":
		var obj struct {
			KeyType           json.RawMessage `json:"keyType"`
			ValueType         json.RawMessage `json:"valueType"`
			ValueContainsNull bool            `json:"valueContainsNull"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return DataType{}, err
		}
		kt, err := parseDataType(obj.KeyType)
		if err != nil {
			return DataType{}, err
		}
		vt, err := parseDataType(obj.ValueType)
		if err != nil {
			return DataType{}, err
		}
		return DataType{Map: &MapType{KeyType: kt, ValueType: vt, ValueContainsNull: obj.ValueContainsNull}}, nil

	default:
		return DataType{}, fmt.Errorf("unknown data type %q", head.Type)
	}
}

// Equal reports whether two struct types have identical field names, types,
// nullability, and field order.
func (s *StructType) Equal(other *StructType) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.Fields) != len(other.Fields) {
		return false
	}
	for i := range s.Fields {
		a, b := s.Fields[i], other.Fields[i]
		if a.Name != b.Name || a.Nullable != b.Nullable || !a.Type.Equal(b.Type) {
			return false
		}
	}
	return true
}

func (t DataType) Equal(other DataType) bool {
	switch {
	case t.Primitive != "" || other.Primitive != "":
		return t.Primitive == other.Primitive
	case t.Struct != nil || other.Struct != nil:
		if t.Struct == nil || other.Struct == nil {
			return false
		}
		return t.Struct.Equal(other.Struct)
	case t.Array != nil || other.Array != nil:
		if t.Array == nil || other.Array == nil {
			return false
		}
		return t.Array.ElementType.Equal(other.Array.ElementType) &&
			t.Array.ContainsNull == other.Array.ContainsNull
	case t.Map != nil || other.Map != nil:
		if t.Map == nil || other.Map == nil {
			return false
		}
		return t.Map.KeyType.Equal(other.Map.KeyType) &&
			t.Map.ValueType.Equal(other.Map.ValueType) &&
			t.Map.ValueContainsNull == other.Map.ValueContainsNull
	default:
		return true
	}
}
