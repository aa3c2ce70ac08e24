package ir

import (
	"errors"
	"fmt"
	"slices"
	"unicode/utf16"
)

// IRValue is a value that can appear in a canonical trace record. The set
// is closed: IRString, IRInt, IRBool, IRArray and IRObject.
type IRValue interface {
	irValue()
}

type (
	// IRString is a string, NFC-normalized when serialized.
	IRString string

	// IRInt is an integer. Traces carry ids and counters, never floats.
	IRInt int64

	// IRBool is a boolean.
	IRBool bool

	// IRArray is an ordered list.
	IRArray []IRValue

	// IRObject is a string-keyed map. Serialization orders keys with
	// SortedKeys.
	IRObject map[string]IRValue
)

func (IRString) irValue() {}
func (IRInt) irValue()    {}
func (IRBool) irValue()   {}
func (IRArray) irValue()  {}
func (IRObject) irValue() {}

// SortedKeys returns the object's keys ordered by UTF-16 code units, as
// RFC 8785 requires. Byte order differs for runes outside the BMP.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

var (
	errNull  = errors.New("null is not allowed")
	errFloat = errors.New("floats are not allowed")
)

// FromAny converts decoded Go values into IRValues. It accepts strings,
// int, int64, bool, []any, map[string]any and IRValues; nil and floats are
// rejected.
func FromAny(v any) (IRValue, error) {
	switch val := v.(type) {
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case int:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case bool:
		return IRBool(val), nil
	case []any:
		out := make(IRArray, 0, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, conv)
		}
		return out, nil
	case map[string]any:
		out := make(IRObject, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			out[k] = conv
		}
		return out, nil
	case nil:
		return nil, errNull
	case float32, float64:
		return nil, fmt.Errorf("%w: %v", errFloat, val)
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}
