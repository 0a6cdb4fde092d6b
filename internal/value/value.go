package value

import (
	"slices"
	"unicode/utf16"
)

// Value is a dynamic value. Only the types in this package implement it.
type Value interface {
	value()
}

// Null is the absent value.
type Null struct{}

// String is a text value.
type String string

// Int is an integer value. Always 64-bit.
type Int int64

// Bool is a boolean value.
type Bool bool

// List is an ordered sequence of values.
type List []Value

// Map maps string keys to values. Iterate with SortedKeys for stable
// order.
type Map map[string]Value

func (Null) value()   {}
func (String) value() {}
func (Int) value()    {}
func (Bool) value()   {}
func (List) value()   {}
func (Map) value()    {}

// MarshalJSON renders Null as JSON null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// SortedKeys returns the keys of m ordered by UTF-16 code units, the order
// canonical JSON requires. It differs from byte order for some non-BMP
// keys.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// Kind names the dynamic type of v, e.g. "int".
func Kind(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case String:
		return "string"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case List:
		return "list"
	case Map:
		return "map"
	default:
		return "unknown"
	}
}
