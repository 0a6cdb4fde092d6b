package value

import (
	"encoding/json"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{name: "nil", in: nil, want: Null{}},
		{name: "string", in: "x", want: String("x")},
		{name: "bool", in: true, want: Bool(true)},
		{name: "int", in: 7, want: Int(7)},
		{name: "int8", in: int8(-3), want: Int(-3)},
		{name: "uint16", in: uint16(9), want: Int(9)},
		{name: "json number", in: json.Number("12"), want: Int(12)},
		{name: "big int", in: big.NewInt(1 << 40), want: Int(1 << 40)},
		{name: "already a value", in: String("v"), want: String("v")},
		{name: "typed slice", in: []string{"a", "b"}, want: List{String("a"), String("b")}},
		{name: "nil slice", in: []int(nil), want: List{}},
		{
			name: "nested map",
			in:   map[string]any{"n": 1, "tags": []any{"x", false}},
			want: Map{"n": Int(1), "tags": List{String("x"), Bool(false)}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAny_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{name: "float", in: 1.5},
		{name: "float in list", in: []any{1, 2.5}},
		{name: "non-integer json number", in: json.Number("1.5")},
		{name: "uint overflow", in: uint64(math.MaxUint64)},
		{name: "big overflow", in: new(big.Int).Lsh(big.NewInt(1), 70)},
		{name: "int keys", in: map[int]string{1: "a"}},
		{name: "struct", in: struct{}{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromAny(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestToAny_RoundTrip(t *testing.T) {
	in := map[string]any{
		"s":    "text",
		"n":    int64(-4),
		"ok":   true,
		"none": nil,
		"list": []any{int64(1), "two"},
	}
	v, err := FromAny(in)
	require.NoError(t, err)
	assert.Equal(t, in, ToAny(v))
}

func TestKind(t *testing.T) {
	assert.Equal(t, "null", Kind(nil))
	assert.Equal(t, "null", Kind(Null{}))
	assert.Equal(t, "int", Kind(Int(1)))
	assert.Equal(t, "string", Kind(String("")))
	assert.Equal(t, "bool", Kind(Bool(false)))
	assert.Equal(t, "list", Kind(List{}))
	assert.Equal(t, "map", Kind(Map{}))
}

func TestMap_SortedKeysUsesUTF16Order(t *testing.T) {
	// U+1F600 encodes as a surrogate pair (0xD83D...) which sorts before
	// U+FF61 in UTF-16 but after it in UTF-8 byte order.
	m := Map{"｡": Int(1), "\U0001F600": Int(2), "a": Int(3)}
	assert.Equal(t, []string{"a", "\U0001F600", "｡"}, m.SortedKeys())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Map{"a": List{Int(1)}}, Map{"a": List{Int(1)}}))
	assert.True(t, Equal(List{}, List(nil)))
	assert.True(t, Equal(nil, Null{}))
	assert.False(t, Equal(Int(1), String("1")))
	assert.False(t, Equal(Map{"a": Int(1)}, Map{"a": Int(2)}))

	assert.Empty(t, Diff(Int(1), Int(1)))
	assert.NotEmpty(t, Diff(Int(1), Int(2)))
}

func TestNull_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Map{"x": Null{}, "y": Int(2)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":null,"y":2}`, string(data))
}
