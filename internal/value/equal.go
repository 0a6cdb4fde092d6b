package value

import (
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var equalOpts = cmp.Options{
	cmpopts.EquateEmpty(),
	cmp.Transformer("null", orNull),
}

// orNull maps nil to Null{}; both mean "no value".
func orNull(v Value) Value {
	if v == nil {
		return Null{}
	}
	return v
}

// Equal reports whether a and b are the same value. Empty and nil lists
// and maps are equal, as are nil and Null.
func Equal(a, b Value) bool {
	return cmp.Equal(orNull(a), orNull(b), equalOpts)
}

// Diff returns a human-readable report of how got differs from want, or
// "" if they are equal.
func Diff(want, got Value) string {
	return cmp.Diff(orNull(want), orNull(got), equalOpts)
}
