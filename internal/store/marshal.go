package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/pullgraph/internal/value"
)

// marshalValue converts a root value to canonical JSON TEXT and its hash.
// A nil value (mutating roots, failed roots) is stored as NULL. Values
// outside the value model are stored as their fmt rendering.
func marshalValue(x any) (data, hash sql.NullString, err error) {
	if x == nil {
		return data, hash, nil
	}
	v, convErr := value.FromAny(x)
	if convErr != nil {
		v = value.String(fmt.Sprint(x))
	}

	encoded, err := value.MarshalCanonical(v)
	if err != nil {
		return data, hash, fmt.Errorf("marshal value: %w", err)
	}
	h, err := value.HashValue(v)
	if err != nil {
		return data, hash, fmt.Errorf("hash value: %w", err)
	}
	return sql.NullString{String: string(encoded), Valid: true}, sql.NullString{String: h, Valid: true}, nil
}

// unmarshalValue parses stored canonical JSON. NULL yields nil.
func unmarshalValue(data sql.NullString) (value.Value, error) {
	if !data.Valid {
		return nil, nil
	}
	v, err := value.Unmarshal([]byte(data.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

func errorText(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}
