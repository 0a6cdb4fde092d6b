// Package value is the dynamic value model used wherever graph values
// leave Go's type system: declarative graph documents, stored traces and
// CLI output.
//
// Values are a sealed set (Null, String, Int, Bool, List, Map). There are
// no floats, so every value has exactly one canonical JSON encoding and
// therefore a stable content hash.
package value
