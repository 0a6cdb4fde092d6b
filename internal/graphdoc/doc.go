// Package graphdoc loads declarative graph documents and builds them into
// a substrate world.
//
// A document names its vertices by string ID, wires them with
// "vertex.port" references, declares the roots a driver evaluates each
// cycle and optionally a list of cycles (var assignments plus expected
// root values) used by the harness.
//
// Documents are YAML or CUE, selected by file extension. Both decode into
// the same Document type; CUE documents are additionally unified with the
// embedded schema.cue before decoding.
package graphdoc
