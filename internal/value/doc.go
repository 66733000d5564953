// Package value provides the attribute value model carried by trace records.
//
// A notification source delivers arbitrary attribute values (numbers, strings,
// enum ordinals, spectra). The tracer treats them as opaque but needs two
// things from them: a well-defined equality for the built-in queries and a
// deterministic rendering for diagnostics and golden files. Value is a sealed
// interface over the handful of shapes a value can take.
//
// Key design constraints:
//   - Equal is structural; Int and Float compare numerically
//   - Object keys are rendered in RFC 8785 order (UTF-16 code units)
//   - This package imports nothing internal
package value
