// Package savetext parses the brace-delimited save dialect into a safe,
// non-lossy structure.
//
// # Overview
//
// A save document is a sequence of `key=value` pairs and bare items. Values
// are quoted strings, bare literals/numbers, or `{ ... }` blocks nesting the
// same shape. Documents routinely run to hundreds of megabytes, and the
// dialect's historical consumers were lossy: duplicate keys were sometimes
// overridden and bare items silently dropped. This package is the corrected
// reading: every occurrence of every key and every bare item survives
// parsing, and anything unparseable is a located error rather than a partial
// result.
//
// Three layers, cheapest first:
//
//   - FindBlockSpan: single-pass boundary finder; locates a block's extent
//     without parsing anything inside it.
//   - IterateSection: lazy walk of one top-level section's direct children;
//     each child's span is parsed only on demand.
//   - Parse / ParseSpan: recursive-descent parse into a Block.
//
// # Duplicate keys
//
//	b, _ := savetext.Parse([]byte(`army=a army=b`))
//	b.Values("army") // two values, source order, never collapsed
//
// A key appearing once is retrieved with Get; a key appearing N times holds
// all N values. The parser never guesses whether a duplicate was intended;
// consumers that require a scalar assert len(Values(key)) themselves.
//
// # Safety limits
//
// ParseWithLimits guards depth and total node count so adversarial or
// corrupted input fails with ErrDepthExceeded / ErrNodeCountExceeded instead
// of exhausting the stack or memory. The boundary scanner tracks depth with
// a counter, not recursion, for the same reason.
package savetext
