// Package trb decodes and encodes the 16-byte Transfer Request Block that
// forms every entry of the Command Ring, Transfer Rings, and Event Ring.
//
// A TRB is interpreted differently depending on which ring it was read from
// and, for events, which variant is being constructed. This package exposes
// that as three narrow entry points — ParseCommand, ParseTransfer, and
// EncodeEvent — each returning or consuming a tagged Go type rather than a
// raw byte array, so ring and endpoint-worker code never pokes at bit offsets
// directly.
package trb
