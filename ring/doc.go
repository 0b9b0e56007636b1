// Package ring implements the Event Ring (single producer segment written
// by the controller, consumed by the guest driver) and the Command Ring
// (single segment written by the driver, consumed by the controller).
// Per-endpoint Transfer Rings share the Command Ring's Link-following logic
// but live in the slot package, since their dequeue pointer and cycle state
// are themselves guest-memory fields rather than emulator-local state.
package ring
