// Package slot implements the Device Slot table (C5): per-slot allocation,
// the Device Context Base Address Array, and the guest-memory Device/Input
// Context layout the Address Device and Configure Endpoint commands
// manipulate. It also implements the per-endpoint Transfer Ring, whose
// dequeue pointer and cycle state live inside the endpoint context in guest
// memory rather than in any emulator-local struct.
package slot
