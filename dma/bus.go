package dma

import "fmt"

// Bus is the guest-memory interface the controller uses to read TRB
// payloads and descriptors and to write back USB transfer data. All methods
// must be safe for concurrent use: endpoint workers and the MMIO dispatcher
// read and write disjoint regions concurrently.
type Bus interface {
	// Read returns the little-endian value at addr. size must be 1, 2, 4, or
	// 8; any other value is a programming error and panics.
	Read(addr uint64, size int) uint64

	// Write stores value's low size bytes, little-endian, at addr. size
	// must be 1, 2, 4, or 8.
	Write(addr uint64, size int, value uint64)

	// ReadBulk copies len(p) bytes from addr into p.
	ReadBulk(addr uint64, p []byte)

	// WriteBulk copies p into guest memory starting at addr, then
	// guarantees (per the implementation's happens-before rules) that every
	// byte is observable to any goroutine that subsequently acquires the
	// same Bus's internal lock — callers rely on this as the release half
	// of the ordering between a transfer's DMA writes and the Transfer
	// Event TRB that reports it complete.
	WriteBulk(addr uint64, p []byte)
}

// checkSize panics if size is not one of the four values TRB/context fields
// are ever read or written in.
func checkSize(size int) {
	switch size {
	case 1, 2, 4, 8:
	default:
		panic(fmt.Sprintf("dma: invalid access size %d", size))
	}
}
