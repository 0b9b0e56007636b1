package dma

import (
	"encoding/binary"
	"sync"
)

// Sim is an in-memory [Bus] backed by a flat byte slice, guarded by a single
// RWMutex. Tests use it in place of a real vfio-user DMA window, and the
// reference wiring in cmd/vxhcid also builds its controller over a Sim. This
// package has no Bus backed by the mmap'd region vfio-user negotiates with
// the VMM; that mapping is an external collaborator's concern (§6).
type Sim struct {
	mu  sync.RWMutex
	mem []byte
}

// NewSim allocates a simulated guest memory region of the given size.
func NewSim(size int) *Sim {
	return &Sim{mem: make([]byte, size)}
}

func (s *Sim) Read(addr uint64, size int) uint64 {
	checkSize(size)
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch size {
	case 1:
		return uint64(s.mem[addr])
	case 2:
		return uint64(binary.LittleEndian.Uint16(s.mem[addr:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(s.mem[addr:]))
	default:
		return binary.LittleEndian.Uint64(s.mem[addr:])
	}
}

func (s *Sim) Write(addr uint64, size int, value uint64) {
	checkSize(size)
	s.mu.Lock()
	defer s.mu.Unlock()
	switch size {
	case 1:
		s.mem[addr] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(s.mem[addr:], uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(s.mem[addr:], uint32(value))
	default:
		binary.LittleEndian.PutUint64(s.mem[addr:], value)
	}
}

func (s *Sim) ReadBulk(addr uint64, p []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copy(p, s.mem[addr:])
}

func (s *Sim) WriteBulk(addr uint64, p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.mem[addr:], p)
	// Unlock below establishes the happens-before edge a subsequent
	// Event Ring enqueue (which takes its own lock after this one releases)
	// relies on; see the package doc for the ordering guarantee.
}
