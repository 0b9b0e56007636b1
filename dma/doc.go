// Package dma abstracts byte-addressable access to guest RAM. Every other
// component reaches guest memory exclusively through a [Bus], so that tests
// can substitute [NewSim], an in-memory implementation with the same release
// ordering guarantees the vfio-user-backed production implementation must
// provide (see [Bus.WriteBulk] for the ordering guarantee this supports).
package dma
