package vfu

import "github.com/ardnew/vxhci/pkg"

// TriggerFunc asserts one MSI-X vector through the vfio-user server framing.
// It is the narrow outgoing boundary between the core's ring.Interrupter and
// whatever IRQ-eventfd mechanism the framing actually uses.
type TriggerFunc func(vector uint32) error

// MSIXInterrupter implements ring.Interrupter by asserting a fixed MSI-X
// vector through an injected TriggerFunc. The core only ever raises vector
// 0 (Runtime Register Set 0 is the only interrupter modeled).
type MSIXInterrupter struct {
	vector  uint32
	trigger TriggerFunc
}

// NewMSIXInterrupter returns an Interrupter that asserts vector through
// trigger on every Raise.
func NewMSIXInterrupter(vector uint32, trigger TriggerFunc) *MSIXInterrupter {
	return &MSIXInterrupter{vector: vector, trigger: trigger}
}

// Raise asserts the configured MSI-X vector. A failure to signal the VMM is
// logged and suppressed, matching the documented I/O error policy for paths
// outside the guest-visible protocol.
func (m *MSIXInterrupter) Raise() {
	if err := m.trigger(m.vector); err != nil {
		pkg.LogWarn(pkg.ComponentVFU, "failed to assert MSI-X vector", "vector", m.vector, "error", err)
	}
}
