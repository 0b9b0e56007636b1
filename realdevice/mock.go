package realdevice

import (
	"context"
	"sync"

	"github.com/ardnew/vxhci/port"
	"github.com/ardnew/vxhci/slot"
)

// Mock is an in-memory Device used by tests in place of a real USB library
// connection. It is not a structural port of any teacher file — guest-memory
// FIFO files and polling threads have no role in a test double — but plays
// the role a fake backing store plays for exercising a device interface: a
// substitute a test can script responses into.
type Mock struct {
	mu sync.Mutex

	speed      port.Speed
	speedKnown bool

	// ControlResponse, if set, is returned verbatim (truncated to the
	// request length) for every IN transfer, control or not.
	ControlResponse []byte

	enabled map[uint8]slot.EndpointType

	cancel *CancellationHandle
}

// NewMock returns a Mock reporting the given speed.
func NewMock(speed port.Speed) *Mock {
	return &Mock{
		speed:      speed,
		speedKnown: true,
		enabled:    make(map[uint8]slot.EndpointType),
		cancel:     NewCancellationHandle(),
	}
}

// NewMockUnknownSpeed returns a Mock whose Speed reports ok=false, for
// exercising the CouldNotDetermineSpeed attach-failure path.
func NewMockUnknownSpeed() *Mock {
	return &Mock{
		enabled: make(map[uint8]slot.EndpointType),
		cancel:  NewCancellationHandle(),
	}
}

func (m *Mock) Speed() (port.Speed, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed, m.speedKnown
}

func (m *Mock) EnableEndpoint(info EndpointWorkerInfo, epType slot.EndpointType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled[info.EndpointID] = epType
	return nil
}

// EndpointEnabled reports whether EnableEndpoint has been called for id,
// and the type it was enabled as.
func (m *Mock) EndpointEnabled(id uint8) (slot.EndpointType, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.enabled[id]
	return t, ok
}

func (m *Mock) Transfer(ctx context.Context, req TransferRequest) (int, error) {
	m.mu.Lock()
	resp := m.ControlResponse
	m.mu.Unlock()

	if req.Direction == DirectionIn {
		n := copy(req.Data, resp)
		return n, nil
	}
	return len(req.Data), nil
}

func (m *Mock) Cancelled() *CancellationHandle {
	return m.cancel
}
