package hotplug

import (
	"errors"
	"net"
	"os"

	"github.com/google/uuid"

	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/realdevice"
	"github.com/ardnew/vxhci/xhci"
)

// Controller is the subset of *xhci.Controller the hot-plug server drives.
// Declared as an interface (rather than depending on the concrete type
// directly) so tests can exercise the protocol without a full controller.
type Controller interface {
	AttachDevice(bus, device uint8, dev realdevice.Device) (uuid.UUID, error)
	DetachDevice(bus, device uint8) error
	ListAttached() []xhci.BusDevice
}

// Opener turns a file descriptor received over the hot-plug socket into a
// realdevice.Device, determining its speed along the way. A nil Device with
// a nil error is treated as "speed could not be determined".
type Opener func(fd int) (realdevice.Device, error)

// Server accepts Unix-stream connections, decodes one Command per
// connection, applies it to the controller, and writes back one Response.
// Errors on an individual connection are logged and do not stop the server.
type Server struct {
	listener *net.UnixListener
	ctrl     Controller
	open     Opener
}

// Listen opens a Unix-socket listener at path (removing any stale socket
// file left behind by a previous run) and returns a Server bound to it.
func Listen(path string, ctrl Controller, open Opener) (*Server, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	l, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, err
	}
	return &Server{listener: l, ctrl: ctrl, open: open}, nil
}

// NewFromListener wraps an already-open listener (e.g. one built from a file
// descriptor inherited from a parent process).
func NewFromListener(l *net.UnixListener, ctrl Controller, open Opener) *Server {
	return &Server{listener: l, ctrl: ctrl, open: open}
}

// Serve accepts connections until the listener is closed, handling each on
// its own goroutine. It returns the listener's terminal error, which is nil
// only if Close was called concurrently.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handle(conn)
	}
}

// Close shuts down the listener, unblocking Serve.
func (s *Server) Close() error {
	return s.listener.Close()
}

func (s *Server) handle(conn *net.UnixConn) {
	defer conn.Close()

	cmd, err := recvCommand(conn)
	if err != nil {
		pkg.LogWarn(pkg.ComponentHotplug, "failed to read command", "error", err)
		return
	}

	resp := s.dispatch(cmd)

	if _, err := conn.Write(EncodeResponse(resp)); err != nil {
		pkg.LogWarn(pkg.ComponentHotplug, "failed to write response", "error", err)
	}
}

func (s *Server) dispatch(cmd Command) Response {
	switch cmd.ID {
	case CommandAttach:
		return s.dispatchAttach(cmd)
	case CommandDetach:
		if err := s.ctrl.DetachDevice(cmd.Bus, cmd.Device); err != nil {
			return Response{Code: ResponseNoSuchDevice}
		}
		return Response{Code: ResponseSuccessfulOperation}
	case CommandList:
		attached := s.ctrl.ListAttached()
		devices := make([]BusDevice, len(attached))
		for i, a := range attached {
			devices[i] = BusDevice{Bus: a.Bus, Device: a.Device}
		}
		return Response{Code: ResponseListFollowing, Devices: devices}
	default:
		return Response{Code: ResponseNoSuchDevice}
	}
}

func (s *Server) dispatchAttach(cmd Command) Response {
	dev, err := s.open(cmd.FD)
	if err == nil && dev == nil {
		pkg.LogWarn(pkg.ComponentHotplug, "could not determine device speed", "bus", cmd.Bus, "device", cmd.Device)
		return Response{Code: ResponseCouldNotDetermineSpeed}
	}
	if err != nil {
		pkg.LogWarn(pkg.ComponentHotplug, "failed to open device", "bus", cmd.Bus, "device", cmd.Device, "error", err)
		return Response{Code: ResponseFailedToOpenFd}
	}

	if _, err := s.ctrl.AttachDevice(cmd.Bus, cmd.Device, dev); err != nil {
		return Response{Code: responseForAttachError(err)}
	}
	return Response{Code: ResponseSuccessfulOperation}
}

func responseForAttachError(err error) ResponseCode {
	switch {
	case errors.Is(err, pkg.ErrNoFreePort):
		return ResponseNoFreePort
	case errors.Is(err, pkg.ErrCouldNotDetermineSpeed):
		return ResponseCouldNotDetermineSpeed
	case errors.Is(err, pkg.ErrAlreadyAttached):
		return ResponseAlreadyAttached
	default:
		return ResponseFailedToOpenFd
	}
}
