package introspect

import (
	"errors"
	"net"
	"net/rpc"
	"os"
)

// Server accepts connections on a Unix socket and serves RPC calls against
// one registered Service per connection, mirroring hotplug.Server's
// accept-loop shape but with net/rpc doing the per-call framing instead of
// the hand-rolled hot-plug codec.
type Server struct {
	listener *net.UnixListener
	rpc      *rpc.Server
}

// Listen opens a Unix-socket listener at path (removing any stale socket
// file left behind by a previous run), registers service under the name
// "Introspect", and returns a Server bound to it.
func Listen(path string, service *Service) (*Server, error) {
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

	srv := rpc.NewServer()
	if err := srv.RegisterName("Introspect", service); err != nil {
		l.Close()
		return nil, err
	}
	return &Server{listener: l, rpc: srv}, nil
}

// Serve accepts connections until the listener is closed, serving each
// connection's RPC calls on its own goroutine via net/rpc's ServeConn.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.AcceptUnix()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.rpc.ServeConn(conn)
	}
}

// Close shuts down the listener, unblocking Serve.
func (s *Server) Close() error {
	return s.listener.Close()
}
