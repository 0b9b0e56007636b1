package hotplug

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// oobBufSize is sized for exactly one ancillary file descriptor, the only
// kind the hot-plug protocol ever carries.
var oobBufSize = unix.CmsgSpace(4)

// recvCommand reads one Command frame from conn, including the ancillary
// file descriptor an Attach command carries.
func recvCommand(conn *net.UnixConn) (Command, error) {
	buf := make([]byte, commandFrameSize)
	oob := make([]byte, oobBufSize)

	n, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return Command{}, err
	}
	if n != commandFrameSize {
		return Command{}, fmt.Errorf("hotplug: short command read: %d bytes", n)
	}

	fd := -1
	if oobn > 0 {
		scms, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return Command{}, fmt.Errorf("hotplug: parse control message: %w", err)
		}
		for _, scm := range scms {
			fds, err := unix.ParseUnixRights(&scm)
			if err != nil {
				continue
			}
			if len(fds) > 0 {
				fd = fds[0]
			}
		}
	}

	return DecodeCommand(buf, fd)
}

// sendCommand writes cmd's frame to conn, attaching cmd.FD as an ancillary
// file descriptor when it is not negative. Used by hot-plug client code
// (e.g. a CLI attach tool) to issue a request against the server.
func sendCommand(conn *net.UnixConn, cmd Command) error {
	buf := EncodeCommand(cmd)
	if cmd.FD < 0 {
		_, err := conn.Write(buf)
		return err
	}
	oob := unix.UnixRights(cmd.FD)
	_, _, err := conn.WriteMsgUnix(buf, oob, nil)
	return err
}
