//go:build linux

package linuxhal

import (
	"golang.org/x/sys/unix"

	"github.com/ardnew/vxhci/pkg"
	"github.com/ardnew/vxhci/realdevice"
)

// watchDisconnect runs in its own goroutine for the lifetime of a Device,
// epoll-waiting on fd for an error or hang-up condition (the kernel's
// signal that the device has gone away) and cancelling handle when it
// fires. It exits when stop is closed (the Device's Close).
//
// An epoll-based poller narrowed to a single job: this module needs only a
// single watched fd per device rather than a shared multiplexer, so it
// skips the fd-table/wake-fd machinery and epoll_waits directly.
func watchDisconnect(fd int, handle *realdevice.CancellationHandle, stop <-chan struct{}) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		pkg.LogWarn(pkg.ComponentRealDevice, "epoll_create1 failed", "error", err)
		return
	}
	defer unix.Close(epfd)

	ev := unix.EpollEvent{Events: unix.EPOLLERR | unix.EPOLLHUP, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		pkg.LogWarn(pkg.ComponentRealDevice, "epoll_ctl failed", "error", err)
		return
	}

	events := make([]unix.EpollEvent, 1)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := unix.EpollWait(epfd, events, 200)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n > 0 {
			pkg.LogDebug(pkg.ComponentRealDevice, "device fd reported error/hangup, cancelling")
			handle.Cancel()
			return
		}
	}
}
