package netx

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// PeerGone polls the stream without blocking and reports whether the
// remote end has hung up. Streams without a file descriptor are assumed
// alive.
func PeerGone(s any) bool {
	sc, ok := s.(syscall.Conn)
	if !ok {
		return false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return false
	}
	gone := false
	rc.Control(func(fd uintptr) {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN | unix.POLLOUT | unix.POLLRDHUP}}
		n, err := unix.Poll(fds, 0)
		if err != nil || n == 0 {
			return
		}
		gone = fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLRDHUP|unix.POLLNVAL) != 0
	})
	return gone
}
