package netx

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func dialRFCOMM(ctx context.Context, addr BDAddr, channel uint8, timeout time.Duration) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, errors.Wrap(err, "rfcomm socket")
	}
	if timeout > 0 {
		// a blocking connect gives up after SO_SNDTIMEO
		tv := unix.NsecToTimeval(timeout.Nanoseconds())
		unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv)
	}
	if err := unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: addr, Channel: channel}); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "connect %s (%d)", addr, channel)
	}
	if timeout > 0 {
		var tv unix.Timeval
		unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_SNDTIMEO, &tv)
	}
	return os.NewFile(uintptr(fd), "rfcomm:"+addr.String()), nil
}
