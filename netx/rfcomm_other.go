//go:build !linux

package netx

import (
	"context"
	"errors"
	"io"
	"time"
)

func dialRFCOMM(ctx context.Context, addr BDAddr, channel uint8, timeout time.Duration) (io.ReadWriteCloser, error) {
	return nil, errors.New("rfcomm sockets are only supported on linux, use -net serial with the bound COM port")
}
