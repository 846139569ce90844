// Package netx opens the byte stream a QConsole session runs over.
package netx

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/xtaci/kcp-go/v5"
	"go.bug.st/serial"
)

var (
	DefaultBaudRate = 115200
	KcpWindowSize   = 1024
)

type DialConfig struct {
	// Network is one of tcp, tcp4, tcp6, unix, kcp, serial or rfcomm.
	Network string
	Address string
	// Channel is the RFCOMM channel, or the port for tcp and kcp when
	// Address carries none.
	Channel   int
	BaudRate  int
	KeepAlive int // seconds, tcp only
	Timeout   time.Duration
	// NameCache is the file used to resolve bluetooth device names.
	NameCache string
}

// Dial connects to the server described by cfg.
func Dial(ctx context.Context, cfg *DialConfig) (io.ReadWriteCloser, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	switch cfg.Network {
	case "tcp", "tcp4", "tcp6":
		var d net.Dialer
		conn, err := d.DialContext(ctx, cfg.Network, hostPort(cfg.Address, cfg.Channel))
		if err != nil {
			return nil, err
		}
		configTCPKeepalive(conn, cfg.KeepAlive)
		return conn, nil
	case "unix":
		var d net.Dialer
		return d.DialContext(ctx, "unix", cfg.Address)
	case "kcp":
		return dialKCP(ctx, hostPort(cfg.Address, cfg.Channel))
	case "serial":
		return openSerial(cfg.Address, cfg.BaudRate)
	case "rfcomm":
		addr, err := ResolveBDAddr(cfg.Address, cfg.NameCache)
		if err != nil {
			return nil, err
		}
		if cfg.Channel <= 0 || cfg.Channel > 30 {
			return nil, fmt.Errorf("invalid rfcomm channel %d", cfg.Channel)
		}
		return dialRFCOMM(ctx, addr, uint8(cfg.Channel), cfg.Timeout)
	}
	return nil, fmt.Errorf("unsupported network %q", cfg.Network)
}

func hostPort(addr string, port int) string {
	if _, _, err := net.SplitHostPort(addr); err == nil || port <= 0 {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(port))
}

func configTCPKeepalive(conn net.Conn, keepAlive int) {
	if keepAlive <= 0 {
		return
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetKeepAliveConfig(net.KeepAliveConfig{
			Enable:   true,
			Idle:     time.Duration(1+keepAlive/2) * time.Second,
			Count:    1 + keepAlive/2/5,
			Interval: 5 * time.Second,
		})
	}
}

// dialKCP opens a KCP session in stream mode, so reads are not bound to
// the segments the peer wrote.
func dialKCP(ctx context.Context, addr string) (io.ReadWriteCloser, error) {
	type result struct {
		sess *kcp.UDPSession
		err  error
	}
	done := make(chan result, 1)
	go func() {
		sess, err := kcp.DialWithOptions(addr, nil, 0, 0)
		done <- result{sess, err}
	}()
	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.sess != nil {
				r.sess.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, errors.Wrap(r.err, "kcp dial")
		}
		r.sess.SetStreamMode(true)
		r.sess.SetNoDelay(1, 10, 2, 1)
		r.sess.SetWindowSize(KcpWindowSize, KcpWindowSize)
		return r.sess, nil
	}
}

func openSerial(dev string, baud int) (io.ReadWriteCloser, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(dev, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", dev)
	}
	return port, nil
}
