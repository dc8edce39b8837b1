//go:build windows

package transport

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
)

// ListenNamedPipe listens on a Windows named pipe path (of the form
// \\.\pipe\name) and returns a net.Listener whose Accept results already
// implement net.Conn, so they plug directly into NewStreamTransport
// without any additional framing work: go-winio already handles the
// platform's I/O chunking internally.
func ListenNamedPipe(path string, cfg *winio.PipeConfig) (net.Listener, error) {
	return winio.ListenPipe(path, cfg)
}

// DialNamedPipe connects to a Windows named pipe path and wraps the
// resulting net.Conn in a StreamTransport.
func DialNamedPipe(ctx context.Context, path string) (*StreamTransport, error) {
	conn, err := winio.DialPipeContext(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewStreamTransport(conn), nil
}
