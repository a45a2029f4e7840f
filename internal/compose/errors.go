package compose

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"
)

var (
	// ErrConnectivity marks failures the gateway recovers from by retrying:
	// a subgraph that is down, slow or restarting.
	ErrConnectivity = errors.New("subgraph unreachable")
	// ErrInvalidSubgraph marks a subgraph that answered with something that
	// cannot be composed. Retrying will not help.
	ErrInvalidSubgraph = errors.New("invalid subgraph")
)

// IsConnectivityError reports whether err is a transport level failure.
// Anything else is treated as fatal by the readiness state machine.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectivity) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
