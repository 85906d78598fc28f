package utils

import (
	"fmt"
	"net"
	"strconv"
	"syscall"

	"github.com/pkg/errors"
)

const maxPortChecks = 1000

// PickListenAddr returns addr, or the first free port above it on the same
// host when the configured port is taken. Port 0 is left to the kernel.
func PickListenAddr(addr string) (string, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("PickListenAddr parse error: %w", err)
	}

	port, err := strconv.Atoi(p)
	if err != nil || port < 0 || port > 65535 {
		return "", fmt.Errorf("PickListenAddr invalid port %q", p)
	}
	if port == 0 {
		return addr, nil
	}

	picked, err := checkAndPickPort(host, port)
	if err != nil {
		return "", fmt.Errorf("PickListenAddr port error: %w", err)
	}

	return net.JoinHostPort(host, strconv.Itoa(picked)), nil
}

func checkAndPickPort(ip string, port int) (int, error) {
	var lastErr error
	for i := 0; i < maxPortChecks && port <= 65535; i, port = i+1, port+1 {
		ln, err := net.Listen("tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
		if err == nil {
			ln.Close()
			return port, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return 0, fmt.Errorf("port pick error: %w", err)
		}
		lastErr = err
	}

	return 0, fmt.Errorf("port pick error. Checked %d ports: %w", maxPortChecks, lastErr)
}
