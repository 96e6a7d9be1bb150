package runner

import (
	"fmt"
	"net"
	"strconv"
)

// allocatePort probes [base, base+span) and returns the first port that can
// actually be bound. Probing instead of blind increment means a port held by
// another process, or by a run that outlived its registry entry, is skipped.
func allocatePort(base, span int) (int, error) {
	for port := base; port < base+span; port++ {
		l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
		if err != nil {
			continue
		}
		l.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free port in [%d,%d)", base, base+span)
}
