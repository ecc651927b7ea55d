// ABOUTME: stdlib DNS resolution + dial-based connectivity probe for the Runtime Validation layer
// ABOUTME: Pluggable probe backends stay external; this is the built-in fallback

package hostprobe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/bastelbude1/tasker/pkg/types"
)

// Probe implements types.HostProbe using net.LookupHost and net.DialTimeout.
// A TCP dial needs no raw-socket privileges, so it stands in for a real
// ping during the runtime validation layer.
type Probe struct {
	// DialPort is the TCP port used for the connectivity check. 22 (SSH) is
	// a reasonable default for hosts this engine is likely to target.
	DialPort int
}

// New returns a Probe that dials port 22 by default.
func New() *Probe {
	return &Probe{DialPort: 22}
}

var _ types.HostProbe = (*Probe)(nil)

// Resolve implements types.HostProbe.
func (p *Probe) Resolve(hostname string) error {
	if hostname == "" {
		return fmt.Errorf("empty hostname")
	}
	addrs, err := net.LookupHost(hostname)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", hostname, err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("resolve %s: no addresses returned", hostname)
	}
	return nil
}

// Dial implements types.HostProbe, attempting a TCP connection to hostname
// on p.DialPort within timeout seconds.
func (p *Probe) Dial(ctx context.Context, hostname string, timeout int) error {
	port := p.DialPort
	if port == 0 {
		port = 22
	}
	d := net.Dialer{Timeout: time.Duration(timeout) * time.Second}
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", hostname, port))
	if err != nil {
		return fmt.Errorf("dial %s:%d: %w", hostname, port, err)
	}
	return conn.Close()
}
