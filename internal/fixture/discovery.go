package fixture

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	// DiscoveryPort is the Magic Home LAN discovery port.
	DiscoveryPort = 48899
	// discoveryProbe is the magic string bulbs answer to. It dates back to
	// the HF-A11 WiFi module these bulbs are built on.
	discoveryProbe = "HF-A11ASSISTHREAD"
)

// Device is one discovery response.
type Device struct {
	Addr  string // IP address
	ID    string // hardware ID (MAC without separators)
	Model string
}

// Discover broadcasts a probe on the local network and collects responses
// until the context is done or timeout elapses. Bulbs answer with
// "ip,id,model" from port 48899.
func Discover(ctx context.Context, timeout time.Duration) ([]Device, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("fixture: discovery listen: %w", err)
	}
	defer conn.Close()

	dst := &net.UDPAddr{IP: net.IPv4bcast, Port: DiscoveryPort}
	if _, err := conn.WriteTo([]byte(discoveryProbe), dst); err != nil {
		return nil, fmt.Errorf("fixture: discovery probe: %w", err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var devices []Device
	seen := make(map[string]bool)
	buf := make([]byte, 256)

	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return devices, err
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return devices, nil
			}
			return devices, err
		}

		reply := strings.TrimSpace(string(buf[:n]))
		if reply == discoveryProbe {
			continue // our own broadcast echoed back
		}
		parts := strings.Split(reply, ",")
		if len(parts) != 3 {
			continue
		}
		if seen[parts[1]] {
			continue
		}
		seen[parts[1]] = true
		devices = append(devices, Device{Addr: parts[0], ID: parts[1], Model: parts[2]})
	}
}
